package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	records := []Record{
		{Name: "Linear Algebra", MarkdownPath: "s1/linear.md"},
		{Name: "数学建模 (双语)", MarkdownPath: "s1/model_dual.md"},
		{Name: "Calculus", MarkdownPath: "s1/calc.md"},
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Linear Algebra", "数学建模 (双语)", "Calculus"}},
		{"linalg", []string{"Linear Algebra"}},
		{"建模", []string{"数学建模 (双语)"}},
		{"dual", []string{"数学建模 (双语)"}},
		{"CALC", []string{"Calculus"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := Filter(records, tt.query)
			names := make([]string, 0, len(got))
			for _, r := range got {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
