package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"s1/doc.md", "s1/doc.md"},
		{"/s1/doc.md", "s1/doc.md"},
		{"s1//a/../doc.md", "s1/doc.md"},
		{`s1\doc.md`, "s1/doc.md"},
		{"", ""},
		{"../../etc/passwd", "etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
