package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"configuration", Configuration("ocr", "missing api key"), IsConfiguration},
		{"validation", Validation("upload", "unknown user"), IsValidation},
		{"not found", NotFound("store.get", "s1/a.md"), IsNotFound},
		{"transport", Transport("store.list", 502, nil), IsTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			// 包装后依然可以识别
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped))
		})
	}
}

func TestKindsDoNotCross(t *testing.T) {
	err := NotFound("store.get", "x")
	assert.False(t, IsTransport(err))
	assert.False(t, IsValidation(err))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transport("github.list", 0, cause)
	assert.Equal(t, "github.list: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	err = Transport("github.list", 500, nil)
	assert.Equal(t, "github.list: unexpected status 500", err.Error())
	assert.Equal(t, 500, err.Status)

	assert.Equal(t, "store.get: s1/a.md not found", NotFound("store.get", "s1/a.md").Error())
}
