package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodePropagation(t *testing.T) {
	t.Run("HasCode sees through wrapping", func(t *testing.T) {
		base := New(CodeConflict, "already exists")
		wrapped := fmt.Errorf("outer: %w", base)

		assert.True(t, HasCode(wrapped, CodeConflict))
		assert.False(t, HasCode(wrapped, CodeNotFound))
		assert.Equal(t, CodeConflict, CodeOf(wrapped))
	})

	t.Run("Wrap preserves the cause", func(t *testing.T) {
		cause := errors.New("disk full")
		wrapped := Wrap(cause, CodeInternal, "write failed")

		assert.True(t, errors.Is(wrapped, cause))
		assert.Equal(t, CodeInternal, CodeOf(wrapped))
		assert.Equal(t, "write failed", MessageOf(wrapped))
	})

	t.Run("uncoded errors map to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeInvalidInput:       http.StatusBadRequest,
		CodeValidation:         http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeInvariantViolation: http.StatusConflict,
		CodeUnavailable:        http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
