package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeSurvivesWrapping(t *testing.T) {
	base := Invalid(ReasonInvalidScore, "score must be between 1 and 5")
	wrapped := fmt.Errorf("submit rating: %w", base)

	assert.True(t, HasCode(wrapped, CodeInvalidInput))
	assert.Equal(t, ReasonInvalidScore, ReasonOf(wrapped))
	assert.False(t, HasCode(wrapped, CodeStorageUnavailable))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, Reason(""), ReasonOf(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeStorageUnavailable, "load rating")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "load rating: connection refused", err.Error())
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeBadRequest:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeConflict:           http.StatusConflict,
		CodeStorageUnavailable: http.StatusServiceUnavailable,
		CodeUnavailable:        http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
		Code("unknown"):        http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
