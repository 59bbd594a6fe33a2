package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "validation", err: Validationf("minutes must be positive"), expected: http.StatusBadRequest},
		{name: "not found", err: NotFoundf("job %s not found", "T1"), expected: http.StatusNotFound},
		{name: "conflict", err: Conflictf("machine busy"), expected: http.StatusConflict},
		{name: "invalid state", err: InvalidStatef("not drying"), expected: http.StatusConflict},
		{name: "wrapped", err: fmt.Errorf("outer: %w", Conflictf("machine busy")), expected: http.StatusConflict},
		{name: "foreign error", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HTTPStatus(tc.err))
		})
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause, "failed to load job")

	assert.True(t, Is(err, CodeInternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load job: connection refused", err.Error())
	assert.Nil(t, Internal(nil, "unused"))
}
