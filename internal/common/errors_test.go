package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindAndStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   string
		status int
	}{
		{"nil", nil, "", http.StatusOK},
		{"no artifact", NoArtifactError{}, "NO_ARTIFACT", http.StatusBadRequest},
		{"malformed", fmt.Errorf("normalize: %w", &MalformedInputError{Reason: "bad zip"}), "MALFORMED_INPUT", http.StatusUnprocessableEntity},
		{"transient", &TransientServiceError{Op: "upload", Status: 503, Attempts: 3}, "TRANSIENT_SERVICE", http.StatusServiceUnavailable},
		{"permanent", &PermanentServiceError{Op: "generate", Status: 400}, "PERMANENT_SERVICE", http.StatusBadGateway},
		{"format", &ExtractionFormatError{Reason: "not json"}, "EXTRACTION_FORMAT", http.StatusBadGateway},
		{"partial over validation", &PartialCommitError{Committed: 1, Total: 2, Err: fmt.Errorf("%w: x", ErrValidation)}, "PARTIAL_COMMIT", http.StatusInternalServerError},
		{"not found", NewAppError("NOT_FOUND", "receipt", ErrNotFound), "NOT_FOUND", http.StatusNotFound},
		{"bare validation", fmt.Errorf("%w: field", ErrValidation), "VALIDATION", http.StatusBadRequest},
		{"config", NewAppError("CONFIG_ERROR", "bad", ErrInvalidInput), "CONFIG_ERROR", http.StatusBadRequest},
		{"database", NewAppError("DATABASE_ERROR", "insert", ErrDatabase), "DATABASE_ERROR", http.StatusInternalServerError},
		{"unknown", errors.New("boom"), "INTERNAL", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, ErrorKind(tc.err))
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
		})
	}
}

func TestAppErrorFormatting(t *testing.T) {
	err := NewAppError("NOT_FOUND", "receipt missing", ErrNotFound)
	assert.Equal(t, "NOT_FOUND: receipt missing: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "X: y", NewAppError("X", "y", nil).Error())

	assert.Nil(t, WrapError(nil, "ctx"))
	assert.EqualError(t, WrapError(ErrInternal, "ctx"), "ctx: internal error")
}

func TestPartialCommitUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	err := &PartialCommitError{Committed: 2, Total: 3, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "committed 2 of 3 bundles: disk full", err.Error())
}
