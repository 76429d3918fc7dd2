package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NoArtifactError is returned when an upload call carries no file.
type NoArtifactError struct{}

func (NoArtifactError) Error() string { return "no file uploaded" }

// MalformedInputError marks input that cannot be read, such as a corrupt workbook.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input: %s: %v", e.Reason, e.Err)
	}
	return "malformed input: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// TransientServiceError is a capacity signal from the extraction service.
type TransientServiceError struct {
	Op       string
	Status   int
	Attempts int
	Err      error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("extraction service overloaded during %s (status %d, attempts %d): %v", e.Op, e.Status, e.Attempts, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// PermanentServiceError is any extraction service failure that is not retried.
type PermanentServiceError struct {
	Op     string
	Status int
	Err    error
}

func (e *PermanentServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("extraction service failed during %s (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("extraction service failed during %s: %v", e.Op, e.Err)
}

func (e *PermanentServiceError) Unwrap() error { return e.Err }

// ExtractionFormatError is returned when the service answered but the payload is unusable.
type ExtractionFormatError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ExtractionFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction format: %s: %v", e.Reason, e.Err)
	}
	return "extraction format: " + e.Reason
}

func (e *ExtractionFormatError) Unwrap() error { return e.Err }

// PartialCommitError reports a fan-out that stopped after Committed of Total bundles.
// Bundles committed before the failure stay persisted.
type PartialCommitError struct {
	Committed int
	Total     int
	Err       error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("committed %d of %d bundles: %v", e.Committed, e.Total, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// ErrorKind names the taxonomy bucket of err for logs and response bodies.
func ErrorKind(err error) string {
	var (
		noArtifact NoArtifactError
		malformed  *MalformedInputError
		transient  *TransientServiceError
		permanent  *PermanentServiceError
		format     *ExtractionFormatError
		partial    *PartialCommitError
		appErr     *AppError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &noArtifact):
		return "NO_ARTIFACT"
	case errors.As(err, &malformed):
		return "MALFORMED_INPUT"
	case errors.As(err, &transient):
		return "TRANSIENT_SERVICE"
	case errors.As(err, &permanent):
		return "PERMANENT_SERVICE"
	case errors.As(err, &format):
		return "EXTRACTION_FORMAT"
	case errors.As(err, &partial):
		return "PARTIAL_COMMIT"
	case errors.As(err, &appErr):
		return appErr.Code
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps err onto a response status.
func HTTPStatus(err error) int {
	switch ErrorKind(err) {
	case "":
		return http.StatusOK
	case "NO_ARTIFACT":
		return http.StatusBadRequest
	case "MALFORMED_INPUT":
		return http.StatusUnprocessableEntity
	case "TRANSIENT_SERVICE":
		return http.StatusServiceUnavailable
	case "PERMANENT_SERVICE", "EXTRACTION_FORMAT":
		return http.StatusBadGateway
	case "PARTIAL_COMMIT":
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
