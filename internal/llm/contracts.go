package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// UploadRequest describes the bytes handed to the extraction service.
type UploadRequest struct {
	Reader      io.Reader
	Size        int64
	MediaType   string
	DisplayName string
}

// RemoteFile is the service-side handle of an uploaded artifact.
type RemoteFile struct {
	Name      string // provider id, used for deletion
	URI       string
	MediaType string
}

// Service is the document-understanding backend. Implementations are stateless
// apart from their HTTP client and must be safe for concurrent use.
type Service interface {
	Upload(ctx context.Context, req UploadRequest) (RemoteFile, error)
	Generate(ctx context.Context, file RemoteFile, prompt string) (string, error)
	Delete(ctx context.Context, file RemoteFile) error
	Name() string
}

// ServiceError carries the HTTP-equivalent status reported by a provider.
type ServiceError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.Status, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Overloaded reports whether the provider signalled capacity exhaustion.
func (e *ServiceError) Overloaded() bool {
	return e.Status == http.StatusServiceUnavailable
}
