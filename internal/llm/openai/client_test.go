package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ingest/internal/llm"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-test"}, nil)
}

func TestClient_UploadGenerateDelete(t *testing.T) {
	var deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "user_data", r.FormValue("purpose"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "invoice.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(body))
		_, _ = w.Write([]byte(`{"id":"file-123","filename":"invoice.pdf"}`))
	})
	mux.HandleFunc("POST /responses", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"{\"total\":0,\"data\":[]}"}]}]}`))
	})
	mux.HandleFunc("DELETE /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = r.PathValue("id")
		_, _ = w.Write([]byte(`{"id":"file-123","deleted":true}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	file, err := c.Upload(ctx, llm.UploadRequest{
		Reader:      strings.NewReader("%PDF-1.4"),
		MediaType:   "application/pdf",
		DisplayName: "invoice.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "file-123", file.Name)
	assert.Equal(t, "application/pdf", file.MediaType)

	text, err := c.Generate(ctx, file, "extract")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":0,"data":[]}`, text)

	require.NoError(t, c.Delete(ctx, file))
	assert.Equal(t, "file-123", deleted)
}

func TestClient_ErrorsCarryStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))

	_, err := c.Upload(context.Background(), llm.UploadRequest{Reader: strings.NewReader("x"), MediaType: "text/plain", DisplayName: "a.txt"})
	var svcErr *llm.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusServiceUnavailable, svcErr.Status)
	assert.Equal(t, "upload", svcErr.Op)
	assert.True(t, svcErr.Overloaded())

	_, err = c.Generate(context.Background(), llm.RemoteFile{Name: "file-1"}, "p")
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "generate", svcErr.Op)
}

func TestOutputText(t *testing.T) {
	text, err := outputText([]byte(`{"output_text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = outputText([]byte(`{"output":[{"type":"reasoning"}]}`))
	assert.Error(t, err)
}
