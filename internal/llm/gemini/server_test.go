package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ingest/internal/llm"
)

// fakeGemini serves the slice of the Gemini REST API the client touches:
// resumable file upload, file get/delete and generateContent.
type fakeGemini struct {
	t *testing.T

	mu          sync.Mutex
	createCode  int
	states      []string // returned by successive upload/get calls
	failMessage string
	genCode     int
	genText     string
	uploaded    string
	gets        int
	deletes     int
	genBodies   []map[string]any
}

func (f *fakeGemini) nextState() string {
	if len(f.states) == 0 {
		return "ACTIVE"
	}
	s := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return s
}

func (f *fakeGemini) file(state string) map[string]any {
	out := map[string]any{
		"name":     "files/abc",
		"uri":      "https://generativelanguage.test/v1beta/files/abc",
		"mimeType": "application/pdf",
		"state":    state,
	}
	if state == "FAILED" && f.failMessage != "" {
		out["error"] = map[string]any{"message": f.failMessage}
	}
	return out
}

func (f *fakeGemini) handler(serverURL func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/v1beta/files":
			if f.createCode != 0 {
				writeAPIError(w, f.createCode)
				return
			}
			w.Header().Set("X-Goog-Upload-Url", serverURL()+"/session/abc")
			writeJSONBody(w, map[string]any{})
		case r.Method == http.MethodPost && r.URL.Path == "/session/abc":
			body, _ := io.ReadAll(r.Body)
			f.uploaded += string(body)
			w.Header().Set("X-Goog-Upload-Status", "final")
			writeJSONBody(w, map[string]any{"file": f.file(f.nextState())})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "files/abc"):
			f.gets++
			writeJSONBody(w, f.file(f.nextState()))
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "files/abc"):
			f.deletes++
			writeJSONBody(w, map[string]any{})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":generateContent"):
			var body map[string]any
			assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
			f.genBodies = append(f.genBodies, body)
			if f.genCode != 0 {
				writeAPIError(w, f.genCode)
				return
			}
			parts := []map[string]any{}
			if f.genText != "" {
				parts = append(parts, map[string]any{"text": f.genText})
			}
			writeJSONBody(w, map[string]any{
				"candidates": []map[string]any{{"content": map[string]any{"role": "model", "parts": parts}}},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func writeJSONBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": "The model is overloaded.", "status": http.StatusText(code)},
	})
}

func newFakeClient(t *testing.T, fake *fakeGemini) *Client {
	t.Helper()
	fake.t = t
	var srv *httptest.Server
	srv = httptest.NewServer(fake.handler(func() string { return srv.URL }))
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{
		APIKey:       "test-key",
		Model:        "gemini-test",
		BaseURL:      srv.URL + "/",
		PollInterval: time.Millisecond,
		MaxPolls:     5,
	}, nil)
	require.NoError(t, err)
	return c
}

func uploadReq() llm.UploadRequest {
	return llm.UploadRequest{Reader: strings.NewReader("%PDF-1.4 body"), MediaType: "application/pdf", DisplayName: "invoice.pdf"}
}

func requireServiceStatus(t *testing.T, err error, op string, status int) {
	t.Helper()
	var svcErr *llm.ServiceError
	require.True(t, errors.As(err, &svcErr), "got %v", err)
	assert.Equal(t, op, svcErr.Op)
	assert.Equal(t, status, svcErr.Status)
}

func TestClient_UploadGenerateDelete(t *testing.T) {
	fake := &fakeGemini{genText: `{"total":1,"data":[]}`}
	c := newFakeClient(t, fake)
	ctx := context.Background()

	remote, err := c.Upload(ctx, uploadReq())
	require.NoError(t, err)
	assert.Equal(t, "files/abc", remote.Name)
	assert.Equal(t, "https://generativelanguage.test/v1beta/files/abc", remote.URI)
	assert.Equal(t, "application/pdf", remote.MediaType)
	assert.Equal(t, "%PDF-1.4 body", fake.uploaded)

	text, err := c.Generate(ctx, remote, "extract please")
	require.NoError(t, err)
	assert.Equal(t, `{"total":1,"data":[]}`, text)
	require.Len(t, fake.genBodies, 1)
	raw, err := json.Marshal(fake.genBodies[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "extract please")
	assert.Contains(t, string(raw), remote.URI)

	require.NoError(t, c.Delete(ctx, remote))
	assert.Equal(t, 1, fake.deletes)
}

func TestClient_UploadPollsUntilActive(t *testing.T) {
	fake := &fakeGemini{states: []string{"PROCESSING", "PROCESSING", "ACTIVE"}}
	c := newFakeClient(t, fake)

	remote, err := c.Upload(context.Background(), uploadReq())
	require.NoError(t, err)
	assert.Equal(t, "files/abc", remote.Name)
	assert.Equal(t, 2, fake.gets)
}

func TestClient_UploadFailedState(t *testing.T) {
	fake := &fakeGemini{states: []string{"PROCESSING", "FAILED"}, failMessage: "unsupported document"}
	c := newFakeClient(t, fake)

	_, err := c.Upload(context.Background(), uploadReq())
	requireServiceStatus(t, err, "upload", 0)
	assert.Contains(t, err.Error(), "unsupported document")
}

func TestClient_UploadStillProcessing(t *testing.T) {
	fake := &fakeGemini{states: []string{"PROCESSING"}}
	c := newFakeClient(t, fake)

	_, err := c.Upload(context.Background(), uploadReq())
	requireServiceStatus(t, err, "upload", 0)
	assert.Equal(t, 5, fake.gets)
}

func TestClient_UploadOverloaded(t *testing.T) {
	fake := &fakeGemini{createCode: http.StatusServiceUnavailable}
	c := newFakeClient(t, fake)

	_, err := c.Upload(context.Background(), uploadReq())
	requireServiceStatus(t, err, "upload", http.StatusServiceUnavailable)

	var svcErr *llm.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.True(t, svcErr.Overloaded())
}

func TestClient_GenerateOverloaded(t *testing.T) {
	fake := &fakeGemini{genCode: http.StatusServiceUnavailable}
	c := newFakeClient(t, fake)

	_, err := c.Generate(context.Background(), llm.RemoteFile{Name: "files/abc", URI: "https://x/files/abc", MediaType: "application/pdf"}, "p")
	requireServiceStatus(t, err, "generate", http.StatusServiceUnavailable)
}

func TestClient_GeneratePermanentFailure(t *testing.T) {
	fake := &fakeGemini{genCode: http.StatusBadRequest}
	c := newFakeClient(t, fake)

	_, err := c.Generate(context.Background(), llm.RemoteFile{Name: "files/abc", URI: "https://x/files/abc", MediaType: "application/pdf"}, "p")
	requireServiceStatus(t, err, "generate", http.StatusBadRequest)
}

func TestClient_GenerateEmptyText(t *testing.T) {
	fake := &fakeGemini{}
	c := newFakeClient(t, fake)

	_, err := c.Generate(context.Background(), llm.RemoteFile{Name: "files/abc", URI: "https://x/files/abc", MediaType: "application/pdf"}, "p")
	requireServiceStatus(t, err, "generate", 0)
	assert.Contains(t, err.Error(), "empty response text")
}

func TestClient_UploadNilReader(t *testing.T) {
	c := newFakeClient(t, &fakeGemini{})
	_, err := c.Upload(context.Background(), llm.UploadRequest{MediaType: "application/pdf"})
	requireServiceStatus(t, err, "upload", 0)
}
