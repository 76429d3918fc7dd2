package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/invoice-ingest/internal/llm"
)

const providerName = "gemini"

// The Files API wraps create-step failures with %s, dropping the APIError type.
var reStatus = regexp.MustCompile(`Error (\d{3}),`)

// Config for the Gemini client.
type Config struct {
	APIKey       string
	Model        string // e.g., "gemini-1.5-flash"
	BaseURL      string // optional override, used by tests
	Temperature  *float32
	PollInterval time.Duration // wait between file state checks while PROCESSING
	MaxPolls     int
}

// Client implements llm.Service on the Gemini Files API and Models.GenerateContent.
type Client struct {
	cfg    Config
	genai  *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 60
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{cfg: cfg, genai: gc, logger: logger.With("provider", providerName)}, nil
}

func (c *Client) Name() string { return providerName }

// Upload stores the artifact with the Files API and waits until it is ACTIVE.
func (c *Client) Upload(ctx context.Context, req llm.UploadRequest) (llm.RemoteFile, error) {
	start := time.Now()
	if req.Reader == nil {
		return llm.RemoteFile{}, c.fail("upload", errors.New("nil reader"))
	}
	f, err := c.genai.Files.Upload(ctx, req.Reader, &genai.UploadFileConfig{
		MIMEType:    req.MediaType,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return llm.RemoteFile{}, c.fail("upload", err)
	}

	for polls := 0; f.State == genai.FileStateProcessing; polls++ {
		if polls >= c.cfg.MaxPolls {
			return llm.RemoteFile{}, c.fail("upload", fmt.Errorf("file %s still processing after %d polls", f.Name, polls))
		}
		select {
		case <-ctx.Done():
			return llm.RemoteFile{}, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
		if f, err = c.genai.Files.Get(ctx, f.Name, nil); err != nil {
			return llm.RemoteFile{}, c.fail("upload", err)
		}
	}
	if f.State == genai.FileStateFailed {
		msg := "file processing failed"
		if f.Error != nil && f.Error.Message != "" {
			msg = f.Error.Message
		}
		return llm.RemoteFile{}, c.fail("upload", errors.New(msg))
	}

	mediaType := f.MIMEType
	if mediaType == "" {
		mediaType = req.MediaType
	}
	c.logger.Info("llm.upload.ok",
		"file", f.Name,
		"uri", f.URI,
		"display_name", req.DisplayName,
		"media_type", mediaType,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.RemoteFile{Name: f.Name, URI: f.URI, MediaType: mediaType}, nil
}

// Generate sends the file reference and prompt as one user turn.
func (c *Client) Generate(ctx context.Context, file llm.RemoteFile, prompt string) (string, error) {
	start := time.Now()
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MediaType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", c.fail("generate", err)
	}
	text := resp.Text()
	if text == "" {
		return "", c.fail("generate", errors.New("empty response text"))
	}
	c.logger.Info("llm.generate.ok",
		"model", c.cfg.Model,
		"file", file.Name,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Delete removes the remote file.
func (c *Client) Delete(ctx context.Context, file llm.RemoteFile) error {
	if _, err := c.genai.Files.Delete(ctx, file.Name, nil); err != nil {
		return c.fail("delete", err)
	}
	return nil
}

func (c *Client) fail(op string, err error) error {
	status := StatusOf(err)
	c.logger.Error("llm."+op+".error", "status", status, "error", err)
	return &llm.ServiceError{Provider: providerName, Op: op, Status: status, Err: err}
}

// StatusOf recovers the HTTP status from a genai error, or 0 when none is known.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	if m := reStatus.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return code
		}
	}
	return 0
}
