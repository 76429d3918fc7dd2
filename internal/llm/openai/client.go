package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-ingest/internal/llm"
)

// Upload sends the artifact to POST /files with purpose "user_data".
func (c *Client) Upload(ctx context.Context, req llm.UploadRequest) (llm.RemoteFile, error) {
	start := time.Now()
	if req.Reader == nil {
		return llm.RemoteFile{}, c.fail("upload", 0, errors.New("nil reader"))
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("purpose", "user_data"); err != nil {
		return llm.RemoteFile{}, c.fail("upload", 0, err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.DisplayName))
	h.Set("Content-Type", req.MediaType)
	part, err := w.CreatePart(h)
	if err != nil {
		return llm.RemoteFile{}, c.fail("upload", 0, err)
	}
	if _, err := io.Copy(part, req.Reader); err != nil {
		return llm.RemoteFile{}, c.fail("upload", 0, fmt.Errorf("copy artifact: %w", err))
	}
	if err := w.Close(); err != nil {
		return llm.RemoteFile{}, c.fail("upload", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/files"), &body)
	if err != nil {
		return llm.RemoteFile{}, c.fail("upload", 0, err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(httpReq)

	raw, status, err := llm.Send(c.http, httpReq, c.logger)
	if err != nil {
		return llm.RemoteFile{}, c.fail("upload", status, err)
	}

	var out struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
		if err == nil {
			err = errors.New("response carries no file id")
		}
		return llm.RemoteFile{}, c.fail("upload", status, fmt.Errorf("decode upload response: %w", err))
	}

	c.logger.Info("llm.upload.ok",
		"file_id", out.ID,
		"display_name", req.DisplayName,
		"media_type", req.MediaType,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.RemoteFile{Name: out.ID, URI: out.ID, MediaType: req.MediaType}, nil
}

// Generate asks POST /responses to answer prompt about file.
func (c *Client) Generate(ctx context.Context, file llm.RemoteFile, prompt string) (string, error) {
	start := time.Now()
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"input": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "input_file", "file_id": file.Name},
					{"type": "input_text", "text": prompt},
				},
			},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, c.endpoint("/responses"), body, headers, c.logger)
	if err != nil {
		return "", c.fail("generate", status, err)
	}

	text, err := outputText(raw)
	if err != nil {
		return "", c.fail("generate", status, err)
	}
	c.logger.Info("llm.generate.ok",
		"model", c.cfg.Model,
		"file_id", file.Name,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Delete removes the uploaded file with DELETE /files/{id}.
func (c *Client) Delete(ctx context.Context, file llm.RemoteFile) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("/files/"+file.Name), nil)
	if err != nil {
		return c.fail("delete", 0, err)
	}
	c.authorize(req)
	if _, status, err := llm.Send(c.http, req, c.logger); err != nil {
		return c.fail("delete", status, err)
	}
	return nil
}

// outputText concatenates the output_text parts of a Responses API payload.
func outputText(raw []byte) (string, error) {
	var resp struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if resp.OutputText != "" {
		return resp.OutputText, nil
	}
	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no output_text in openai response")
	}
	return b.String(), nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
}

func (c *Client) fail(op string, status int, err error) error {
	c.logger.Error("llm."+op+".error", "status", status, "error", err)
	return &llm.ServiceError{Provider: providerName, Op: op, Status: status, Err: err}
}
