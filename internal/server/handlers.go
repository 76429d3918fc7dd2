package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ingest/constants"
	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
	"github.com/joseph-ayodele/invoice-ingest/internal/pipeline"
)

const (
	maxJSONBody  = 4 << 20
	defaultLimit = 100
	maxLimit     = 1000
)

type uploadResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  pipeline.Result `json:"result"`
}

type listResponse struct {
	Success bool                       `json:"success"`
	Data    []*entity.PersistedReceipt `json:"data"`
	Message string                     `json:"message,omitempty"`
	Meta    listMeta                   `json:"meta"`
}

type listMeta struct {
	Count  int `json:"count"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type receiptResponse struct {
	Success bool                     `json:"success"`
	Data    *entity.PersistedReceipt `json:"data,omitempty"`
	Message string                   `json:"message,omitempty"`
}

// updateRequest uses pointers so an absent collection is distinguishable from an empty one.
type updateRequest struct {
	Invoices  *[]entity.InvoiceRecord  `json:"invoices"`
	Products  *[]entity.ProductRecord  `json:"products"`
	Customers *[]entity.CustomerRecord `json:"customers"`
}

func (s *HTTPServer) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var up pipeline.Upload
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		up = pipeline.Upload{Name: header.Filename, MediaType: header.Header.Get("Content-Type"), Reader: file}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// Run reports the missing artifact.
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorStatus(w, r, http.StatusRequestEntityTooLarge,
				badRequest(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)))
			return
		}
		writeError(w, r, badRequest("unreadable multipart body"))
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	res, err := s.runner.Run(ctx, up)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := "File processed and data saved successfully."
	if res.Status == constants.RunStatusEmpty {
		msg = "File processed; no records were found."
	}
	writeJSON(w, r, http.StatusOK, uploadResponse{Success: true, Message: msg, Result: res})
}

func (s *HTTPServer) listReceipts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit = min(max(limit, 1), maxLimit)

	recs, err := s.receipts.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := s.receipts.Count(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := listResponse{
		Success: true,
		Data:    recs,
		Meta:    listMeta{Count: len(recs), Total: total, Limit: limit, Offset: offset},
	}
	if resp.Data == nil {
		resp.Data = []*entity.PersistedReceipt{}
	}
	if len(resp.Data) == 0 {
		resp.Message = "No records found"
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *HTTPServer) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.receipts.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, receiptResponse{Success: true, Data: rec})
}

func (s *HTTPServer) updateReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, badRequest("request body must be a JSON object"))
		return
	}
	if req.Invoices == nil || req.Products == nil || req.Customers == nil {
		writeError(w, r, badRequest("Please enter all fields"))
		return
	}

	bundle := entity.EntityBundle{Invoices: *req.Invoices, Products: *req.Products, Customers: *req.Customers}.WithDefaults()
	if err := pipeline.ValidateBundle(bundle); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.receipts.Update(r.Context(), id, bundle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, receiptResponse{Success: true, Data: rec, Message: "Data updated successfully"})
}

func (s *HTTPServer) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.receipts.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, receiptResponse{Success: true, Message: "Data deleted successfully"})
}

func (s *HTTPServer) exportReceipts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := s.exporter.ExportXLSX(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := fmt.Sprintf("receipts-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", constants.MediaTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Warn("export.xlsx.write_failed", "error", err)
		return
	}
	common.LoggerFromContext(r.Context(), s.logger).Info("export.xlsx.served",
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		writeError(w, r, badRequest("id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(key + " must be a non-negative integer")
	}
	return n, nil
}
