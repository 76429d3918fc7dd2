package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
	Committed *int      `json:"committed,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		common.LoggerFromContext(r.Context(), nil).Error("http.encode_failed", "error", err)
	}
}

// writeError renders err with the status its taxonomy maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, common.HTTPStatus(err), err)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := errorResponse{
		Error: errorBody{
			Code:    common.ErrorKind(err),
			Message: publicMessage(err, status),
		},
		RequestID: common.RequestIDFromContext(r.Context()),
	}
	var partial *common.PartialCommitError
	if errors.As(err, &partial) {
		committed := partial.Committed
		resp.Committed = &committed
	}

	logger := common.LoggerFromContext(r.Context(), nil)
	if status >= http.StatusInternalServerError {
		logger.Error("http.error", "status", status, "kind", resp.Error.Code, "error", err)
	} else {
		logger.Warn("http.error", "status", status, "kind", resp.Error.Code, "error", err)
	}
	writeJSON(w, r, status, resp)
}

// publicMessage hides internal causes behind a generic message.
func publicMessage(err error, status int) string {
	var appErr *common.AppError
	switch {
	case status == http.StatusInternalServerError && common.ErrorKind(err) != "PARTIAL_COMMIT":
		return "internal server error"
	case errors.As(err, &appErr):
		return appErr.Message
	default:
		return err.Error()
	}
}

func badRequest(message string) error {
	return common.NewAppError("INVALID_INPUT", message, common.ErrInvalidInput)
}
