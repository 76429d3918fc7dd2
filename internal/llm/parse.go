package llm

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
)

const maxRawInError = 2048

// StripFences removes a surrounding ```json ... ``` (or bare ```) block.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// ParseEnvelope turns the service's raw text into a typed envelope. Every failure
// is an *common.ExtractionFormatError.
func ParseEnvelope(raw string, logger *slog.Logger) (entity.ExtractionEnvelope, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	body := StripFences(raw)
	if body == "" {
		return entity.ExtractionEnvelope{}, formatError("empty response", raw, nil)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		logger.Error("llm.parse.decode_error", "error", err, "raw_bytes", len(raw))
		return entity.ExtractionEnvelope{}, formatError("decode", raw, err)
	}
	if doc == nil {
		return entity.ExtractionEnvelope{}, formatError("envelope is null", raw, nil)
	}

	NormalizeEnvelope(doc, logger)

	if err := validateEnvelope(doc); err != nil {
		logger.Error("llm.parse.schema_validation_failed", "error", err)
		return entity.ExtractionEnvelope{}, formatError("schema", raw, err)
	}

	cleaned, err := json.Marshal(doc)
	if err != nil {
		return entity.ExtractionEnvelope{}, formatError("re-encode", raw, err)
	}
	var env entity.ExtractionEnvelope
	if err := json.Unmarshal(cleaned, &env); err != nil {
		logger.Error("llm.parse.unmarshal_failed", "error", err)
		return entity.ExtractionEnvelope{}, formatError("decode records", raw, err)
	}

	for i := range env.Data {
		env.Data[i] = env.Data[i].WithDefaults()
	}
	if env.Data == nil {
		env.Data = []entity.EntityBundle{}
	}
	if env.Total != len(env.Data) {
		logger.Warn("llm.parse.total_mismatch", "total", env.Total, "bundles", len(env.Data))
	}

	logger.Info("llm.parse.ok",
		"total", env.Total,
		"bundles", len(env.Data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return env, nil
}

func formatError(reason, raw string, err error) error {
	if len(raw) > maxRawInError {
		raw = raw[:maxRawInError]
	}
	return &common.ExtractionFormatError{Reason: reason, Raw: raw, Err: err}
}
