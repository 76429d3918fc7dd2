package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ingest/constants"
	"github.com/joseph-ayodele/invoice-ingest/internal/artifact"
	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
	"github.com/joseph-ayodele/invoice-ingest/internal/extract"
	"github.com/joseph-ayodele/invoice-ingest/internal/llm"
	"github.com/joseph-ayodele/invoice-ingest/internal/normalize"
)

// Upload is one document handed to the pipeline. Reader is nil when the caller
// attached no file.
type Upload struct {
	Name      string
	MediaType string
	Reader    io.Reader
}

// Result is what a run reports back to its caller.
type Result struct {
	RunID       string                    `json:"runId"`
	Total       int                       `json:"total"`
	Envelope    entity.ExtractionEnvelope `json:"envelope"`
	Spreadsheet bool                      `json:"spreadsheet"`
	Committed   int                       `json:"committed"`
	ReceiptIDs  []uuid.UUID               `json:"receiptIds"`
	Empty       bool                      `json:"empty"`
	Status      constants.RunStatus       `json:"status"`
}

// Normalizer converts a spreadsheet artifact into a CSV artifact registered with reg.
type Normalizer interface {
	Normalize(ctx context.Context, reg normalize.Registrar, in entity.UploadedArtifact) (entity.UploadedArtifact, error)
}

// Processor runs one upload through classify, normalize, extract, parse and commit.
// Every temporary file it creates is removed before Run returns.
type Processor struct {
	logger      *slog.Logger
	artifactDir string
	normalizer  Normalizer
	extractor   extract.Extractor
	committer   *Committer
}

func NewProcessor(
	logger *slog.Logger,
	artifactDir string,
	normalizer Normalizer,
	extractor extract.Extractor,
	committer *Committer,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = normalize.NewSpreadsheetNormalizer(logger)
	}
	return &Processor{
		logger:      logger,
		artifactDir: artifactDir,
		normalizer:  normalizer,
		extractor:   extractor,
		committer:   committer,
	}
}

func (p *Processor) Run(ctx context.Context, up Upload) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.New().String(), ReceiptIDs: []uuid.UUID{}, Status: constants.RunStatusFailed}
	logger := common.LoggerFromContext(ctx, p.logger).With("run_id", res.RunID)
	ctx = common.WithLogger(ctx, logger)

	if up.Reader == nil {
		logger.Warn("pipeline.run.no_artifact")
		return res, common.NoArtifactError{}
	}

	name := up.Name
	if name == "" {
		name = constants.DefaultExtractionName
	}
	mediaType := up.MediaType
	if mediaType == "" || constants.BaseMediaType(mediaType) == constants.MediaTypeOctetStream {
		mediaType = constants.MediaTypeForExt(filepath.Ext(name))
	}
	logger.Info("pipeline.run.start", "name", name, "media_type", mediaType)

	tracker := artifact.NewTracker(p.artifactDir, logger)
	defer func() {
		if err := tracker.Cleanup(); err != nil {
			logger.Warn("pipeline.run.cleanup_error", "error", err)
		}
	}()

	path, size, err := tracker.Stage(name, up.Reader)
	if err != nil {
		return p.fail(logger, res, start, err)
	}
	if size == 0 {
		logger.Warn("pipeline.run.no_artifact", "reason", "empty upload")
		return res, common.NoArtifactError{}
	}
	art := entity.UploadedArtifact{Path: path, MediaType: mediaType, DisplayName: name, Size: size}

	branch := normalize.Classify(mediaType)
	if branch == constants.BranchSpreadsheet {
		res.Spreadsheet = true
		if art, err = p.normalizer.Normalize(ctx, tracker, art); err != nil {
			return p.fail(logger, res, start, err)
		}
	}

	raw, err := p.extractor.Extract(ctx, art)
	if err != nil {
		return p.fail(logger, res, start, err)
	}

	env, err := llm.ParseEnvelope(raw, logger)
	if err != nil {
		return p.fail(logger, res, start, err)
	}
	res.Envelope = env
	res.Total = env.Total

	cr, err := p.committer.Commit(ctx, env)
	res.Committed = cr.Committed
	res.ReceiptIDs = cr.IDs()
	res.Empty = cr.Empty
	if err != nil {
		var partial *common.PartialCommitError
		if errors.As(err, &partial) && partial.Committed > 0 {
			res.Status = constants.RunStatusPartial
		}
		return p.fail(logger, res, start, err)
	}

	res.Status = constants.RunStatusCommitted
	if res.Empty {
		res.Status = constants.RunStatusEmpty
	}
	logger.Info("pipeline.run.ok",
		"branch", branch,
		"status", res.Status,
		"total", res.Total,
		"committed", res.Committed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) fail(logger *slog.Logger, res Result, start time.Time, err error) (Result, error) {
	logger.Error("pipeline.run.failed",
		"kind", common.ErrorKind(err),
		"status", res.Status,
		"committed", res.Committed,
		"error", err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, err
}
