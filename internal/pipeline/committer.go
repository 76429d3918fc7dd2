package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
	"github.com/joseph-ayodele/invoice-ingest/internal/repository"
)

// CommitResult reports what a fan-out persisted.
type CommitResult struct {
	Committed int
	Total     int
	Receipts  []*entity.PersistedReceipt
	Empty     bool
}

// IDs returns the receipt ids in commit order.
func (r CommitResult) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Receipts))
	for _, rec := range r.Receipts {
		ids = append(ids, rec.ID)
	}
	return ids
}

// Committer persists each bundle of an envelope as its own receipt.
type Committer struct {
	store  repository.ReceiptCreator
	logger *slog.Logger
}

func NewCommitter(store repository.ReceiptCreator, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{store: store, logger: logger}
}

// Commit walks env.Data in order. The first bundle that fails validation or
// persistence stops the walk; bundles committed before it are kept.
func (c *Committer) Commit(ctx context.Context, env entity.ExtractionEnvelope) (CommitResult, error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, c.logger)
	total := len(env.Data)
	if total == 0 {
		logger.Info("pipeline.commit.empty", "declared_total", env.Total)
		return CommitResult{Empty: true}, nil
	}

	res := CommitResult{Total: total, Receipts: make([]*entity.PersistedReceipt, 0, total)}
	for i, bundle := range env.Data {
		if err := ctx.Err(); err != nil {
			return res, c.partial(logger, res, fmt.Errorf("bundle %d: %w", i, err))
		}
		bundle = bundle.WithDefaults()
		if err := ValidateBundle(bundle); err != nil {
			return res, c.partial(logger, res, fmt.Errorf("bundle %d: %w", i, err))
		}
		rec, err := c.store.Create(ctx, bundle)
		if err != nil {
			return res, c.partial(logger, res, fmt.Errorf("bundle %d: %w", i, err))
		}
		res.Committed++
		res.Receipts = append(res.Receipts, rec)
	}

	logger.Info("pipeline.commit.ok",
		"committed", res.Committed,
		"total", total,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *Committer) partial(logger *slog.Logger, res CommitResult, err error) error {
	logger.Error("pipeline.commit.partial",
		"committed", res.Committed,
		"total", res.Total,
		"error", err,
	)
	return &common.PartialCommitError{Committed: res.Committed, Total: res.Total, Err: err}
}
