package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
)

const (
	receiptsTable = "receipts"

	colID        = "id"
	colInvoices  = "invoices"
	colProducts  = "products"
	colCustomers = "customers"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"

	// fixed width so lexical order matches time order in SQLite TEXT columns
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var receiptColumns = []string{colID, colInvoices, colProducts, colCustomers, colCreatedAt, colUpdatedAt}

// ReceiptCreator is the single operation the pipeline needs from the store.
type ReceiptCreator interface {
	Create(ctx context.Context, bundle entity.EntityBundle) (*entity.PersistedReceipt, error)
}

type ReceiptRepository interface {
	ReceiptCreator
	Get(ctx context.Context, id uuid.UUID) (*entity.PersistedReceipt, error)
	List(ctx context.Context, limit, offset int) ([]*entity.PersistedReceipt, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id uuid.UUID, bundle entity.EntityBundle) (*entity.PersistedReceipt, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type receiptRepository struct {
	drv     *entsql.Driver
	dialect string
	logger  *slog.Logger
	now     func() time.Time
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{
		drv:     db.Driver,
		dialect: db.Dialect,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *receiptRepository) Create(ctx context.Context, bundle entity.EntityBundle) (*entity.PersistedReceipt, error) {
	start := time.Now()
	bundle = bundle.WithDefaults()
	inv, prod, cust, err := encodeBundle(bundle)
	if err != nil {
		return nil, err
	}

	now := r.now()
	rec := &entity.PersistedReceipt{ID: uuid.New(), EntityBundle: bundle, CreatedAt: now, UpdatedAt: now}

	query, args := entsql.Dialect(r.dialect).
		Insert(receiptsTable).
		Columns(receiptColumns...).
		Values(rec.ID, inv, prod, cust, r.timeArg(now), r.timeArg(now)).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("store.receipt.create.error", "error", err)
		return nil, common.NewAppError("DATABASE_ERROR", "failed to create receipt", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}

	r.logger.Info("store.receipt.create.ok",
		"receipt_id", rec.ID,
		"invoices", len(bundle.Invoices),
		"products", len(bundle.Products),
		"customers", len(bundle.Customers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (r *receiptRepository) Get(ctx context.Context, id uuid.UUID) (*entity.PersistedReceipt, error) {
	b := entsql.Dialect(r.dialect)
	t := b.Table(receiptsTable)
	query, args := b.Select(receiptColumns...).
		From(t).
		Where(entsql.EQ(colID, id)).
		Query()

	recs, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("store.receipt.get.error", "receipt_id", id, "error", err)
		return nil, err
	}
	if len(recs) == 0 {
		return nil, notFound(id)
	}
	return recs[0], nil
}

// List returns receipts newest first. A non-positive limit returns every row.
func (r *receiptRepository) List(ctx context.Context, limit, offset int) ([]*entity.PersistedReceipt, error) {
	b := entsql.Dialect(r.dialect)
	t := b.Table(receiptsTable)
	sel := b.Select(receiptColumns...).
		From(t).
		OrderBy(entsql.Desc(colCreatedAt), entsql.Desc(colID))
	switch {
	case limit > 0:
		sel = sel.Limit(limit)
	case offset > 0:
		// OFFSET needs a LIMIT in SQLite
		sel = sel.Limit(math.MaxInt32)
	}
	if offset > 0 {
		sel = sel.Offset(offset)
	}
	query, args := sel.Query()

	recs, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("store.receipt.list.error", "error", err)
		return nil, err
	}
	return recs, nil
}

func (r *receiptRepository) Count(ctx context.Context) (int, error) {
	b := entsql.Dialect(r.dialect)
	query, args := b.Select(entsql.Count("*")).From(b.Table(receiptsTable)).Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, common.NewAppError("DATABASE_ERROR", "failed to count receipts", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()
	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// Update replaces all three collections of an existing receipt.
func (r *receiptRepository) Update(ctx context.Context, id uuid.UUID, bundle entity.EntityBundle) (*entity.PersistedReceipt, error) {
	start := time.Now()
	bundle = bundle.WithDefaults()
	inv, prod, cust, err := encodeBundle(bundle)
	if err != nil {
		return nil, err
	}

	query, args := entsql.Dialect(r.dialect).
		Update(receiptsTable).
		Set(colInvoices, inv).
		Set(colProducts, prod).
		Set(colCustomers, cust).
		Set(colUpdatedAt, r.timeArg(r.now())).
		Where(entsql.EQ(colID, id)).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("store.receipt.update.error", "receipt_id", id, "error", err)
		return nil, common.NewAppError("DATABASE_ERROR", "failed to update receipt", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, notFound(id)
	}

	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.logger.Info("store.receipt.update.ok", "receipt_id", id, "elapsed_ms", time.Since(start).Milliseconds())
	return rec, nil
}

func (r *receiptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query, args := entsql.Dialect(r.dialect).
		Delete(receiptsTable).
		Where(entsql.EQ(colID, id)).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("store.receipt.delete.error", "receipt_id", id, "error", err)
		return common.NewAppError("DATABASE_ERROR", "failed to delete receipt", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	r.logger.Info("store.receipt.delete.ok", "receipt_id", id)
	return nil
}

func (r *receiptRepository) query(ctx context.Context, query string, args []any) ([]*entity.PersistedReceipt, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "failed to query receipts", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.PersistedReceipt, 0)
	for rows.Next() {
		var (
			rec                  entity.PersistedReceipt
			inv, prod, cust      []byte
			createdAt, updatedAt any
		)
		if err := rows.Scan(&rec.ID, &inv, &prod, &cust, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		if err := decodeBundle(&rec.EntityBundle, inv, prod, cust); err != nil {
			return nil, fmt.Errorf("decode receipt %s: %w", rec.ID, err)
		}
		var err error
		if rec.CreatedAt, err = scanTime(createdAt); err != nil {
			return nil, fmt.Errorf("receipt %s created_at: %w", rec.ID, err)
		}
		if rec.UpdatedAt, err = scanTime(updatedAt); err != nil {
			return nil, fmt.Errorf("receipt %s updated_at: %w", rec.ID, err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}

// timeArg stores RFC3339 text for SQLite and a native timestamp elsewhere.
func (r *receiptRepository) timeArg(t time.Time) any {
	if r.dialect == dialect.SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func encodeBundle(b entity.EntityBundle) (inv, prod, cust string, err error) {
	parts := []struct {
		name string
		v    any
		out  *string
	}{
		{colInvoices, b.Invoices, &inv},
		{colProducts, b.Products, &prod},
		{colCustomers, b.Customers, &cust},
	}
	for _, p := range parts {
		raw, mErr := json.Marshal(p.v)
		if mErr != nil {
			return "", "", "", fmt.Errorf("encode %s: %w", p.name, mErr)
		}
		*p.out = string(raw)
	}
	return inv, prod, cust, nil
}

func decodeBundle(b *entity.EntityBundle, inv, prod, cust []byte) error {
	if err := json.Unmarshal(inv, &b.Invoices); err != nil {
		return fmt.Errorf("invoices: %w", err)
	}
	if err := json.Unmarshal(prod, &b.Products); err != nil {
		return fmt.Errorf("products: %w", err)
	}
	if err := json.Unmarshal(cust, &b.Customers); err != nil {
		return fmt.Errorf("customers: %w", err)
	}
	*b = b.WithDefaults()
	return nil
}

func notFound(id uuid.UUID) error {
	return common.NewAppError("NOT_FOUND", fmt.Sprintf("receipt %s not found", id), common.ErrNotFound)
}
