package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
)

const pageSize = 500

// Sheet names in the exported workbook.
const (
	SheetInvoices  = "Invoices"
	SheetProducts  = "Products"
	SheetCustomers = "Customers"
)

// ReceiptLister is the read side of the receipt store.
type ReceiptLister interface {
	List(ctx context.Context, limit, offset int) ([]*entity.PersistedReceipt, error)
}

// Service renders every stored receipt into one XLSX workbook.
type Service struct {
	receipts ReceiptLister
	logger   *slog.Logger
}

func NewService(receipts ReceiptLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, logger: logger}
}

var (
	invoiceHeaders  = []any{"Receipt ID", "Serial Number", "Customer Name", "Product Names", "Total Quantity", "Total Tax", "Total Amount", "Date"}
	productHeaders  = []any{"Receipt ID", "Product Name", "Quantity", "Unit Price", "Tax", "Discount", "Price With Tax"}
	customerHeaders = []any{"Receipt ID", "Customer Name", "Company Name", "Phone Number", "Email", "Address", "Total Amount"}
)

// ExportXLSX returns the workbook as bytes.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	f, rows, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "receipts", rows, "bytes", buf.Len())
	return buf.Bytes(), nil
}

// WriteXLSX streams the workbook to w.
func (s *Service) WriteXLSX(ctx context.Context, w io.Writer) error {
	f, rows, err := s.build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "receipts", rows)
	return nil
}

func (s *Service) build(ctx context.Context) (*excelize.File, int, error) {
	start := time.Now()

	f := excelize.NewFile()
	for _, name := range []string{SheetInvoices, SheetProducts, SheetCustomers} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, 0, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	idx, _ := f.GetSheetIndex(SheetInvoices)
	f.SetActiveSheet(idx)

	sheets := map[string]*sheetWriter{
		SheetInvoices:  {f: f, name: SheetInvoices, row: 1},
		SheetProducts:  {f: f, name: SheetProducts, row: 1},
		SheetCustomers: {f: f, name: SheetCustomers, row: 1},
	}
	sheets[SheetInvoices].write(invoiceHeaders)
	sheets[SheetProducts].write(productHeaders)
	sheets[SheetCustomers].write(customerHeaders)

	receipts := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.receipts.List(ctx, pageSize, offset)
		if err != nil {
			_ = f.Close()
			return nil, 0, fmt.Errorf("query receipts: %w", err)
		}
		for _, r := range page {
			id := r.ID.String()
			for _, inv := range r.Invoices {
				sheets[SheetInvoices].write([]any{
					id, inv.SerialNumber, inv.CustomerName, strings.Join(inv.ProductNames, ", "),
					inv.TotalQuantity, floatCell(inv.TotalTax), floatCell(inv.TotalAmount), dateCell(inv.Date),
				})
			}
			for _, p := range r.Products {
				sheets[SheetProducts].write([]any{
					id, p.ProductName, p.Quantity, p.UnitPrice, p.Tax, p.Discount, floatCell(p.PriceWithTax),
				})
			}
			for _, c := range r.Customers {
				sheets[SheetCustomers].write([]any{
					id, c.CustomerName, c.CompanyName, c.PhoneNumber, c.Email, c.Address, floatCell(c.TotalAmount),
				})
			}
		}
		receipts += len(page)
		if len(page) < pageSize {
			break
		}
	}
	for _, sw := range sheets {
		if sw.err != nil {
			_ = f.Close()
			return nil, 0, fmt.Errorf("write sheet %s: %w", sw.name, sw.err)
		}
		_ = f.SetColWidth(sw.name, "A", "A", 38) // receipt id
		_ = f.SetColWidth(sw.name, "B", "H", 18)
	}

	s.logger.Debug("export.xlsx.built", "receipts", receipts, "elapsed_ms", time.Since(start).Milliseconds())
	return f, receipts, nil
}

type sheetWriter struct {
	f    *excelize.File
	name string
	row  int
	err  error
}

func (w *sheetWriter) write(values []any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err == nil {
		err = w.f.SetSheetRow(w.name, cell, &values)
	}
	w.err = err
	w.row++
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func dateCell(d entity.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
