package normalize

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ingest/constants"
	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
)

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Registrar records files that must be removed when the run ends.
type Registrar interface {
	Register(path string)
}

// SpreadsheetNormalizer turns the first sheet of a workbook into a CSV artifact.
type SpreadsheetNormalizer struct {
	logger *slog.Logger
}

func NewSpreadsheetNormalizer(logger *slog.Logger) *SpreadsheetNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpreadsheetNormalizer{logger: logger}
}

// Normalize reads in.Path, writes "<in.Path>.csv" and registers it with reg.
// Only the first sheet is read.
func (n *SpreadsheetNormalizer) Normalize(ctx context.Context, reg Registrar, in entity.UploadedArtifact) (entity.UploadedArtifact, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return entity.UploadedArtifact{}, err
	}

	raw, err := os.ReadFile(in.Path)
	if err != nil {
		return entity.UploadedArtifact{}, fmt.Errorf("read spreadsheet: %w", err)
	}

	var (
		csvBytes []byte
		sheet    string
		rows     int
	)
	if constants.BaseMediaType(in.MediaType) == constants.MediaTypeXLS && looksLikeDelimitedText(raw) {
		// Browsers label plain .csv uploads as application/vnd.ms-excel.
		csvBytes = raw
		sheet = "(csv)"
	} else {
		var table [][]string
		if bytes.HasPrefix(raw, cfbMagic) {
			table, sheet, err = readLegacySheet(raw)
		} else {
			table, sheet, err = readWorkbookSheet(raw)
		}
		if err == nil {
			csvBytes, err = encodeCSV(table)
			rows = len(table)
		}
		if err != nil {
			n.logger.Warn("normalize.spreadsheet.malformed", "path", in.Path, "media_type", in.MediaType, "error", err)
			return entity.UploadedArtifact{}, err
		}
	}

	outPath := in.Path + constants.NormalizedCSVSuffix
	reg.Register(outPath)
	if err := os.WriteFile(outPath, csvBytes, 0o600); err != nil {
		return entity.UploadedArtifact{}, fmt.Errorf("write normalized csv: %w", err)
	}

	out := entity.UploadedArtifact{
		Path:        outPath,
		MediaType:   constants.MediaTypeCSV,
		DisplayName: in.DisplayName + constants.NormalizedCSVSuffix,
		Size:        int64(len(csvBytes)),
	}
	n.logger.Info("normalize.spreadsheet.ok",
		"source", in.DisplayName,
		"sheet", sheet,
		"rows", rows,
		"bytes", out.Size,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// readWorkbookSheet reads the first sheet of an OOXML workbook.
func readWorkbookSheet(raw []byte) ([][]string, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, "", &common.MalformedInputError{Reason: "unreadable workbook", Err: err}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", &common.MalformedInputError{Reason: "workbook has no sheets"}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, sheet, &common.MalformedInputError{Reason: fmt.Sprintf("read sheet %q", sheet), Err: err}
	}
	return rows, sheet, nil
}

// biffMaxCols is the column limit of the Excel 97-2003 format.
const biffMaxCols = 256

// readLegacySheet reads the first sheet of a BIFF (Excel 97-2003) workbook held in
// an OLE compound file. The reader panics on some corrupt inputs, so panics are
// reported as malformed input.
func readLegacySheet(raw []byte) (table [][]string, sheet string, err error) {
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, &common.MalformedInputError{Reason: "unreadable legacy workbook", Err: fmt.Errorf("%v", r)}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(raw), "utf-8")
	if err != nil {
		return nil, "", &common.MalformedInputError{Reason: "unreadable legacy workbook", Err: err}
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, "", &common.MalformedInputError{Reason: "workbook has no sheets"}
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, "", &common.MalformedInputError{Reason: "workbook has no sheets"}
	}

	for i := 0; i <= int(ws.MaxRow); i++ {
		row := legacyRow(ws, i)
		if row == nil {
			table = append(table, nil)
			continue
		}
		var record []string
		for c := 0; c < biffMaxCols; c++ {
			if v := row.Col(c); v != "" {
				for len(record) < c {
					record = append(record, "")
				}
				record = append(record, v)
			}
		}
		table = append(table, record)
	}
	if len(table) == 1 && table[0] == nil {
		table = nil
	}
	return table, ws.Name, nil
}

// legacyRow returns nil for rows the sheet does not define.
func legacyRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

// encodeCSV renders rows as RFC 4180 CSV. Rows are padded to the widest row so
// every line carries the same number of fields.
func encodeCSV(rows [][]string) ([]byte, error) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		record := make([]string, width)
		copy(record, r)
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("encode csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// looksLikeDelimitedText reports whether raw is plain UTF-8 text that parses as CSV
// rather than a zip or OLE container.
func looksLikeDelimitedText(raw []byte) bool {
	if len(raw) == 0 || bytes.HasPrefix(raw, zipMagic) || bytes.HasPrefix(raw, cfbMagic) {
		return false
	}
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return false
	}
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false
		}
		records++
	}
	return records > 0
}
