package normalize

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ingest/constants"
	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
)

type registrar struct{ paths []string }

func (r *registrar) Register(path string) { r.paths = append(r.paths, path) }

func TestClassify(t *testing.T) {
	spreadsheets := []string{
		constants.MediaTypeXLSX,
		constants.MediaTypeXLS,
		constants.MediaTypeXLSM,
		"Application/VND.MS-EXCEL",
		constants.MediaTypeXLSX + "; charset=binary",
	}
	for _, mt := range spreadsheets {
		assert.Equal(t, constants.BranchSpreadsheet, Classify(mt), mt)
	}

	direct := []string{
		"application/pdf",
		"image/png",
		"image/jpeg",
		"text/plain",
		"text/csv",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/x-unknown",
		"",
	}
	for _, mt := range direct {
		assert.Equal(t, constants.BranchDirectDocument, Classify(mt), mt)
	}
}

func writeWorkbook(t *testing.T, build func(f *excelize.File)) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	build(f)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSpreadsheetNormalizer_HeaderAndTwoRows(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"product", "quantity", "price"}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Widget", 2, 10.5}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Gadget", 1, 99}))
	})
	reg := &registrar{}
	in := entity.UploadedArtifact{Path: path, MediaType: constants.MediaTypeXLSX, DisplayName: "book.xlsx"}

	out, err := NewSpreadsheetNormalizer(nil).Normalize(context.Background(), reg, in)
	require.NoError(t, err)

	assert.Equal(t, path+".csv", out.Path)
	assert.Equal(t, constants.MediaTypeCSV, out.MediaType)
	assert.Equal(t, "book.xlsx.csv", out.DisplayName)
	assert.Equal(t, []string{out.Path}, reg.paths)

	records := readCSV(t, out.Path)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Len(t, r, 3)
	}
	assert.Equal(t, []string{"product", "quantity", "price"}, records[0])
	assert.Equal(t, []string{"Widget", "2", "10.5"}, records[1])
}

func TestSpreadsheetNormalizer_FirstSheetOnly(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"first"}))
		_, err := f.NewSheet("Second")
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Second", "A1", &[]any{"ignored"}))
	})
	out, err := NewSpreadsheetNormalizer(nil).Normalize(context.Background(), &registrar{},
		entity.UploadedArtifact{Path: path, MediaType: constants.MediaTypeXLSX, DisplayName: "book.xlsx"})
	require.NoError(t, err)

	records := readCSV(t, out.Path)
	assert.Equal(t, [][]string{{"first"}}, records)
}

func TestSpreadsheetNormalizer_PadsShortRows(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"a", "b", "c"}))
		require.NoError(t, f.SetCellValue("Sheet1", "A2", "only"))
	})
	out, err := NewSpreadsheetNormalizer(nil).Normalize(context.Background(), &registrar{},
		entity.UploadedArtifact{Path: path, MediaType: constants.MediaTypeXLSX, DisplayName: "book.xlsx"})
	require.NoError(t, err)

	records := readCSV(t, out.Path)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"only", "", ""}, records[1])
}

func TestSpreadsheetNormalizer_CorruptWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0xff}, 64)...), 0o600))
	reg := &registrar{}

	_, err := NewSpreadsheetNormalizer(nil).Normalize(context.Background(), reg,
		entity.UploadedArtifact{Path: path, MediaType: constants.MediaTypeXLSX, DisplayName: "broken.xlsx"})

	var malformed *common.MalformedInputError
	require.True(t, errors.As(err, &malformed), "got %v", err)
	assert.Empty(t, reg.paths, "no derivative should be created for a corrupt workbook")
	_, statErr := os.Stat(path + ".csv")
	assert.True(t, os.IsNotExist(statErr))
}

func TestSpreadsheetNormalizer_LegacyBinaryWorkbook(t *testing.T) {
	fixture, err := os.ReadFile(filepath.Join("testdata", "invoices.xls"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "invoices.xls")
	require.NoError(t, os.WriteFile(path, fixture, 0o600))
	reg := &registrar{}

	out, err := NewSpreadsheetNormalizer(nil).Normalize(context.Background(), reg,
		entity.UploadedArtifact{Path: path, MediaType: constants.MediaTypeXLS, DisplayName: "invoices.xls"})
	require.NoError(t, err)
	assert.Equal(t, constants.MediaTypeCSV, out.MediaType)
	assert.Equal(t, "invoices.xls.csv", out.DisplayName)
	assert.Equal(t, []string{path + ".csv"}, reg.paths)

	raw, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Invoice", "Date", "Amount"},
		{"INV-1", "15/11/2024", "120.5"},
		{"INV-2", "16/11/2024", ""},
	}, records)
}

func TestSpreadsheetNormalizer_CorruptLegacyWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xls")
	body := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 1024)...)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	reg := &registrar{}

	_, err := NewSpreadsheetNormalizer(nil).Normalize(context.Background(), reg,
		entity.UploadedArtifact{Path: path, MediaType: constants.MediaTypeXLS, DisplayName: "broken.xls"})

	var malformed *common.MalformedInputError
	require.True(t, errors.As(err, &malformed), "got %v", err)
	assert.Empty(t, reg.paths)
}

func TestSpreadsheetNormalizer_LegacyTypedCSVPassesThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	body := "customer,total\nAlex Johnson,400.00\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := NewSpreadsheetNormalizer(nil).Normalize(context.Background(), &registrar{},
		entity.UploadedArtifact{Path: path, MediaType: constants.MediaTypeXLS, DisplayName: "export.csv"})
	require.NoError(t, err)

	raw, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
}

func TestSpreadsheetNormalizer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSpreadsheetNormalizer(nil).Normalize(ctx, &registrar{}, entity.UploadedArtifact{Path: "unused"})
	assert.ErrorIs(t, err, context.Canceled)
}
