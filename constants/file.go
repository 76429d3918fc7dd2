package constants

import (
	"mime"
	"strings"
)

// Media types the pipeline cares about by name.
const (
	MediaTypeXLSX         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaTypeXLS          = "application/vnd.ms-excel"
	MediaTypeXLSM         = "application/vnd.ms-excel.sheet.macroenabled.12"
	MediaTypeCSV          = "text/csv"
	MediaTypePDF          = "application/pdf"
	MediaTypeOctetStream  = "application/octet-stream"
	NormalizedCSVSuffix   = ".csv"
	DefaultCustomerName   = "Unknown"
	DefaultExtractionName = "upload"
)

// SpreadsheetMediaTypes routes to the spreadsheet normalizer.
var SpreadsheetMediaTypes = map[string]struct{}{
	MediaTypeXLSX: {},
	MediaTypeXLS:  {},
	MediaTypeXLSM: {},
}

// AllowedExtensions holds the default extensions picked up by directory ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"xlsx": {},
	"xls":  {},
	"xlsm": {},
	"csv":  {},
	"txt":  {},
}

var extMediaTypes = map[string]string{
	"pdf":  MediaTypePDF,
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"xlsx": MediaTypeXLSX,
	"xls":  MediaTypeXLS,
	"xlsm": MediaTypeXLSM,
	"csv":  MediaTypeCSV,
	"txt":  "text/plain",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt maps a file extension to a media type, falling back to the
// system table and finally to application/octet-stream.
func MediaTypeForExt(ext string) string {
	ext = NormalizeExt(ext)
	if mt, ok := extMediaTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	return MediaTypeOctetStream
}

// BaseMediaType strips parameters and lowercases a media type.
func BaseMediaType(mediaType string) string {
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
