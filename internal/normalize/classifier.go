package normalize

import (
	"github.com/joseph-ayodele/invoice-ingest/constants"
)

// Classify routes a declared media type to a normalization branch. Unknown types
// are not rejected here; the extraction service decides what it accepts.
func Classify(mediaType string) constants.Branch {
	if IsSpreadsheet(mediaType) {
		return constants.BranchSpreadsheet
	}
	return constants.BranchDirectDocument
}

// IsSpreadsheet reports whether mediaType is a legacy or OOXML workbook signature.
func IsSpreadsheet(mediaType string) bool {
	_, ok := constants.SpreadsheetMediaTypes[constants.BaseMediaType(mediaType)]
	return ok
}
