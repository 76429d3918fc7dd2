package constants

// RunStatus is the terminal state of one pipeline run.
type RunStatus string

const (
	RunStatusCommitted RunStatus = "COMMITTED" // every bundle persisted
	RunStatusEmpty     RunStatus = "EMPTY"     // service returned zero bundles
	RunStatusPartial   RunStatus = "PARTIAL"   // fan-out stopped after K bundles
	RunStatusFailed    RunStatus = "FAILED"    // terminal failure before any commit
)

// Branch identifies which normalization path a run took.
type Branch string

const (
	BranchSpreadsheet    Branch = "SPREADSHEET"
	BranchDirectDocument Branch = "DIRECT_DOCUMENT"
)
