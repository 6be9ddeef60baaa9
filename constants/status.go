package constants

// ProcessStatus is the outcome of processing one document.
type ProcessStatus string

// Stable values, also used as metric labels.
const (
	StatusCreated   ProcessStatus = "CREATED"
	StatusDuplicate ProcessStatus = "DUPLICATE"
	StatusFailed    ProcessStatus = "FAILED" // only reported by batch/watch callers
)

// ExportFormat selects the serialization used by Export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportXLSX ExportFormat = "xlsx"
)
