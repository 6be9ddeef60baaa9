// Package ingest feeds documents from the local filesystem into the
// submission service, one file at a time, a whole directory tree at once, or
// as they appear in watched directories.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/submissions"
)

// IngestionResult is the per-file outcome.
type IngestionResult struct {
	SourcePath   string                  `json:"source_path"`
	SubmissionID string                  `json:"submission_id,omitempty"`
	Status       constants.ProcessStatus `json:"status"`
	HashHex      string                  `json:"file_hash,omitempty"`
	Samples      int                     `json:"samples"`
	Warnings     int                     `json:"warnings"`
	Err          string                  `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned    uint32 `json:"scanned"`
	Matched    uint32 `json:"matched"`
	Created    uint32 `json:"created"`
	Duplicates uint32 `json:"duplicates"`
	Failed     uint32 `json:"failed"`
}

// FileProcessor is the part of submissions.Service ingestion depends on.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (*submissions.ProcessResult, error)
}

// Ingestor is the behavior the CLI depends on.
type Ingestor interface {
	// IngestPath processes a single document.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory processes every matching document under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
