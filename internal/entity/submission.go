package entity

import (
	"time"
)

// Submission represents one processed document for data transfer between layers.
type Submission struct {
	SubmissionID   string    `json:"submission_id"`
	UUID           string    `json:"uuid"`
	ShortRef       string    `json:"short_ref"`
	FileHash       string    `json:"file_hash"`
	PDFFilename    string    `json:"pdf_filename"`
	ScannedAt      time.Time `json:"scanned_at"`
	CreatedAt      time.Time `json:"created_at"`
	ProjectID      *string   `json:"project_id"`
	Owner          *string   `json:"owner"`
	SourceOrganism *string   `json:"source_organism"`
	SequencingType *string   `json:"sequencing_type"`
	SampleType     *string   `json:"sample_type"`
	TotalSamples   int       `json:"total_samples"`
}

// Sample is one row of the measurement table.
type Sample struct {
	Index        int      `json:"sample_index"`
	Name         string   `json:"sample_name"`
	VolumeUL     *float64 `json:"volume_ul"`
	QubitConc    *float64 `json:"qubit_conc"`
	NanodropConc *float64 `json:"nanodrop_conc"`
	A260280      *float64 `json:"a260_280_ratio"`
	A260230      *float64 `json:"a260_230_ratio"`
}

// InfoEntry is a key/value fact about a submission that has no dedicated column.
type InfoEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record is a submission together with the children it owns.
type Record struct {
	Submission
	Samples []Sample    `json:"samples"`
	Info    []InfoEntry `json:"info"`
}

// InfoValue returns the value stored under key.
func (r *Record) InfoValue(key string) (string, bool) {
	for _, e := range r.Info {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}
