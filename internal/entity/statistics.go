package entity

// Aggregate holds min/avg/max over the non-null values of one measurement.
type Aggregate struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Avg   *float64 `json:"avg"`
	Max   *float64 `json:"max"`
}

// ProjectCount is the number of submissions and samples recorded for one project.
type ProjectCount struct {
	ProjectID   string `json:"project_id"`
	Submissions int    `json:"submissions"`
	Samples     int    `json:"samples"`
}

// Statistics summarises the whole store.
type Statistics struct {
	TotalSubmissions int            `json:"total_submissions"`
	TotalSamples     int            `json:"total_samples"`
	DistinctProjects int            `json:"distinct_projects"`
	UniqueOwners     int            `json:"unique_owners"`
	Projects         []ProjectCount `json:"projects"`
	Qubit            Aggregate      `json:"qubit_conc"`
	Nanodrop         Aggregate      `json:"nanodrop_conc"`
	Recent           []Submission   `json:"recent_submissions"`
}

// SampleStats summarises the samples of a single submission.
type SampleStats struct {
	SubmissionID string    `json:"submission_id"`
	SampleCount  int       `json:"sample_count"`
	Volume       Aggregate `json:"volume_ul"`
	Qubit        Aggregate `json:"qubit_conc"`
	Nanodrop     Aggregate `json:"nanodrop_conc"`
	A260280      Aggregate `json:"a260_280_ratio"`
}
