package model

// PhaseStatus represents the outcome of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SourceTally counts adapter outcomes for one source across a run.
type SourceTally struct {
	Found       int `json:"found"`
	NoData      int `json:"no_data"`
	Unavailable int `json:"unavailable"`
	Malformed   int `json:"malformed"`
	Skipped     int `json:"skipped"`
	Applied     int `json:"fields_applied"`
}

// RunSummary is the outcome of one pipeline invocation.
type RunSummary struct {
	Concepts    int                    `json:"concepts"`
	NewConcepts int                    `json:"new_concepts"`
	Created     int                    `json:"records_created"`
	Sources     map[Source]SourceTally `json:"sources"`
	Phases      []PhaseResult          `json:"phases"`
	Outputs     []string               `json:"outputs,omitempty"`
}
