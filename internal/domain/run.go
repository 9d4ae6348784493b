package domain

import "time"

// RunPhase represents where an adapter run currently is.
// A run moves Pending → Fetching → Normalizing → Storing and ends in Succeeded or Failed.
type RunPhase string

const (
	RunPhasePending     RunPhase = "pending"
	RunPhaseFetching    RunPhase = "fetching"
	RunPhaseNormalizing RunPhase = "normalizing"
	RunPhaseStoring     RunPhase = "storing"
	RunPhaseSucceeded   RunPhase = "succeeded"
	RunPhaseFailed      RunPhase = "failed"
)

// RunResult is the outcome of one adapter execution. It is built fresh per run
// and only lives as long as the caller keeps it.
type RunResult struct {
	RunID           string    `json:"run_id,omitempty"`
	SourceID        string    `json:"source_id"`
	Success         bool      `json:"success"`
	Phase           RunPhase  `json:"phase"`
	RecordsFound    int       `json:"records_found"`
	RecordsAdded    int       `json:"records_added"`
	Duplicates      int       `json:"records_duplicate"`
	// RecordsRejected counts found records that failed validation and were skipped.
	RecordsRejected int       `json:"records_rejected"`
	Errors          []string  `json:"errors"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// AddError appends a message to the result's error list.
func (r *RunResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// RunSummary aggregates the results of a RunAll pass.
type RunSummary struct {
	// Order lists source ids in the order they were run.
	Order   []string             `json:"order"`
	Results map[string]RunResult `json:"results"`
	// Success is the AND over every result's Success flag.
	Success bool `json:"success"`
}

// NewRunSummary returns an empty summary whose aggregate flag starts true.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		Results: make(map[string]RunResult),
		Success: true,
	}
}

// Add records a result and folds it into the aggregate flag.
func (s *RunSummary) Add(name string, r RunResult) {
	if _, ok := s.Results[name]; !ok {
		s.Order = append(s.Order, name)
	}
	s.Results[name] = r
	s.Success = s.Success && r.Success
}

// AdapterRegistration describes one configured adapter.
type AdapterRegistration struct {
	Name     string        `json:"name"`
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
}
