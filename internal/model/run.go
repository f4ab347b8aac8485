package model

import "time"

// RunStatus represents the current state of an enrichment run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run is one invocation of the enrichment over an input file.
type Run struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider"`
	InputPath  string     `json:"input_path"`
	OutputPath string     `json:"output_path"`
	Status     RunStatus  `json:"status"`
	Stats      *RunStats  `json:"stats,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunStats counts what happened to each record during a run.
type RunStats struct {
	Total           int `json:"total"`
	OverrideHits    int `json:"override_hits"`
	Skipped         int `json:"skipped"`
	CacheHits       int `json:"cache_hits"`
	CacheFailures   int `json:"cache_failures"`
	NewSuccesses    int `json:"new_successes"`
	NewFailures     int `json:"new_failures"`
	ProviderCalls   int `json:"provider_calls"`
	TransientErrors int `json:"transient_errors"`
	CacheFlushes    int `json:"cache_flushes"`

	// VariationsAttempted maps the number of candidates tried for a
	// provider-resolved location to how many locations needed that many.
	VariationsAttempted map[int]int `json:"variations_attempted,omitempty"`

	Failed []FailedRecord `json:"failed,omitempty"`
}

// NewRunStats returns zeroed statistics.
func NewRunStats() *RunStats {
	return &RunStats{VariationsAttempted: make(map[int]int)}
}

// Geocoded is the number of records that ended with coordinates.
func (s *RunStats) Geocoded() int {
	return s.OverrideHits + s.Skipped + s.CacheHits + s.NewSuccesses
}

// Unresolved is the number of records that ended without coordinates.
func (s *RunStats) Unresolved() int {
	return s.CacheFailures + s.NewFailures
}

// SuccessRate is the fraction of processed records that ended with
// coordinates, or 0 when nothing was processed.
func (s *RunStats) SuccessRate() float64 {
	processed := s.Geocoded() + s.Unresolved()
	if processed == 0 {
		return 0
	}
	return float64(s.Geocoded()) / float64(processed)
}
