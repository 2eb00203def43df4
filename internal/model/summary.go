package model

import "time"

// RunSummary is the complete per-step ledger of one automation run. A run
// always ends with one of these; partial success is never silent.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []StepResult
	Aborted    bool
	AbortCause string
}

// Counts tallies the ledger by status.
func (s *RunSummary) Counts() (succeeded, skipped, failed int) {
	for _, r := range s.Results {
		switch r.Status {
		case StatusSuccess:
			succeeded++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return succeeded, skipped, failed
}

// Completed reports whether every step succeeded.
func (s *RunSummary) Completed() bool {
	if s.Aborted {
		return false
	}
	for _, r := range s.Results {
		if r.Status != StatusSuccess {
			return false
		}
	}
	return true
}
