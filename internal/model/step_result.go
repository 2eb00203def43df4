package model

import (
	"time"
)

const (
	// StatusPending indicates a step has not started yet.
	StatusPending = "pending"
	// StatusRunning indicates a step is actively executing.
	StatusRunning = "running"
	// StatusSuccess marks a successful step execution.
	StatusSuccess = "success"
	// StatusSkipped indicates the orchestrator gave up on a non-fatal step
	// (or the step was already satisfied) and moved on.
	StatusSkipped = "skipped"
	// StatusFailed marks a failure that stopped the run.
	StatusFailed = "failed"
)

// StepResult captures the outcome of executing a single automation step.
type StepResult struct {
	StepID    string
	Kind      string
	Status    string
	Message   string
	Error     error
	Retries   int
	Duration  time.Duration
	Timestamp time.Time
}
