// Package engine executes an automation plan step by step against the
// calibrated coordinate space. A single worker goroutine owns all mutable
// state; collaborators only ever receive one-way notifications.
package engine

import (
	"github.com/alexisbeaulieu97/canvaspilot/internal/config"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
)

// StepContext is the per-run bookkeeping shared by the orchestrator and the
// step handlers. It is owned exclusively by the worker goroutine.
type StepContext struct {
	Plan  *config.Plan
	Model *graph.Model

	// firstCreation maps node IDs to the index of the step that creates
	// them; currentIndex is the step being executed.
	firstCreation map[string]int
	currentIndex  int

	// created tracks which planned nodes have actually been brought into
	// existence so far.
	created map[string]bool

	// visible caches one recognition pass per step; every guard in a step
	// shares it instead of re-running recognition.
	visible      map[string]ports.NodeVisibility
	visibleValid bool

	// anchors is a stack of recently confirmed node IDs usable as fallback
	// anchors; retries consume it from the top.
	anchors []string

	// lastDiagnostic is the most recent error or warning line a handler
	// reported, kept for the step ledger.
	lastDiagnostic string
}

// NewStepContext initialises the bookkeeping for one run of the plan.
func NewStepContext(plan *config.Plan) *StepContext {
	ctx := &StepContext{
		Plan:          plan,
		Model:         plan.GraphModel(),
		firstCreation: make(map[string]int),
		created:       make(map[string]bool),
	}
	for i := range plan.Steps {
		if id := plan.Steps[i].CreatedNodeID(); id != "" {
			if _, seen := ctx.firstCreation[id]; !seen {
				ctx.firstCreation[id] = i
			}
		}
	}
	return ctx
}

// FirstCreationIndex returns the index of the step creating node id, or -1.
func (c *StepContext) FirstCreationIndex(id string) int {
	if idx, ok := c.firstCreation[id]; ok {
		return idx
	}
	return -1
}

// IsFirstCreationStep reports whether the current step is the plan's very
// first creation step, the one allowed to see an empty canvas.
func (c *StepContext) IsFirstCreationStep() bool {
	for _, idx := range c.firstCreation {
		if idx < c.currentIndex {
			return false
		}
	}
	_, creates := c.firstCreationAt(c.currentIndex)
	return creates
}

func (c *StepContext) firstCreationAt(index int) (string, bool) {
	for id, idx := range c.firstCreation {
		if idx == index {
			return id, true
		}
	}
	return "", false
}

// MarkCreated records that node id now exists on the canvas.
func (c *StepContext) MarkCreated(id string) {
	if id != "" {
		c.created[id] = true
	}
}

// CreatedCount returns how many planned nodes exist so far.
func (c *StepContext) CreatedCount() int {
	return len(c.created)
}

// InvalidateVisible drops the per-step recognition cache. Called at step
// boundaries and after any action that changes the canvas.
func (c *StepContext) InvalidateVisible() {
	c.visible = nil
	c.visibleValid = false
}

// PushAnchor records a freshly confirmed node as the preferred fallback
// anchor. Duplicates of the current top are collapsed.
func (c *StepContext) PushAnchor(id string) {
	if id == "" {
		return
	}
	if n := len(c.anchors); n > 0 && c.anchors[n-1] == id {
		return
	}
	c.anchors = append(c.anchors, id)
}

// PopAnchor removes and returns the newest fallback anchor.
func (c *StepContext) PopAnchor() (string, bool) {
	n := len(c.anchors)
	if n == 0 {
		return "", false
	}
	id := c.anchors[n-1]
	c.anchors = c.anchors[:n-1]
	return id, true
}

// RecordDiagnostic keeps the latest handler error or warning line.
func (c *StepContext) RecordDiagnostic(line string) {
	if line != "" {
		c.lastDiagnostic = line
	}
}

// LastDiagnostic returns the captured line, or "".
func (c *StepContext) LastDiagnostic() string {
	return c.lastDiagnostic
}
