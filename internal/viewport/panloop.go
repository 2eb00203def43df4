// Package viewport keeps a target point inside the editor's safe viewing
// area by panning the canvas. The pan loop itself is a small higher-order
// function over injected capture/evaluate/act closures; Aligner binds those
// closures to the real coordinate space, motion estimator and input
// actuator.
package viewport

import (
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
)

// Verdict is an evaluation's judgement of the current viewport.
type Verdict int

const (
	// VerdictPending means the target is not yet positioned; keep panning.
	VerdictPending Verdict = iota
	// VerdictSatisfied means the target is where it needs to be.
	VerdictSatisfied
	// VerdictAborted means the loop should stop without success.
	VerdictAborted
)

// Outcome is the terminal result of a pan loop.
type Outcome int

const (
	// OutcomeSatisfied reports the evaluation goal was reached.
	OutcomeSatisfied Outcome = iota
	// OutcomeAborted reports the loop stopped early: cancellation, an
	// unresponsive viewport, or an evaluation veto.
	OutcomeAborted
	// OutcomeExhausted reports maxSteps iterations without satisfaction.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSatisfied:
		return "satisfied"
	case OutcomeAborted:
		return "aborted"
	default:
		return "exhausted"
	}
}

// Evaluation is one evaluate-closure verdict plus its reason when terminal.
type Evaluation struct {
	Verdict Verdict
	Reason  string
}

// CaptureFunc produces the current frame. Implementations may serve a
// cached snapshot when the viewport is known unchanged.
type CaptureFunc func() (ports.Frame, error)

// EvaluateFunc judges the captured frame. iteration starts at 0.
type EvaluateFunc func(iteration int, frame ports.Frame) (Evaluation, error)

// ActFunc performs one corrective pan. Returning abort=true stops the loop.
type ActFunc func(iteration int, frame ports.Frame) (abort bool, err error)

// RunPanLoop drives capture→evaluate→act for at most maxSteps iterations.
// The run context's pause hook and continue predicate are polled at the top
// of every iteration.
func RunPanLoop(rc *runctx.RunContext, maxSteps int, capture CaptureFunc, evaluate EvaluateFunc, act ActFunc) (Outcome, string, error) {
	for iteration := 0; iteration < maxSteps; iteration++ {
		if !rc.Checkpoint() {
			return OutcomeAborted, "cancelled", rc.Err()
		}

		frame, err := capture()
		if err != nil {
			return OutcomeAborted, "capture failed", err
		}

		eval, err := evaluate(iteration, frame)
		if err != nil {
			return OutcomeAborted, eval.Reason, err
		}
		switch eval.Verdict {
		case VerdictSatisfied:
			return OutcomeSatisfied, eval.Reason, nil
		case VerdictAborted:
			return OutcomeAborted, eval.Reason, nil
		}

		abort, err := act(iteration, frame)
		if err != nil {
			return OutcomeAborted, "pan action failed", err
		}
		if abort {
			return OutcomeAborted, "viewport unresponsive", nil
		}
	}
	return OutcomeExhausted, "pan budget exhausted", nil
}
