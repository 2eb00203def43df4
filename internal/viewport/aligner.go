package viewport

import (
	"fmt"
	"image/color"
	"time"

	"github.com/alexisbeaulieu97/canvaspilot/internal/drift"
	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/logger"
	"github.com/alexisbeaulieu97/canvaspilot/internal/metrics"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
	"github.com/alexisbeaulieu97/canvaspilot/internal/space"
	"github.com/alexisbeaulieu97/canvaspilot/internal/vision"
	"github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

// Defaults for the aligner knobs, overridable through Config.
const (
	DefaultMarginRatio   = 0.10
	DefaultPanStepPixels = 400
	DefaultMaxSteps      = 8

	defaultNoChangeThreshold = 2.0
	defaultNoChangeCap       = 3
	defaultSettleWait        = 300 * time.Millisecond
	defaultColorTolerance    = 12
)

// Config tunes one Aligner. Zero values take the defaults above.
type Config struct {
	WindowTitle  string
	CanvasRegion string

	MarginRatio   float64
	PanStepPixels int
	MaxSteps      int

	// NoChangeThreshold is the mean absolute pixel difference below which a
	// drag counts as having produced no visible change; NoChangeCap
	// consecutive such drags abort the loop.
	NoChangeThreshold float64
	NoChangeCap       int

	// SettleWait is the pause after a drag before the after-frame capture.
	SettleWait time.Duration

	// BackgroundColors is the allow-list of canvas background pixels a drag
	// may start on; ColorTolerance is the per-channel slack.
	BackgroundColors []color.Color
	ColorTolerance   int
}

func (c Config) withDefaults() Config {
	if c.MarginRatio <= 0 {
		c.MarginRatio = DefaultMarginRatio
	}
	if c.PanStepPixels <= 0 {
		c.PanStepPixels = DefaultPanStepPixels
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.NoChangeThreshold <= 0 {
		c.NoChangeThreshold = defaultNoChangeThreshold
	}
	if c.NoChangeCap <= 0 {
		c.NoChangeCap = defaultNoChangeCap
	}
	if c.SettleWait <= 0 {
		c.SettleWait = defaultSettleWait
	}
	if len(c.BackgroundColors) == 0 {
		c.BackgroundColors = []color.Color{
			color.RGBA{R: 0x26, G: 0x26, B: 0x26, A: 0xff},
			color.RGBA{R: 0x2b, G: 0x2b, B: 0x2b, A: 0xff},
			color.RGBA{R: 0x3c, G: 0x3c, B: 0x3c, A: 0xff},
		}
	}
	if c.ColorTolerance <= 0 {
		c.ColorTolerance = defaultColorTolerance
	}
	return c
}

// Aligner pans the canvas until a target program point sits inside the safe
// viewport margin, feeding every drag's visual evidence through the motion
// estimator and drift guard before it is allowed to move the learned
// origin.
type Aligner struct {
	space      *space.Space
	frames     ports.FrameProvider
	recognizer ports.NodeRecognizer
	input      ports.InputActuator
	log        *logger.Logger
	meters     *metrics.Metrics
	cfg        Config

	snapshot SceneSnapshot
}

// NewAligner assembles an aligner over the given collaborators. meters may
// be nil.
func NewAligner(sp *space.Space, frames ports.FrameProvider, recognizer ports.NodeRecognizer, input ports.InputActuator, log *logger.Logger, meters *metrics.Metrics, cfg Config) *Aligner {
	return &Aligner{
		space:      sp,
		frames:     frames,
		recognizer: recognizer,
		input:      input,
		log:        log,
		meters:     meters,
		cfg:        cfg.withDefaults(),
	}
}

// EnsureOptions modifies one EnsureVisible call.
type EnsureOptions struct {
	// ForcePanIfInside requests one centering pan on the first iteration
	// even when the target already sits inside the safe rect. Used before
	// precision interactions near the margin.
	ForcePanIfInside bool
}

// InvalidateScene drops the cached frame. Callers must invoke it after any
// action that changes canvas content outside the aligner's control.
func (a *Aligner) InvalidateScene() {
	a.snapshot.Invalidate()
}

// EnsureVisible pans until the program point sits inside the safe viewport
// rect. It returns nil on satisfaction and a descriptive error otherwise;
// the coordinate origin is only ever touched through the drift-guarded
// single update inside the loop.
func (a *Aligner) EnsureVisible(rc *runctx.RunContext, target geometry.ProgramPoint, opts EnsureOptions) error {
	tracker := drift.NewChangeTracker(a.cfg.NoChangeThreshold, a.cfg.NoChangeCap)

	capture := func() (ports.Frame, error) {
		return a.snapshot.Get(func() (ports.Frame, error) {
			frame, err := a.frames.CaptureWindow(a.cfg.WindowTitle)
			if err != nil {
				return nil, errors.NewCaptureFailedError(a.cfg.WindowTitle, err)
			}
			return frame, nil
		})
	}

	evaluate := func(iteration int, frame ports.Frame) (Evaluation, error) {
		region, err := a.frames.RegionRect(frame, a.cfg.CanvasRegion)
		if err != nil {
			return Evaluation{Verdict: VerdictAborted, Reason: "canvas region lost"}, errors.NewRegionNotFoundError(a.cfg.CanvasRegion)
		}
		predicted, err := a.space.ProgramToEditor(target)
		if err != nil {
			return Evaluation{Verdict: VerdictAborted, Reason: "uncalibrated"}, err
		}

		safe := geometry.SafeRect(region, a.cfg.MarginRatio)
		if safe.Contains(predicted) {
			if iteration == 0 && opts.ForcePanIfInside {
				a.log.Debugf("target (%d,%d) inside safe rect, forced centering pan requested", predicted.X, predicted.Y)
				return Evaluation{Verdict: VerdictPending}, nil
			}
			return Evaluation{Verdict: VerdictSatisfied, Reason: "target inside safe rect"}, nil
		}
		return Evaluation{Verdict: VerdictPending}, nil
	}

	act := func(iteration int, frame ports.Frame) (bool, error) {
		a.meters.PanIteration()
		return a.panOnce(rc, frame, target, tracker)
	}

	outcome, reason, err := RunPanLoop(rc, a.cfg.MaxSteps, capture, evaluate, act)
	if err != nil {
		return err
	}
	if outcome != OutcomeSatisfied {
		return fmt.Errorf("could not bring (%.0f,%.0f) into view: %s", target.X, target.Y, reason)
	}
	return nil
}

// panOnce plans and performs one corrective drag. The returned abort flag
// is raised only when the no-visual-change cap blows.
func (a *Aligner) panOnce(rc *runctx.RunContext, before ports.Frame, target geometry.ProgramPoint, tracker *drift.ChangeTracker) (bool, error) {
	region, err := a.frames.RegionRect(before, a.cfg.CanvasRegion)
	if err != nil {
		return false, errors.NewRegionNotFoundError(a.cfg.CanvasRegion)
	}
	predicted, err := a.space.ProgramToEditor(target)
	if err != nil {
		return false, err
	}

	center := region.Center()
	toTarget := geometry.Point{X: predicted.X - center.X, Y: predicted.Y - center.Y}
	clamped := geometry.ClampStep(toTarget, a.cfg.PanStepPixels)
	expected := clamped.Neg()

	detections, err := a.recognizer.ListNodes(before)
	if err != nil {
		detections = nil
	}
	avoid := make([]geometry.Rect, 0, len(detections))
	for _, d := range detections {
		avoid = append(avoid, d.BBox)
	}

	start, ok := SnapToBackground(before, center, region, avoid, a.cfg.BackgroundColors, a.cfg.ColorTolerance)
	if !ok {
		// cannot drag safely this iteration; a planned nonzero drag that
		// went nowhere counts toward the unresponsive-viewport cap
		a.log.Warnf("no safe drag start near (%d,%d), skipping pan", center.X, center.Y)
		if !expected.IsZero() && tracker.RecordNoChange() {
			a.meters.NoChangeAbort()
			return true, nil
		}
		return false, nil
	}

	inner := geometry.SafeRect(region, 0.02)
	end := inner.ClampPoint(start.Add(expected))

	screenStart, err := a.space.EditorToScreen(start)
	if err != nil {
		return false, err
	}
	screenEnd, err := a.space.EditorToScreen(end)
	if err != nil {
		return false, err
	}

	if !rc.Checkpoint() {
		return true, rc.Err()
	}
	if err := a.input.Drag(screenStart, screenEnd); err != nil {
		return false, err
	}
	rc.Wait(a.cfg.SettleWait)

	after, err := a.frames.CaptureWindow(a.cfg.WindowTitle)
	if err != nil {
		return false, errors.NewCaptureFailedError(a.cfg.WindowTitle, err)
	}
	a.snapshot.Put(after)

	// the drag endpoints may differ from the plan after clamping; the
	// realised vector is what the content should have moved by
	realised := geometry.Point{X: end.X - start.X, Y: end.Y - start.Y}
	roi := geometry.SafeRect(region, a.cfg.MarginRatio)
	estimated := vision.Estimate(before, after, roi)
	meanDiff := vision.RegionMeanAbsDiff(before, after, roi)

	if tracker.Changed(meanDiff) {
		tracker.RecordChange()
	} else if !realised.IsZero() {
		if tracker.RecordNoChange() {
			a.log.Warnf("viewport unchanged after %d consecutive drags, aborting", tracker.Count())
			a.meters.NoChangeAbort()
			return true, nil
		}
		return false, nil
	}

	effective := a.effectiveDelta(estimated, realised, meanDiff, tracker)
	if err := a.space.ApplyOriginDelta(effective); err != nil {
		return false, err
	}

	rc.EmitVisual(after, ports.Overlays{
		Rects:   []ports.LabeledRect{{BBox: roi, Label: "roi"}},
		Circles: []ports.LabeledCircle{{Center: start, Radius: 6, Label: "drag start"}},
	})
	return false, nil
}

// effectiveDelta turns a raw motion estimate into the delta the origin may
// move by, applying the drift guard veto and the zero-estimate fallback.
func (a *Aligner) effectiveDelta(estimated, expected geometry.Point, meanDiff float64, tracker *drift.ChangeTracker) geometry.Point {
	if estimated.IsZero() {
		if tracker.Changed(meanDiff) && !expected.IsZero() {
			// content visibly moved but the estimator could not lock onto
			// it; trust the commanded delta rather than stalling the mapping
			a.log.Debugf("zero estimate on changed region (diff %.2f), using commanded delta (%d,%d)",
				meanDiff, expected.X, expected.Y)
			a.meters.ZeroEstimateFallback()
			return expected
		}
		return geometry.Point{}
	}

	decision := drift.Evaluate(estimated, expected, a.cfg.PanStepPixels)
	if !decision.Accepted {
		a.log.Warnf("drift guard rejected estimate (%d,%d) vs expected (%d,%d): %s",
			estimated.X, estimated.Y, expected.X, expected.Y, decision.Reason)
		a.meters.DriftRejection()
	}
	return decision.Effective
}
