package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/canvaspilot/internal/config"
	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
	"github.com/alexisbeaulieu97/canvaspilot/internal/logger"
	"github.com/alexisbeaulieu97/canvaspilot/internal/metrics"
	"github.com/alexisbeaulieu97/canvaspilot/internal/model"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
	"github.com/alexisbeaulieu97/canvaspilot/internal/space"
	"github.com/alexisbeaulieu97/canvaspilot/internal/viewport"
	"github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

// DefaultRetryLimit bounds per-step retries when the plan does not say.
const DefaultRetryLimit = 2

// Spiral scan parameters for lost-anchor recovery, in program units. One
// ring step is a little under a viewport width so consecutive targets
// overlap.
const (
	scanRingStep = 320
	scanRings    = 2
)

// Aligner is the viewport dependency the orchestrator needs.
type Aligner interface {
	EnsureVisible(rc *runctx.RunContext, target geometry.ProgramPoint, opts viewport.EnsureOptions) error
	InvalidateScene()
}

// Calibrator is the calibration dependency the orchestrator needs.
type Calibrator interface {
	Calibrate(rc *runctx.RunContext, m *graph.Model, anchorID string, placer space.AnchorPlacer) error
}

// Handler executes one step's concrete editor interaction.
type Handler func(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error

// RetryResult distinguishes "retried and failed" from "could not even
// attempt a retry" (no fallback anchor left).
type RetryResult struct {
	Success  bool
	DidRetry bool
}

// Orchestrator drives one plan to completion, classifying every step.
type Orchestrator struct {
	space      *space.Space
	calibrator Calibrator
	aligner    Aligner
	recognizer ports.NodeRecognizer
	input      ports.InputActuator
	log        *logger.Logger
	meters     *metrics.Metrics

	retryLimit int
	handlers   map[string]Handler
}

// NewOrchestrator assembles an orchestrator with the default step handlers
// registered. retryLimit ≤ 0 takes DefaultRetryLimit; meters may be nil.
func NewOrchestrator(sp *space.Space, calibrator Calibrator, aligner Aligner, recognizer ports.NodeRecognizer, input ports.InputActuator, log *logger.Logger, meters *metrics.Metrics, retryLimit int) *Orchestrator {
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}
	o := &Orchestrator{
		space:      sp,
		calibrator: calibrator,
		aligner:    aligner,
		recognizer: recognizer,
		input:      input,
		log:        log,
		meters:     meters,
		retryLimit: retryLimit,
		handlers:   make(map[string]Handler),
	}
	o.handlers["create_node"] = o.handleCreateNode
	o.handlers["create_and_connect"] = o.handleCreateAndConnect
	o.handlers["connect"] = o.handleConnect
	o.handlers["set_port_type"] = o.handleSetPortType
	o.handlers["scan_settings"] = o.handleScanSettings
	return o
}

// RegisterHandler installs or replaces the handler for a step type.
func (o *Orchestrator) RegisterHandler(stepType string, h Handler) {
	o.handlers[stepType] = h
}

// Execute runs every step of the plan in order. The returned summary is a
// complete per-step ledger even when the run aborts early; the error is
// non-nil only for run-level failures (calibration, environment mismatch,
// fatal step).
func (o *Orchestrator) Execute(rc *runctx.RunContext, plan *config.Plan) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer func() { summary.FinishedAt = time.Now() }()

	// stale state from a previous session must never leak into this run
	o.space.Reset()
	ctx := NewStepContext(plan)

	anchorStep := o.anchorStep(plan)
	if anchorStep == nil {
		err := errors.NewEnvironmentMismatchError("plan has no creation step to calibrate on")
		summary.Aborted = true
		summary.AbortCause = err.Error()
		return summary, err
	}

	anchorNode := anchorStep.CreatedNodeID()
	placer := func(prc *runctx.RunContext, at geometry.Point) error {
		return o.placeNode(prc, ctx, anchorStep, at)
	}
	if err := o.calibrator.Calibrate(rc, ctx.Model, anchorNode, placer); err != nil {
		summary.Aborted = true
		summary.AbortCause = err.Error()
		return summary, err
	}
	ctx.MarkCreated(anchorNode)
	ctx.PushAnchor(anchorNode)
	o.log.Infof("run %s calibrated on anchor %q", summary.RunID, anchorNode)

	for i := range plan.Steps {
		step := &plan.Steps[i]
		ctx.currentIndex = i
		ctx.InvalidateVisible()

		if !rc.Checkpoint() {
			summary.Aborted = true
			summary.AbortCause = "cancelled"
			return summary, rc.Err()
		}

		result := o.executeStep(rc, ctx, step, anchorStep)
		summary.Results = append(summary.Results, result)
		o.meters.StepOutcome(result.Status)

		if result.Status == model.StatusFailed {
			summary.Aborted = true
			summary.AbortCause = result.Message
			return summary, result.Error
		}
	}

	return summary, nil
}

// anchorStep picks the creation step calibration anchors on: the step named
// by settings.anchor_step when it creates a node, else the plan's first
// creation step.
func (o *Orchestrator) anchorStep(plan *config.Plan) *config.Step {
	if id := plan.Settings.AnchorStepID; id != "" {
		for i := range plan.Steps {
			if plan.Steps[i].ID == id && plan.Steps[i].IsCreation() {
				return &plan.Steps[i]
			}
		}
	}
	for i := range plan.Steps {
		if plan.Steps[i].IsCreation() {
			return &plan.Steps[i]
		}
	}
	return nil
}

// executeStep runs the full per-step pipeline: visibility cache, zero-node
// guard, skip check, endpoint alignment, handler, retries, classification.
func (o *Orchestrator) executeStep(rc *runctx.RunContext, ctx *StepContext, step *config.Step, anchorStep *config.Step) model.StepResult {
	started := time.Now()
	result := model.StepResult{
		StepID:    step.ID,
		Kind:      step.Type,
		Status:    model.StatusRunning,
		Timestamp: started,
	}
	finish := func(status, message string, err error, retries int) model.StepResult {
		result.Status = status
		result.Message = message
		result.Error = err
		result.Retries = retries
		result.Duration = time.Since(started)
		return result
	}

	if err := o.refreshVisible(ctx); err != nil {
		return o.classify(finish, step, err, 0)
	}

	// zero-node guard: nodes have been created, yet recognition sees an
	// empty canvas. Every later heuristic assumes the right document is on
	// screen; carrying on would produce plausible-looking garbage.
	if ctx.CreatedCount() > 0 && countVisible(ctx.visible) == 0 && !ctx.IsFirstCreationStep() {
		err := errors.NewEnvironmentMismatchError("graph has nodes but none are visible on screen")
		return finish(model.StatusFailed, err.Error(), err, 0)
	}

	if step.ID == anchorStep.ID && o.space.CalibratedByAnchor() {
		return finish(model.StatusSkipped, "already satisfied by calibration anchor", nil, 0)
	}

	handler, ok := o.handlers[step.Type]
	if !ok {
		err := errors.NewStepError(step.ID, "", errors.NewEnvironmentMismatchError("no handler for step type "+step.Type))
		return finish(model.StatusFailed, "no handler for step type "+step.Type, err, 0)
	}

	if err := o.ensureEndpointsVisible(rc, ctx, step); err != nil {
		ctx.RecordDiagnostic(err.Error())
		return o.retryAndClassify(rc, ctx, step, handler, finish, err)
	}

	if err := handler(rc, ctx, step); err != nil {
		ctx.RecordDiagnostic(err.Error())
		return o.retryAndClassify(rc, ctx, step, handler, finish, err)
	}

	o.completeStep(ctx, step)
	return finish(model.StatusSuccess, "", nil, 0)
}

// retryAndClassify runs the retry loop after a first failure, then applies
// the fatal-vs-skippable classification.
func (o *Orchestrator) retryAndClassify(rc *runctx.RunContext, ctx *StepContext, step *config.Step, handler Handler, finish func(string, string, error, int) model.StepResult, firstErr error) model.StepResult {
	res, attempts := o.retry(rc, ctx, step, handler)
	if res.Success {
		o.completeStep(ctx, step)
		return finish(model.StatusSuccess, "succeeded after retry", nil, attempts)
	}
	if !res.DidRetry {
		o.log.Warnf("step %s: no fallback anchor available, not retrying", step.ID)
	}
	stepErr := errors.NewStepError(step.ID, ctx.LastDiagnostic(), firstErr)
	return o.classify(finish, step, stepErr, attempts)
}

// retry re-anchors on the most recent fallback anchor and re-runs the
// handler, up to the configured limit. It stops immediately when no anchor
// is left: blind retries without a trusted reference point only repeat the
// same failure.
func (o *Orchestrator) retry(rc *runctx.RunContext, ctx *StepContext, step *config.Step, handler Handler) (RetryResult, int) {
	var res RetryResult
	attempts := 0

	for attempts < o.retryLimit {
		anchorID, ok := ctx.PopAnchor()
		if !ok {
			break
		}
		if !rc.Checkpoint() {
			break
		}

		attempts++
		res.DidRetry = true
		o.meters.StepRetry()
		o.log.Infof("step %s: retry %d re-anchoring on %q", step.ID, attempts, anchorID)

		if node := ctx.Model.Node(anchorID); node != nil {
			if err := o.aligner.EnsureVisible(rc, node.Pos, viewport.EnsureOptions{ForcePanIfInside: true}); err != nil {
				ctx.RecordDiagnostic(err.Error())
				if !o.recoverAnchor(rc, ctx, node) {
					continue
				}
			}
		}

		ctx.InvalidateVisible()
		if err := o.refreshVisible(ctx); err != nil {
			ctx.RecordDiagnostic(err.Error())
			continue
		}
		if err := handler(rc, ctx, step); err != nil {
			ctx.RecordDiagnostic(err.Error())
			continue
		}

		res.Success = true
		break
	}

	return res, attempts
}

// recoverAnchor scans outward around the anchor's planned position after a
// direct pan could not bring it into view. Each ring target pulls the
// viewport one spiral step further out; the scan stops as soon as
// recognition sees the anchor node again.
func (o *Orchestrator) recoverAnchor(rc *runctx.RunContext, ctx *StepContext, node *graph.Node) bool {
	cursor := node.Pos
	for _, d := range geometry.SpiralDeltas(scanRingStep, scanRings) {
		if !rc.Checkpoint() {
			return false
		}
		cursor.X += float64(d.X)
		cursor.Y += float64(d.Y)
		if err := o.aligner.EnsureVisible(rc, cursor, viewport.EnsureOptions{ForcePanIfInside: true}); err != nil {
			continue
		}
		ctx.InvalidateVisible()
		if err := o.refreshVisible(ctx); err != nil {
			continue
		}
		if v, ok := ctx.visible[node.ID]; ok && v.Visible {
			o.log.Infof("recovered anchor %q after spiral scan", node.ID)
			return true
		}
	}
	return false
}

// classify applies the final fatal-vs-skippable verdict: creation steps
// abort the run because later steps reference the node that never appeared;
// anything else leaves a recoverable partial graph.
func (o *Orchestrator) classify(finish func(string, string, error, int) model.StepResult, step *config.Step, err error, retries int) model.StepResult {
	if step.IsCreation() {
		return finish(model.StatusFailed, err.Error(), err, retries)
	}
	o.log.Warnf("step %s skipped: %v", step.ID, err)
	return finish(model.StatusSkipped, err.Error(), nil, retries)
}

// completeStep records the bookkeeping of a successful step.
func (o *Orchestrator) completeStep(ctx *StepContext, step *config.Step) {
	if id := step.CreatedNodeID(); id != "" {
		ctx.MarkCreated(id)
		ctx.PushAnchor(id)
		return
	}
	if refs := step.ReferencedNodeIDs(); len(refs) > 0 {
		ctx.PushAnchor(refs[0])
	}
}

// ensureEndpointsVisible pans every node the step touches into the safe
// viewport. Creation steps align on the target position with one forced
// centering pan; other steps align on each existing endpoint in turn.
func (o *Orchestrator) ensureEndpointsVisible(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error {
	if step.IsCreation() {
		node := ctx.Model.Node(step.CreatedNodeID())
		if node == nil {
			return errors.NewEnvironmentMismatchError("creation step " + step.ID + " has no planned node")
		}
		return o.aligner.EnsureVisible(rc, node.Pos, viewport.EnsureOptions{ForcePanIfInside: true})
	}

	for _, id := range step.ReferencedNodeIDs() {
		node := ctx.Model.Node(id)
		if node == nil {
			return errors.NewEnvironmentMismatchError("step " + step.ID + " references unknown node " + id)
		}
		if err := o.aligner.EnsureVisible(rc, node.Pos, viewport.EnsureOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// refreshVisible fills the per-step recognition cache once.
func (o *Orchestrator) refreshVisible(ctx *StepContext) error {
	if ctx.visibleValid {
		return nil
	}
	visible, err := o.recognizer.VisibleNodes(ctx.Model)
	if err != nil {
		return err
	}
	ctx.visible = visible
	ctx.visibleValid = true
	return nil
}

func countVisible(visible map[string]ports.NodeVisibility) int {
	n := 0
	for _, v := range visible {
		if v.Visible {
			n++
		}
	}
	return n
}
