package engine

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/canvaspilot/internal/config"
	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
	"github.com/alexisbeaulieu97/canvaspilot/internal/logger"
	"github.com/alexisbeaulieu97/canvaspilot/internal/model"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
	"github.com/alexisbeaulieu97/canvaspilot/internal/space"
	"github.com/alexisbeaulieu97/canvaspilot/internal/viewport"
	pkgerrors "github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

type engineFrames struct{}

func (engineFrames) CaptureWindow(title string) (ports.Frame, error) {
	return image.NewRGBA(image.Rect(0, 0, 800, 600)), nil
}

func (engineFrames) WindowRect(title string) (geometry.Rect, error) {
	return geometry.Rect{X: 0, Y: 0, W: 800, H: 600}, nil
}

func (engineFrames) RegionRect(frame ports.Frame, regionName string) (geometry.Rect, error) {
	return geometry.Rect{X: 0, Y: 0, W: 800, H: 600}, nil
}

type engineRecognizer struct {
	detections []ports.DetectedNode
	visible    map[string]bool

	// flipID becomes visible once VisibleNodes has answered flipAfter times,
	// simulating a node that drifts back into view mid-scan.
	flipID    string
	flipAfter int
	asked     int
}

func (r *engineRecognizer) ListNodes(frame ports.Frame) ([]ports.DetectedNode, error) {
	return r.detections, nil
}

func (r *engineRecognizer) VisibleNodes(m *graph.Model) (map[string]ports.NodeVisibility, error) {
	r.asked++
	if r.flipID != "" && r.asked > r.flipAfter {
		r.visible[r.flipID] = true
	}
	out := make(map[string]ports.NodeVisibility, len(m.Nodes))
	for id := range m.Nodes {
		out[id] = ports.NodeVisibility{
			Visible: r.visible[id],
			BBox:    geometry.Rect{X: 100, Y: 100, W: 200, H: 100},
		}
	}
	return out, nil
}

type fakeAligner struct {
	calls  []geometry.ProgramPoint
	forced int
	err    error
}

func (f *fakeAligner) EnsureVisible(rc *runctx.RunContext, target geometry.ProgramPoint, opts viewport.EnsureOptions) error {
	f.calls = append(f.calls, target)
	if opts.ForcePanIfInside {
		f.forced++
	}
	return f.err
}

func (f *fakeAligner) InvalidateScene() {}

type scriptedInput struct {
	clicks      []geometry.Point
	rightClicks []geometry.Point
	typed       []string
	drags       [][2]geometry.Point

	dragErrs []error
	// rightClickErr applies once rightClickOK successful right clicks have
	// been consumed.
	rightClickErr error
	rightClickOK  int
}

func (s *scriptedInput) Click(p geometry.Point) error {
	s.clicks = append(s.clicks, p)
	return nil
}

func (s *scriptedInput) RightClick(p geometry.Point) error {
	if s.rightClickErr != nil && len(s.rightClicks) >= s.rightClickOK {
		return s.rightClickErr
	}
	s.rightClicks = append(s.rightClicks, p)
	return nil
}

func (s *scriptedInput) TypeText(text string) error {
	s.typed = append(s.typed, text)
	return nil
}

func (s *scriptedInput) Drag(from, to geometry.Point) error {
	if len(s.dragErrs) > 0 {
		err := s.dragErrs[0]
		s.dragErrs = s.dragErrs[1:]
		if err != nil {
			return err
		}
	}
	s.drags = append(s.drags, [2]geometry.Point{from, to})
	return nil
}

func engineRunContext() *runctx.RunContext {
	return runctx.New(nil, runctx.WithSleeper(func(time.Duration) {}))
}

func testPlan() *config.Plan {
	return &config.Plan{
		Version: "1.0",
		Name:    "patch",
		Window:  config.Window{Title: "Editor", CanvasRegion: "canvas"},
		Steps: []config.Step{
			{
				ID: "create_osc", Type: "create_node",
				CreateNode: &config.CreateNodeStep{NodeID: "osc1", Title: "Oscillator", Position: config.Position{X: 100, Y: 100}},
			},
			{
				ID: "create_mixer", Type: "create_node",
				CreateNode: &config.CreateNodeStep{NodeID: "mix1", Title: "Mixer", Position: config.Position{X: 400, Y: 100}},
			},
			{
				ID: "wire", Type: "connect",
				Connect: &config.ConnectStep{
					From: config.Endpoint{NodeID: "osc1", Port: "out"},
					To:   config.Endpoint{NodeID: "mix1", Port: "in"},
				},
			},
		},
	}
}

// newTestOrchestrator wires a real space and calibrator over stub
// collaborators; the anchor node is always visually detectable.
func newTestOrchestrator(rec *engineRecognizer, aligner *fakeAligner, input *scriptedInput, retryLimit int) (*Orchestrator, *space.Space) {
	sp := space.New(engineFrames{}, "Editor", "canvas", logger.Nop())
	cal := space.NewCalibrator(sp, rec, logger.Nop())
	o := NewOrchestrator(sp, cal, aligner, rec, input, logger.Nop(), nil, retryLimit)
	return o, sp
}

func anchorDetection() []ports.DetectedNode {
	return []ports.DetectedNode{
		{BBox: geometry.Rect{X: 300, Y: 200, W: 200, H: 100}, Title: "Oscillator"},
	}
}

func TestExecuteHappyPath(t *testing.T) {
	t.Parallel()

	rec := &engineRecognizer{
		detections: anchorDetection(),
		visible:    map[string]bool{"osc1": true, "mix1": true},
	}
	aligner := &fakeAligner{}
	input := &scriptedInput{}
	o, sp := newTestOrchestrator(rec, aligner, input, 2)

	summary, err := o.Execute(engineRunContext(), testPlan())
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.False(t, summary.Aborted)
	require.Len(t, summary.Results, 3)

	// the anchor creation was satisfied by calibration itself
	require.Equal(t, model.StatusSkipped, summary.Results[0].Status)
	require.Contains(t, summary.Results[0].Message, "calibration anchor")
	require.Equal(t, model.StatusSuccess, summary.Results[1].Status)
	require.Equal(t, model.StatusSuccess, summary.Results[2].Status)

	require.True(t, sp.CalibratedByAnchor())
	require.Equal(t, space.FixedScaleRatio, sp.Scale())

	// creation gesture: right click then typed title; connection: one drag
	require.NotEmpty(t, input.rightClicks)
	require.Contains(t, input.typed, "Mixer\n")
	require.Len(t, input.drags, 1)

	// creation aligned with a forced centering pan
	require.GreaterOrEqual(t, aligner.forced, 1)
}

func TestExecuteZeroNodeGuardAborts(t *testing.T) {
	t.Parallel()

	rec := &engineRecognizer{
		detections: anchorDetection(),
		visible:    map[string]bool{}, // recognition sees an empty canvas
	}
	o, _ := newTestOrchestrator(rec, &fakeAligner{}, &scriptedInput{}, 2)

	summary, err := o.Execute(engineRunContext(), testPlan())
	require.Error(t, err)
	var mismatch *pkgerrors.EnvironmentMismatchError
	require.ErrorAs(t, err, &mismatch)

	require.True(t, summary.Aborted)
	// anchor step was skipped before the guard could fire; the next step
	// hit the guard and the ledger stops there
	require.Len(t, summary.Results, 2)
	require.Equal(t, model.StatusSkipped, summary.Results[0].Status)
	require.Equal(t, model.StatusFailed, summary.Results[1].Status)
}

func TestExecuteRetriesWithFallbackAnchor(t *testing.T) {
	t.Parallel()

	rec := &engineRecognizer{
		detections: anchorDetection(),
		visible:    map[string]bool{"osc1": true, "mix1": true},
	}
	aligner := &fakeAligner{}
	// first drag attempt fails, the retry succeeds
	input := &scriptedInput{dragErrs: []error{errors.New("drop rejected")}}
	o, _ := newTestOrchestrator(rec, aligner, input, 2)

	summary, err := o.Execute(engineRunContext(), testPlan())
	require.NoError(t, err)
	require.False(t, summary.Aborted)

	wire := summary.Results[2]
	require.Equal(t, model.StatusSuccess, wire.Status)
	require.Equal(t, 1, wire.Retries)
	require.Contains(t, wire.Message, "after retry")
	require.Len(t, input.drags, 1)
}

func TestExecuteCreationFailureIsFatal(t *testing.T) {
	t.Parallel()

	rec := &engineRecognizer{
		detections: anchorDetection(),
		// mixer never shows up after creation
		visible: map[string]bool{"osc1": true},
	}
	o, _ := newTestOrchestrator(rec, &fakeAligner{}, &scriptedInput{}, 2)

	summary, err := o.Execute(engineRunContext(), testPlan())
	require.Error(t, err)
	var stepErr *pkgerrors.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "create_mixer", stepErr.StepID)

	require.True(t, summary.Aborted)
	require.Len(t, summary.Results, 2)
	require.Equal(t, model.StatusFailed, summary.Results[1].Status)
}

func TestExecuteNonCreationFailureIsSkipped(t *testing.T) {
	t.Parallel()

	plan := testPlan()
	plan.Steps = append(plan.Steps[:2], config.Step{
		ID: "set_mix_type", Type: "set_port_type",
		SetPortType: &config.SetPortTypeStep{NodeID: "osc1", Port: "out", PortType: "audio"},
	}, config.Step{
		ID: "create_out", Type: "create_node",
		CreateNode: &config.CreateNodeStep{NodeID: "out1", Title: "Output", Position: config.Position{X: 700, Y: 100}},
	})

	rec := &engineRecognizer{
		detections: anchorDetection(),
		visible:    map[string]bool{"osc1": true, "mix1": true, "out1": true},
	}
	// the mixer's creation right click works, every later one fails
	input := &scriptedInput{rightClickErr: errors.New("menu did not open"), rightClickOK: 1}
	o, _ := newTestOrchestrator(rec, &fakeAligner{}, input, 2)

	summary, err := o.Execute(engineRunContext(), plan)

	// set_port_type fails and is skipped; the following creation step also
	// needs a right click and is fatal, which keeps the ledger honest
	require.Error(t, err)
	require.True(t, summary.Aborted)
	require.Equal(t, model.StatusSkipped, summary.Results[2].Status)
	require.NotEmpty(t, summary.Results[2].Message)
	require.Equal(t, model.StatusFailed, summary.Results[3].Status)
}

func TestRetryStopsWithoutAnchor(t *testing.T) {
	t.Parallel()

	rec := &engineRecognizer{detections: anchorDetection(), visible: map[string]bool{}}
	o, _ := newTestOrchestrator(rec, &fakeAligner{}, &scriptedInput{}, 3)

	plan := testPlan()
	ctx := NewStepContext(plan)
	// no anchors pushed: the retry loop must not even start
	handler := func(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error {
		return errors.New("always fails")
	}

	res, attempts := o.retry(engineRunContext(), ctx, &plan.Steps[2], handler)
	require.False(t, res.Success)
	require.False(t, res.DidRetry)
	require.Zero(t, attempts)
}

func TestRecoverAnchorSpiralScan(t *testing.T) {
	t.Parallel()

	rec := &engineRecognizer{
		visible:   map[string]bool{},
		flipID:    "osc1",
		flipAfter: 2,
	}
	aligner := &fakeAligner{}
	o, _ := newTestOrchestrator(rec, aligner, &scriptedInput{}, 2)

	ctx := NewStepContext(testPlan())
	node := ctx.Model.Node("osc1")
	require.NotNil(t, node)

	require.True(t, o.recoverAnchor(engineRunContext(), ctx, node))

	// the scan stopped at the third ring target, not after the full spiral
	require.Len(t, aligner.calls, 3)
	require.Less(t, len(aligner.calls), len(geometry.SpiralDeltas(scanRingStep, scanRings)))
	require.True(t, ctx.visible["osc1"].Visible)

	// every scan target forces a pan even when already inside the safe rect
	require.Equal(t, 3, aligner.forced)
}

func TestRecoverAnchorGivesUpAfterFullSpiral(t *testing.T) {
	t.Parallel()

	rec := &engineRecognizer{visible: map[string]bool{}}
	aligner := &fakeAligner{}
	o, _ := newTestOrchestrator(rec, aligner, &scriptedInput{}, 2)

	ctx := NewStepContext(testPlan())
	node := ctx.Model.Node("osc1")
	require.NotNil(t, node)

	require.False(t, o.recoverAnchor(engineRunContext(), ctx, node))
	require.Len(t, aligner.calls, len(geometry.SpiralDeltas(scanRingStep, scanRings)))
}

func TestStepContextBookkeeping(t *testing.T) {
	t.Parallel()

	plan := testPlan()
	ctx := NewStepContext(plan)

	require.Equal(t, 0, ctx.FirstCreationIndex("osc1"))
	require.Equal(t, 1, ctx.FirstCreationIndex("mix1"))
	require.Equal(t, -1, ctx.FirstCreationIndex("ghost"))

	ctx.currentIndex = 0
	require.True(t, ctx.IsFirstCreationStep())
	ctx.currentIndex = 1
	require.False(t, ctx.IsFirstCreationStep())
	ctx.currentIndex = 2
	require.False(t, ctx.IsFirstCreationStep())

	ctx.PushAnchor("osc1")
	ctx.PushAnchor("osc1") // duplicate top collapses
	ctx.PushAnchor("mix1")

	id, ok := ctx.PopAnchor()
	require.True(t, ok)
	require.Equal(t, "mix1", id)
	id, ok = ctx.PopAnchor()
	require.True(t, ok)
	require.Equal(t, "osc1", id)
	_, ok = ctx.PopAnchor()
	require.False(t, ok)

	ctx.MarkCreated("osc1")
	ctx.MarkCreated("")
	require.Equal(t, 1, ctx.CreatedCount())
}
