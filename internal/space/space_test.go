package space

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
	"github.com/alexisbeaulieu97/canvaspilot/internal/logger"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
	pkgerrors "github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

type fakeFrames struct {
	window     geometry.Rect
	windowErr  error
	region     geometry.Rect
	regionErr  error
	captureErr error
}

func (f *fakeFrames) CaptureWindow(title string) (ports.Frame, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return image.NewRGBA(image.Rect(0, 0, 800, 600)), nil
}

func (f *fakeFrames) WindowRect(title string) (geometry.Rect, error) {
	if f.windowErr != nil {
		return geometry.Rect{}, f.windowErr
	}
	return f.window, nil
}

func (f *fakeFrames) RegionRect(frame ports.Frame, regionName string) (geometry.Rect, error) {
	if f.regionErr != nil {
		return geometry.Rect{}, f.regionErr
	}
	return f.region, nil
}

type fakeRecognizer struct {
	// batches is consumed one element per ListNodes call; the last batch
	// repeats once exhausted.
	batches [][]ports.DetectedNode
	calls   int
}

func (f *fakeRecognizer) ListNodes(frame ports.Frame) ([]ports.DetectedNode, error) {
	idx := f.calls
	if idx >= len(f.batches) {
		idx = len(f.batches) - 1
	}
	f.calls++
	if idx < 0 {
		return nil, nil
	}
	return f.batches[idx], nil
}

func (f *fakeRecognizer) VisibleNodes(model *graph.Model) (map[string]ports.NodeVisibility, error) {
	return nil, nil
}

func testRunContext() *runctx.RunContext {
	return runctx.New(nil, runctx.WithSleeper(func(time.Duration) {}))
}

func calibratedSpace(t *testing.T, frames ports.FrameProvider) *Space {
	t.Helper()
	s := New(frames, "Editor", "canvas", logger.Nop())
	s.commit(FixedScaleRatio, geometry.Point{X: 0, Y: 0}, true)
	return s
}

func TestProgramToEditorUncalibrated(t *testing.T) {
	t.Parallel()

	s := New(&fakeFrames{}, "Editor", "canvas", logger.Nop())
	_, err := s.ProgramToEditor(geometry.ProgramPoint{X: 10, Y: 10})

	var uncal *pkgerrors.UncalibratedError
	require.ErrorAs(t, err, &uncal)
}

func TestProgramToEditorAppliesOriginAndScale(t *testing.T) {
	t.Parallel()

	s := calibratedSpace(t, &fakeFrames{})
	s.commit(1.0, geometry.Point{X: 40, Y: 25}, true)

	p, err := s.ProgramToEditor(geometry.ProgramPoint{X: 500, Y: 500})
	require.NoError(t, err)
	require.Equal(t, geometry.Point{X: 540, Y: 525}, p)
}

func TestProgramToEditorOriginIsExact(t *testing.T) {
	t.Parallel()

	s := calibratedSpace(t, &fakeFrames{})
	s.commit(FixedScaleRatio, geometry.Point{X: 123, Y: -77}, true)

	p, err := s.ProgramToEditor(geometry.ProgramPoint{})
	require.NoError(t, err)
	require.Equal(t, s.Origin(), p)
}

func TestEditorToScreenAddsWindowOrigin(t *testing.T) {
	t.Parallel()

	frames := &fakeFrames{window: geometry.Rect{X: 100, Y: 200, W: 800, H: 600}}
	s := calibratedSpace(t, frames)

	p, err := s.EditorToScreen(geometry.Point{X: 10, Y: 20})
	require.NoError(t, err)
	require.Equal(t, geometry.Point{X: 110, Y: 220}, p)
}

func TestEditorToScreenWindowGone(t *testing.T) {
	t.Parallel()

	frames := &fakeFrames{windowErr: errors.New("not found")}
	s := calibratedSpace(t, frames)

	_, err := s.EditorToScreen(geometry.Point{X: 1, Y: 1})
	var wnf *pkgerrors.WindowNotFoundError
	require.ErrorAs(t, err, &wnf)
}

func TestViewportRectErrors(t *testing.T) {
	t.Parallel()

	s := calibratedSpace(t, &fakeFrames{captureErr: errors.New("capture broke")})
	_, err := s.ViewportRect()
	var cf *pkgerrors.CaptureFailedError
	require.ErrorAs(t, err, &cf)

	s = calibratedSpace(t, &fakeFrames{regionErr: errors.New("no canvas")})
	_, err = s.ViewportRect()
	var rnf *pkgerrors.RegionNotFoundError
	require.ErrorAs(t, err, &rnf)
}

func TestApplyOriginDelta(t *testing.T) {
	t.Parallel()

	s := calibratedSpace(t, &fakeFrames{})
	s.commit(FixedScaleRatio, geometry.Point{X: 100, Y: 100}, true)

	require.NoError(t, s.ApplyOriginDelta(geometry.Point{X: -30, Y: 12}))
	require.Equal(t, geometry.Point{X: 70, Y: 112}, s.Origin())

	// zero delta is a no-op, not an error
	require.NoError(t, s.ApplyOriginDelta(geometry.Point{}))
	require.Equal(t, geometry.Point{X: 70, Y: 112}, s.Origin())
}

func TestApplyOriginDeltaUncalibrated(t *testing.T) {
	t.Parallel()

	s := New(&fakeFrames{}, "Editor", "canvas", logger.Nop())
	err := s.ApplyOriginDelta(geometry.Point{X: 1, Y: 1})

	var uncal *pkgerrors.UncalibratedError
	require.ErrorAs(t, err, &uncal)
}

func TestResetClearsState(t *testing.T) {
	t.Parallel()

	s := calibratedSpace(t, &fakeFrames{})
	s.RecordContextClick(geometry.Point{X: 5, Y: 5})
	require.True(t, s.Calibrated())

	s.Reset()
	require.False(t, s.Calibrated())
	require.False(t, s.CalibratedByAnchor())
	_, ok := s.LastContextClick()
	require.False(t, ok)
}

func anchorModel() *graph.Model {
	m := graph.NewModel()
	m.Add(&graph.Node{ID: "anchor", Title: "Calibration Anchor", Pos: geometry.ProgramPoint{X: 0, Y: 0}})
	return m
}

func TestCalibrateSingleCandidate(t *testing.T) {
	t.Parallel()

	frames := &fakeFrames{region: geometry.Rect{X: 0, Y: 0, W: 800, H: 600}}
	rec := &fakeRecognizer{batches: [][]ports.DetectedNode{{
		{BBox: geometry.Rect{X: 300, Y: 200, W: 200, H: 100}, Title: "Calibration Anchor"},
	}}}

	s := New(frames, "Editor", "canvas", logger.Nop())
	cal := NewCalibrator(s, rec, logger.Nop())

	require.NoError(t, cal.Calibrate(testRunContext(), anchorModel(), "anchor", nil))
	require.True(t, s.Calibrated())
	require.True(t, s.CalibratedByAnchor())
	require.Equal(t, FixedScaleRatio, s.Scale())
	// anchor program pos is (0,0), so the origin is the detection center
	require.Equal(t, geometry.Point{X: 400, Y: 250}, s.Origin())
}

func TestCalibrateScaleStaysNominalDespiteOddFootprint(t *testing.T) {
	t.Parallel()

	frames := &fakeFrames{region: geometry.Rect{X: 0, Y: 0, W: 800, H: 600}}
	// detected box is 30% larger than the nominal footprint
	rec := &fakeRecognizer{batches: [][]ports.DetectedNode{{
		{BBox: geometry.Rect{X: 300, Y: 200, W: 260, H: 130}, Title: "Calibration Anchor"},
	}}}

	s := New(frames, "Editor", "canvas", logger.Nop())
	cal := NewCalibrator(s, rec, logger.Nop())

	require.NoError(t, cal.Calibrate(testRunContext(), anchorModel(), "anchor", nil))
	require.Equal(t, FixedScaleRatio, s.Scale())
}

func TestCalibratePlacesAnchorWhenMissing(t *testing.T) {
	t.Parallel()

	frames := &fakeFrames{region: geometry.Rect{X: 0, Y: 0, W: 800, H: 600}}
	// first poll sees nothing; after placement the anchor appears
	rec := &fakeRecognizer{batches: [][]ports.DetectedNode{
		nil,
		{{BBox: geometry.Rect{X: 10, Y: 10, W: 200, H: 100}, Title: "Calibration Anchor"}},
	}}

	s := New(frames, "Editor", "canvas", logger.Nop())
	cal := NewCalibrator(s, rec, logger.Nop())

	var placedAt geometry.Point
	placer := func(rc *runctx.RunContext, at geometry.Point) error {
		placedAt = at
		return nil
	}

	require.NoError(t, cal.Calibrate(testRunContext(), anchorModel(), "anchor", placer))
	require.Equal(t, geometry.Point{X: 8, Y: 6}, placedAt)
	require.True(t, s.Calibrated())
}

func TestCalibrateTimesOut(t *testing.T) {
	t.Parallel()

	frames := &fakeFrames{region: geometry.Rect{X: 0, Y: 0, W: 800, H: 600}}
	rec := &fakeRecognizer{}

	s := New(frames, "Editor", "canvas", logger.Nop())
	cal := NewCalibrator(s, rec, logger.Nop())

	err := cal.Calibrate(testRunContext(), anchorModel(), "anchor", nil)
	var mismatch *pkgerrors.EnvironmentMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.False(t, s.Calibrated())
}

func TestCalibrateDisambiguatesByGeometry(t *testing.T) {
	t.Parallel()

	model := anchorModel()
	model.Add(&graph.Node{ID: "n1", Title: "Mixer", Pos: geometry.ProgramPoint{X: 300, Y: 0}})
	model.Add(&graph.Node{ID: "n2", Title: "Output", Pos: geometry.ProgramPoint{X: 0, Y: 250}})

	// two identical-title candidates; only the one at (400,250) is
	// consistent with where Mixer and Output were detected
	detections := []ports.DetectedNode{
		{BBox: geometry.Rect{X: 300, Y: 200, W: 200, H: 100}, Title: "Calibration Anchor"},
		{BBox: geometry.Rect{X: 50, Y: 400, W: 200, H: 100}, Title: "Calibration Anchor"},
		{BBox: geometry.Rect{X: 600, Y: 200, W: 200, H: 100}, Title: "Mixer"},
		{BBox: geometry.Rect{X: 300, Y: 450, W: 200, H: 100}, Title: "Output"},
	}

	frames := &fakeFrames{region: geometry.Rect{X: 0, Y: 0, W: 800, H: 600}}
	rec := &fakeRecognizer{batches: [][]ports.DetectedNode{detections}}

	s := New(frames, "Editor", "canvas", logger.Nop())
	cal := NewCalibrator(s, rec, logger.Nop())

	require.NoError(t, cal.Calibrate(testRunContext(), model, "anchor", nil))
	require.Equal(t, geometry.Point{X: 400, Y: 250}, s.Origin())
}

func TestCalibrateDisambiguatesByContextClick(t *testing.T) {
	t.Parallel()

	detections := []ports.DetectedNode{
		{BBox: geometry.Rect{X: 300, Y: 200, W: 200, H: 100}, Title: "Calibration Anchor"},
		{BBox: geometry.Rect{X: 20, Y: 20, W: 200, H: 100}, Title: "Calibration Anchor"},
	}

	frames := &fakeFrames{region: geometry.Rect{X: 0, Y: 0, W: 800, H: 600}}
	rec := &fakeRecognizer{batches: [][]ports.DetectedNode{detections}}

	s := New(frames, "Editor", "canvas", logger.Nop())
	s.RecordContextClick(geometry.Point{X: 30, Y: 30})
	cal := NewCalibrator(s, rec, logger.Nop())

	require.NoError(t, cal.Calibrate(testRunContext(), anchorModel(), "anchor", nil))
	// picked the candidate near the click at (30,30)
	require.Equal(t, geometry.Point{X: 120, Y: 70}, s.Origin())
}

func TestTitleMatchingToleratesRecognitionNoise(t *testing.T) {
	t.Parallel()

	detections := []ports.DetectedNode{
		{BBox: geometry.Rect{X: 0, Y: 0, W: 200, H: 100}, Title: "calibration  anch0r"},
		{BBox: geometry.Rect{X: 0, Y: 0, W: 200, H: 100}, Title: "Totally Different"},
	}
	matched := matchTitle(detections, "Calibration Anchor")
	require.Len(t, matched, 1)
}

func TestTooFarToConnect(t *testing.T) {
	t.Parallel()

	m := graph.NewModel()
	m.Add(&graph.Node{ID: "a", Title: "A", Pos: geometry.ProgramPoint{X: 0, Y: 0}})
	m.Add(&graph.Node{ID: "b", Title: "B", Pos: geometry.ProgramPoint{X: 2000, Y: 0}})
	m.Add(&graph.Node{ID: "c", Title: "C", Pos: geometry.ProgramPoint{X: 100, Y: 100}})

	viewport := geometry.Rect{X: 0, Y: 0, W: 800, H: 600}

	far, reason := TooFarToConnect(m, "a", "b", viewport, 0.10)
	require.True(t, far)
	require.NotEmpty(t, reason)

	far, reason = TooFarToConnect(m, "a", "c", viewport, 0.10)
	require.False(t, far)
	require.Empty(t, reason)

	far, _ = TooFarToConnect(m, "a", "missing", viewport, 0.10)
	require.False(t, far)
}

func TestRestore(t *testing.T) {
	t.Parallel()

	s := New(&fakeFrames{}, "Editor", "canvas", logger.Nop())
	require.NoError(t, s.Restore(FixedScaleRatio, geometry.Point{X: 10, Y: 20}))
	require.True(t, s.Calibrated())
	require.False(t, s.CalibratedByAnchor())
	require.Equal(t, geometry.Point{X: 10, Y: 20}, s.Origin())

	require.Error(t, s.Restore(0, geometry.Point{}))
}
