// Package space maps between the three coordinate frames the automation
// core juggles: program space (the node graph's own float coordinates),
// editor space (pixels relative to the editor window's client area) and
// screen space (absolute pixels). The mapping has exactly one learned
// parameter, the origin; the scale is a fixed environment constant. Keeping
// scale fixed turns calibration from an ill-posed joint estimation out of
// one noisy detection into a well-posed single-unknown one.
package space

import (
	"math"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/logger"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

// Space holds the calibration state for one automation run and performs all
// coordinate transforms. It is created uncalibrated; Calibrator.Calibrate
// populates it, and after that the origin moves only through
// ApplyOriginDelta.
type Space struct {
	frames       ports.FrameProvider
	log          *logger.Logger
	windowTitle  string
	canvasRegion string

	scale              float64
	origin             geometry.Point
	calibrated         bool
	calibratedByAnchor bool
	lastContextClick   *geometry.Point
}

// New returns an uncalibrated Space bound to the given editor window and
// canvas region name.
func New(frames ports.FrameProvider, windowTitle, canvasRegion string, log *logger.Logger) *Space {
	return &Space{
		frames:       frames,
		log:          log,
		windowTitle:  windowTitle,
		canvasRegion: canvasRegion,
	}
}

// Calibrated reports whether the transforms are usable.
func (s *Space) Calibrated() bool {
	return s.calibrated && math.Abs(s.scale) > MinScale
}

// CalibratedByAnchor reports whether the current calibration came from a
// visually confirmed anchor node rather than a carried-over value.
func (s *Space) CalibratedByAnchor() bool {
	return s.calibrated && s.calibratedByAnchor
}

// Scale returns the committed editor-pixels-per-program-unit ratio.
func (s *Space) Scale() float64 {
	return s.scale
}

// Origin returns the editor-space point corresponding to program (0,0).
func (s *Space) Origin() geometry.Point {
	return s.origin
}

// Restore installs a calibration obtained outside the anchor protocol, such
// as a mapping carried over from an earlier alignment of the same window.
// CalibratedByAnchor stays false so callers can tell the difference.
func (s *Space) Restore(scale float64, origin geometry.Point) error {
	if math.Abs(scale) <= MinScale {
		return errors.NewUncalibratedError("restore")
	}
	s.commit(scale, origin, false)
	return nil
}

// commit installs a fresh calibration. Only the calibrator calls this.
func (s *Space) commit(scale float64, origin geometry.Point, byAnchor bool) {
	s.scale = scale
	s.origin = origin
	s.calibrated = true
	s.calibratedByAnchor = byAnchor
}

// ProgramToEditor converts a program-space point into editor pixels.
func (s *Space) ProgramToEditor(p geometry.ProgramPoint) (geometry.Point, error) {
	if !s.Calibrated() {
		return geometry.Point{}, errors.NewUncalibratedError("program_to_editor")
	}
	return geometry.Point{
		X: s.origin.X + int(math.Round(p.X*s.scale)),
		Y: s.origin.Y + int(math.Round(p.Y*s.scale)),
	}, nil
}

// EditorToScreen converts editor pixels into absolute screen pixels using
// the window's live position.
func (s *Space) EditorToScreen(p geometry.Point) (geometry.Point, error) {
	win, err := s.frames.WindowRect(s.windowTitle)
	if err != nil {
		return geometry.Point{}, errors.NewWindowNotFoundError(s.windowTitle)
	}
	return geometry.Point{X: win.X + p.X, Y: win.Y + p.Y}, nil
}

// ProgramToScreen composes the two transforms.
func (s *Space) ProgramToScreen(p geometry.ProgramPoint) (geometry.Point, error) {
	ed, err := s.ProgramToEditor(p)
	if err != nil {
		return geometry.Point{}, err
	}
	return s.EditorToScreen(ed)
}

// ViewportRect locates the canvas region inside a freshly captured frame
// and returns it in editor coordinates. The result is never cached: the
// window can move or resize between calls.
func (s *Space) ViewportRect() (geometry.Rect, error) {
	frame, err := s.frames.CaptureWindow(s.windowTitle)
	if err != nil {
		return geometry.Rect{}, errors.NewCaptureFailedError(s.windowTitle, err)
	}
	region, err := s.frames.RegionRect(frame, s.canvasRegion)
	if err != nil {
		return geometry.Rect{}, errors.NewRegionNotFoundError(s.canvasRegion)
	}
	return region, nil
}

// ApplyOriginDelta shifts the learned origin. This is the only place the
// origin changes after calibration; every pan correction funnels through it
// so a single log line per update tells the whole drift story.
func (s *Space) ApplyOriginDelta(delta geometry.Point) error {
	if !s.Calibrated() {
		return errors.NewUncalibratedError("apply_origin_delta")
	}
	if delta.IsZero() {
		return nil
	}
	old := s.origin
	s.origin = s.origin.Add(delta)
	s.log.Debugf("origin update (%d,%d) -> (%d,%d) delta (%d,%d)",
		old.X, old.Y, s.origin.X, s.origin.Y, delta.X, delta.Y)
	return nil
}

// RecordContextClick remembers where the last context-menu interaction
// happened, in editor coordinates. Calibration uses it as a disambiguation
// hint when several candidates match the anchor title.
func (s *Space) RecordContextClick(p geometry.Point) {
	click := p
	s.lastContextClick = &click
}

// LastContextClick returns the recorded click point, if any.
func (s *Space) LastContextClick() (geometry.Point, bool) {
	if s.lastContextClick == nil {
		return geometry.Point{}, false
	}
	return *s.lastContextClick, true
}

// Reset clears all learned state. Called at the start of every run so one
// session's drift can never leak into the next.
func (s *Space) Reset() {
	s.scale = 0
	s.origin = geometry.Point{}
	s.calibrated = false
	s.calibratedByAnchor = false
	s.lastContextClick = nil
}
