// Package ports declares the collaborator contracts the automation core
// consumes. Concrete implementations (OS capture, input injection, the
// vision pipeline) are platform adapters registered at startup; every
// interface here is small enough for a test double to satisfy with no real
// screen or window behind it.
package ports

import (
	"image"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
)

// Frame is one captured screenshot of the editor window's client area.
type Frame = image.Image

// FrameProvider captures the editor window and resolves its geometry.
type FrameProvider interface {
	// CaptureWindow grabs the client area of the window with the given title.
	CaptureWindow(title string) (Frame, error)

	// WindowRect returns the window's bounds in screen coordinates.
	WindowRect(title string) (geometry.Rect, error)

	// RegionRect locates a named layout region (such as the canvas area)
	// inside a captured frame, in editor coordinates.
	RegionRect(frame Frame, regionName string) (geometry.Rect, error)
}

// DetectedNode is one visually detected node on the canvas, in editor
// coordinates.
type DetectedNode struct {
	BBox  geometry.Rect
	Title string
}

// Center returns the detection's bbox center.
func (d DetectedNode) Center() geometry.Point {
	return d.BBox.Center()
}

// NodeVisibility is the recognizer's verdict for one model node.
type NodeVisibility struct {
	Visible bool
	BBox    geometry.Rect
}

// NodeRecognizer turns frames into node detections. ListNodes is pure
// detection; VisibleNodes reconciles detections against a graph model.
type NodeRecognizer interface {
	ListNodes(frame Frame) ([]DetectedNode, error)
	VisibleNodes(model *graph.Model) (map[string]NodeVisibility, error)
}

// InputActuator performs OS-level input. Calls are assumed reliable but
// latent; callers insert their own settle waits.
type InputActuator interface {
	Click(p geometry.Point) error
	RightClick(p geometry.Point) error
	Drag(from, to geometry.Point) error
	TypeText(text string) error
}

// LabeledRect is a rectangle overlay for the debugging visual sink.
type LabeledRect struct {
	BBox  geometry.Rect
	Label string
}

// LabeledCircle is a circle overlay for the debugging visual sink.
type LabeledCircle struct {
	Center geometry.Point
	Radius int
	Label  string
}

// Overlays is a structured set of annotations emitted alongside a frame so a
// human can reconstruct the core's decisions offline.
type Overlays struct {
	Rects   []LabeledRect
	Circles []LabeledCircle
}
