package viewport

import (
	"image/color"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
)

const (
	// snapSearchRadius bounds the expanding neighborhood search around the
	// intended drag start point.
	snapSearchRadius = 80
	// snapSearchStep is the radius increment between search rings.
	snapSearchStep = 8
	// snapGridStep is the coarse fallback scan pitch across the region.
	snapGridStep = 40
	// nodeAvoidPadding inflates detected node boxes so a drag never starts
	// on a node border or its drop shadow.
	nodeAvoidPadding = 10
)

// SnapToBackground finds a point at or near desired whose pixel color
// matches one of the allowed canvas background colors. Starting a drag on a
// node or widget would trigger unrelated editor actions, so an unsafe
// desired point is moved rather than used. The search expands in rings
// around desired, then falls back to a coarse grid over the region that
// skips the padded avoid boxes. Returns false when no safe point exists.
func SnapToBackground(frame ports.Frame, desired geometry.Point, region geometry.Rect, avoid []geometry.Rect, allowed []color.Color, tolerance int) (geometry.Point, bool) {
	if frame == nil || len(allowed) == 0 {
		return geometry.Point{}, false
	}

	ok := func(p geometry.Point) bool {
		if !region.Contains(p) || insideAnyPadded(p, avoid) {
			return false
		}
		return matchesBackground(frame, p, allowed, tolerance)
	}

	if ok(desired) {
		return desired, true
	}

	for radius := snapSearchStep; radius <= snapSearchRadius; radius += snapSearchStep {
		offsets := []geometry.Point{
			{X: radius}, {X: -radius}, {Y: radius}, {Y: -radius},
			{X: radius, Y: radius}, {X: -radius, Y: radius},
			{X: radius, Y: -radius}, {X: -radius, Y: -radius},
		}
		for _, off := range offsets {
			p := desired.Add(off)
			if ok(p) {
				return p, true
			}
		}
	}

	for y := region.Y + snapGridStep/2; y < region.Y+region.H; y += snapGridStep {
		for x := region.X + snapGridStep/2; x < region.X+region.W; x += snapGridStep {
			p := geometry.Point{X: x, Y: y}
			if ok(p) {
				return p, true
			}
		}
	}

	return geometry.Point{}, false
}

func insideAnyPadded(p geometry.Point, boxes []geometry.Rect) bool {
	for _, b := range boxes {
		padded := geometry.Rect{
			X: b.X - nodeAvoidPadding,
			Y: b.Y - nodeAvoidPadding,
			W: b.W + 2*nodeAvoidPadding,
			H: b.H + 2*nodeAvoidPadding,
		}
		if padded.Contains(p) {
			return true
		}
	}
	return false
}

func matchesBackground(frame ports.Frame, p geometry.Point, allowed []color.Color, tolerance int) bool {
	bounds := frame.Bounds()
	x, y := bounds.Min.X+p.X, bounds.Min.Y+p.Y
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return false
	}

	pr, pg, pb, _ := frame.At(x, y).RGBA()
	for _, c := range allowed {
		ar, ag, ab, _ := c.RGBA()
		if chanDiff(pr, ar) <= tolerance && chanDiff(pg, ag) <= tolerance && chanDiff(pb, ab) <= tolerance {
			return true
		}
	}
	return false
}

// chanDiff compares two 16-bit color channels in 8-bit units.
func chanDiff(a, b uint32) int {
	d := int(a>>8) - int(b>>8)
	if d < 0 {
		d = -d
	}
	return d
}
