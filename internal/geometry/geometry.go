package geometry

import "math"

// Point is a position or displacement in pixel space (editor or screen).
type Point struct {
	X int
	Y int
}

// Add returns p shifted by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Neg returns the componentwise negation of p.
func (p Point) Neg() Point {
	return Point{X: -p.X, Y: -p.Y}
}

// IsZero reports whether both components are zero.
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// AbsMax returns the larger absolute component of p.
func (p Point) AbsMax() int {
	ax := p.X
	if ax < 0 {
		ax = -ax
	}
	ay := p.Y
	if ay < 0 {
		ay = -ay
	}
	if ay > ax {
		return ay
	}
	return ax
}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 {
	return math.Hypot(float64(p.X), float64(p.Y))
}

// Dot returns the dot product of a and b.
func Dot(a, b Point) int {
	return a.X*b.X + a.Y*b.Y
}

// Rect is an axis-aligned rectangle in pixel space.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Contains reports whether p lies inside r. The right and bottom edges are
// exclusive, matching pixel indexing.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X < r.X+r.W && p.Y < r.Y+r.H
}

// Center returns the integer center of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// ClampPoint moves p to the nearest position inside r.
func (r Rect) ClampPoint(p Point) Point {
	out := p
	if out.X < r.X {
		out.X = r.X
	} else if out.X >= r.X+r.W {
		out.X = r.X + r.W - 1
	}
	if out.Y < r.Y {
		out.Y = r.Y
	} else if out.Y >= r.Y+r.H {
		out.Y = r.Y + r.H - 1
	}
	return out
}

// SafeRect shrinks region by marginRatio on every side. The result never
// degenerates below 1x1 so containment checks stay well defined.
func SafeRect(region Rect, marginRatio float64) Rect {
	shrinkX := int(float64(region.W) * marginRatio)
	shrinkY := int(float64(region.H) * marginRatio)
	out := Rect{
		X: region.X + shrinkX,
		Y: region.Y + shrinkY,
		W: region.W - shrinkX*2,
		H: region.H - shrinkY*2,
	}
	if out.W < 1 {
		out.W = 1
	}
	if out.H < 1 {
		out.H = 1
	}
	return out
}

// ClampStep limits a pan vector componentwise to +/-maxStep pixels.
func ClampStep(v Point, maxStep int) Point {
	clamp := func(n int) int {
		if n > maxStep {
			return maxStep
		}
		if n < -maxStep {
			return -maxStep
		}
		return n
	}
	return Point{X: clamp(v.X), Y: clamp(v.Y)}
}

// ProgramPoint is a position in the node graph's logical coordinate space.
type ProgramPoint struct {
	X float64
	Y float64
}

// ProgramRect is an axis-aligned rectangle in program space.
type ProgramRect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// SpiralDeltas generates the pan displacement sequence of an expanding
// rectangular spiral: right, down, 2x left, 2x up, 3x right, and so on.
// Used when re-anchoring has to sweep the canvas for a lost anchor.
func SpiralDeltas(step, rings int) []Point {
	directions := []Point{{X: step}, {Y: step}, {X: -step}, {Y: -step}}
	var out []Point
	multiplier := 1
	for ring := 0; ring < rings; ring++ {
		for i, d := range directions {
			repeat := 1
			if i >= 2 {
				repeat = 2
			}
			for n := 0; n < repeat*multiplier; n++ {
				out = append(out, d)
			}
		}
		multiplier++
	}
	return out
}
