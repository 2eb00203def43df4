package vision

import (
	"image"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
)

// diffSampleHalf is the half-extent of each sampled square when estimating
// whether a region visibly changed.
const diffSampleHalf = 30

// MeanAbsDiffAround computes the mean absolute pixel difference between a and
// b inside a square of half-extent half centred on center, clipped to the
// image bounds. Returns 0 when the clipped window is empty.
func MeanAbsDiffAround(a, b image.Image, center geometry.Point, half int) float64 {
	if a == nil || b == nil {
		return 0
	}
	bounds := a.Bounds()
	left := max(bounds.Min.X, center.X-half)
	top := max(bounds.Min.Y, center.Y-half)
	right := min(bounds.Max.X, center.X+half)
	bottom := min(bounds.Max.Y, center.Y+half)
	if left >= right || top >= bottom {
		return 0
	}

	var sum float64
	var count int
	for y := top; y < bottom; y++ {
		for x := left; x < right; x++ {
			ar, ag, ab, _ := a.At(x, y).RGBA()
			br, bg, bb, _ := b.At(x, y).RGBA()
			sum += absDiff8(ar, br) + absDiff8(ag, bg) + absDiff8(ab, bb)
			count += 3
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// RegionMeanAbsDiff samples the ROI at its center and four quarter points and
// averages the local mean differences. Five small windows are enough to tell
// "the drag repainted the canvas" from "nothing happened" without walking the
// full region.
func RegionMeanAbsDiff(a, b image.Image, roi geometry.Rect) float64 {
	if roi.Empty() {
		return 0
	}
	left, top := roi.X, roi.Y
	right, bottom := roi.X+roi.W, roi.Y+roi.H
	cx := left + (right-left)/2
	cy := top + (bottom-top)/2
	qx1 := left + (right-left)/4
	qx2 := left + (right-left)*3/4
	qy1 := top + (bottom-top)/4
	qy2 := top + (bottom-top)*3/4

	samples := []geometry.Point{
		{X: cx, Y: cy},
		{X: qx1, Y: qy1},
		{X: qx2, Y: qy1},
		{X: qx1, Y: qy2},
		{X: qx2, Y: qy2},
	}
	var sum float64
	for _, p := range samples {
		sum += MeanAbsDiffAround(a, b, p, diffSampleHalf)
	}
	return sum / float64(len(samples))
}

func absDiff8(a, b uint32) float64 {
	av := float64(a >> 8)
	bv := float64(b >> 8)
	if av > bv {
		return av - bv
	}
	return bv - av
}
