// Package vision implements the pure image measurements the automation core
// relies on: phase-correlation motion estimation between two frames and mean
// absolute pixel difference sampling. Everything here is stateless and
// deterministic given identical pixel input.
package vision

import (
	"image"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
)

// minPeakResponse is the correlation peak sharpness below which the estimate
// is considered noise. Textureless regions, occlusion, and flickering popups
// all produce low responses whose shift values are effectively random;
// returning them would let the caller's origin mapping drift.
const minPeakResponse = 0.15

const energyEpsilon = 1e-9

// Estimate measures the content displacement from before to after using
// phase correlation, restricted to roi when roi is non-empty. It returns
// (0,0) when no reliable correlation peak exists; callers must treat (0,0)
// as unknown, not as a confirmed "nothing moved".
func Estimate(before, after image.Image, roi geometry.Rect) geometry.Point {
	a := grayPlane(before, roi)
	b := grayPlane(after, roi)
	if a == nil || b == nil || a.w != b.w || a.h != b.h || a.w < 2 || a.h < 2 {
		return geometry.Point{}
	}

	a.removeMean()
	b.removeMean()
	if a.energy() < energyEpsilon || b.energy() < energyEpsilon {
		return geometry.Point{}
	}
	a.applyHann()
	b.applyHann()

	fa := fft2(a)
	fb := fft2(b)

	// Normalized cross power spectrum: F(after) * conj(F(before)) / |...|.
	// With after(x) = before(x-d) the inverse transform peaks at +d.
	cross := make([]complex128, len(fa))
	for i := range fa {
		v := fb[i] * cmplx.Conj(fa[i])
		mag := cmplx.Abs(v)
		if mag > energyEpsilon {
			cross[i] = v / complex(mag, 0)
		}
	}

	surface := ifft2Real(cross, a.w, a.h)

	peakIdx := 0
	peakVal := surface[0]
	total := 0.0
	for i, v := range surface {
		av := math.Abs(v)
		total += av
		if v > peakVal {
			peakVal = v
			peakIdx = i
		}
	}
	if total < energyEpsilon {
		return geometry.Point{}
	}
	if peakVal/total < minPeakResponse {
		return geometry.Point{}
	}

	dx := peakIdx % a.w
	dy := peakIdx / a.w
	// The correlation surface is circular; indices past the midpoint are
	// negative shifts.
	if dx > a.w/2 {
		dx -= a.w
	}
	if dy > a.h/2 {
		dy -= a.h
	}
	return geometry.Point{X: dx, Y: dy}
}

type plane struct {
	w, h int
	pix  []float64
}

// grayPlane extracts the luminance of img restricted to roi (or the full
// bounds when roi is empty), clipped to the image bounds.
func grayPlane(img image.Image, roi geometry.Rect) *plane {
	if img == nil {
		return nil
	}
	bounds := img.Bounds()
	x0, y0 := bounds.Min.X, bounds.Min.Y
	x1, y1 := bounds.Max.X, bounds.Max.Y
	if !roi.Empty() {
		if v := bounds.Min.X + roi.X; v > x0 {
			x0 = v
		}
		if v := bounds.Min.Y + roi.Y; v > y0 {
			y0 = v
		}
		if v := bounds.Min.X + roi.X + roi.W; v < x1 {
			x1 = v
		}
		if v := bounds.Min.Y + roi.Y + roi.H; v < y1 {
			y1 = v
		}
	}
	w := x1 - x0
	h := y1 - y0
	if w <= 0 || h <= 0 {
		return nil
	}
	p := &plane{w: w, h: h, pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x0+x, y0+y).RGBA()
			p.pix[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return p
}

func (p *plane) removeMean() {
	sum := 0.0
	for _, v := range p.pix {
		sum += v
	}
	mean := sum / float64(len(p.pix))
	for i := range p.pix {
		p.pix[i] -= mean
	}
}

func (p *plane) energy() float64 {
	sum := 0.0
	for _, v := range p.pix {
		sum += v * v
	}
	return sum
}

// applyHann tapers the plane's borders so the FFT's implicit wraparound does
// not manufacture spurious correlation at the frame edges.
func (p *plane) applyHann() {
	wx := hannWindow(p.w)
	wy := hannWindow(p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] *= wx[x] * wy[y]
		}
	}
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// fft2 computes the unnormalized 2D DFT, rows then columns.
func fft2(p *plane) []complex128 {
	out := make([]complex128, p.w*p.h)
	for i, v := range p.pix {
		out[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(p.w)
	row := make([]complex128, p.w)
	for y := 0; y < p.h; y++ {
		copy(row, out[y*p.w:(y+1)*p.w])
		rowFFT.Coefficients(out[y*p.w:(y+1)*p.w], row)
	}

	colFFT := fourier.NewCmplxFFT(p.h)
	col := make([]complex128, p.h)
	colOut := make([]complex128, p.h)
	for x := 0; x < p.w; x++ {
		for y := 0; y < p.h; y++ {
			col[y] = out[y*p.w+x]
		}
		colFFT.Coefficients(colOut, col)
		for y := 0; y < p.h; y++ {
			out[y*p.w+x] = colOut[y]
		}
	}
	return out
}

// ifft2Real computes the unnormalized 2D inverse DFT and returns the real
// part. Scaling is irrelevant to the caller, which only compares values
// within the surface.
func ifft2Real(spectrum []complex128, w, h int) []float64 {
	buf := make([]complex128, len(spectrum))
	copy(buf, spectrum)

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	colOut := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = buf[y*w+x]
		}
		colFFT.Sequence(colOut, col)
		for y := 0; y < h; y++ {
			buf[y*w+x] = colOut[y]
		}
	}

	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	out := make([]float64, len(buf))
	for y := 0; y < h; y++ {
		copy(row, buf[y*w:(y+1)*w])
		rowFFT.Sequence(buf[y*w:(y+1)*w], row)
		for x := 0; x < w; x++ {
			out[y*w+x] = real(buf[y*w+x])
		}
	}
	return out
}
