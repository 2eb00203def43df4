// Package drift decides whether a raw motion estimate may update the
// coordinate mapping. A single bad update permanently offsets the origin and
// silently corrupts every later automated click, so rejection is the default
// posture: a vetoed estimate becomes "no movement", never a hard error.
package drift

import (
	"fmt"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
)

// Empirical tolerances for a trustworthy phase-correlation estimate. The
// magnitude ceiling bounds each component against the commanded drag; the
// error ceiling bounds the distance between estimate and expectation. Both
// carry absolute floors so tiny drags near the noise level are not rejected
// for ordinary UI jitter.
const (
	magnitudeRatio   = 1.6
	magnitudeStepRatio = 1.6
	magnitudeFloorPx = 80.0

	errorRatio     = 0.75
	errorStepRatio = 0.9
	errorFloorPx   = 120.0
)

// Decision is the guard's verdict plus the delta the caller should apply to
// the origin mapping.
type Decision struct {
	Accepted  bool
	Effective geometry.Point
	Reason    string
}

// IsReasonable reports whether an estimated content displacement is
// plausible given the displacement the commanded drag should have produced.
func IsReasonable(estimated, expected geometry.Point, panStepPixels int) bool {
	if expected.IsZero() {
		return true
	}
	if geometry.Dot(estimated, expected) <= 0 {
		return false
	}

	step := panStepPixels
	if step < 1 {
		step = 1
	}

	magnitudeCeiling := maxf(
		float64(expected.AbsMax())*magnitudeRatio,
		float64(step)*magnitudeStepRatio,
		magnitudeFloorPx,
	)
	if float64(estimated.AbsMax()) > magnitudeCeiling {
		return false
	}

	errVec := geometry.Point{X: estimated.X - expected.X, Y: estimated.Y - expected.Y}
	errorCeiling := maxf(
		expected.Norm()*errorRatio,
		float64(step)*errorStepRatio,
		errorFloorPx,
	)
	return errVec.Norm() <= errorCeiling
}

// Evaluate runs the guard and converts a veto into a zero effective delta.
func Evaluate(estimated, expected geometry.Point, panStepPixels int) Decision {
	if estimated.IsZero() || IsReasonable(estimated, expected, panStepPixels) {
		return Decision{Accepted: true, Effective: estimated}
	}
	return Decision{
		Accepted: false,
		Reason: fmt.Sprintf(
			"estimated (%d,%d) inconsistent with expected (%d,%d); treating as (0,0) to protect the origin mapping",
			estimated.X, estimated.Y, expected.X, expected.Y,
		),
	}
}

func maxf(values ...float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
