package space

import "time"

const (
	// FixedScaleRatio is the nominal editor-pixels-per-program-unit ratio.
	// Calibration always commits this constant; the visually measured ratio
	// is only a health check against a mis-zoomed editor.
	FixedScaleRatio = 1.0

	// MinScale is the smallest scale magnitude the transforms accept.
	MinScale = 1e-6

	// NodeFootprintW and NodeFootprintH are the expected on-canvas size of a
	// freshly placed node at nominal zoom, in program units.
	NodeFootprintW = 200.0
	NodeFootprintH = 100.0

	// scaleWarnTolerance is the relative deviation between the measured and
	// nominal scale above which calibration logs a warning.
	scaleWarnTolerance = 0.10

	// anchorRegionOffset places the calibration anchor this fraction of the
	// canvas region's size away from its top-left corner.
	anchorRegionOffset = 0.01

	// anchorPollTimeout bounds how long calibration waits for the anchor
	// node to become visually detectable.
	anchorPollTimeout = 10 * time.Second

	// anchorPollInterval is the delay between candidate polls.
	anchorPollInterval = 500 * time.Millisecond

	// neighborSampleLimit caps how many known nodes the candidate scorer
	// consults. Nearest neighbors carry the signal; far nodes only add the
	// chance of an off-screen miss.
	neighborSampleLimit = 8

	// neighborTolerancePx is the per-axis slack, in editor pixels, for a
	// predicted neighbor position to count as confirming a candidate.
	neighborTolerancePx = 60
)
