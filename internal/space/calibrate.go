package space

import (
	"math"

	"github.com/agnivade/levenshtein"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
	"github.com/alexisbeaulieu97/canvaspilot/internal/logger"
	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
	"github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

// AnchorPlacer creates the anchor node on the canvas at the given editor
// point when calibration cannot find an existing one. The step handlers own
// the actual context-menu choreography; calibration only decides where.
type AnchorPlacer func(rc *runctx.RunContext, at geometry.Point) error

// Calibrator runs the anchor protocol and commits the result into a Space.
type Calibrator struct {
	space      *Space
	recognizer ports.NodeRecognizer
	log        *logger.Logger
}

// NewCalibrator wires a calibrator around the given space and recognizer.
func NewCalibrator(space *Space, recognizer ports.NodeRecognizer, log *logger.Logger) *Calibrator {
	return &Calibrator{space: space, recognizer: recognizer, log: log}
}

// Calibrate learns the editor origin from the anchor node identified by
// anchorID. When the anchor is not yet on the canvas and placer is non-nil,
// it is placed at a small fixed offset inside the canvas region first.
// Candidate polling is bounded; on timeout an EnvironmentMismatch error is
// returned because an editor where the anchor never appears is not the
// editor the plan was written for.
func (c *Calibrator) Calibrate(rc *runctx.RunContext, model *graph.Model, anchorID string, placer AnchorPlacer) error {
	anchor := model.Node(anchorID)
	if anchor == nil {
		return errors.NewEnvironmentMismatchError("anchor node " + anchorID + " missing from graph model")
	}

	region, err := c.space.ViewportRect()
	if err != nil {
		return err
	}

	placed := false
	maxAttempts := int(anchorPollTimeout / anchorPollInterval)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		frame, err := c.space.frames.CaptureWindow(c.space.windowTitle)
		if err != nil {
			return errors.NewCaptureFailedError(c.space.windowTitle, err)
		}
		detections, err := c.recognizer.ListNodes(frame)
		if err != nil {
			return err
		}

		candidates := matchTitle(detections, anchor.Title)
		if len(candidates) > 0 {
			chosen := c.disambiguate(candidates, anchor, model)
			c.checkScaleEstimate(chosen.BBox)
			origin := geometry.Point{
				X: chosen.Center().X - int(math.Round(anchor.Pos.X*FixedScaleRatio)),
				Y: chosen.Center().Y - int(math.Round(anchor.Pos.Y*FixedScaleRatio)),
			}
			c.space.commit(FixedScaleRatio, origin, true)
			c.log.Infof("calibrated: origin (%d,%d) from anchor %q (%d candidates)",
				origin.X, origin.Y, anchor.Title, len(candidates))
			return nil
		}

		if !placed && placer != nil {
			at := geometry.Point{
				X: region.X + int(float64(region.W)*anchorRegionOffset),
				Y: region.Y + int(float64(region.H)*anchorRegionOffset),
			}
			c.space.RecordContextClick(at)
			if err := placer(rc, at); err != nil {
				return err
			}
			placed = true
		}

		if !rc.Wait(anchorPollInterval) {
			return rc.Err()
		}
	}

	return errors.NewEnvironmentMismatchError("anchor node " + anchor.Title + " never became visible")
}

// matchTitle filters detections down to the ones whose title plausibly is
// the anchor's. Recognition garbles the odd glyph, so exact comparison is
// too strict; a small edit-distance budget scaled by title length covers it.
func matchTitle(detections []ports.DetectedNode, title string) []ports.DetectedNode {
	want := graph.NormalizeTitle(title)
	budget := len(want) / 5
	if budget < 1 {
		budget = 1
	}

	var out []ports.DetectedNode
	for _, d := range detections {
		got := graph.NormalizeTitle(d.Title)
		if got == want || levenshtein.ComputeDistance(got, want) <= budget {
			out = append(out, d)
		}
	}
	return out
}

// disambiguate picks one candidate when several detections match the anchor
// title. Preference order: geometric consistency against known node
// positions, then proximity to the last context-menu click, then the first
// candidate.
func (c *Calibrator) disambiguate(candidates []ports.DetectedNode, anchor *graph.Node, model *graph.Model) ports.DetectedNode {
	if len(candidates) == 1 {
		return candidates[0]
	}

	if best, ok := c.scoreByGeometry(candidates, anchor, model); ok {
		return best
	}

	if click, ok := c.space.LastContextClick(); ok {
		best := candidates[0]
		bestDist := math.Inf(1)
		for _, cand := range candidates {
			center := cand.Center()
			d := geometry.Point{X: center.X - click.X, Y: center.Y - click.Y}.Norm()
			if d < bestDist {
				best, bestDist = cand, d
			}
		}
		c.log.Debugf("anchor disambiguated by context click: %d candidates", len(candidates))
		return best
	}

	c.log.Warnf("anchor %q ambiguous (%d candidates), taking first", anchor.Title, len(candidates))
	return candidates[0]
}

// scoreByGeometry tries each candidate as the true anchor: the candidate
// implies an origin, the origin predicts where every known node should sit
// on screen, and the candidate whose predictions confirm the most nearby
// known nodes wins. Only the anchor's nearest neighbors are consulted.
func (c *Calibrator) scoreByGeometry(candidates []ports.DetectedNode, anchor *graph.Node, model *graph.Model) (ports.DetectedNode, bool) {
	neighbors := nearestNeighbors(model, anchor, neighborSampleLimit)
	if len(neighbors) == 0 {
		return ports.DetectedNode{}, false
	}

	frame, err := c.space.frames.CaptureWindow(c.space.windowTitle)
	if err != nil {
		return ports.DetectedNode{}, false
	}
	detections, err := c.recognizer.ListNodes(frame)
	if err != nil || len(detections) == 0 {
		return ports.DetectedNode{}, false
	}

	var best ports.DetectedNode
	bestScore := -1
	for _, cand := range candidates {
		center := cand.Center()
		origin := geometry.Point{
			X: center.X - int(math.Round(anchor.Pos.X*FixedScaleRatio)),
			Y: center.Y - int(math.Round(anchor.Pos.Y*FixedScaleRatio)),
		}

		score := 0
		for _, n := range neighbors {
			predicted := geometry.Point{
				X: origin.X + int(math.Round(n.Pos.X*FixedScaleRatio)),
				Y: origin.Y + int(math.Round(n.Pos.Y*FixedScaleRatio)),
			}
			if anyDetectionNear(detections, n.Title, predicted) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = cand, score
		}
	}

	if bestScore <= 0 {
		return ports.DetectedNode{}, false
	}
	c.log.Debugf("anchor disambiguated by geometry: score %d over %d neighbors", bestScore, len(neighbors))
	return best, true
}

func anyDetectionNear(detections []ports.DetectedNode, title string, predicted geometry.Point) bool {
	want := graph.NormalizeTitle(title)
	for _, d := range detections {
		if graph.NormalizeTitle(d.Title) != want {
			continue
		}
		center := d.Center()
		if abs(center.X-predicted.X) <= neighborTolerancePx && abs(center.Y-predicted.Y) <= neighborTolerancePx {
			return true
		}
	}
	return false
}

// nearestNeighbors returns up to limit known nodes ordered by program-space
// distance from the anchor, excluding the anchor itself.
func nearestNeighbors(model *graph.Model, anchor *graph.Node, limit int) []*graph.Node {
	if model == nil {
		return nil
	}
	var out []*graph.Node
	for _, n := range model.Nodes {
		if n.ID == anchor.ID {
			continue
		}
		out = append(out, n)
	}

	dist := func(n *graph.Node) float64 {
		dx := n.Pos.X - anchor.Pos.X
		dy := n.Pos.Y - anchor.Pos.Y
		return dx*dx + dy*dy
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && dist(out[j]) < dist(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// checkScaleEstimate compares the detected anchor footprint against the
// nominal one and warns when it deviates too far. The estimate is never
// committed: a single bounding box is far too noisy to overrule a known
// environment constant, but a big deviation usually means the editor zoom
// is off.
func (c *Calibrator) checkScaleEstimate(bbox geometry.Rect) {
	if bbox.Empty() {
		return
	}
	estimate := (float64(bbox.W)/NodeFootprintW + float64(bbox.H)/NodeFootprintH) / 2
	deviation := math.Abs(estimate-FixedScaleRatio) / FixedScaleRatio
	if deviation >= scaleWarnTolerance {
		c.log.Warnf("measured anchor scale %.3f deviates %.0f%% from nominal %.1f; check editor zoom",
			estimate, deviation*100, FixedScaleRatio)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
