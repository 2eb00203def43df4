package space

import (
	"fmt"
	"math"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
)

// TooFarToConnect predicts whether two nodes are laid out so far apart that
// both endpoints can never sit inside the safe viewport margin at once,
// which would make a single-screen wire drag impossible. The check is
// advisory: it reports a human-readable reason and never blocks execution
// on its own.
func TooFarToConnect(model *graph.Model, srcID, dstID string, viewport geometry.Rect, marginRatio float64) (bool, string) {
	src := model.Node(srcID)
	dst := model.Node(dstID)
	if src == nil || dst == nil {
		return false, ""
	}

	safe := geometry.SafeRect(viewport, marginRatio)
	spanX := math.Abs(dst.Pos.X-src.Pos.X)*FixedScaleRatio + NodeFootprintW*FixedScaleRatio
	spanY := math.Abs(dst.Pos.Y-src.Pos.Y)*FixedScaleRatio + NodeFootprintH*FixedScaleRatio

	if spanX > float64(safe.W) || spanY > float64(safe.H) {
		return true, fmt.Sprintf(
			"nodes %s and %s span %.0fx%.0f px but the safe viewport is only %dx%d; connection may need layout changes",
			srcID, dstID, spanX, spanY, safe.W, safe.H)
	}
	return false, ""
}
