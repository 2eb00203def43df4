package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alexisbeaulieu97/canvaspilot/internal/config"
	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/runctx"
	"github.com/alexisbeaulieu97/canvaspilot/internal/space"
	"github.com/alexisbeaulieu97/canvaspilot/internal/viewport"
	"github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

const (
	// menuSettle is the wait after opening a context menu or palette.
	menuSettle = 250 * time.Millisecond
	// actionSettle is the wait after an action that redraws the canvas.
	actionSettle = 400 * time.Millisecond
)

// placeNode performs the node-creation gesture at an editor point chosen by
// the caller, bypassing alignment. Calibration uses it to drop the anchor
// node before any coordinate mapping exists.
func (o *Orchestrator) placeNode(rc *runctx.RunContext, ctx *StepContext, step *config.Step, at geometry.Point) error {
	title := nodeTitle(step)
	if title == "" {
		return errors.NewEnvironmentMismatchError("step " + step.ID + " creates no node")
	}

	screen, err := o.space.EditorToScreen(at)
	if err != nil {
		return err
	}
	if !rc.Checkpoint() {
		return rc.Err()
	}

	o.space.RecordContextClick(at)
	if err := o.input.RightClick(screen); err != nil {
		return err
	}
	rc.Wait(menuSettle)
	if err := o.input.TypeText(title + "\n"); err != nil {
		return err
	}
	rc.Wait(actionSettle)

	o.aligner.InvalidateScene()
	ctx.InvalidateVisible()
	return nil
}

func (o *Orchestrator) handleCreateNode(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error {
	body := step.CreateNode
	target := geometry.ProgramPoint{X: body.Position.X, Y: body.Position.Y}

	editor, err := o.space.ProgramToEditor(target)
	if err != nil {
		return err
	}
	if err := o.placeNode(rc, ctx, step, editor); err != nil {
		return err
	}
	return o.verifyNodeVisible(ctx, body.NodeID)
}

func (o *Orchestrator) handleCreateAndConnect(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error {
	body := step.CreateAndConnect
	target := geometry.ProgramPoint{X: body.Position.X, Y: body.Position.Y}

	editor, err := o.space.ProgramToEditor(target)
	if err != nil {
		return err
	}
	if err := o.placeNode(rc, ctx, step, editor); err != nil {
		return err
	}
	if err := o.verifyNodeVisible(ctx, body.NodeID); err != nil {
		return err
	}
	return o.dragConnection(rc, ctx, body.From.NodeID, body.NodeID)
}

func (o *Orchestrator) handleConnect(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error {
	body := step.Connect

	if viewportRect, err := o.space.ViewportRect(); err == nil {
		if far, reason := space.TooFarToConnect(ctx.Model, body.From.NodeID, body.To.NodeID, viewportRect, viewport.DefaultMarginRatio); far {
			o.log.Warnf("step %s: %s", step.ID, reason)
		}
	}

	return o.dragConnection(rc, ctx, body.From.NodeID, body.To.NodeID)
}

func (o *Orchestrator) handleSetPortType(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error {
	body := step.SetPortType

	port, err := o.portPoint(ctx, body.NodeID, false)
	if err != nil {
		return err
	}
	screen, err := o.space.EditorToScreen(port)
	if err != nil {
		return err
	}
	if !rc.Checkpoint() {
		return rc.Err()
	}

	o.space.RecordContextClick(port)
	if err := o.input.RightClick(screen); err != nil {
		return err
	}
	rc.Wait(menuSettle)
	if err := o.input.TypeText(body.PortType + "\n"); err != nil {
		return err
	}
	rc.Wait(actionSettle)

	o.aligner.InvalidateScene()
	ctx.InvalidateVisible()
	return nil
}

func (o *Orchestrator) handleScanSettings(rc *runctx.RunContext, ctx *StepContext, step *config.Step) error {
	body := step.ScanSettings

	center, err := o.nodeCenter(ctx, body.NodeID)
	if err != nil {
		return err
	}
	screen, err := o.space.EditorToScreen(center)
	if err != nil {
		return err
	}
	if !rc.Checkpoint() {
		return rc.Err()
	}
	if err := o.input.Click(screen); err != nil {
		return err
	}
	rc.Wait(menuSettle)

	keys := make([]string, 0, len(body.Fields))
	for k := range body.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !rc.Checkpoint() {
			return rc.Err()
		}
		if err := o.input.TypeText(fmt.Sprintf("%s=%s\n", k, body.Fields[k])); err != nil {
			return err
		}
		rc.Wait(menuSettle)
	}

	o.aligner.InvalidateScene()
	ctx.InvalidateVisible()
	return nil
}

// dragConnection wires the source node's output port to the destination's
// input port with one drag.
func (o *Orchestrator) dragConnection(rc *runctx.RunContext, ctx *StepContext, fromID, toID string) error {
	from, err := o.portPoint(ctx, fromID, true)
	if err != nil {
		return err
	}
	to, err := o.portPoint(ctx, toID, false)
	if err != nil {
		return err
	}

	fromScreen, err := o.space.EditorToScreen(from)
	if err != nil {
		return err
	}
	toScreen, err := o.space.EditorToScreen(to)
	if err != nil {
		return err
	}
	if !rc.Checkpoint() {
		return rc.Err()
	}
	if err := o.input.Drag(fromScreen, toScreen); err != nil {
		return err
	}
	rc.Wait(actionSettle)

	o.aligner.InvalidateScene()
	ctx.InvalidateVisible()
	return nil
}

// portPoint locates a node's output (right edge) or input (left edge)
// midpoint in editor coordinates. The detected bounding box wins when
// recognition has one; otherwise the point is predicted from the node's
// planned position and the nominal footprint.
func (o *Orchestrator) portPoint(ctx *StepContext, nodeID string, output bool) (geometry.Point, error) {
	if err := o.refreshVisible(ctx); err != nil {
		return geometry.Point{}, err
	}
	if v, ok := ctx.visible[nodeID]; ok && v.Visible && !v.BBox.Empty() {
		y := v.BBox.Y + v.BBox.H/2
		if output {
			return geometry.Point{X: v.BBox.X + v.BBox.W, Y: y}, nil
		}
		return geometry.Point{X: v.BBox.X, Y: y}, nil
	}

	node := ctx.Model.Node(nodeID)
	if node == nil {
		return geometry.Point{}, errors.NewEnvironmentMismatchError("unknown node " + nodeID)
	}
	editor, err := o.space.ProgramToEditor(node.Pos)
	if err != nil {
		return geometry.Point{}, err
	}
	dy := int(math.Round(space.NodeFootprintH * o.space.Scale() / 2))
	if output {
		return geometry.Point{X: editor.X + int(math.Round(space.NodeFootprintW*o.space.Scale())), Y: editor.Y + dy}, nil
	}
	return geometry.Point{X: editor.X, Y: editor.Y + dy}, nil
}

// nodeCenter locates a node's center in editor coordinates, preferring the
// detected bounding box.
func (o *Orchestrator) nodeCenter(ctx *StepContext, nodeID string) (geometry.Point, error) {
	if err := o.refreshVisible(ctx); err != nil {
		return geometry.Point{}, err
	}
	if v, ok := ctx.visible[nodeID]; ok && v.Visible && !v.BBox.Empty() {
		return v.BBox.Center(), nil
	}

	node := ctx.Model.Node(nodeID)
	if node == nil {
		return geometry.Point{}, errors.NewEnvironmentMismatchError("unknown node " + nodeID)
	}
	editor, err := o.space.ProgramToEditor(node.Pos)
	if err != nil {
		return geometry.Point{}, err
	}
	return geometry.Point{
		X: editor.X + int(math.Round(space.NodeFootprintW*o.space.Scale()/2)),
		Y: editor.Y + int(math.Round(space.NodeFootprintH*o.space.Scale()/2)),
	}, nil
}

// verifyNodeVisible re-runs recognition and confirms the node appeared.
func (o *Orchestrator) verifyNodeVisible(ctx *StepContext, nodeID string) error {
	ctx.InvalidateVisible()
	if err := o.refreshVisible(ctx); err != nil {
		return err
	}
	if v, ok := ctx.visible[nodeID]; !ok || !v.Visible {
		return errors.NewEnvironmentMismatchError("node " + nodeID + " not detected after creation")
	}
	return nil
}

func nodeTitle(step *config.Step) string {
	switch {
	case step.CreateNode != nil:
		return step.CreateNode.Title
	case step.CreateAndConnect != nil:
		return step.CreateAndConnect.Title
	}
	return ""
}
