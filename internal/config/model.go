package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
	"github.com/alexisbeaulieu97/canvaspilot/internal/graph"
)

// GraphModel builds the node model the plan will have produced once every
// creation step has run. The orchestrator uses it for endpoint lookups and
// calibration scoring.
func (p *Plan) GraphModel() *graph.Model {
	m := graph.NewModel()
	for i := range p.Steps {
		step := &p.Steps[i]
		switch {
		case step.CreateNode != nil:
			m.Add(&graph.Node{
				ID:    step.CreateNode.NodeID,
				Title: step.CreateNode.Title,
				Pos:   geometry.ProgramPoint{X: step.CreateNode.Position.X, Y: step.CreateNode.Position.Y},
			})
		case step.CreateAndConnect != nil:
			m.Add(&graph.Node{
				ID:    step.CreateAndConnect.NodeID,
				Title: step.CreateAndConnect.Title,
				Pos:   geometry.ProgramPoint{X: step.CreateAndConnect.Position.X, Y: step.CreateAndConnect.Position.Y},
			})
		}
	}
	return m
}

// ParsedBackgroundColors decodes the settings' hex color allow-list.
func (s *Settings) ParsedBackgroundColors() ([]color.Color, error) {
	out := make([]color.Color, 0, len(s.BackgroundColors))
	for _, hex := range s.BackgroundColors {
		c, err := parseHexColor(hex)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseHexColor(s string) (color.RGBA, error) {
	raw := strings.TrimPrefix(s, "#")
	if len(raw) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
