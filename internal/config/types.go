// Package config models the automation plan document: which editor window
// to drive, the pan/retry tuning knobs, and the ordered list of steps to
// perform against the node graph.
package config

import (
	"gopkg.in/yaml.v3"
)

// Plan represents the full automation plan document.
type Plan struct {
	Version     string   `yaml:"version" validate:"required,semver"`
	Name        string   `yaml:"name" validate:"required,min=1,max=100"`
	Description string   `yaml:"description,omitempty"`
	Window      Window   `yaml:"window" validate:"required"`
	Settings    Settings `yaml:"settings,omitempty"`
	Steps       []Step   `yaml:"steps" validate:"required,min=1,dive"`
}

// Window identifies the target editor window and its canvas layout region.
type Window struct {
	Title        string `yaml:"title" validate:"required,min=1"`
	CanvasRegion string `yaml:"canvas_region,omitempty"`
}

// Settings holds global execution parameters. Zero values defer to the
// component defaults.
type Settings struct {
	MarginRatio       float64  `yaml:"margin_ratio,omitempty" validate:"omitempty,gt=0,lt=0.5"`
	PanStepPixels     int      `yaml:"pan_step_pixels,omitempty" validate:"omitempty,min=20,max=2000"`
	MaxPanSteps       int      `yaml:"max_pan_steps,omitempty" validate:"omitempty,min=1,max=64"`
	RetryLimit        int      `yaml:"retry_limit,omitempty" validate:"omitempty,min=0,max=10"`
	NoChangeThreshold float64  `yaml:"no_change_threshold,omitempty" validate:"omitempty,gt=0"`
	NoChangeCap       int      `yaml:"no_change_cap,omitempty" validate:"omitempty,min=1,max=20"`
	SettleWaitMillis  int      `yaml:"settle_wait_ms,omitempty" validate:"omitempty,min=0,max=10000"`
	BackgroundColors  []string `yaml:"background_colors,omitempty" validate:"omitempty,dive,hexcolor"`
	AnchorStepID      string   `yaml:"anchor_step,omitempty"`
}

// Position is a program-space coordinate.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Endpoint names one side of a connection.
type Endpoint struct {
	NodeID string `yaml:"node_id" validate:"required"`
	Port   string `yaml:"port,omitempty"`
}

// Step describes an individual unit of work in the plan.
type Step struct {
	ID   string `yaml:"id" validate:"required,step_id"`
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type" validate:"required,oneof=create_node create_and_connect connect set_port_type scan_settings"`

	CreateNode       *CreateNodeStep       `yaml:",inline,omitempty"`
	CreateAndConnect *CreateAndConnectStep `yaml:",inline,omitempty"`
	Connect          *ConnectStep          `yaml:",inline,omitempty"`
	SetPortType      *SetPortTypeStep      `yaml:",inline,omitempty"`
	ScanSettings     *ScanSettingsStep     `yaml:",inline,omitempty"`
}

// CreateNodeStep places a new node on the canvas.
type CreateNodeStep struct {
	NodeID   string   `yaml:"node_id" validate:"required"`
	Title    string   `yaml:"title" validate:"required"`
	Position Position `yaml:"position"`
}

// CreateAndConnectStep places a new node and wires it to an existing one in
// a single gesture.
type CreateAndConnectStep struct {
	NodeID   string   `yaml:"node_id" validate:"required"`
	Title    string   `yaml:"title" validate:"required"`
	Position Position `yaml:"position"`
	From     Endpoint `yaml:"from" validate:"required"`
	ToPort   string   `yaml:"to_port,omitempty"`
}

// ConnectStep wires two existing nodes.
type ConnectStep struct {
	From Endpoint `yaml:"from" validate:"required"`
	To   Endpoint `yaml:"to" validate:"required"`
}

// SetPortTypeStep changes the declared type of one port.
type SetPortTypeStep struct {
	NodeID   string `yaml:"node_id" validate:"required"`
	Port     string `yaml:"port" validate:"required"`
	PortType string `yaml:"port_type" validate:"required"`
}

// ScanSettingsStep opens a node's settings panel and fills in fields.
type ScanSettingsStep struct {
	NodeID string            `yaml:"node_id" validate:"required"`
	Fields map[string]string `yaml:"fields,omitempty"`
}

// IsCreation reports whether the step brings a new node into existence.
// Creation failures are fatal to the run: later steps reference the node.
func (s *Step) IsCreation() bool {
	return s.Type == "create_node" || s.Type == "create_and_connect"
}

// CreatedNodeID returns the node a creation step produces, or "".
func (s *Step) CreatedNodeID() string {
	switch {
	case s.CreateNode != nil:
		return s.CreateNode.NodeID
	case s.CreateAndConnect != nil:
		return s.CreateAndConnect.NodeID
	}
	return ""
}

// ReferencedNodeIDs returns every node the step touches, creation included.
func (s *Step) ReferencedNodeIDs() []string {
	switch {
	case s.CreateNode != nil:
		return []string{s.CreateNode.NodeID}
	case s.CreateAndConnect != nil:
		return []string{s.CreateAndConnect.NodeID, s.CreateAndConnect.From.NodeID}
	case s.Connect != nil:
		return []string{s.Connect.From.NodeID, s.Connect.To.NodeID}
	case s.SetPortType != nil:
		return []string{s.SetPortType.NodeID}
	case s.ScanSettings != nil:
		return []string{s.ScanSettings.NodeID}
	}
	return nil
}

// UnmarshalYAML customises step decoding to populate type-specific
// structures without conflicts.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type baseStep struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	}

	var base baseStep
	if err := value.Decode(&base); err != nil {
		return err
	}

	s.ID = base.ID
	s.Name = base.Name
	s.Type = base.Type

	s.CreateNode = nil
	s.CreateAndConnect = nil
	s.Connect = nil
	s.SetPortType = nil
	s.ScanSettings = nil

	switch base.Type {
	case "create_node":
		var body CreateNodeStep
		if err := value.Decode(&body); err != nil {
			return err
		}
		s.CreateNode = &body
	case "create_and_connect":
		var body CreateAndConnectStep
		if err := value.Decode(&body); err != nil {
			return err
		}
		s.CreateAndConnect = &body
	case "connect":
		var body ConnectStep
		if err := value.Decode(&body); err != nil {
			return err
		}
		s.Connect = &body
	case "set_port_type":
		var body SetPortTypeStep
		if err := value.Decode(&body); err != nil {
			return err
		}
		s.SetPortType = &body
	case "scan_settings":
		var body ScanSettingsStep
		if err := value.Decode(&body); err != nil {
			return err
		}
		s.ScanSettings = &body
	}

	return nil
}
