// Package graph holds the minimal node-graph data model the automation core
// needs: node identities, display titles, and program-space positions. The
// editor's full document model (ports, wires, metadata) lives with the
// editor; the core only reasons about where nodes are and what they are
// called.
package graph

import (
	"strings"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
)

// Node is one node of the target graph document.
type Node struct {
	ID    string
	Title string
	Pos   geometry.ProgramPoint
}

// Model is the set of nodes the automation plan operates on, keyed by node ID.
type Model struct {
	Nodes map[string]*Node
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{Nodes: make(map[string]*Node)}
}

// Add inserts or replaces a node.
func (m *Model) Add(n *Node) {
	if m.Nodes == nil {
		m.Nodes = make(map[string]*Node)
	}
	m.Nodes[n.ID] = n
}

// Node returns the node with the given ID, or nil.
func (m *Model) Node(id string) *Node {
	if m == nil || m.Nodes == nil {
		return nil
	}
	return m.Nodes[id]
}

// Empty reports whether the model has no nodes.
func (m *Model) Empty() bool {
	return m == nil || len(m.Nodes) == 0
}

// NormalizeTitle canonicalises a node title for visual matching: detected
// titles come back from recognition with inconsistent casing and stray
// whitespace.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
