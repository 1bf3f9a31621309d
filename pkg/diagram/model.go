// Package diagram projects parsed documents into renderable node/edge
// diagrams and manages the rendering instance bound to the active document.
package diagram

// Node is a diagram vertex.
type Node struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	OriginalName string `json:"original_name"`
}

// Edge is a labelled diagram connection. Target may name a node that is not
// part of the diagram.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Model is the derived, throwaway diagram of one parsed structure.
type Model struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Stats summarises a model.
type Stats struct {
	NodeCount     int `json:"node_count"`
	EdgeCount     int `json:"edge_count"`
	DanglingCount int `json:"dangling_count"`
}

// Empty reports whether the model has nothing to draw.
func (m Model) Empty() bool {
	return len(m.Nodes) == 0
}

// Stats counts nodes, edges and edges whose target is not a diagram node.
func (m Model) Stats() Stats {
	ids := make(map[string]struct{}, len(m.Nodes))
	for _, n := range m.Nodes {
		ids[n.ID] = struct{}{}
	}
	s := Stats{NodeCount: len(m.Nodes), EdgeCount: len(m.Edges)}
	for _, e := range m.Edges {
		if _, ok := ids[e.Target]; !ok {
			s.DanglingCount++
		}
	}
	return s
}

// Node returns the diagram node with the given id.
func (m Model) Node(id string) (Node, bool) {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
