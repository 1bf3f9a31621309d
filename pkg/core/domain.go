// Package core holds the domain types of the nodeBook client and the ports
// through which it talks to its collaborators.
package core

import "log/slog"

// Attribute is a descriptive name/value pair on a node.
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Unit  string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Relation points from the owning node to another node by identifier.
// The target may not exist in the same structure.
type Relation struct {
	Name   string `json:"name" yaml:"name"`
	Target string `json:"target" yaml:"target"`
}

// Node is a typed entity of a parsed document.
type Node struct {
	ID          string      `json:"node_id"`
	AltID       string      `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
	Relations   []Relation  `json:"relations,omitempty"`
}

// DisplayName returns the raw name, or the identifier when the name is empty.
func (n Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// ParsedStructure is the decoded form of a CNL document.
// Node order is authoring order.
type ParsedStructure struct {
	Nodes []Node `json:"nodes"`
}

// Len returns the number of nodes; a nil structure has none.
func (p *ParsedStructure) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Nodes)
}

// Lookup finds a node by identifier, falling back to the alternate id field.
func (p *ParsedStructure) Lookup(id string) (Node, bool) {
	if p == nil || id == "" {
		return Node{}, false
	}
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	for _, n := range p.Nodes {
		if n.AltID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy so callers never alias another document's state.
func (p *ParsedStructure) Clone() *ParsedStructure {
	if p == nil {
		return nil
	}
	out := &ParsedStructure{Nodes: make([]Node, len(p.Nodes))}
	for i, n := range p.Nodes {
		n.Attributes = append([]Attribute(nil), n.Attributes...)
		n.Relations = append([]Relation(nil), n.Relations...)
		out.Nodes[i] = n
	}
	return out
}

// DocumentInfo is the listing entry of a document.
type DocumentInfo struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Document is one open knowledge-graph document.
// Raw and Parsed stay nil until they have been fetched.
type Document struct {
	ID       string
	Title    string
	Raw      *string
	Parsed   *ParsedStructure
	Dirty    bool
	Revision uint64
}

// Info returns the listing entry of the document.
func (d Document) Info() DocumentInfo {
	return DocumentInfo{ID: d.ID, Title: d.Title}
}

// SessionContext carries who the session acts for.
// It is passed explicitly to everything that needs the current user.
type SessionContext struct {
	UserID string
	Logger *slog.Logger
}

// Log returns the session logger or the default logger.
func (c SessionContext) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// EventType represents the kind of change reported by a watchable source.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents an external change to a document.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix timestamp
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return string(e.Type) + " " + e.ID
}
