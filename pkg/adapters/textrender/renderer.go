// Package textrender is a diagram.Renderer that writes D2-style text.
//
// Instances live until destroyed; pointer interaction is injected with Hover
// and Tap, which is how the interactive shell and the tests drive it.
package textrender

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
)

var (
	// ErrSurfaceNotReady is returned by Create for a detached or zero-sized surface.
	ErrSurfaceNotReady = errors.New("surface is not ready")
	// ErrUnknownHandle is returned by Destroy for a handle it does not own.
	ErrUnknownHandle = errors.New("unknown render handle")
)

type instance struct {
	nodes  []diagram.Node
	edges  []diagram.Edge
	layout string
	hover  func(string)
	tap    func(string)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger for the renderer.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Renderer draws each instance once, on Create, to its writer.
type Renderer struct {
	out    io.Writer
	logger *slog.Logger

	mu        sync.Mutex
	instances map[diagram.Handle]*instance
}

// New creates a renderer writing to out. A nil out discards output.
func New(out io.Writer, opts ...Option) *Renderer {
	if out == nil {
		out = io.Discard
	}
	r := &Renderer{
		out:       out,
		logger:    slog.Default(),
		instances: make(map[diagram.Handle]*instance),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create implements diagram.Renderer.
func (r *Renderer) Create(s diagram.Surface, nodes []diagram.Node, edges []diagram.Edge, layout string) (diagram.Handle, error) {
	if !diagram.Ready(s) {
		return "", ErrSurfaceNotReady
	}
	h := diagram.Handle(uuid.NewString())
	inst := &instance{
		nodes:  append([]diagram.Node(nil), nodes...),
		edges:  append([]diagram.Edge(nil), edges...),
		layout: layout,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.out, Render(nodes, edges, layout)); err != nil {
		return "", fmt.Errorf("write diagram: %w", err)
	}
	r.instances[h] = inst
	r.logger.Debug("text diagram created", "handle", h, "nodes", len(nodes), "edges", len(edges))
	return h, nil
}

// Destroy implements diagram.Renderer.
func (r *Renderer) Destroy(h diagram.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[h]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	delete(r.instances, h)
	return nil
}

// OnHover implements diagram.Renderer.
func (r *Renderer) OnHover(h diagram.Handle, fn func(nodeID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[h]; ok {
		inst.hover = fn
	}
}

// OnTap implements diagram.Renderer.
func (r *Renderer) OnTap(h diagram.Handle, fn func(nodeID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[h]; ok {
		inst.tap = fn
	}
}

// Hover delivers a hover over nodeID to instance h. It reports false when h
// is not live or has no hover callback.
func (r *Renderer) Hover(h diagram.Handle, nodeID string) bool {
	r.mu.Lock()
	inst, ok := r.instances[h]
	var fn func(string)
	if ok {
		fn = inst.hover
	}
	r.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(nodeID)
	return true
}

// Tap delivers a tap on nodeID to instance h. It reports false when h is
// not live or has no tap callback.
func (r *Renderer) Tap(h diagram.Handle, nodeID string) bool {
	r.mu.Lock()
	inst, ok := r.instances[h]
	var fn func(string)
	if ok {
		fn = inst.tap
	}
	r.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(nodeID)
	return true
}

// Live returns the number of instances not yet destroyed.
func (r *Renderer) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Render formats nodes and edges as a D2 diagram. Output follows the input
// order, so equal input gives equal text.
func Render(nodes []diagram.Node, edges []diagram.Edge, layout string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "direction: %s\n", direction(layout))
	if layout != "" {
		fmt.Fprintf(&sb, "# layout: %s\n", layout)
	}
	sb.WriteString("\n# Nodes\n")
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s: {\n", d2ID(n.ID))
		fmt.Fprintf(&sb, "  label: %s\n", quote(n.Label))
		if n.Description != "" {
			fmt.Fprintf(&sb, "  tooltip: %s\n", quote(n.Description))
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\n# Edges\n")
	for _, e := range edges {
		if e.Label != "" {
			fmt.Fprintf(&sb, "%s -> %s: %s\n", d2ID(e.Source), d2ID(e.Target), quote(e.Label))
		} else {
			fmt.Fprintf(&sb, "%s -> %s\n", d2ID(e.Source), d2ID(e.Target))
		}
	}
	return sb.String()
}

// direction maps hierarchical layouts to top-down flow.
func direction(layout string) string {
	switch layout {
	case "breadthfirst", "dagre":
		return "down"
	}
	return "right"
}

// d2ID quotes identifiers containing anything but letters, digits, '_' and '-'.
func d2ID(id string) string {
	for _, c := range id {
		if !isAlphanumeric(c) && c != '_' && c != '-' {
			return quote(id)
		}
	}
	if id == "" {
		return `""`
	}
	return id
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

var _ diagram.Renderer = (*Renderer)(nil)
