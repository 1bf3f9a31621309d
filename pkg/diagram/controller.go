package diagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// State is the binding state of a Controller.
type State string

const (
	// StateUnbound means no rendering instance exists.
	StateUnbound State = "unbound"
	// StatePending means a bind waits for the surface to become ready.
	StatePending State = "pending"
	// StateBound means an instance shows the current model.
	StateBound State = "bound"
	// StateEmpty means the input has no nodes; a placeholder is shown instead.
	StateEmpty State = "empty"
)

const (
	// DefaultPollInterval is how often a pending bind re-checks the surface.
	DefaultPollInterval = 50 * time.Millisecond

	placeholderNoDocument = "No graph selected."
	placeholderEmpty      = "This graph has no nodes to display."
)

// ErrControllerClosed is returned by Bind after Close.
var ErrControllerClosed = errors.New("diagram controller is closed")

// Input is what a Controller displays. A change of document, revision or
// layout rebinds; Revision must change whenever Parsed does.
type Input struct {
	DocumentID string
	Revision   uint64
	Parsed     *core.ParsedStructure
	Layout     string
}

func (in Input) same(other Input) bool {
	return in.DocumentID == other.DocumentID &&
		in.Revision == other.Revision &&
		in.Layout == other.Layout
}

// HoverFunc receives the description of a hovered node.
type HoverFunc func(nodeID, description string)

// SelectFunc receives the node entity of a tapped diagram node.
type SelectFunc func(node core.Node)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger for the controller.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPollInterval sets how often a pending bind re-checks the surface.
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithHoverHandler replaces the default hover behaviour (a debug log line).
func WithHoverHandler(fn HoverFunc) ControllerOption {
	return func(c *Controller) {
		c.onHover = fn
	}
}

// WithSelectHandler is called whenever a tap selects a node.
func WithSelectHandler(fn SelectFunc) ControllerOption {
	return func(c *Controller) {
		c.onSelect = fn
	}
}

// Controller binds one rendering instance to the active document's diagram.
//
// An instance is owned by exactly one bind: any input change destroys it
// before the next bind starts, and Close destroys it for good.
type Controller struct {
	renderer Renderer
	surface  Surface
	logger   *slog.Logger
	interval time.Duration
	onHover  HoverFunc
	onSelect SelectFunc

	ctx    context.Context
	cancel context.CancelFunc
	polls  sync.WaitGroup

	mu        sync.Mutex
	state     State
	input     Input
	hasInput  bool
	model     Model
	handle    Handle
	hasHandle bool
	gen       uint64
	stopPoll  context.CancelFunc
	selected  *core.Node
	binds     int
	lastErr   error
	closed    bool
}

// NewController creates an unbound controller. Canceling ctx stops any
// pending bind; Close must still be called to destroy the instance.
func NewController(ctx context.Context, r Renderer, s Surface, opts ...ControllerOption) *Controller {
	cctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		renderer: r,
		surface:  s,
		logger:   slog.Default(),
		interval: DefaultPollInterval,
		ctx:      cctx,
		cancel:   cancel,
		state:    StateUnbound,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onHover == nil {
		c.onHover = func(nodeID, description string) {
			c.logger.Debug("diagram node hovered", "node", nodeID, "description", description)
		}
	}
	return c
}

// Bind displays in. Identical input is a no-op; anything else destroys the
// current instance and starts a new pending bind. An input without nodes
// moves to StateEmpty without binding.
func (c *Controller) Bind(in Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}
	if c.hasInput && c.input.same(in) && c.state != StateUnbound {
		return nil
	}

	c.resetLocked()
	c.input = in
	c.hasInput = true

	if in.Parsed.Len() == 0 {
		c.state = StateEmpty
		c.logger.Debug("diagram has no nodes", "doc", in.DocumentID)
		return nil
	}

	c.model = Project(in.Parsed)
	c.state = StatePending
	c.startPollLocked(c.gen, in)
	return nil
}

// Clear destroys the current instance and forgets the input.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.resetLocked()
	c.input = Input{}
	c.hasInput = false
}

// Close tears the controller down. The instance is destroyed, no pending
// bind can complete afterwards, and every poll task has exited on return.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	err := c.resetLocked()
	c.cancel()
	c.mu.Unlock()

	c.polls.Wait()
	return err
}

// resetLocked invalidates pending binds and destroys the live instance.
func (c *Controller) resetLocked() error {
	c.gen++
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}

	var err error
	if c.hasHandle {
		h := c.handle
		c.hasHandle = false
		c.handle = ""
		if derr := c.renderer.Destroy(h); derr != nil {
			err = fmt.Errorf("destroy %s: %w", h, derr)
			c.logger.Warn("failed to destroy diagram instance", "handle", h, "error", derr)
		}
	}

	c.state = StateUnbound
	c.model = Model{}
	c.selected = nil
	c.lastErr = nil
	return err
}

func (c *Controller) startPollLocked(gen uint64, in Input) {
	pctx, stop := context.WithCancel(c.ctx)
	c.stopPoll = stop
	c.polls.Add(1)

	lifecycle.Go(pctx, func(ctx context.Context) error {
		defer c.polls.Done()
		defer stop()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			done, err := c.tryBind(ctx, gen, in)
			if done {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("diagram bind failed", "doc", in.DocumentID, "error", err)
	}))
}

// tryBind creates the instance once the surface is ready. It reports done
// when polling should stop: bound, failed, or superseded.
func (c *Controller) tryBind(ctx context.Context, gen uint64, in Input) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen || ctx.Err() != nil {
		return true, nil
	}
	if !Ready(c.surface) {
		return false, nil
	}

	model := c.model
	h, err := c.renderer.Create(c.surface, model.Nodes, model.Edges, in.Layout)
	if err != nil {
		c.state = StateUnbound
		c.lastErr = err
		return true, fmt.Errorf("create instance: %w", err)
	}

	descriptions := make(map[string]string, len(model.Nodes))
	for _, n := range model.Nodes {
		descriptions[n.ID] = n.Description
	}
	parsed := in.Parsed

	c.renderer.OnHover(h, func(nodeID string) {
		if !c.current(gen) {
			return
		}
		c.onHover(nodeID, descriptions[nodeID])
	})
	c.renderer.OnTap(h, func(nodeID string) {
		c.selectNode(gen, parsed, nodeID)
	})

	c.handle = h
	c.hasHandle = true
	c.state = StateBound
	c.binds++
	c.lastErr = nil
	c.logger.Debug("diagram bound",
		"doc", in.DocumentID,
		"handle", h,
		"layout", in.Layout,
		"nodes", len(model.Nodes),
		"edges", len(model.Edges),
	)
	return true, nil
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.gen
}

func (c *Controller) selectNode(gen uint64, parsed *core.ParsedStructure, nodeID string) {
	node, ok := parsed.Lookup(nodeID)
	if !ok {
		c.logger.Debug("tapped node not found", "node", nodeID)
		return
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.selected = &node
	onSelect := c.onSelect
	c.mu.Unlock()

	if onSelect != nil {
		onSelect(node)
	}
}

// Status returns the binding state.
func (c *Controller) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Model returns the diagram currently displayed or pending.
func (c *Controller) Model() Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Handle returns the live rendering instance, if any.
func (c *Controller) Handle() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, c.hasHandle
}

// Selected returns the node chosen by the last tap on the current diagram.
func (c *Controller) Selected() (core.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return core.Node{}, false
	}
	return *c.selected, true
}

// Placeholder returns the text to show instead of a diagram, or "" when a
// diagram is (or is about to be) displayed.
func (c *Controller) Placeholder() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == StateEmpty:
		return placeholderEmpty
	case !c.hasInput:
		return placeholderNoDocument
	case c.lastErr != nil:
		return "Unable to render graph: " + c.lastErr.Error()
	}
	return ""
}
