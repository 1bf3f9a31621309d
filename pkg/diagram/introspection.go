package diagram

import (
	"github.com/aretw0/introspection"
)

// ControllerState exposes internal state for observability.
type ControllerState struct {
	State      State  `json:"state"`
	DocumentID string `json:"document_id,omitempty"`
	Revision   uint64 `json:"revision"`
	Layout     string `json:"layout,omitempty"`
	Handle     Handle `json:"handle,omitempty"`
	Binds      int    `json:"binds"`
	Stats      Stats  `json:"stats"`
	Selected   string `json:"selected,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Controller) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := ControllerState{
		State:      c.state,
		DocumentID: c.input.DocumentID,
		Revision:   c.input.Revision,
		Layout:     c.input.Layout,
		Binds:      c.binds,
		Stats:      c.model.Stats(),
	}
	if c.hasHandle {
		s.Handle = c.handle
	}
	if c.selected != nil {
		s.Selected = c.selected.ID
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// ComponentType implements introspection.Component.
func (c *Controller) ComponentType() string {
	return "diagram-controller"
}

var _ introspection.Introspectable = (*Controller)(nil)
var _ introspection.Component = (*Controller)(nil)
