package session

import (
	"github.com/aretw0/introspection"
)

// DocumentState is the observable state of one open document.
type DocumentState struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Dirty    bool   `json:"dirty"`
	Revision uint64 `json:"revision"`
	Nodes    int    `json:"nodes"`
}

// ManagerState exposes internal state for observability.
type ManagerState struct {
	User       string          `json:"user"`
	Active     string          `json:"active,omitempty"`
	Activation uint64          `json:"activation"`
	Open       []DocumentState `json:"open"`
	Available  int             `json:"available"`
	Closed     bool            `json:"closed"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ManagerState{
		User:       m.sc.UserID,
		Active:     m.active,
		Activation: m.activation,
		Open:       make([]DocumentState, 0, len(m.order)),
		Available:  len(m.available),
		Closed:     m.closed,
	}
	for _, id := range m.order {
		doc, ok := m.store.Get(id)
		if !ok {
			continue
		}
		s.Open = append(s.Open, DocumentState{
			ID:       doc.ID,
			Title:    doc.Title,
			Dirty:    doc.Dirty,
			Revision: doc.Revision,
			Nodes:    doc.Parsed.Len(),
		})
	}
	return s
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "session-manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
