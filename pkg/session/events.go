package session

import "fmt"

// EventType is the kind of session transition.
type EventType string

const (
	EventOpened    EventType = "opened"
	EventClosed    EventType = "closed"
	EventActivated EventType = "activated"
	EventEdited    EventType = "edited"
	EventSaved     EventType = "saved"
	EventCreated   EventType = "created"
	EventRefreshed EventType = "refreshed"
)

// Event reports a transition of the session. An EventActivated with an empty
// ID means no document is active.
type Event struct {
	Type     EventType
	ID       string
	Revision uint64
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e.ID == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s %s@%d", e.Type, e.ID, e.Revision)
}

// emitLocked publishes ev without blocking. A full buffer drops the event.
func (m *Manager) emitLocked(ev Event) {
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("session event dropped, consumer is too slow", "event", ev.String())
	}
}
