package httpservice

import "time"

// EventType identifies a registry change.
type EventType string

const (
	EventRegistered       EventType = "registered"
	EventUnregistered     EventType = "unregistered"
	EventContextCreated   EventType = "context_created"
	EventContextDestroyed EventType = "context_destroyed"
)

// Event describes one committed registry change.
type Event struct {
	Type           EventType `json:"type"`
	Alias          string    `json:"alias,omitempty"`
	ContextPath    string    `json:"context_path"`
	Owner          string    `json:"owner,omitempty"`
	Kind           Kind      `json:"kind,omitempty"`
	RegistrationID string    `json:"registration_id,omitempty"`
	Time           time.Time `json:"time"`
}

// Listener receives registry events. Listeners are called after the
// registry lock is released, in commit order, and may call back into the
// registry.
type Listener interface {
	HandleEvent(e Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(e Event)

func (f ListenerFunc) HandleEvent(e Event) { f(e) }
