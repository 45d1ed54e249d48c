package session

import (
	"time"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// validTransitions lists the edges of the session state machine.
var validTransitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateFailed, StateDisconnected},
	StateConnected:    {StateReconnecting, StateDisconnected},
	StateReconnecting: {StateConnected, StateFailed, StateDisconnected},
	StateFailed:       {StateReconnecting, StateDisconnected},
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// historySize is the number of transitions kept per session.
const historySize = 50

// Transition records one state change.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// StateChangeCallback is invoked on every state change. It may run while the
// session is locked, so it must not borrow the same session.
type StateChangeCallback func(serverID string, from, to State)

// history is a fixed-size ring buffer of transitions.
type history struct {
	entries [historySize]Transition
	head    int
	count   int
}

func (h *history) record(t Transition) {
	h.entries[h.head] = t
	h.head = (h.head + 1) % historySize
	if h.count < historySize {
		h.count++
	}
}

// list returns the transitions oldest first.
func (h *history) list() []Transition {
	if h.count == 0 {
		return nil
	}
	out := make([]Transition, h.count)
	if h.count < historySize {
		copy(out, h.entries[:h.count])
	} else {
		n := copy(out, h.entries[h.head:])
		copy(out[n:], h.entries[:h.head])
	}
	return out
}

// EventType names a lifecycle event.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventDisconnected    EventType = "disconnected"
	EventConnectFailed   EventType = "connect_failed"
	EventReconnecting    EventType = "reconnecting"
	EventReconnected     EventType = "reconnected"
	EventReconnectFailed EventType = "reconnect_failed"
	EventKeepaliveFailed EventType = "keepalive_failed"
)

// Event describes something that happened to a session.
type Event struct {
	ServerID  string    `json:"server_id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// EventListener receives lifecycle events. Listeners are called synchronously.
type EventListener func(Event)
