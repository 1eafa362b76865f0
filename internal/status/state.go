package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JFJun/kernel/internal/bus"
)

// State represents the lifecycle state of the chat session.
type State string

const (
	Booting     State = "BOOTING"
	Disabled    State = "DISABLED"
	WaitingAuth State = "WAITING_AUTH"
	Guest       State = "GUEST"
	Connecting  State = "CONNECTING"
	Ready       State = "READY"
	Retrying    State = "RETRYING"
	Error       State = "ERROR"
)

// States lists every state in lifecycle order.
var States = []State{Booting, Disabled, WaitingAuth, Guest, Connecting, Ready, Retrying, Error}

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:     {Disabled, WaitingAuth, Guest, Connecting, Error},
	WaitingAuth: {Connecting, Guest, Disabled, Error},
	Guest:       {WaitingAuth, Error},
	Connecting:  {Ready, Retrying, WaitingAuth, Error},
	Ready:       {Retrying, WaitingAuth, Error},
	Retrying:    {Connecting, WaitingAuth, Guest, Error},
	Disabled:    {Booting},
	Error:       {Booting},
}

// Machine tracks and enforces chat session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// TransitionError rejects a move the lifecycle does not allow.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// Transition moves to a new state and publishes session.status_changed.
// Moving to the current state is a no-op; a disallowed move returns a
// *TransitionError.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return &TransitionError{From: m.current, To: to}
	}
	now := time.Now()
	change := StatusChange{From: m.current, To: to, Held: now.Sub(m.since)}
	m.current, m.since = to, now
	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: bus.SessionStatusChanged, Timestamp: now, Payload: change})
	}
	return nil
}

// StatusChange is the payload of session.status_changed. Held is how long
// the session stayed in From.
type StatusChange struct {
	From State
	To   State
	Held time.Duration
}
