package friends

import (
	"sync"

	"github.com/JFJun/kernel/internal/chat"
)

// Store is the application-state object of one session. It is created when
// the daemon starts and cleared with Reset on logout. Writers go through
// Update, which serializes read-modify-write cycles.
type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore() *Store {
	return &Store{state: State{}.Clone()}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update applies fn to the state under the write lock.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Session returns the chat session, or nil before login.
func (s *Store) Session() chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Client
}

func (s *Store) SetSession(c chat.Session) {
	s.Update(func(st *State) { st.Client = c })
}

// Reset drops all state, including the session handle.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}.Clone()
}
