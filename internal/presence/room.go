package presence

import (
	"sync"

	"github.com/JFJun/kernel/internal/bus"
	"github.com/JFJun/kernel/internal/chat"
)

// RoomContext is the realm and parcel the local user is currently in.
type RoomContext struct {
	mu       sync.RWMutex
	realm    string
	position chat.Position
	bus      *bus.Bus
}

// RoomChange is the payload of bus.RoomChanged.
type RoomChange struct {
	Realm    string
	Position chat.Position
}

func NewRoomContext(realm string, b *bus.Bus) *RoomContext {
	return &RoomContext{realm: realm, bus: b}
}

// Get returns the realm connection string and the parcel position.
func (r *RoomContext) Get() (string, chat.Position) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.realm, r.position
}

// Set records a new context and announces it when it changed.
func (r *RoomContext) Set(realm string, pos chat.Position) {
	r.mu.Lock()
	changed := r.realm != realm || r.position != pos
	r.realm, r.position = realm, pos
	r.mu.Unlock()
	if changed && r.bus != nil {
		r.bus.Emit(bus.RoomChanged, RoomChange{Realm: realm, Position: pos})
	}
}
