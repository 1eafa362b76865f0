package channels

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// MuteStore persists mute state.
type MuteStore interface {
	MutedChannels() ([]string, error)
	SetMuted(channelID string, muted bool) error
}

// Mutes is the set of muted channel ids, loaded from and written through to
// a MuteStore.
type Mutes struct {
	set mapset.Set[string]
	db  MuteStore
}

// LoadMutes reads the persisted mute set.
func LoadMutes(db MuteStore) (*Mutes, error) {
	ids, err := db.MutedChannels()
	if err != nil {
		return nil, fmt.Errorf("load muted channels: %w", err)
	}
	return &Mutes{set: mapset.NewSet(ids...), db: db}, nil
}

func (m *Mutes) IsMuted(channelID string) bool { return m.set.Contains(channelID) }

// Set persists the new state before updating the in-memory set.
func (m *Mutes) Set(channelID string, muted bool) error {
	if err := m.db.SetMuted(channelID, muted); err != nil {
		return fmt.Errorf("persist mute %s: %w", channelID, err)
	}
	if muted {
		m.set.Add(channelID)
	} else {
		m.set.Remove(channelID)
	}
	return nil
}

func (m *Mutes) List() []string { return m.set.ToSlice() }
