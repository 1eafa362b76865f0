package dispatch

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// BlockStore persists blocked users.
type BlockStore interface {
	BlockedUsers() ([]string, error)
	SetBlocked(userID string, blocked bool) error
}

// Blocklist holds the local ids whose messages are dropped.
type Blocklist struct {
	set mapset.Set[string]
	db  BlockStore
}

func LoadBlocklist(db BlockStore) (*Blocklist, error) {
	ids, err := db.BlockedUsers()
	if err != nil {
		return nil, fmt.Errorf("load blocked users: %w", err)
	}
	set := mapset.NewSet[string]()
	for _, id := range ids {
		set.Add(strings.ToLower(id))
	}
	return &Blocklist{set: set, db: db}, nil
}

func (b *Blocklist) IsBlocked(userID string) bool {
	return b.set.Contains(strings.ToLower(userID))
}

// Set blocks or unblocks userID.
func (b *Blocklist) Set(userID string, blocked bool) error {
	id := strings.ToLower(userID)
	if err := b.db.SetBlocked(id, blocked); err != nil {
		return fmt.Errorf("persist block %s: %w", id, err)
	}
	if blocked {
		b.set.Add(id)
	} else {
		b.set.Remove(id)
	}
	return nil
}
