// Package presence reconciles friends' statuses with the renderer and keeps
// the local user's own status published on the chat service.
package presence

import (
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/peers"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// Tracker forwards status changes to the renderer, suppressing repeats of a
// structurally equal status.
type Tracker struct {
	store    *friends.Store
	mapper   *identity.Mapper
	renderer renderer.Renderer
	peers    *peers.Registry
	logger   *zap.Logger
}

var _ friends.StatusUpdater = (*Tracker)(nil)

func NewTracker(store *friends.Store, mapper *identity.Mapper, r renderer.Renderer, reg *peers.Registry, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, mapper: mapper, renderer: r, peers: reg, logger: logger.Named("presence")}
}

// UpdateStatus queries the session for socialIDs and forwards every status
// that differs from the last one recorded for that id.
func (t *Tracker) UpdateStatus(session chat.Session, socialIDs ...string) {
	if session == nil || len(socialIDs) == 0 {
		return
	}
	statuses := session.GetUserStatuses(socialIDs...)

	var changed []string
	t.store.Update(func(st *friends.State) {
		for id, status := range statuses {
			if last, ok := st.LastStatusOfFriends[id]; ok && cmp.Equal(last, status) {
				continue
			}
			st.LastStatusOfFriends[id] = status
			changed = append(changed, id)
		}
	})
	for _, id := range changed {
		t.Send(id, statuses[id])
	}
}

// Observe records a pushed status and forwards it.
func (t *Tracker) Observe(socialID string, status chat.CurrentUserStatus) {
	t.store.Update(func(st *friends.State) { st.LastStatusOfFriends[socialID] = status })
	t.Send(socialID, status)
}

// Send forwards one status without consulting the cache.
func (t *Tracker) Send(socialID string, status chat.CurrentUserStatus) {
	userID, ok := t.mapper.ToLocalID(socialID)
	if !ok {
		return
	}
	presence := chat.PresenceOffline
	if t.IsOnline(userID, status) {
		presence = chat.PresenceOnline
	}
	t.renderer.Send(renderer.UpdateUserPresence{
		UserID:   userID,
		Realm:    status.Realm,
		Position: status.Position,
		Presence: presence,
	})
}

// IsOnline merges the peer registry with the reported presence. Unavailable
// counts as online.
func (t *Tracker) IsOnline(userID string, status chat.CurrentUserStatus) bool {
	if t.peers != nil && t.peers.IsOnline(userID) {
		return true
	}
	return status.Presence != chat.PresenceOffline
}

// OnlineMembers returns the members of socialIDs the session reports online.
func OnlineMembers(session chat.Session, socialIDs []string) []string {
	if session == nil || len(socialIDs) == 0 {
		return nil
	}
	statuses := session.GetUserStatuses(socialIDs...)
	out := make([]string, 0, len(socialIDs))
	for _, id := range socialIDs {
		if s, ok := statuses[id]; ok && s.Presence == chat.PresenceOnline {
			out = append(out, id)
		}
	}
	return out
}

func OnlineCount(session chat.Session, socialIDs []string) int {
	return len(OnlineMembers(session, socialIDs))
}
