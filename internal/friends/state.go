// Package friends owns the canonical friendship state of a session and the
// state machine that reconciles it with the chat service.
package friends

import (
	"maps"
	"slices"

	"github.com/JFJun/kernel/internal/chat"
)

// FriendRequest is a pending request keyed by the counterpart's local id.
type FriendRequest struct {
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
}

// SocialData correlates a local id with its social id and, once known, the
// direct conversation with that user.
type SocialData struct {
	UserID         string
	SocialID       string
	ConversationID string
}

// State is the canonical friendship state. A user id never appears both in
// Friends and in a request list, and request lists hold no duplicates.
type State struct {
	Friends             []string
	FromFriendRequests  []FriendRequest
	ToFriendRequests    []FriendRequest
	SocialInfo          map[string]SocialData
	LastStatusOfFriends map[string]chat.CurrentUserStatus
	Client              chat.Session
}

// Clone returns a copy that shares only the session handle.
func (s State) Clone() State {
	out := State{
		Friends:             slices.Clone(s.Friends),
		FromFriendRequests:  slices.Clone(s.FromFriendRequests),
		ToFriendRequests:    slices.Clone(s.ToFriendRequests),
		SocialInfo:          maps.Clone(s.SocialInfo),
		LastStatusOfFriends: maps.Clone(s.LastStatusOfFriends),
		Client:              s.Client,
	}
	if out.SocialInfo == nil {
		out.SocialInfo = make(map[string]SocialData)
	}
	if out.LastStatusOfFriends == nil {
		out.LastStatusOfFriends = make(map[string]chat.CurrentUserStatus)
	}
	return out
}

// Totals are the counters derived from the lists.
type Totals struct {
	Friends          int
	ReceivedRequests int
	SentRequests     int
}

func (s State) Totals() Totals {
	return Totals{
		Friends:          len(s.Friends),
		ReceivedRequests: len(s.FromFriendRequests),
		SentRequests:     len(s.ToFriendRequests),
	}
}

func indexOfRequest(reqs []FriendRequest, userID string) int {
	return slices.IndexFunc(reqs, func(r FriendRequest) bool { return r.UserID == userID })
}

func removeRequest(reqs []FriendRequest, userID string) ([]FriendRequest, bool) {
	i := indexOfRequest(reqs, userID)
	if i < 0 {
		return reqs, false
	}
	return slices.Delete(reqs, i, i+1), true
}
