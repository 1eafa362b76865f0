// Package unread derives unread-message counts from the chat session. Every
// function here is a read: calling it twice yields the same answer.
package unread

import (
	"slices"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/renderer"
)

// MuteChecker reports channel mute state.
type MuteChecker interface {
	IsMuted(channelID string) bool
}

// FeatureFlags is the subset of the configuration consulted here.
type FeatureFlags interface {
	ChannelsEnabled() bool
}

// Accounting computes unread totals with the mute and channel-enablement
// exclusions applied.
type Accounting struct {
	store  *friends.Store
	mapper *identity.Mapper
	mutes  MuteChecker
	flags  FeatureFlags
}

var _ friends.UnseenCounter = (*Accounting)(nil)

func New(store *friends.Store, mapper *identity.Mapper, mutes MuteChecker, flags FeatureFlags) *Accounting {
	return &Accounting{store: store, mapper: mapper, mutes: mutes, flags: flags}
}

// TotalUnseen sums unread messages over conversations with unread activity.
// Channels count unless channels are disabled or the channel is muted;
// direct conversations count only when the counterpart is in friendIDs.
func (a *Accounting) TotalUnseen(ownID string, friendIDs []string) int {
	session := a.store.Session()
	if session == nil {
		return 0
	}
	channelsDisabled := !a.flags.ChannelsEnabled()
	total := 0
	for _, conv := range session.GetAllConversationsWithUnreadMessages() {
		switch conv.Type {
		case chat.ChannelConversation:
			if channelsDisabled || a.mutes.IsMuted(conv.ID) {
				continue
			}
		case chat.DirectConversation:
			socialID, ok := conv.Counterpart(ownID)
			if !ok {
				continue
			}
			userID, ok := a.mapper.ToLocalID(socialID)
			if !ok || !slices.Contains(friendIDs, userID) {
				continue
			}
		}
		total += len(conv.UnreadMessages)
	}
	return total
}

// Total is TotalUnseen for the current session and friend list.
func (a *Accounting) Total() int {
	snap := a.store.Snapshot()
	if snap.Client == nil {
		return 0
	}
	return a.TotalUnseen(snap.Client.UserID(), snap.Friends)
}

// UnseenByChannel lists every joined channel; muted ones count zero.
func (a *Accounting) UnseenByChannel() []renderer.UnseenChannel {
	out := []renderer.UnseenChannel{}
	if !a.flags.ChannelsEnabled() {
		return out
	}
	for _, conv := range friends.Channels(a.store.Snapshot(), a.mapper) {
		count := len(conv.UnreadMessages)
		if a.mutes.IsMuted(conv.ID) {
			count = 0
		}
		out = append(out, renderer.UnseenChannel{ChannelID: conv.ID, Count: count})
	}
	return out
}

// UnseenByUser lists every friend conversation that has messages, keyed by
// the counterpart's local id.
func (a *Accounting) UnseenByUser() []renderer.UnseenPrivate {
	snap := a.store.Snapshot()
	out := []renderer.UnseenPrivate{}
	if snap.Client == nil {
		return out
	}
	ownID, _ := a.mapper.ToLocalID(snap.Client.UserID())
	for _, conv := range friends.FriendsConversationsWithMessages(snap, a.mapper) {
		userID, ok := conv.Counterpart(ownID)
		if !ok {
			continue
		}
		out = append(out, renderer.UnseenPrivate{UserID: userID, Count: len(conv.UnreadMessages)})
	}
	return out
}

// UserUnseen is the unread count of a single conversation.
func (a *Accounting) UserUnseen(conversationID string) int {
	session := a.store.Session()
	if session == nil {
		return 0
	}
	return len(session.GetConversationUnreadMessages(conversationID))
}
