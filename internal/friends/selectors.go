package friends

import (
	"slices"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/identity"
)

// Selectors are read-only projections over a State snapshot. Conversation
// user ids are returned as local ids.

// Conversations returns the session's joined conversations of type t.
func Conversations(s State, m *identity.Mapper, t chat.ConversationType) []chat.Conversation {
	if s.Client == nil {
		return nil
	}
	return localize(m, s.Client.GetAllCurrentConversations(), func(c chat.Conversation) bool { return c.Type == t })
}

// Channels returns the joined channels.
func Channels(s State, m *identity.Mapper) []chat.Conversation {
	return Conversations(s, m, chat.ChannelConversation)
}

// AllConversationsWithMessages returns every joined conversation that has messages.
func AllConversationsWithMessages(s State, m *identity.Mapper) []chat.Conversation {
	if s.Client == nil {
		return nil
	}
	return localize(m, s.Client.GetAllCurrentConversations(), func(c chat.Conversation) bool { return c.HasMessages })
}

// FriendsConversationsWithMessages returns direct conversations with friends that have messages.
func FriendsConversationsWithMessages(s State, m *identity.Mapper) []chat.Conversation {
	if s.Client == nil {
		return nil
	}
	return localize(m, s.Client.GetAllCurrentFriendsConversations(), func(c chat.Conversation) bool { return c.HasMessages })
}

// TotalFriendRequests returns the received and sent request counts.
func TotalFriendRequests(s State) (received, sent int) {
	return len(s.FromFriendRequests), len(s.ToFriendRequests)
}

func TotalFriends(s State) int { return len(s.Friends) }

func IsFriend(s State, userID string) bool { return slices.Contains(s.Friends, userID) }

// FindByUserID returns the social data recorded for a local id.
func FindByUserID(s State, userID string) (SocialData, bool) {
	for _, d := range s.SocialInfo {
		if d.UserID == userID {
			return d, true
		}
	}
	return SocialData{}, false
}

func localize(m *identity.Mapper, convs []chat.Conversation, keep func(chat.Conversation) bool) []chat.Conversation {
	out := make([]chat.Conversation, 0, len(convs))
	for _, c := range convs {
		if !keep(c) {
			continue
		}
		ids := make([]string, 0, len(c.UserIDs))
		for _, id := range c.UserIDs {
			if local, ok := m.ToLocalID(id); ok {
				ids = append(ids, local)
			} else {
				ids = append(ids, id)
			}
		}
		c.UserIDs = ids
		out = append(out, c)
	}
	return out
}
