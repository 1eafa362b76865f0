// Package chat defines the capability surface of the external chat service:
// the session interface, its push events and the error kinds it reports.
package chat

// ConversationType distinguishes direct conversations from group channels.
type ConversationType int

const (
	DirectConversation ConversationType = iota
	ChannelConversation
)

func (t ConversationType) String() string {
	if t == ChannelConversation {
		return "channel"
	}
	return "direct"
}

// Conversation is the service's container for messages. UserIDs are social ids.
type Conversation struct {
	ID                 string
	Type               ConversationType
	Name               string
	Description        string
	UserIDs            []string
	UnreadMessages     []UnreadMessage
	LastEventTimestamp int64
	HasMessages        bool
}

// Counterpart returns the first member that is not ownID. Only meaningful
// for direct conversations.
func (c Conversation) Counterpart(ownID string) (string, bool) {
	for _, id := range c.UserIDs {
		if id != ownID {
			return id, true
		}
	}
	return "", false
}

// UnreadMessage identifies a message not yet marked as seen.
type UnreadMessage struct {
	ID        string
	Timestamp int64
}

// TextMessage is a message as delivered by the service. Sender is a social id.
type TextMessage struct {
	ID        string
	Timestamp int64
	Text      string
	Sender    string
}

// Presence as reported by the service.
type Presence string

const (
	PresenceOnline      Presence = "online"
	PresenceOffline     Presence = "offline"
	PresenceUnavailable Presence = "unavailable"
)

// Realm identifies the world server a user is connected to.
type Realm struct {
	Layer      string `json:"layer"`
	ServerName string `json:"serverName"`
}

// Position is a parcel coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CurrentUserStatus is the status the service reports for a user.
type CurrentUserStatus struct {
	Presence      Presence
	Realm         *Realm
	Position      *Position
	LastActiveAgo int64
}

// UpdateUserStatus is the status the local user publishes about itself.
type UpdateUserStatus struct {
	Presence Presence
	Realm    *Realm
	Position *Position
}

// FriendshipRequest is a pending request. From and To are social ids.
type FriendshipRequest struct {
	From      string
	To        string
	CreatedAt int64
}

// CursorOptions sizes the message window returned by a cursor.
type CursorOptions struct {
	InitialSize int
	Limit       int
}

// Cursor is a window of messages ordered oldest first.
type Cursor interface {
	Messages() []TextMessage
}

// ChannelSummary is one channel search hit.
type ChannelSummary struct {
	ID          string
	Name        string
	Description string
	MemberCount int
}

// SearchResult is a page of channel search hits. NextBatch is empty on the last page.
type SearchResult struct {
	Channels  []ChannelSummary
	NextBatch string
}

// MemberInfo is a channel member's display data.
type MemberInfo struct {
	DisplayName string
	AvatarURL   string
}

// Member is a channel member as listed in membership snapshots.
type Member struct {
	UserID string
	Name   string
}

// Membership of the local user in a channel.
type Membership string

const (
	MembershipJoin  Membership = "join"
	MembershipLeave Membership = "leave"
)

// ProfileInfo is what the local user publishes about itself on login.
type ProfileInfo struct {
	DisplayName string
	AvatarURL   string
}

// AuthLink is one signed link of an authentication chain.
type AuthLink struct {
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// LoginRequest carries the credentials for Connector.Login.
type LoginRequest struct {
	ServerURL       string
	Address         string
	Timestamp       int64
	AuthChain       []AuthLink
	DisablePresence bool
}
