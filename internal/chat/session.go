package chat

import "context"

// EventHandler receives the service's push events. See events.go for the
// concrete event types.
type EventHandler func(evt any)

// Connector opens sessions against the chat service.
type Connector interface {
	Login(ctx context.Context, req LoginRequest) (Session, error)
}

// Session is an authenticated connection to the chat service. All user ids
// exchanged through it are social ids.
type Session interface {
	UserID() string
	IsLoggedIn() bool
	Logout(ctx context.Context) error
	SetProfileInfo(ctx context.Context, info ProfileInfo) error
	AddEventHandler(h EventHandler)

	GetAllFriends() []string
	GetPendingRequests(ctx context.Context) ([]FriendshipRequest, error)
	ApproveFriendshipRequestFrom(ctx context.Context, socialID string) error
	RejectFriendshipRequestFrom(ctx context.Context, socialID string) error
	CancelFriendshipRequestTo(ctx context.Context, socialID string) error
	AddAsFriend(ctx context.Context, socialID string) error
	DeleteFriendshipWith(ctx context.Context, socialID string) error

	GetUserStatuses(socialIDs ...string) map[string]CurrentUserStatus
	SetStatus(ctx context.Context, status UpdateUserStatus) error

	CreateDirectConversation(ctx context.Context, socialID string) (Conversation, error)
	SendMessageTo(ctx context.Context, conversationID, body string) (string, error)
	GetCursorOnMessage(ctx context.Context, conversationID, fromID string, opts CursorOptions) (Cursor, error)
	MarkMessagesAsSeen(ctx context.Context, conversationID string) error
	GetConversationUnreadMessages(conversationID string) []UnreadMessage
	GetAllCurrentConversations() []Conversation
	GetAllCurrentFriendsConversations() []Conversation
	GetAllConversationsWithUnreadMessages() []Conversation

	GetChannel(channelID string) (Conversation, bool)
	GetChannelByName(ctx context.Context, name string) (Conversation, bool, error)
	GetOrCreateChannel(ctx context.Context, name string, members []string) (conv Conversation, created bool, err error)
	JoinChannel(ctx context.Context, channelID string) error
	LeaveChannel(ctx context.Context, channelID string) error
	SearchChannel(ctx context.Context, limit int, term, since string) (SearchResult, error)
	GetMemberInfo(channelID, socialID string) MemberInfo
}
