package renderer

import "github.com/JFJun/kernel/internal/chat"

// ChatMessageType tags chat messages for the renderer.
type ChatMessageType string

const (
	MessagePrivate ChatMessageType = "PRIVATE"
	MessagePublic  ChatMessageType = "PUBLIC"
	MessageSystem  ChatMessageType = "SYSTEM"
)

// ChannelErrorCode is the closed set of channel failures reported to the renderer.
type ChannelErrorCode int

const (
	ChannelErrorUnknown ChannelErrorCode = iota
	ChannelErrorLimitExceeded
	ChannelErrorAlreadyExists
	ChannelErrorWrongFormat
	ChannelErrorReservedName
)

func (c ChannelErrorCode) String() string {
	switch c {
	case ChannelErrorLimitExceeded:
		return "LIMIT_EXCEEDED"
	case ChannelErrorAlreadyExists:
		return "ALREADY_EXISTS"
	case ChannelErrorWrongFormat:
		return "WRONG_FORMAT"
	case ChannelErrorReservedName:
		return "RESERVED_NAME"
	default:
		return "UNKNOWN"
	}
}

// NotificationType of a ShowNotification payload.
type NotificationType int

const NotificationGeneric NotificationType = 0

type ChatMessage struct {
	MessageID   string          `json:"messageId"`
	MessageType ChatMessageType `json:"messageType"`
	Timestamp   int64           `json:"timestamp"`
	Body        string          `json:"body"`
	Sender      string          `json:"sender,omitempty"`
	SenderName  string          `json:"senderName,omitempty"`
	Recipient   string          `json:"recipient,omitempty"`
}

type ChannelInfo struct {
	ChannelID      string `json:"channelId"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	UnseenMessages int    `json:"unseenMessages"`
	LastMessageAt  int64  `json:"lastMessageTimestamp,omitempty"`
	MemberCount    int    `json:"memberCount"`
	Joined         bool   `json:"joined"`
	Muted          bool   `json:"muted"`
}

type ChannelMember struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`
}

type UnseenPrivate struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

type UnseenChannel struct {
	ChannelID string `json:"channelId"`
	Count     int    `json:"count"`
}

type Profile struct {
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	Face256        string `json:"face256"`
	HasClaimedName bool   `json:"hasClaimedName"`
}

type FriendWithDirectMessages struct {
	UserID               string `json:"userId"`
	LastMessageTimestamp int64  `json:"lastMessageTimestamp"`
}

type AddFriends struct {
	Friends      []string `json:"friends"`
	TotalFriends int      `json:"totalFriends"`
}

type AddFriendRequests struct {
	RequestedTo                 []string `json:"requestedTo"`
	RequestedFrom               []string `json:"requestedFrom"`
	TotalReceivedFriendRequests int      `json:"totalReceivedFriendRequests"`
	TotalSentFriendRequests     int      `json:"totalSentFriendRequests"`
}

type AddFriendsWithDirectMessages struct {
	CurrentFriendsWithDirectMessages []FriendWithDirectMessages `json:"currentFriendsWithDirectMessages"`
	TotalFriendsWithDirectMessages   int                        `json:"totalFriendsWithDirectMessages"`
}

type UpdateUserPresence struct {
	UserID   string         `json:"userId"`
	Realm    *chat.Realm    `json:"realm,omitempty"`
	Position *chat.Position `json:"position,omitempty"`
	Presence chat.Presence  `json:"presence"`
}

type AddChatMessages struct {
	Messages []ChatMessage `json:"messages"`
}

type AddMessageToChatWindow struct {
	ChatMessage
}

type UpdateChannelInfo struct {
	Channels []ChannelInfo `json:"channelInfoPayload"`
}

type UpdateChannelMembers struct {
	ChannelID string          `json:"channelId"`
	Members   []ChannelMember `json:"members"`
}

type UpdateTotalUnseenMessages struct {
	Total int `json:"total"`
}

type UpdateTotalUnseenMessagesByUser struct {
	UnseenPrivateMessages []UnseenPrivate `json:"unseenPrivateMessages"`
}

type UpdateTotalUnseenMessagesByChannel struct {
	UnseenChannelMessages []UnseenChannel `json:"unseenChannelMessages"`
}

type UpdateUserUnseenMessages struct {
	UserID string `json:"userId"`
	Total  int    `json:"total"`
}

type JoinChannelConfirmation struct {
	Channels []ChannelInfo `json:"channelInfoPayload"`
}

type ChannelError struct {
	ChannelID string           `json:"channelId"`
	ErrorCode ChannelErrorCode `json:"errorCode"`
}

type JoinChannelError struct{ ChannelError }
type LeaveChannelError struct{ ChannelError }
type MuteChannelError struct{ ChannelError }

type UpdateChannelSearchResults struct {
	Since    string        `json:"since,omitempty"`
	Channels []ChannelInfo `json:"channels"`
}

type ShowNotification struct {
	Type          NotificationType `json:"type"`
	Message       string           `json:"message"`
	ButtonMessage string           `json:"buttonMessage"`
	Timer         int              `json:"timer"`
}

type UpdateFriendshipStatus struct {
	Action int    `json:"action"`
	UserID string `json:"userId"`
}

type UpdateTotalFriendRequests struct {
	TotalReceivedRequests int `json:"totalReceivedRequests"`
	TotalSentRequests     int `json:"totalSentRequests"`
}

type UpdateTotalFriends struct {
	TotalFriends int `json:"totalFriends"`
}

type AddUserProfilesToCatalog struct {
	Profiles []Profile `json:"profiles"`
}

type InitializeFriends struct {
	TotalReceivedRequests int `json:"totalReceivedRequests"`
}

type InitializeChat struct {
	TotalUnseenMessages int `json:"totalUnseenMessages"`
}

func (AddFriends) Method() string                         { return "AddFriends" }
func (AddFriendRequests) Method() string                  { return "AddFriendRequests" }
func (AddFriendsWithDirectMessages) Method() string       { return "AddFriendsWithDirectMessages" }
func (UpdateUserPresence) Method() string                 { return "UpdateUserPresence" }
func (AddChatMessages) Method() string                    { return "AddChatMessages" }
func (AddMessageToChatWindow) Method() string             { return "AddMessageToChatWindow" }
func (UpdateChannelInfo) Method() string                  { return "UpdateChannelInfo" }
func (UpdateChannelMembers) Method() string               { return "UpdateChannelMembers" }
func (UpdateTotalUnseenMessages) Method() string          { return "UpdateTotalUnseenMessages" }
func (UpdateTotalUnseenMessagesByUser) Method() string    { return "UpdateTotalUnseenMessagesByUser" }
func (UpdateTotalUnseenMessagesByChannel) Method() string { return "UpdateTotalUnseenMessagesByChannel" }
func (UpdateUserUnseenMessages) Method() string           { return "UpdateUserUnseenMessages" }
func (JoinChannelConfirmation) Method() string            { return "JoinChannelConfirmation" }
func (JoinChannelError) Method() string                   { return "JoinChannelError" }
func (LeaveChannelError) Method() string                  { return "LeaveChannelError" }
func (MuteChannelError) Method() string                   { return "MuteChannelError" }
func (UpdateChannelSearchResults) Method() string         { return "UpdateChannelSearchResults" }
func (ShowNotification) Method() string                   { return "ShowNotification" }
func (UpdateFriendshipStatus) Method() string             { return "UpdateFriendshipStatus" }
func (UpdateTotalFriendRequests) Method() string          { return "UpdateTotalFriendRequests" }
func (UpdateTotalFriends) Method() string                 { return "UpdateTotalFriends" }
func (AddUserProfilesToCatalog) Method() string           { return "AddUserProfilesToCatalog" }
func (InitializeFriends) Method() string                  { return "InitializeFriends" }
func (InitializeChat) Method() string                     { return "InitializeChat" }
