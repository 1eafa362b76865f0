package api

import (
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/friends"
)

// Request payloads as sent by the renderer.

type GetFriendsRequest struct {
	Skip         int    `json:"skip" validate:"gte=0"`
	Limit        int    `json:"limit" validate:"gte=0"`
	UserNameOrID string `json:"userNameOrId"`
}

type GetFriendRequestsRequest struct {
	SentSkip      int `json:"sentSkip" validate:"gte=0"`
	SentLimit     int `json:"sentLimit" validate:"gte=0"`
	ReceivedSkip  int `json:"receivedSkip" validate:"gte=0"`
	ReceivedLimit int `json:"receivedLimit" validate:"gte=0"`
}

type GetFriendsWithDirectMessagesRequest struct {
	Skip         int    `json:"skip" validate:"gte=0"`
	Limit        int    `json:"limit" validate:"gte=0"`
	UserNameOrID string `json:"userNameOrId"`
}

type GetPrivateMessagesRequest struct {
	UserID        string `json:"userId" validate:"required"`
	FromMessageID string `json:"fromMessageId"`
	Limit         int    `json:"limit" validate:"gt=0"`
}

type UserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type ChannelRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
}

type MuteChannelRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	Muted     bool   `json:"muted"`
}

type SearchChannelsRequest struct {
	Name  string `json:"name"`
	Limit int    `json:"limit" validate:"gte=0"`
	Since string `json:"since"`
}

type GetChannelInfoRequest struct {
	ChannelIDs []string `json:"channelIds" validate:"dive,required"`
}

type GetChannelMembersRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	Skip      int    `json:"skip" validate:"gte=0"`
	Limit     int    `json:"limit" validate:"gte=0"`
	UserName  string `json:"userName"`
}

type GetChannelMessagesRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	From      string `json:"from"`
	Limit     int    `json:"limit" validate:"gt=0"`
}

type GetJoinedChannelsRequest struct {
	Skip  int `json:"skip" validate:"gte=0"`
	Limit int `json:"limit" validate:"gte=0"`
}

type SendPrivateMessageRequest struct {
	UserID string `json:"userId" validate:"required"`
	Body   string `json:"body" validate:"required"`
}

type SendChannelMessageRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	Body      string `json:"body" validate:"required"`
}

type UpdateFriendshipRequest struct {
	Action   friends.Action `json:"action"`
	UserID   string         `json:"userId" validate:"required"`
	Incoming bool           `json:"incoming"`
}

type SetRoomContextRequest struct {
	Realm    string        `json:"realm" validate:"required"`
	Position chat.Position `json:"position"`
}

type SetPeerOnlineRequest struct {
	UserID string `json:"userId" validate:"required"`
	Online bool   `json:"online"`
}

type SetBlockedRequest struct {
	UserID  string `json:"userId" validate:"required"`
	Blocked bool   `json:"blocked"`
}
