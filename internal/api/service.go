// Package api is the request surface the renderer calls into. Each
// operation answers by sending payloads to the renderer.
package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/JFJun/kernel/internal/channels"
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/dispatch"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/peers"
	"github.com/JFJun/kernel/internal/presence"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/unread"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidUserID rejects a user id that does not map to a social id and back.
var ErrInvalidUserID = errors.New("api: invalid user id")

type Service struct {
	store    *friends.Store
	mapper   *identity.Mapper
	renderer renderer.Renderer
	catalog  *profiles.Catalog
	tracker  *presence.Tracker
	friends  *friends.Controller
	channels *channels.Manager
	unread   *unread.Accounting
	room     *presence.RoomContext
	peers    *peers.Registry
	blocked  *dispatch.Blocklist
	logger   *zap.Logger
	now      func() time.Time
}

// Deps groups the Service's collaborators.
type Deps struct {
	Store    *friends.Store
	Mapper   *identity.Mapper
	Renderer renderer.Renderer
	Catalog  *profiles.Catalog
	Tracker  *presence.Tracker
	Friends  *friends.Controller
	Channels *channels.Manager
	Unread   *unread.Accounting
	Room     *presence.RoomContext
	Peers    *peers.Registry
	Blocked  *dispatch.Blocklist
	Logger   *zap.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		store:    d.Store,
		mapper:   d.Mapper,
		renderer: d.Renderer,
		catalog:  d.Catalog,
		tracker:  d.Tracker,
		friends:  d.Friends,
		channels: d.Channels,
		unread:   d.Unread,
		room:     d.Room,
		peers:    d.Peers,
		blocked:  d.Blocked,
		logger:   d.Logger.Named("api"),
		now:      time.Now,
	}
}

func (s *Service) session() (chat.Session, error) {
	session := s.store.Session()
	if session == nil {
		return nil, chat.ErrNotLoggedIn
	}
	return session, nil
}

func (s *Service) socialIDs(userIDs []string) []string {
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, s.mapper.ToSocialID(id))
	}
	return out
}

// GetFriends publishes a page of friends matching the filter. The total is
// always the full friend count.
func (s *Service) GetFriends(_ context.Context, req GetFriendsRequest) error {
	snap := s.store.Snapshot()
	filtered := s.catalog.FilterIDs(snap.Friends, req.UserNameOrID)
	lo, hi := channels.Page(len(filtered), req.Skip, req.Limit)
	ids := filtered[lo:hi]

	profs := make([]profiles.Avatar, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.catalog.Get(id); ok {
			profs = append(profs, a)
		}
	}
	s.catalog.AddToCatalog(profs...)
	s.renderer.Send(renderer.AddFriends{Friends: ids, TotalFriends: friends.TotalFriends(snap)})

	if snap.Client != nil {
		s.tracker.UpdateStatus(snap.Client, s.socialIDs(ids)...)
	}
	return nil
}

// GetFriendRequests publishes a page of sent and received requests.
func (s *Service) GetFriendRequests(_ context.Context, req GetFriendRequestsRequest) error {
	snap := s.store.Snapshot()
	lo, hi := channels.Page(len(snap.FromFriendRequests), req.ReceivedSkip, req.ReceivedLimit)
	from := snap.FromFriendRequests[lo:hi]
	lo, hi = channels.Page(len(snap.ToFriendRequests), req.SentSkip, req.SentLimit)
	to := snap.ToFriendRequests[lo:hi]

	payload := renderer.AddFriendRequests{
		RequestedTo:   requestIDs(to),
		RequestedFrom: requestIDs(from),
	}
	payload.TotalReceivedFriendRequests, payload.TotalSentFriendRequests = friends.TotalFriendRequests(snap)

	s.catalog.AddToCatalog(s.catalog.Filter(slices.Concat(payload.RequestedTo, payload.RequestedFrom), "")...)
	s.renderer.Send(payload)
	return nil
}

func requestIDs(reqs []friends.FriendRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.UserID)
	}
	return out
}

// GetFriendsWithDirectMessages publishes friends that have a direct
// conversation with messages.
func (s *Service) GetFriendsWithDirectMessages(_ context.Context, req GetFriendsWithDirectMessagesRequest) error {
	snap := s.store.Snapshot()
	if snap.Client == nil {
		return chat.ErrNotLoggedIn
	}
	convs := friends.FriendsConversationsWithMessages(snap, s.mapper)
	if len(convs) == 0 {
		return nil
	}
	ownID, _ := s.mapper.ToLocalID(snap.Client.UserID())

	lo, hi := channels.Page(len(convs), req.Skip, req.Limit)
	byUser := make(map[string]chat.Conversation, hi-lo)
	ids := make([]string, 0, hi-lo)
	for _, c := range convs[lo:hi] {
		if userID, ok := c.Counterpart(ownID); ok {
			byUser[userID] = c
			ids = append(ids, userID)
		}
	}

	filtered := s.catalog.Filter(ids, req.UserNameOrID)
	payload := renderer.AddFriendsWithDirectMessages{
		CurrentFriendsWithDirectMessages: make([]renderer.FriendWithDirectMessages, 0, len(filtered)),
		TotalFriendsWithDirectMessages:   len(convs),
	}
	var avatars []profiles.Avatar
	var filteredIDs []string
	for _, a := range filtered {
		filteredIDs = append(filteredIDs, a.UserID)
		c, ok := byUser[a.UserID]
		if !ok {
			continue
		}
		avatars = append(avatars, a)
		payload.CurrentFriendsWithDirectMessages = append(payload.CurrentFriendsWithDirectMessages,
			renderer.FriendWithDirectMessages{UserID: a.UserID, LastMessageTimestamp: c.LastEventTimestamp})
	}
	s.catalog.AddToCatalog(avatars...)
	s.renderer.Send(payload)
	s.tracker.UpdateStatus(snap.Client, s.socialIDs(filteredIDs)...)
	return nil
}

// GetPrivateMessages publishes up to limit messages with userID. With a
// fromMessageID, the messages preceding it are returned.
func (s *Service) GetPrivateMessages(ctx context.Context, req GetPrivateMessagesRequest) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	convID, err := s.friends.ConversationID(ctx, req.UserID)
	if err != nil {
		return err
	}
	limit := req.Limit
	if req.FromMessageID != "" {
		limit *= 2
	}
	cursor, err := session.GetCursorOnMessage(ctx, convID, req.FromMessageID, chat.CursorOptions{InitialSize: limit, Limit: limit})
	if err != nil {
		return fmt.Errorf("private messages cursor: %w", err)
	}
	messages := cursor.Messages()
	if req.FromMessageID != "" {
		if i := slices.IndexFunc(messages, func(m chat.TextMessage) bool { return m.ID == req.FromMessageID }); i >= 0 {
			messages = messages[:i]
		}
	}

	ownSocial := session.UserID()
	ownID, _ := s.mapper.ToLocalID(ownSocial)
	payload := renderer.AddChatMessages{Messages: make([]renderer.ChatMessage, 0, len(messages))}
	for _, m := range messages {
		sender, recipient := req.UserID, ownID
		if m.Sender == ownSocial {
			sender, recipient = ownID, req.UserID
		}
		payload.Messages = append(payload.Messages, renderer.ChatMessage{
			MessageID:   m.ID,
			MessageType: renderer.MessagePrivate,
			Timestamp:   m.Timestamp,
			Body:        m.Text,
			Sender:      sender,
			Recipient:   recipient,
		})
	}
	s.renderer.Send(payload)
	return nil
}

// MarkPrivateSeen marks the conversation with userID read.
func (s *Service) MarkPrivateSeen(ctx context.Context, req UserRequest) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	convID, err := s.friends.ConversationID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if len(session.GetConversationUnreadMessages(convID)) > 0 {
		if err := session.MarkMessagesAsSeen(ctx, convID); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
	}
	s.renderer.Send(renderer.UpdateUserUnseenMessages{UserID: req.UserID, Total: 0})
	s.renderer.Send(renderer.UpdateTotalUnseenMessages{Total: s.unread.Total()})
	return nil
}

// GetUnseenMessagesByUser publishes the per-friend unread breakdown.
func (s *Service) GetUnseenMessagesByUser(context.Context) error {
	byUser := s.unread.UnseenByUser()
	if len(byUser) == 0 {
		return nil
	}
	s.renderer.Send(renderer.UpdateTotalUnseenMessagesByUser{UnseenPrivateMessages: byUser})
	return nil
}

// GetUnseenMessagesByChannel publishes the per-channel unread breakdown.
func (s *Service) GetUnseenMessagesByChannel(context.Context) error {
	s.renderer.Send(renderer.UpdateTotalUnseenMessagesByChannel{UnseenChannelMessages: s.unread.UnseenByChannel()})
	return nil
}

// SendPrivateMessage sends body to a friend and echoes it to the chat window.
func (s *Service) SendPrivateMessage(ctx context.Context, req SendPrivateMessageRequest) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	social, ok := friends.FindByUserID(s.store.Snapshot(), req.UserID)
	if !ok {
		return fmt.Errorf("send to %s: %w", req.UserID, friends.ErrUserNotLoaded)
	}
	conv, err := session.CreateDirectConversation(ctx, social.SocialID)
	if err != nil {
		return fmt.Errorf("direct conversation with %s: %w", req.UserID, err)
	}
	id, err := session.SendMessageTo(ctx, conv.ID, req.Body)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	ownID, _ := s.mapper.ToLocalID(session.UserID())
	s.renderer.Send(renderer.AddMessageToChatWindow{ChatMessage: renderer.ChatMessage{
		MessageID:   id,
		MessageType: renderer.MessagePrivate,
		Timestamp:   s.now().UnixMilli(),
		Body:        req.Body,
		Sender:      ownID,
		Recipient:   req.UserID,
	}})
	return nil
}

// SendChannelMessage posts body to a channel.
func (s *Service) SendChannelMessage(ctx context.Context, req SendChannelMessageRequest) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	ownID, _ := s.mapper.ToLocalID(session.UserID())
	s.channels.SendChannelMessage(ctx, req.ChannelID, renderer.ChatMessage{
		MessageID:   uuid.NewString(),
		MessageType: renderer.MessagePublic,
		Timestamp:   s.now().UnixMilli(),
		Body:        req.Body,
		Sender:      ownID,
		Recipient:   req.ChannelID,
	})
	return nil
}

// UpdateFriendship applies a friendship action requested by the renderer.
func (s *Service) UpdateFriendship(ctx context.Context, req UpdateFriendshipRequest) error {
	if _, err := s.session(); err != nil {
		return err
	}
	if local, ok := s.mapper.ToLocalID(s.mapper.ToSocialID(req.UserID)); !ok || local != req.UserID {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, req.UserID)
	}
	s.friends.Remember(req.UserID)
	if _, err := s.catalog.EnsureProfile(ctx, req.UserID); err != nil {
		s.logger.Warn("profile unavailable", zap.String("user_id", req.UserID), zap.Error(err))
	}
	s.friends.UpdateFriendship(ctx, req.Action, req.UserID, req.Incoming)
	return nil
}

func (s *Service) JoinOrCreateChannel(ctx context.Context, req ChannelRequest) error {
	s.channels.JoinOrCreate(ctx, req.ChannelID)
	return nil
}

func (s *Service) JoinChannel(ctx context.Context, req ChannelRequest) error {
	s.channels.Join(ctx, req.ChannelID)
	return nil
}

func (s *Service) CreateChannel(ctx context.Context, req ChannelRequest) error {
	s.channels.Create(ctx, req.ChannelID)
	return nil
}

func (s *Service) LeaveChannel(ctx context.Context, req ChannelRequest) error {
	s.channels.Leave(ctx, req.ChannelID)
	return nil
}

func (s *Service) MuteChannel(_ context.Context, req MuteChannelRequest) error {
	s.channels.Mute(req.ChannelID, req.Muted)
	return nil
}

func (s *Service) MarkChannelSeen(ctx context.Context, req ChannelRequest) error {
	s.channels.MarkChannelSeen(ctx, req.ChannelID)
	return nil
}

func (s *Service) SearchChannels(ctx context.Context, req SearchChannelsRequest) error {
	s.channels.Search(ctx, req.Name, req.Limit, req.Since)
	return nil
}

func (s *Service) GetChannelInfo(_ context.Context, req GetChannelInfoRequest) error {
	s.channels.GetChannelInfo(req.ChannelIDs)
	return nil
}

func (s *Service) GetChannelMembers(_ context.Context, req GetChannelMembersRequest) error {
	s.channels.GetChannelMembers(req.ChannelID, req.Skip, req.Limit, req.UserName)
	return nil
}

func (s *Service) GetChannelMessages(ctx context.Context, req GetChannelMessagesRequest) error {
	s.channels.GetChannelMessages(ctx, req.ChannelID, req.From, req.Limit)
	return nil
}

func (s *Service) GetJoinedChannels(_ context.Context, req GetJoinedChannelsRequest) error {
	s.channels.GetJoinedChannels(req.Skip, req.Limit)
	return nil
}

// SetRoomContext records the realm and parcel the user moved to.
func (s *Service) SetRoomContext(_ context.Context, req SetRoomContextRequest) error {
	s.room.Set(req.Realm, req.Position)
	return nil
}

// SetPeerOnline feeds the peer liveness registry.
func (s *Service) SetPeerOnline(_ context.Context, req SetPeerOnlineRequest) error {
	s.peers.SetOnline(req.UserID, req.Online)
	return nil
}

// SetBlocked blocks or unblocks messages from a user.
func (s *Service) SetBlocked(_ context.Context, req SetBlockedRequest) error {
	return s.blocked.Set(req.UserID, req.Blocked)
}
