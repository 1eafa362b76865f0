package memory

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/JFJun/kernel/internal/chat"
)

// ErrUnknownConversation is returned for conversation ids the server never issued.
var ErrUnknownConversation = errors.New("memory: unknown conversation")

// Session is one user's connection to a Server.
type Session struct {
	srv      *Server
	userID   string
	loggedIn atomic.Bool

	hmu      sync.RWMutex
	handlers []chat.EventHandler
}

var _ chat.Session = (*Session)(nil)

func (c *Session) UserID() string   { return c.userID }
func (c *Session) IsLoggedIn() bool { return c.loggedIn.Load() }

func (c *Session) AddEventHandler(h chat.EventHandler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Session) dispatch(evt any) {
	if !c.IsLoggedIn() {
		return
	}
	c.hmu.RLock()
	handlers := slices.Clone(c.handlers)
	c.hmu.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}

// begin locks the server and records the call. The caller must unlock.
func (c *Session) begin(method string) error {
	c.srv.mu.Lock()
	c.srv.calls[method]++
	if !c.IsLoggedIn() {
		return chat.ErrNotLoggedIn
	}
	return c.srv.takeFailure(method)
}

func (c *Session) Logout(_ context.Context) error {
	defer c.srv.mu.Unlock()
	if err := c.begin("Logout"); err != nil {
		return err
	}
	c.loggedIn.Store(false)
	if u, ok := c.srv.users[c.userID]; ok {
		u.sessions = slices.DeleteFunc(u.sessions, func(s *Session) bool { return s == c })
	}
	return nil
}

func (c *Session) SetProfileInfo(_ context.Context, info chat.ProfileInfo) error {
	defer c.srv.mu.Unlock()
	if err := c.begin("SetProfileInfo"); err != nil {
		return err
	}
	c.srv.ensureUser(c.userID).displayName = info.DisplayName
	return nil
}

func (c *Session) GetAllFriends() []string {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return slices.Clone(c.srv.ensureUser(c.userID).friends)
}

func (c *Session) GetPendingRequests(_ context.Context) ([]chat.FriendshipRequest, error) {
	defer c.srv.mu.Unlock()
	if err := c.begin("GetPendingRequests"); err != nil {
		return nil, err
	}
	var out []chat.FriendshipRequest
	for _, r := range c.srv.requests {
		if r.From == c.userID || r.To == c.userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Session) ApproveFriendshipRequestFrom(_ context.Context, socialID string) error {
	out, err := c.friendship("ApproveFriendshipRequestFrom", func(s *Server) ([]delivery, error) {
		if !s.removeRequest(socialID, c.userID) {
			return nil, nil
		}
		s.link(s.ensureUser(c.userID), s.ensureUser(socialID))
		return s.toUser(socialID, &chat.FriendshipApproved{SocialID: c.userID}), nil
	})
	deliver(out)
	return err
}

func (c *Session) RejectFriendshipRequestFrom(_ context.Context, socialID string) error {
	out, err := c.friendship("RejectFriendshipRequestFrom", func(s *Server) ([]delivery, error) {
		if !s.removeRequest(socialID, c.userID) {
			return nil, nil
		}
		return s.toUser(socialID, &chat.FriendshipRejected{SocialID: c.userID}), nil
	})
	deliver(out)
	return err
}

func (c *Session) CancelFriendshipRequestTo(_ context.Context, socialID string) error {
	out, err := c.friendship("CancelFriendshipRequestTo", func(s *Server) ([]delivery, error) {
		if !s.removeRequest(c.userID, socialID) {
			return nil, nil
		}
		return s.toUser(socialID, &chat.FriendshipCanceled{SocialID: c.userID}), nil
	})
	deliver(out)
	return err
}

func (c *Session) AddAsFriend(_ context.Context, socialID string) error {
	out, err := c.friendship("AddAsFriend", func(s *Server) ([]delivery, error) {
		if _, ok := s.users[socialID]; !ok {
			return nil, &chat.UnknownUsersError{UserIDs: []string{socialID}}
		}
		for _, r := range s.requests {
			if r.From == c.userID && r.To == socialID {
				return nil, nil
			}
		}
		s.requests = append(s.requests, chat.FriendshipRequest{From: c.userID, To: socialID, CreatedAt: s.now().UnixMilli()})
		return s.toUser(socialID, &chat.FriendshipRequested{SocialID: c.userID}), nil
	})
	deliver(out)
	return err
}

func (c *Session) DeleteFriendshipWith(_ context.Context, socialID string) error {
	out, err := c.friendship("DeleteFriendshipWith", func(s *Server) ([]delivery, error) {
		other, ok := s.users[socialID]
		if !ok || !slices.Contains(other.friends, c.userID) {
			return nil, nil
		}
		s.unlink(s.ensureUser(c.userID), other)
		return s.toUser(socialID, &chat.FriendshipDeleted{SocialID: c.userID}), nil
	})
	deliver(out)
	return err
}

func (c *Session) friendship(method string, fn func(*Server) ([]delivery, error)) ([]delivery, error) {
	defer c.srv.mu.Unlock()
	if err := c.begin(method); err != nil {
		return nil, err
	}
	return fn(c.srv)
}

func (c *Session) GetUserStatuses(socialIDs ...string) map[string]chat.CurrentUserStatus {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	out := make(map[string]chat.CurrentUserStatus, len(socialIDs))
	for _, id := range socialIDs {
		if u, ok := c.srv.users[id]; ok {
			out[id] = u.status
		}
	}
	return out
}

func (c *Session) SetStatus(_ context.Context, status chat.UpdateUserStatus) error {
	if err := c.begin("SetStatus"); err != nil {
		c.srv.mu.Unlock()
		return err
	}
	u := c.srv.ensureUser(c.userID)
	u.status = chat.CurrentUserStatus{Presence: status.Presence, Realm: status.Realm, Position: status.Position}
	out := c.srv.toFriends(u, &chat.StatusChanged{SocialID: c.userID, Status: u.status})
	c.srv.mu.Unlock()
	deliver(out)
	return nil
}

func (c *Session) CreateDirectConversation(_ context.Context, socialID string) (chat.Conversation, error) {
	defer c.srv.mu.Unlock()
	if err := c.begin("CreateDirectConversation"); err != nil {
		return chat.Conversation{}, err
	}
	s := c.srv
	if _, ok := s.users[socialID]; !ok {
		return chat.Conversation{}, &chat.UnknownUsersError{UserIDs: []string{socialID}}
	}
	key := pairKey(c.userID, socialID)
	if id, ok := s.direct[key]; ok {
		return s.view(s.convs[id], c.userID), nil
	}
	conv := &conversation{
		Conversation: chat.Conversation{ID: s.id("!"), Type: chat.DirectConversation, UserIDs: []string{c.userID, socialID}},
		created:      s.now().UnixMilli(),
		seen:         make(map[string]int),
	}
	s.convs[conv.ID] = conv
	s.convOrder = append(s.convOrder, conv.ID)
	s.direct[key] = conv.ID
	return s.view(conv, c.userID), nil
}

func (c *Session) SendMessageTo(_ context.Context, conversationID, body string) (string, error) {
	err := c.begin("SendMessageTo")
	_, known := c.srv.convs[conversationID]
	c.srv.mu.Unlock()
	if err != nil {
		return "", err
	}
	if !known {
		return "", ErrUnknownConversation
	}
	return c.srv.Post(conversationID, c.userID, body)
}

type cursor []chat.TextMessage

func (m cursor) Messages() []chat.TextMessage { return slices.Clone(m) }

// GetCursorOnMessage returns the last opts.Limit messages when fromID is
// empty, otherwise a window of opts.Limit messages centred on fromID.
func (c *Session) GetCursorOnMessage(_ context.Context, conversationID, fromID string, opts chat.CursorOptions) (chat.Cursor, error) {
	defer c.srv.mu.Unlock()
	if err := c.begin("GetCursorOnMessage"); err != nil {
		return nil, err
	}
	conv, ok := c.srv.convs[conversationID]
	if !ok {
		return cursor(nil), nil
	}
	msgs := conv.messages
	limit := opts.Limit
	if limit <= 0 {
		limit = len(msgs)
	}
	if fromID == "" {
		return cursor(msgs[max(0, len(msgs)-limit):]), nil
	}
	idx := slices.IndexFunc(msgs, func(m chat.TextMessage) bool { return m.ID == fromID })
	if idx < 0 {
		return cursor(msgs[max(0, len(msgs)-limit):]), nil
	}
	half := limit / 2
	return cursor(msgs[max(0, idx-half):min(len(msgs), idx+half)]), nil
}

func (c *Session) MarkMessagesAsSeen(_ context.Context, conversationID string) error {
	defer c.srv.mu.Unlock()
	if err := c.begin("MarkMessagesAsSeen"); err != nil {
		return err
	}
	if conv, ok := c.srv.convs[conversationID]; ok {
		conv.seen[c.userID] = len(conv.messages)
	}
	return nil
}

func (c *Session) GetConversationUnreadMessages(conversationID string) []chat.UnreadMessage {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	conv, ok := c.srv.convs[conversationID]
	if !ok {
		return nil
	}
	return c.srv.view(conv, c.userID).UnreadMessages
}

func (c *Session) GetAllCurrentConversations() []chat.Conversation {
	return c.conversations(func(chat.Conversation) bool { return true })
}

func (c *Session) GetAllCurrentFriendsConversations() []chat.Conversation {
	friends := c.GetAllFriends()
	return c.conversations(func(v chat.Conversation) bool {
		if v.Type != chat.DirectConversation {
			return false
		}
		other, ok := v.Counterpart(c.userID)
		return ok && slices.Contains(friends, other)
	})
}

func (c *Session) GetAllConversationsWithUnreadMessages() []chat.Conversation {
	return c.conversations(func(v chat.Conversation) bool { return len(v.UnreadMessages) > 0 })
}

func (c *Session) conversations(keep func(chat.Conversation) bool) []chat.Conversation {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	var out []chat.Conversation
	for _, id := range c.srv.convOrder {
		conv := c.srv.convs[id]
		if !slices.Contains(conv.UserIDs, c.userID) {
			continue
		}
		if v := c.srv.view(conv, c.userID); keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (c *Session) GetChannel(channelID string) (chat.Conversation, bool) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	conv, ok := c.srv.convs[channelID]
	if !ok || conv.Type != chat.ChannelConversation {
		return chat.Conversation{}, false
	}
	return c.srv.view(conv, c.userID), true
}

func (c *Session) GetChannelByName(_ context.Context, name string) (chat.Conversation, bool, error) {
	defer c.srv.mu.Unlock()
	if err := c.begin("GetChannelByName"); err != nil {
		return chat.Conversation{}, false, err
	}
	id, ok := c.srv.channelsByName[name]
	if !ok {
		return chat.Conversation{}, false, nil
	}
	return c.srv.view(c.srv.convs[id], c.userID), true, nil
}

func (c *Session) GetOrCreateChannel(_ context.Context, name string, members []string) (chat.Conversation, bool, error) {
	if err := c.begin("GetOrCreateChannel"); err != nil {
		c.srv.mu.Unlock()
		return chat.Conversation{}, false, err
	}
	s := c.srv
	if id, ok := s.channelsByName[name]; ok {
		v := s.view(s.convs[id], c.userID)
		s.mu.Unlock()
		return v, false, nil
	}
	if !channelNamePattern.MatchString(name) {
		s.mu.Unlock()
		return chat.Conversation{}, false, &chat.ChannelsError{Kind: chat.ChannelsErrorBadRegex, Name: name}
	}
	for _, prefix := range s.reserved {
		if strings.HasPrefix(name, prefix) {
			s.mu.Unlock()
			return chat.Conversation{}, false, &chat.ChannelsError{Kind: chat.ChannelsErrorReservedName, Name: name}
		}
	}
	conv := s.newChannel(name)
	conv.UserIDs = append(conv.UserIDs, c.userID)
	for _, m := range members {
		if m != c.userID && !slices.Contains(conv.UserIDs, m) {
			conv.UserIDs = append(conv.UserIDs, m)
		}
	}
	v := s.view(conv, c.userID)
	out := s.toUser(c.userID, &chat.ChannelMembership{Conversation: v, Membership: chat.MembershipJoin})
	s.mu.Unlock()
	deliver(out)
	return v, true, nil
}

func (c *Session) JoinChannel(_ context.Context, channelID string) error {
	return c.membership("JoinChannel", channelID, chat.MembershipJoin)
}

func (c *Session) LeaveChannel(_ context.Context, channelID string) error {
	return c.membership("LeaveChannel", channelID, chat.MembershipLeave)
}

func (c *Session) membership(method, channelID string, m chat.Membership) error {
	if err := c.begin(method); err != nil {
		c.srv.mu.Unlock()
		return err
	}
	s := c.srv
	conv, ok := s.convs[channelID]
	if !ok || conv.Type != chat.ChannelConversation {
		s.mu.Unlock()
		return ErrUnknownConversation
	}
	member := slices.Contains(conv.UserIDs, c.userID)
	switch {
	case m == chat.MembershipJoin && !member:
		conv.UserIDs = append(conv.UserIDs, c.userID)
	case m == chat.MembershipLeave && member:
		conv.UserIDs = slices.DeleteFunc(conv.UserIDs, func(id string) bool { return id == c.userID })
	}
	out := s.toUser(c.userID, &chat.ChannelMembership{Conversation: s.view(conv, c.userID), Membership: m})
	members := make([]chat.Member, 0, len(conv.UserIDs))
	for _, id := range conv.UserIDs {
		members = append(members, chat.Member{UserID: id, Name: s.ensureUser(id).displayName})
	}
	for _, id := range conv.UserIDs {
		out = append(out, s.toUser(id, &chat.ChannelMembers{Conversation: s.view(conv, id), Members: members})...)
	}
	s.mu.Unlock()
	deliver(out)
	return nil
}

func (c *Session) SearchChannel(_ context.Context, limit int, term, since string) (chat.SearchResult, error) {
	defer c.srv.mu.Unlock()
	if err := c.begin("SearchChannel"); err != nil {
		return chat.SearchResult{}, err
	}
	term = strings.ToLower(term)
	var hits []chat.ChannelSummary
	for _, id := range c.srv.convOrder {
		conv := c.srv.convs[id]
		if conv.Type != chat.ChannelConversation || !strings.Contains(strings.ToLower(conv.Name), term) {
			continue
		}
		hits = append(hits, chat.ChannelSummary{ID: conv.ID, Name: conv.Name, Description: conv.Description, MemberCount: len(conv.UserIDs)})
	}
	offset, _ := strconv.Atoi(since)
	offset = min(max(offset, 0), len(hits))
	end := len(hits)
	if limit > 0 {
		end = min(offset+limit, len(hits))
	}
	res := chat.SearchResult{Channels: hits[offset:end]}
	if end < len(hits) {
		res.NextBatch = strconv.Itoa(end)
	}
	return res, nil
}

func (c *Session) GetMemberInfo(_, socialID string) chat.MemberInfo {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if u, ok := c.srv.users[socialID]; ok {
		return chat.MemberInfo{DisplayName: u.displayName}
	}
	return chat.MemberInfo{}
}
