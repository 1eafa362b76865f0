// Package memory is an in-process chat service. It backs the "memory" chat
// driver and serves as the session double in tests.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JFJun/kernel/internal/chat"
)

var channelNamePattern = regexp.MustCompile(`^[a-z0-9-]{3,20}$`)

// Server holds the shared world: users, friendships, requests and
// conversations. Events are delivered synchronously to the handlers of the
// affected users' sessions, outside the server lock.
type Server struct {
	mu             sync.Mutex
	domain         string
	reserved       []string
	users          map[string]*user
	requests       []chat.FriendshipRequest
	convs          map[string]*conversation
	convOrder      []string
	direct         map[string]string
	channelsByName map[string]string
	nextID         int
	failures       map[string]error
	calls          map[string]int
	now            func() time.Time
}

type user struct {
	id          string
	displayName string
	friends     []string
	status      chat.CurrentUserStatus
	sessions    []*Session
}

type conversation struct {
	chat.Conversation
	created  int64
	messages []chat.TextMessage
	seen     map[string]int
}

type delivery struct {
	session *Session
	evt     any
}

// NewServer creates an empty server whose social ids live on domain.
func NewServer(domain string) *Server {
	return &Server{
		domain:         domain,
		reserved:       []string{"nearby", "system"},
		users:          make(map[string]*user),
		convs:          make(map[string]*conversation),
		direct:         make(map[string]string),
		channelsByName: make(map[string]string),
		failures:       make(map[string]error),
		calls:          make(map[string]int),
		now:            time.Now,
	}
}

// SocialID returns the social id the server assigns to a wallet address.
func (s *Server) SocialID(address string) string {
	return "@" + strings.ToLower(address) + ":" + s.domain
}

// Register makes a user known to the server without opening a session.
func (s *Server) Register(socialID, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(socialID).displayName = displayName
}

// MakeFriends records an established friendship between a and b.
func (s *Server) MakeFriends(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link(s.ensureUser(a), s.ensureUser(b))
}

// AddRequest records a pending request from one user to another without
// emitting events.
func (s *Server) AddRequest(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(from)
	s.ensureUser(to)
	s.requests = append(s.requests, chat.FriendshipRequest{From: from, To: to, CreatedAt: s.now().UnixMilli()})
}

// SetPresence changes a user's status and notifies the user's friends.
func (s *Server) SetPresence(socialID string, status chat.CurrentUserStatus) {
	s.mu.Lock()
	u := s.ensureUser(socialID)
	u.status = status
	out := s.toFriends(u, &chat.StatusChanged{SocialID: socialID, Status: status})
	s.mu.Unlock()
	deliver(out)
}

// Fail makes the next call of the named Session method return err.
func (s *Server) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Calls returns how many times the named Session method was invoked.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Login implements chat.Connector. The address becomes the user's social id;
// an empty auth chain is rejected.
func (s *Server) Login(_ context.Context, req chat.LoginRequest) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Login"]++
	if err := s.takeFailure("Login"); err != nil {
		return nil, err
	}
	if req.Address == "" || len(req.AuthChain) == 0 {
		return nil, fmt.Errorf("memory: login for %q rejected: missing credentials", req.Address)
	}
	u := s.ensureUser(s.SocialID(req.Address))
	sess := &Session{srv: s, userID: u.id}
	sess.loggedIn.Store(true)
	u.sessions = append(u.sessions, sess)
	return sess, nil
}

// Emit delivers an arbitrary event to every session of socialID.
func (s *Server) Emit(socialID string, evt any) {
	s.mu.Lock()
	out := s.toUser(socialID, evt)
	s.mu.Unlock()
	deliver(out)
}

// CreateChannel creates a channel with the given members without emitting events.
func (s *Server) CreateChannel(name string, members ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.newChannel(name)
	for _, m := range members {
		s.ensureUser(m)
		c.UserIDs = append(c.UserIDs, m)
	}
	return c.ID
}

// Post appends a message from sender to a conversation and notifies its members.
func (s *Server) Post(conversationID, sender, text string) (string, error) {
	s.mu.Lock()
	c, ok := s.convs[conversationID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w %q", ErrUnknownConversation, conversationID)
	}
	msg := chat.TextMessage{ID: s.id("$"), Timestamp: s.now().UnixMilli(), Text: text, Sender: sender}
	c.messages = append(c.messages, msg)
	var out []delivery
	for _, member := range c.UserIDs {
		out = append(out, s.toUser(member, &chat.MessageReceived{Conversation: s.view(c, member), Message: msg})...)
	}
	s.mu.Unlock()
	deliver(out)
	return msg.ID, nil
}

func (s *Server) ensureUser(id string) *user {
	u, ok := s.users[id]
	if !ok {
		u = &user{id: id, status: chat.CurrentUserStatus{Presence: chat.PresenceOffline}}
		s.users[id] = u
	}
	return u
}

func (s *Server) link(a, b *user) {
	if !slices.Contains(a.friends, b.id) {
		a.friends = append(a.friends, b.id)
	}
	if !slices.Contains(b.friends, a.id) {
		b.friends = append(b.friends, a.id)
	}
}

func (s *Server) unlink(a, b *user) {
	a.friends = slices.DeleteFunc(a.friends, func(id string) bool { return id == b.id })
	b.friends = slices.DeleteFunc(b.friends, func(id string) bool { return id == a.id })
}

func (s *Server) removeRequest(from, to string) bool {
	n := len(s.requests)
	s.requests = slices.DeleteFunc(s.requests, func(r chat.FriendshipRequest) bool {
		return r.From == from && r.To == to
	})
	return len(s.requests) != n
}

func (s *Server) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d:%s", prefix, s.nextID, s.domain)
}

func (s *Server) newChannel(name string) *conversation {
	c := &conversation{
		Conversation: chat.Conversation{ID: s.id("!"), Type: chat.ChannelConversation, Name: name},
		created:      s.now().UnixMilli(),
		seen:         make(map[string]int),
	}
	s.convs[c.ID] = c
	s.convOrder = append(s.convOrder, c.ID)
	s.channelsByName[name] = c.ID
	return c
}

func (s *Server) takeFailure(method string) error {
	err, ok := s.failures[method]
	if ok {
		delete(s.failures, method)
	}
	return err
}

func (s *Server) toUser(socialID string, evt any) []delivery {
	u, ok := s.users[socialID]
	if !ok {
		return nil
	}
	out := make([]delivery, 0, len(u.sessions))
	for _, sess := range u.sessions {
		out = append(out, delivery{session: sess, evt: evt})
	}
	return out
}

func (s *Server) toFriends(u *user, evt any) []delivery {
	var out []delivery
	for _, f := range u.friends {
		out = append(out, s.toUser(f, evt)...)
	}
	return out
}

// view renders a conversation from the point of view of member.
func (s *Server) view(c *conversation, member string) chat.Conversation {
	v := c.Conversation
	v.UserIDs = slices.Clone(c.UserIDs)
	v.HasMessages = len(c.messages) > 0
	v.LastEventTimestamp = c.created
	if n := len(c.messages); n > 0 {
		v.LastEventTimestamp = c.messages[n-1].Timestamp
	}
	v.UnreadMessages = nil
	for _, m := range c.messages[min(c.seen[member], len(c.messages)):] {
		if m.Sender != member {
			v.UnreadMessages = append(v.UnreadMessages, chat.UnreadMessage{ID: m.ID, Timestamp: m.Timestamp})
		}
	}
	return v
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func deliver(out []delivery) {
	for _, d := range out {
		d.session.dispatch(d.evt)
	}
}
