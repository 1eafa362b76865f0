// Package dispatch routes chat service push events to the components that
// own them. A failing handler never affects the others.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/JFJun/kernel/internal/channels"
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/presence"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/unread"
	"go.uber.org/zap"
)

// Flags is the configuration consulted while dispatching.
type Flags interface {
	ChannelsEnabled() bool
}

type Handler struct {
	store    *friends.Store
	mapper   *identity.Mapper
	renderer renderer.Renderer
	catalog  *profiles.Catalog
	tracker  *presence.Tracker
	friends  *friends.Controller
	channels *channels.Manager
	unread   *unread.Accounting
	flags    Flags
	blocked  *Blocklist
	dedup    *Dedup
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	queue  *friendshipQueue
	cancel context.CancelFunc
	done   chan struct{}
}

// Deps groups the Handler's collaborators.
type Deps struct {
	Store    *friends.Store
	Mapper   *identity.Mapper
	Renderer renderer.Renderer
	Catalog  *profiles.Catalog
	Tracker  *presence.Tracker
	Friends  *friends.Controller
	Channels *channels.Manager
	Unread   *unread.Accounting
	Flags    Flags
	Blocked  *Blocklist
	Dedup    *Dedup
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		store:    d.Store,
		mapper:   d.Mapper,
		renderer: d.Renderer,
		catalog:  d.Catalog,
		tracker:  d.Tracker,
		friends:  d.Friends,
		channels: d.Channels,
		unread:   d.Unread,
		flags:    d.Flags,
		blocked:  d.Blocked,
		dedup:    d.Dedup,
		metrics:  d.Metrics,
		logger:   d.Logger.Named("dispatch"),
		ctx:      context.Background(),
		queue:    newFriendshipQueue(),
	}
}

// Start runs the worker that applies incoming friendship transitions, one at
// a time and in arrival order. Events received before Start wait in the queue.
func (h *Handler) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		h.queue.run(ctx, h.applyFriendship)
	}(h.done)
}

// Stop halts the worker. Transitions still queued are dropped.
func (h *Handler) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	h.queue.close()
}

// Bind registers the handler on session. ctx bounds the work that events
// trigger.
func (h *Handler) Bind(ctx context.Context, session chat.Session) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	session.AddEventHandler(h.Handle)
}

func (h *Handler) context() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}

// Wait blocks until every queued friendship transition has been applied.
// It needs a started worker.
func (h *Handler) Wait() { h.queue.wait() }

// Handle processes one push event.
func (h *Handler) Handle(evt any) {
	kind := Kind(evt)
	h.metrics.Events.WithLabelValues(kind).Inc()
	defer h.contain(kind)

	ctx := h.context()
	switch e := evt.(type) {
	case *chat.StatusChanged:
		h.onStatus(ctx, e)
	case *chat.MessageReceived:
		h.onMessage(ctx, e)
	case *chat.FriendshipRequested:
		h.friendship(kind, friends.ActionRequestedFrom, e.SocialID)
	case *chat.FriendshipCanceled:
		h.friendship(kind, friends.ActionCanceled, e.SocialID)
	case *chat.FriendshipApproved:
		h.friendship(kind, friends.ActionApproved, e.SocialID)
	case *chat.FriendshipRejected:
		h.friendship(kind, friends.ActionRejected, e.SocialID)
	case *chat.FriendshipDeleted:
		h.friendship(kind, friends.ActionDeleted, e.SocialID)
	case *chat.ChannelMembers:
		h.channels.OnMembers(e.Conversation, e.Members)
	case *chat.ChannelMembership:
		h.channels.OnMembership(e.Conversation, e.Membership)
	default:
		h.logger.Debug("ignoring event", zap.String("type", kind))
	}
}

// Kind names an event for logs and metrics.
func Kind(evt any) string {
	switch evt.(type) {
	case *chat.StatusChanged:
		return "status"
	case *chat.MessageReceived:
		return "message"
	case *chat.FriendshipRequested:
		return "friendship_request"
	case *chat.FriendshipCanceled:
		return "friendship_cancel"
	case *chat.FriendshipApproved:
		return "friendship_approve"
	case *chat.FriendshipRejected:
		return "friendship_reject"
	case *chat.FriendshipDeleted:
		return "friendship_delete"
	case *chat.ChannelMembers:
		return "channel_members"
	case *chat.ChannelMembership:
		return "channel_membership"
	default:
		return fmt.Sprintf("%T", evt)
	}
}

func (h *Handler) contain(kind string) {
	if r := recover(); r != nil {
		h.metrics.EventFailures.WithLabelValues(kind).Inc()
		h.logger.Error("event handler failed", zap.String("type", kind), zap.Any("panic", r), zap.Stack("stack"))
	}
}

// friendship queues the transition off the delivery path; incoming
// transitions may wait for the renderer.
func (h *Handler) friendship(kind string, action friends.Action, socialID string) {
	if !h.queue.push(friendshipEvent{kind: kind, action: action, socialID: socialID}) {
		h.logger.Warn("friendship event after stop", zap.String("type", kind), zap.String("social_id", socialID))
	}
}

func (h *Handler) applyFriendship(evt friendshipEvent) {
	defer h.contain(evt.kind)
	h.friends.HandleIncoming(h.context(), evt.action, evt.socialID)
}

func (h *Handler) onStatus(ctx context.Context, e *chat.StatusChanged) {
	userID, ok := h.mapper.ToLocalID(e.SocialID)
	if !ok {
		return
	}
	snap := h.store.Snapshot()
	if friends.IsFriend(snap, userID) {
		if !h.catalog.IsAdded(userID) {
			if _, err := h.catalog.EnsureProfile(ctx, userID); err != nil {
				h.logger.Warn("friend profile unavailable", zap.String("user_id", userID), zap.Error(err))
			}
		}
		h.renderer.Send(renderer.AddFriends{Friends: []string{userID}, TotalFriends: friends.TotalFriends(snap)})
	}
	h.tracker.Observe(e.SocialID, e.Status)
}

func (h *Handler) onMessage(ctx context.Context, e *chat.MessageReceived) {
	conv, msg := e.Conversation, e.Message
	isChannel := conv.Type == chat.ChannelConversation
	if isChannel && !h.flags.ChannelsEnabled() {
		return
	}
	if h.dedup.Seen(msg.ID) {
		h.metrics.DuplicateMessages.Inc()
		return
	}

	sender, ok := h.mapper.ToLocalID(msg.Sender)
	if !ok {
		h.logger.Error("message from unparseable sender", zap.String("sender", msg.Sender), zap.String("conversation_id", conv.ID))
		return
	}
	if h.blocked.IsBlocked(sender) {
		return
	}

	session := h.store.Session()
	if session == nil {
		return
	}
	ownSocial := session.UserID()
	ownID, _ := h.mapper.ToLocalID(ownSocial)
	fromSelf := msg.Sender == ownSocial

	record := renderer.ChatMessage{
		MessageID:   msg.ID,
		MessageType: renderer.MessagePrivate,
		Timestamp:   msg.Timestamp,
		Body:        msg.Text,
		Sender:      sender,
		Recipient:   ownID,
	}
	if isChannel {
		record.MessageType = renderer.MessagePublic
		record.Recipient = conv.ID
	}

	if !h.catalog.IsAdded(sender) {
		if _, err := h.catalog.EnsureProfile(ctx, sender); err != nil {
			h.logger.Warn("sender profile unavailable", zap.String("user_id", sender), zap.Error(err))
		}
	}
	if fromSelf && !isChannel {
		return
	}

	h.renderer.Send(renderer.AddMessageToChatWindow{ChatMessage: record})

	if isChannel {
		if !h.channels.IsMuted(conv.ID) {
			h.renderer.Send(renderer.UpdateTotalUnseenMessagesByChannel{UnseenChannelMessages: h.unread.UnseenByChannel()})
		}
	} else {
		h.renderer.Send(renderer.UpdateUserUnseenMessages{UserID: sender, Total: h.unread.UserUnseen(conv.ID)})
	}
	h.renderer.Send(renderer.UpdateTotalUnseenMessages{Total: h.unread.Total()})
}
