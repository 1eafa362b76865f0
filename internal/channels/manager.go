// Package channels implements the channel lifecycle: join, create, leave,
// search and mute, plus the channel views the renderer asks for.
package channels

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/presence"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/unread"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceholderPrefix marks rooms the service has not named yet.
const PlaceholderPrefix = "Empty room"

const (
	systemSender      = "Decentraland"
	noPermissionsText = "Ups, sorry! It seems you don't have permissions to create a channel."
)

// Flags is the configuration consulted by the manager.
type Flags interface {
	ChannelsEnabled() bool
	MaxChannels() int
	IsAllowedToCreateChannels(userID string) bool
	ServerURL() string
}

// Manager runs channel operations against the store's chat session.
// Failures are reported to the renderer as channel error payloads.
type Manager struct {
	store    *friends.Store
	mapper   *identity.Mapper
	renderer renderer.Renderer
	flags    Flags
	mutes    *Mutes
	unread   *unread.Accounting
	catalog  *profiles.Catalog
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(
	store *friends.Store,
	mapper *identity.Mapper,
	r renderer.Renderer,
	flags Flags,
	mutes *Mutes,
	acc *unread.Accounting,
	catalog *profiles.Catalog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		store:    store,
		mapper:   mapper,
		renderer: r,
		flags:    flags,
		mutes:    mutes,
		unread:   acc,
		catalog:  catalog,
		metrics:  m,
		logger:   logger.Named("channels"),
		now:      time.Now,
	}
}

// IsPlaceholder reports whether name is empty or a placeholder.
func IsPlaceholder(name string) bool {
	return name == "" || strings.HasPrefix(name, PlaceholderPrefix)
}

// NormalizeName strips the room alias decoration from a service name.
func NormalizeName(name string) string {
	name = strings.TrimPrefix(name, "#")
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	return name
}

func (m *Manager) session() chat.Session { return m.store.Session() }

func (m *Manager) limitReached() bool {
	return len(friends.Channels(m.store.Snapshot(), m.mapper)) >= m.flags.MaxChannels()
}

func (m *Manager) canCreate(session chat.Session) bool {
	ownID, ok := m.mapper.ToLocalID(session.UserID())
	return ok && m.flags.IsAllowedToCreateChannels(ownID)
}

// JoinOrCreate joins channelID, creating it when the user may create
// channels. Without that permission a missing channel yields a system
// message in the chat window instead of an error.
func (m *Manager) JoinOrCreate(ctx context.Context, channelID string) {
	session := m.session()
	if session == nil {
		return
	}
	name := strings.ToLower(channelID)
	if m.limitReached() {
		m.joinError(name, renderer.ChannelErrorLimitExceeded)
		return
	}

	if m.canCreate(session) {
		conv, created, err := session.GetOrCreateChannel(ctx, name, nil)
		if err != nil {
			m.joinFailure(channelID, err)
			return
		}
		if created {
			m.renderer.Send(renderer.JoinChannelConfirmation{Channels: []renderer.ChannelInfo{freshChannel(name, conv.ID)}})
			return
		}
		if err := session.JoinChannel(ctx, conv.ID); err != nil {
			m.joinFailure(channelID, err)
		}
		return
	}

	conv, found, err := session.GetChannelByName(ctx, name)
	if err != nil {
		m.joinFailure(channelID, err)
		return
	}
	if !found {
		m.renderer.Send(renderer.AddMessageToChatWindow{ChatMessage: renderer.ChatMessage{
			MessageID:   uuid.NewString(),
			MessageType: renderer.MessageSystem,
			Sender:      systemSender,
			Body:        noPermissionsText,
			Timestamp:   m.now().UnixMilli(),
		}})
		return
	}
	if err := session.JoinChannel(ctx, conv.ID); err != nil {
		m.joinFailure(channelID, err)
	}
}

// Create creates channelID and reports ALREADY_EXISTS without joining when
// the name is taken.
func (m *Manager) Create(ctx context.Context, channelID string) {
	if m.limitReached() {
		m.joinError(channelID, renderer.ChannelErrorLimitExceeded)
		return
	}
	session := m.session()
	if session == nil {
		return
	}
	conv, created, err := session.GetOrCreateChannel(ctx, channelID, nil)
	if err != nil {
		m.joinFailure(channelID, err)
		return
	}
	if !created {
		m.joinError(channelID, renderer.ChannelErrorAlreadyExists)
		return
	}
	name := conv.Name
	if name == "" {
		name = channelID
	}
	m.renderer.Send(renderer.JoinChannelConfirmation{Channels: []renderer.ChannelInfo{freshChannel(name, conv.ID)}})
}

// Join joins an existing channel by id.
func (m *Manager) Join(ctx context.Context, channelID string) {
	session := m.session()
	if session == nil {
		return
	}
	if m.limitReached() {
		m.joinError(channelID, renderer.ChannelErrorLimitExceeded)
		return
	}
	if err := session.JoinChannel(ctx, channelID); err != nil {
		m.logger.Warn("join channel failed", zap.String("channel_id", channelID), zap.Error(err))
		m.joinError(channelID, renderer.ChannelErrorUnknown)
	}
}

// Leave leaves channelID and clears its mute.
func (m *Manager) Leave(ctx context.Context, channelID string) {
	session := m.session()
	if session == nil {
		return
	}
	if err := session.LeaveChannel(ctx, channelID); err != nil {
		m.logger.Warn("leave channel failed", zap.String("channel_id", channelID), zap.Error(err))
		m.countError("leave", renderer.ChannelErrorUnknown)
		m.renderer.Send(renderer.LeaveChannelError{ChannelError: renderer.ChannelError{ChannelID: channelID, ErrorCode: renderer.ChannelErrorUnknown}})
		return
	}
	if m.mutes.IsMuted(channelID) {
		if err := m.mutes.Set(channelID, false); err != nil {
			m.logger.Error("unmute after leave failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
}

// Mute toggles notifications of a known channel and republishes its info.
func (m *Manager) Mute(channelID string, muted bool) {
	session := m.session()
	if session == nil {
		return
	}
	conv, ok := session.GetChannel(channelID)
	if !ok {
		m.countError("mute", renderer.ChannelErrorUnknown)
		m.renderer.Send(renderer.MuteChannelError{ChannelError: renderer.ChannelError{ChannelID: channelID, ErrorCode: renderer.ChannelErrorUnknown}})
		return
	}
	if err := m.mutes.Set(channelID, muted); err != nil {
		m.logger.Error("mute channel failed", zap.String("channel_id", channelID), zap.Error(err))
		m.countError("mute", renderer.ChannelErrorUnknown)
		m.renderer.Send(renderer.MuteChannelError{ChannelError: renderer.ChannelError{ChannelID: channelID, ErrorCode: renderer.ChannelErrorUnknown}})
		return
	}
	info := m.channelInfo(session, conv)
	info.Name = conv.Name
	m.renderer.Send(renderer.UpdateChannelInfo{Channels: []renderer.ChannelInfo{info}})
}

// Search runs a channel search. Hits are re-filtered by name, annotated
// with local joined and muted flags, and ordered by member count, largest
// first, keeping service order on ties.
func (m *Manager) Search(ctx context.Context, term string, limit int, since string) {
	session := m.session()
	if session == nil {
		return
	}
	joined := make(map[string]bool)
	for _, c := range friends.Channels(m.store.Snapshot(), m.mapper) {
		joined[c.ID] = true
	}
	res, err := session.SearchChannel(ctx, limit, term, since)
	if err != nil {
		m.logger.Warn("search channels failed", zap.String("term", term), zap.Error(err))
		return
	}
	out := make([]renderer.ChannelInfo, 0, len(res.Channels))
	for _, c := range res.Channels {
		if !strings.Contains(c.Name, term) {
			continue
		}
		out = append(out, renderer.ChannelInfo{
			ChannelID:   c.ID,
			Name:        c.Name,
			Description: c.Description,
			MemberCount: c.MemberCount,
			Joined:      joined[c.ID],
			Muted:       m.mutes.IsMuted(c.ID),
		})
	}
	slices.SortStableFunc(out, func(a, b renderer.ChannelInfo) int { return b.MemberCount - a.MemberCount })
	m.renderer.Send(renderer.UpdateChannelSearchResults{Since: res.NextBatch, Channels: out})
}

func (m *Manager) joinFailure(channelID string, err error) {
	code := ErrorCode(err)
	m.logger.Warn("join or create channel failed", zap.String("channel_id", channelID),
		zap.String("code", code.String()), zap.Error(err))
	m.joinError(channelID, code)
}

func (m *Manager) joinError(channelID string, code renderer.ChannelErrorCode) {
	m.countError("join", code)
	m.renderer.Send(renderer.JoinChannelError{ChannelError: renderer.ChannelError{ChannelID: channelID, ErrorCode: code}})
}

func (m *Manager) countError(op string, code renderer.ChannelErrorCode) {
	m.metrics.ChannelErrors.WithLabelValues(op, code.String()).Inc()
}

// ErrorCode maps a service failure to a renderer channel error code.
func ErrorCode(err error) renderer.ChannelErrorCode {
	var ce *chat.ChannelsError
	if !errors.As(err, &ce) {
		return renderer.ChannelErrorUnknown
	}
	switch ce.Kind {
	case chat.ChannelsErrorBadRegex:
		return renderer.ChannelErrorWrongFormat
	case chat.ChannelsErrorReservedName:
		return renderer.ChannelErrorReservedName
	default:
		return renderer.ChannelErrorUnknown
	}
}

func freshChannel(name, id string) renderer.ChannelInfo {
	return renderer.ChannelInfo{ChannelID: id, Name: name, MemberCount: 1, Joined: true}
}

// channelInfo builds the joined-channel view of conv. Muted channels report
// no unseen messages.
func (m *Manager) channelInfo(session chat.Session, conv chat.Conversation) renderer.ChannelInfo {
	muted := m.mutes.IsMuted(conv.ID)
	unseen := len(conv.UnreadMessages)
	if muted {
		unseen = 0
	}
	return renderer.ChannelInfo{
		ChannelID:      conv.ID,
		Name:           NormalizeName(conv.Name),
		UnseenMessages: unseen,
		LastMessageAt:  conv.LastEventTimestamp,
		MemberCount:    presence.OnlineCount(session, conv.UserIDs),
		Joined:         true,
		Muted:          muted,
	}
}

// IsMuted reports whether notifications of channelID are muted.
func (m *Manager) IsMuted(channelID string) bool { return m.mutes.IsMuted(channelID) }
