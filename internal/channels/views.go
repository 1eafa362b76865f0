package channels

import (
	"context"
	"slices"
	"strings"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/presence"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"go.uber.org/zap"
)

// joinedChannels returns the session's channels with social member ids.
func joinedChannels(session chat.Session) []chat.Conversation {
	var out []chat.Conversation
	for _, c := range session.GetAllCurrentConversations() {
		if c.Type == chat.ChannelConversation {
			out = append(out, c)
		}
	}
	return out
}

// Page clamps skip and limit to a slice of length n.
func Page(n, skip, limit int) (lo, hi int) {
	lo = min(max(skip, 0), n)
	hi = min(lo+max(limit, 0), n)
	return lo, hi
}

// GetChannelInfo publishes the info of every known channel in ids.
func (m *Manager) GetChannelInfo(ids []string) {
	session := m.session()
	if session == nil {
		return
	}
	out := make([]renderer.ChannelInfo, 0, len(ids))
	for _, id := range ids {
		conv, ok := session.GetChannel(id)
		if !ok {
			continue
		}
		out = append(out, m.channelInfo(session, conv))
	}
	m.renderer.Send(renderer.UpdateChannelInfo{Channels: out})
}

// GetJoinedChannels publishes a page of the joined channels.
func (m *Manager) GetJoinedChannels(skip, limit int) {
	session := m.session()
	if session == nil {
		return
	}
	convs := joinedChannels(session)
	lo, hi := Page(len(convs), skip, limit)
	out := make([]renderer.ChannelInfo, 0, hi-lo)
	for _, conv := range convs[lo:hi] {
		out = append(out, m.channelInfo(session, conv))
	}
	m.renderer.Send(renderer.UpdateChannelInfo{Channels: out})
}

// UpdateChannelInfo republishes the info of one joined channel.
func (m *Manager) UpdateChannelInfo(conv chat.Conversation) {
	session := m.session()
	if session == nil {
		return
	}
	m.renderer.Send(renderer.UpdateChannelInfo{Channels: []renderer.ChannelInfo{m.channelInfo(session, conv)}})
}

// GetChannelMembers publishes the online members of a channel page whose
// display name contains nameFilter.
func (m *Manager) GetChannelMembers(channelID string, skip, limit int, nameFilter string) {
	session := m.session()
	if session == nil {
		return
	}
	conv, ok := session.GetChannel(channelID)
	if !ok {
		return
	}
	payload := renderer.UpdateChannelMembers{ChannelID: channelID, Members: []renderer.ChannelMember{}}

	needle := strings.ToLower(nameFilter)
	var members []chat.Member
	for _, mem := range m.members(session, channelID, conv.UserIDs) {
		if strings.Contains(strings.ToLower(mem.Name), needle) {
			members = append(members, mem)
		}
	}
	lo, hi := Page(len(members), skip, limit)
	members = members[lo:hi]
	if len(members) == 0 {
		m.renderer.Send(payload)
		return
	}

	m.sendMissingProfiles(session, members)
	payload.Members = m.onlineMembers(session, members)
	m.renderer.Send(payload)
}

// GetChannelMessages publishes up to limit messages of a channel. With
// fromID, the messages preceding fromID are returned.
func (m *Manager) GetChannelMessages(ctx context.Context, channelID, fromID string, limit int) {
	session := m.session()
	if session == nil {
		return
	}
	window := limit
	if fromID != "" {
		window = limit * 2
	}
	cursor, err := session.GetCursorOnMessage(ctx, channelID, fromID, chat.CursorOptions{InitialSize: window, Limit: window})
	if err != nil {
		m.logger.Warn("channel cursor failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	messages := cursor.Messages()
	if fromID != "" {
		if i := slices.IndexFunc(messages, func(msg chat.TextMessage) bool { return msg.ID == fromID }); i >= 0 {
			messages = messages[:i]
		}
	}

	var senders []string
	for _, msg := range messages {
		if !slices.Contains(senders, msg.Sender) {
			senders = append(senders, msg.Sender)
		}
	}
	members := m.members(session, channelID, senders)
	m.sendMissingProfiles(session, members)

	names := make(map[string]string, len(members))
	for _, mem := range members {
		names[mem.UserID] = mem.Name
	}
	payload := renderer.AddChatMessages{Messages: make([]renderer.ChatMessage, 0, len(messages))}
	for _, msg := range messages {
		sender, ok := m.mapper.ToLocalID(msg.Sender)
		if !ok {
			sender = msg.Sender
		}
		payload.Messages = append(payload.Messages, renderer.ChatMessage{
			MessageID:   msg.ID,
			MessageType: renderer.MessagePublic,
			Timestamp:   msg.Timestamp,
			Body:        msg.Text,
			Sender:      sender,
			SenderName:  names[msg.Sender],
			Recipient:   channelID,
		})
	}
	m.renderer.Send(payload)
}

// MarkChannelSeen marks a channel read and republishes the unseen totals.
func (m *Manager) MarkChannelSeen(ctx context.Context, channelID string) {
	session := m.session()
	if session == nil {
		return
	}
	if len(session.GetConversationUnreadMessages(channelID)) > 0 {
		if err := session.MarkMessagesAsSeen(ctx, channelID); err != nil {
			m.logger.Warn("mark channel seen failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	m.renderer.Send(renderer.UpdateTotalUnseenMessagesByChannel{UnseenChannelMessages: m.unread.UnseenByChannel()})
	m.renderer.Send(renderer.UpdateTotalUnseenMessages{Total: m.unread.Total()})
}

// SendChannelMessage posts msg.Body to a channel and echoes it to the chat
// window with the id the service assigned.
func (m *Manager) SendChannelMessage(ctx context.Context, channelID string, msg renderer.ChatMessage) {
	session := m.session()
	if session == nil {
		m.logger.Error("send channel message without chat session")
		return
	}
	conv, ok := session.GetChannel(channelID)
	if !ok {
		return
	}
	id, err := session.SendMessageTo(ctx, conv.ID, msg.Body)
	if err != nil {
		m.logger.Error("send channel message failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if id != "" {
		msg.MessageID = id
	}
	m.renderer.Send(renderer.AddMessageToChatWindow{ChatMessage: msg})
}

// OnMembers handles a channel member snapshot pushed by the service.
func (m *Manager) OnMembers(conv chat.Conversation, members []chat.Member) {
	if !m.flags.ChannelsEnabled() {
		return
	}
	session := m.session()
	if session == nil {
		return
	}
	if !IsPlaceholder(conv.Name) {
		m.UpdateChannelInfo(conv)
	}
	m.renderer.Send(renderer.UpdateChannelMembers{ChannelID: conv.ID, Members: m.onlineMembers(session, members)})
}

// OnMembership handles the local user joining or leaving a channel.
func (m *Manager) OnMembership(conv chat.Conversation, membership chat.Membership) {
	if !m.flags.ChannelsEnabled() {
		return
	}
	session := m.session()
	if session == nil {
		return
	}
	switch membership {
	case chat.MembershipJoin:
		if IsPlaceholder(conv.Name) {
			return
		}
		info := m.channelInfo(session, conv)
		info.UnseenMessages = len(conv.UnreadMessages)
		info.Muted = false
		m.renderer.Send(renderer.JoinChannelConfirmation{Channels: []renderer.ChannelInfo{info}})
	case chat.MembershipLeave:
		joinedMembers := 0
		if current, ok := session.GetChannel(conv.ID); ok {
			joinedMembers = len(current.UserIDs)
		}
		m.renderer.Send(renderer.UpdateTotalUnseenMessages{Total: m.unread.Total()})
		m.renderer.Send(renderer.UpdateChannelInfo{Channels: []renderer.ChannelInfo{{
			ChannelID:   conv.ID,
			Name:        conv.Name,
			MemberCount: joinedMembers,
		}}})
	}
}

func (m *Manager) members(session chat.Session, channelID string, socialIDs []string) []chat.Member {
	out := make([]chat.Member, 0, len(socialIDs))
	for _, id := range socialIDs {
		out = append(out, chat.Member{UserID: id, Name: session.GetMemberInfo(channelID, id).DisplayName})
	}
	return out
}

// onlineMembers keeps the online members, converting ids to local ids.
func (m *Manager) onlineMembers(session chat.Session, members []chat.Member) []renderer.ChannelMember {
	ids := make([]string, 0, len(members))
	for _, mem := range members {
		ids = append(ids, mem.UserID)
	}
	online := presence.OnlineMembers(session, ids)
	out := []renderer.ChannelMember{}
	for _, mem := range members {
		if !slices.Contains(online, mem.UserID) {
			continue
		}
		userID, ok := m.mapper.ToLocalID(mem.UserID)
		if !ok {
			continue
		}
		out = append(out, renderer.ChannelMember{UserID: userID, Name: mem.Name, IsOnline: true})
	}
	return out
}

// sendMissingProfiles pushes default profiles for members the renderer
// catalog does not hold yet.
func (m *Manager) sendMissingProfiles(session chat.Session, members []chat.Member) {
	ownID := session.UserID()
	var missing []profiles.Avatar
	for _, mem := range members {
		if mem.UserID == ownID {
			continue
		}
		userID, ok := m.mapper.ToLocalID(mem.UserID)
		if !ok || m.catalog.IsAdded(userID) {
			continue
		}
		missing = append(missing, profiles.DefaultProfile(userID, mem.Name, m.flags.ServerURL()))
	}
	m.catalog.AddToCatalog(missing...)
}
