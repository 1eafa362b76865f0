package chat

// StatusChanged is delivered when a friend's status changes.
type StatusChanged struct {
	SocialID string
	Status   CurrentUserStatus
}

// MessageReceived is delivered for every message in a joined conversation,
// including the local user's own messages.
type MessageReceived struct {
	Conversation Conversation
	Message      TextMessage
}

// FriendshipRequested is delivered to the target of a new request.
type FriendshipRequested struct{ SocialID string }

// FriendshipCanceled is delivered when the sender withdraws a request.
type FriendshipCanceled struct{ SocialID string }

// FriendshipApproved is delivered to the requester when the target accepts.
type FriendshipApproved struct{ SocialID string }

// FriendshipRejected is delivered to the requester when the target declines.
type FriendshipRejected struct{ SocialID string }

// FriendshipDeleted is delivered when the counterpart ends the friendship.
type FriendshipDeleted struct{ SocialID string }

// ChannelMembers is a membership snapshot for a channel.
type ChannelMembers struct {
	Conversation Conversation
	Members      []Member
}

// ChannelMembership is delivered when the local user joins or leaves a channel.
type ChannelMembership struct {
	Conversation Conversation
	Membership   Membership
}
