package friends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"go.uber.org/zap"
)

// ErrUserNotLoaded means a transition fired for a user whose social data was
// never recorded.
var ErrUserNotLoaded = errors.New("friends: user not loaded")

// StatusUpdater refreshes the presence of the given social ids.
type StatusUpdater interface {
	UpdateStatus(session chat.Session, socialIDs ...string)
}

// UnseenCounter computes the aggregate unread count.
type UnseenCounter interface {
	TotalUnseen(ownID string, friendIDs []string) int
}

// Checkpointer persists resync bookkeeping.
type Checkpointer interface {
	SetCheckpoint(key, value string) error
}

// DefaultSettleDelay is how long to wait after an outbound friendship call
// before resynchronizing, so the service has applied it.
const DefaultSettleDelay = 500 * time.Millisecond

// Controller applies friendship transitions against the store and the chat
// service. Transitions on the same counterpart never interleave.
type Controller struct {
	store    *Store
	mapper   *identity.Mapper
	renderer renderer.Renderer
	profiles profiles.Resolver
	presence StatusUpdater
	unseen   UnseenCounter
	db       Checkpointer
	metrics  *metrics.Metrics
	logger   *zap.Logger

	settle time.Duration
	now    func() time.Time
	locks  keyedMutex
}

func NewController(
	store *Store,
	mapper *identity.Mapper,
	r renderer.Renderer,
	resolver profiles.Resolver,
	presence StatusUpdater,
	unseen UnseenCounter,
	db Checkpointer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		store:    store,
		mapper:   mapper,
		renderer: r,
		profiles: resolver,
		presence: presence,
		unseen:   unseen,
		db:       db,
		metrics:  m,
		logger:   logger.Named("friends"),
		settle:   DefaultSettleDelay,
		now:      time.Now,
	}
}

// SetSettleDelay overrides DefaultSettleDelay.
func (c *Controller) SetSettleDelay(d time.Duration) { c.settle = d }

// Remember records the social data of userID so a local transition on it
// can proceed.
func (c *Controller) Remember(userID string) SocialData {
	socialID := c.mapper.ToSocialID(userID)
	var d SocialData
	c.store.Update(func(st *State) {
		d = st.SocialInfo[socialID]
		d.UserID, d.SocialID = userID, socialID
		st.SocialInfo[socialID] = d
	})
	return d
}

// HandleIncoming records the counterpart of a pushed friendship event, loads
// its profile and applies the transition as incoming.
func (c *Controller) HandleIncoming(ctx context.Context, action Action, socialID string) {
	userID, ok := c.mapper.ToLocalID(socialID)
	if !ok {
		return
	}
	c.store.Update(func(st *State) {
		d := st.SocialInfo[socialID]
		d.UserID, d.SocialID = userID, socialID
		st.SocialInfo[socialID] = d
	})
	if _, err := c.profiles.EnsureProfile(ctx, userID); err != nil {
		c.logger.Warn("profile unavailable", zap.String("user_id", userID), zap.Error(err))
	}
	if action == ActionApproved {
		if session := c.store.Session(); session != nil {
			c.presence.UpdateStatus(session, socialID)
		}
	}
	c.UpdateFriendship(ctx, action, userID, true)
}

// UpdateFriendship applies action on userID. incoming marks transitions
// pushed by the service; local ones are also sent to the service and always
// followed by a resync.
func (c *Controller) UpdateFriendship(ctx context.Context, action Action, userID string, incoming bool) {
	unlock := c.locks.lock(userID)
	defer unlock()

	direction := "outgoing"
	if incoming {
		direction = "incoming"
	}
	c.metrics.FriendshipActions.WithLabelValues(action.String(), direction).Inc()
	log := c.logger.With(zap.String("action", action.String()), zap.String("user_id", userID), zap.String("direction", direction))

	session := c.store.Session()
	if session == nil {
		log.Warn("friendship update without chat session")
		return
	}

	social, ok := FindByUserID(c.store.Snapshot(), userID)
	if !ok {
		log.Error("friendship update aborted", zap.Error(ErrUserNotLoaded))
		return
	}

	conv, err := session.CreateDirectConversation(ctx, social.SocialID)
	if err != nil {
		log.Error("create direct conversation failed", zap.Error(err))
		var unknown *chat.UnknownUsersError
		if errors.As(err, &unknown) {
			c.notifyUnknownUser(ctx, userID)
		}
		if !incoming || unknown != nil {
			c.resync(ctx)
		}
		return
	}

	var (
		next    State
		changed bool
	)
	c.store.Update(func(st *State) {
		next, changed = Apply(*st, action, userID, c.now())
		if !changed {
			return
		}
		if action == ActionApproved {
			d := next.SocialInfo[social.SocialID]
			d.UserID, d.SocialID, d.ConversationID = userID, social.SocialID, conv.ID
			next.SocialInfo[social.SocialID] = d
		}
		*st = next
	})

	totals := next.Totals()
	c.renderer.Send(renderer.UpdateTotalFriendRequests{
		TotalReceivedRequests: totals.ReceivedRequests,
		TotalSentRequests:     totals.SentRequests,
	})
	c.renderer.Send(renderer.UpdateTotalFriends{TotalFriends: totals.Friends})

	if changed {
		if incoming {
			if err := c.renderer.WaitReady(ctx); err != nil {
				log.Warn("renderer not ready", zap.Error(err))
				return
			}
		} else {
			c.sendOutbound(ctx, session, action, userID, social.SocialID)
		}
		c.renderer.Send(renderer.UpdateFriendshipStatus{Action: int(action), UserID: userID})
	}

	if !incoming {
		c.resync(ctx)
	}
}

func (c *Controller) sendOutbound(ctx context.Context, session chat.Session, action Action, userID, socialID string) {
	var err error
	switch action {
	case ActionApproved:
		if err = session.ApproveFriendshipRequestFrom(ctx, socialID); err == nil {
			c.presence.UpdateStatus(session, socialID)
		}
	case ActionRejected:
		err = session.RejectFriendshipRequestFrom(ctx, socialID)
	case ActionCanceled:
		err = session.CancelFriendshipRequestTo(ctx, socialID)
	case ActionRequestedTo:
		err = session.AddAsFriend(ctx, socialID)
	case ActionDeleted:
		err = session.DeleteFriendshipWith(ctx, socialID)
	default:
		return
	}
	if err != nil {
		c.logger.Error("outbound friendship call failed",
			zap.String("action", action.String()), zap.String("user_id", userID), zap.Error(err))
		var unknown *chat.UnknownUsersError
		if errors.As(err, &unknown) {
			c.notifyUnknownUser(ctx, userID)
		}
		return
	}
	if c.settle > 0 {
		select {
		case <-time.After(c.settle):
		case <-ctx.Done():
		}
	}
}

func (c *Controller) notifyUnknownUser(ctx context.Context, userID string) {
	name := fmt.Sprintf("with address '%s'", userID)
	if a, err := c.profiles.EnsureProfile(ctx, userID); err == nil && a.Name != "" {
		name = a.Name
	}
	c.renderer.Send(renderer.ShowNotification{
		Type:          renderer.NotificationGeneric,
		Message:       fmt.Sprintf("User %s must log in at least once before befriending them", name),
		ButtonMessage: "OK",
		Timer:         5,
	})
}

// ConversationID returns the direct conversation with userID, creating it on
// first use.
func (c *Controller) ConversationID(ctx context.Context, userID string) (string, error) {
	snap := c.store.Snapshot()
	social, ok := FindByUserID(snap, userID)
	if ok && social.ConversationID != "" {
		return social.ConversationID, nil
	}
	if !ok {
		social = SocialData{UserID: userID, SocialID: c.mapper.ToSocialID(userID)}
	}
	if snap.Client == nil {
		return "", chat.ErrNotLoggedIn
	}
	conv, err := snap.Client.CreateDirectConversation(ctx, social.SocialID)
	if err != nil {
		return "", fmt.Errorf("create direct conversation with %s: %w", userID, err)
	}
	social.ConversationID = conv.ID
	c.store.Update(func(st *State) { st.SocialInfo[social.SocialID] = social })
	return conv.ID, nil
}
