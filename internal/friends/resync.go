package friends

import (
	"context"
	"time"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const profileFetchConcurrency = 8

// Refresh rebuilds friends and pending requests from the chat service and
// announces the fresh totals to the renderer. Cached friend statuses are
// dropped so the next presence pass re-emits them.
func (c *Controller) Refresh(ctx context.Context) error {
	session := c.store.Session()
	if session == nil {
		return chat.ErrNotLoggedIn
	}
	ownID := session.UserID()

	requests, err := session.GetPendingRequests(ctx)
	if err != nil {
		c.metrics.Resyncs.WithLabelValues("error").Inc()
		c.logger.Error("fetch pending requests failed", zap.Error(err))
		return err
	}

	previous := c.store.Snapshot().SocialInfo
	info := make(map[string]SocialData)
	record := func(socialID string) (string, bool) {
		userID, ok := c.mapper.ToLocalID(socialID)
		if !ok {
			return "", false
		}
		info[socialID] = SocialData{UserID: userID, SocialID: socialID, ConversationID: previous[socialID].ConversationID}
		return userID, true
	}

	var friendIDs []string
	for _, socialID := range session.GetAllFriends() {
		if userID, ok := record(socialID); ok {
			friendIDs = append(friendIDs, userID)
		}
	}

	var from, to []FriendRequest
	for _, r := range requests {
		switch {
		case r.From == ownID:
			if userID, ok := record(r.To); ok {
				to = append(to, FriendRequest{UserID: userID, CreatedAt: r.CreatedAt})
			}
		case r.To == ownID:
			if userID, ok := record(r.From); ok {
				from = append(from, FriendRequest{UserID: userID, CreatedAt: r.CreatedAt})
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileFetchConcurrency)
	for _, d := range info {
		userID := d.UserID
		g.Go(func() error {
			if _, err := c.profiles.EnsureProfile(gctx, userID); err != nil {
				c.logger.Warn("profile unavailable", zap.String("user_id", userID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	c.store.Update(func(st *State) {
		st.Friends = friendIDs
		st.FromFriendRequests = from
		st.ToFriendRequests = to
		st.SocialInfo = info
		st.LastStatusOfFriends = make(map[string]chat.CurrentUserStatus)
	})

	c.renderer.Send(renderer.InitializeFriends{TotalReceivedRequests: len(from)})
	total := 0
	if c.unseen != nil {
		total = c.unseen.TotalUnseen(ownID, friendIDs)
	}
	c.renderer.Send(renderer.InitializeChat{TotalUnseenMessages: total})

	if c.db != nil {
		if err := c.db.SetCheckpoint(store.CheckpointLastResync, c.now().UTC().Format(time.RFC3339)); err != nil {
			c.logger.Warn("checkpoint write failed", zap.Error(err))
		}
	}
	c.metrics.Resyncs.WithLabelValues("ok").Inc()
	c.logger.Info("friends resynchronized",
		zap.Int("friends", len(friendIDs)), zap.Int("received", len(from)), zap.Int("sent", len(to)))
	return nil
}

func (c *Controller) resync(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("resync failed", zap.Error(err))
	}
}
