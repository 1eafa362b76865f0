package presence

import (
	"context"
	"time"

	"github.com/JFJun/kernel/internal/bus"
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/config"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// DefaultInterval between self-status broadcasts.
const DefaultInterval = 60 * time.Second

// Flags is the configuration the broadcaster consults on every pass.
type Flags interface {
	PresenceDisabled() bool
}

// Broadcaster periodically refreshes friends' statuses and publishes the
// local user's own status when it changed.
type Broadcaster struct {
	store    *friends.Store
	mapper   *identity.Mapper
	tracker  *Tracker
	room     *RoomContext
	flags    Flags
	bus      *bus.Bus
	metrics  *metrics.Metrics
	logger   *zap.Logger
	interval time.Duration

	last   *chat.UpdateUserStatus
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBroadcaster(store *friends.Store, mapper *identity.Mapper, tracker *Tracker, room *RoomContext, flags Flags, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		store:    store,
		mapper:   mapper,
		tracker:  tracker,
		room:     room,
		flags:    flags,
		bus:      b,
		metrics:  m,
		logger:   logger.Named("presence"),
		interval: DefaultInterval,
	}
}

// SetInterval overrides DefaultInterval. Call before Start.
func (b *Broadcaster) SetInterval(d time.Duration) { b.interval = d }

// Start runs the loop in the background until Stop or ctx is done.
func (b *Broadcaster) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go func() {
		defer close(b.done)
		b.Run(ctx)
	}()
}

func (b *Broadcaster) Stop() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
}

// Run wakes on the interval or when the session connects or the room
// changes, until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	ch, unsub := b.bus.SubscribeAny(16, bus.SessionConnected, bus.RoomChanged)
	defer unsub()

	timer := time.NewTimer(b.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
		case <-timer.C:
		}
		b.Tick(ctx)
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.interval)
	}
}

// Tick performs one broadcast pass. With presence disabled the friends'
// statuses are still refreshed but the own status is never sent.
func (b *Broadcaster) Tick(ctx context.Context) {
	snap := b.store.Snapshot()
	realm, pos := b.room.Get()
	if snap.Client == nil || realm == config.OfflineRealm {
		return
	}

	ids := make([]string, 0, len(snap.Friends))
	for _, f := range snap.Friends {
		ids = append(ids, b.mapper.ToSocialID(f))
	}
	b.tracker.UpdateStatus(snap.Client, ids...)
	if b.flags.PresenceDisabled() {
		return
	}

	status := chat.UpdateUserStatus{
		Presence: chat.PresenceOnline,
		Realm:    &chat.Realm{Layer: "", ServerName: realm},
		Position: &pos,
	}
	if b.last != nil && cmp.Equal(*b.last, status) {
		return
	}
	b.logger.Debug("sending own status", zap.String("realm", realm), zap.Int("x", pos.X), zap.Int("y", pos.Y))
	if err := snap.Client.SetStatus(ctx, status); err != nil {
		b.logger.Warn("set status failed", zap.Error(err))
	}
	b.metrics.StatusBroadcasts.Inc()
	b.last = &status
}
