// Package login keeps the chat session logged in: it signs in once an identity
// is available and retries with exponential backoff while it is not.
package login

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JFJun/kernel/internal/bus"
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/config"
	"github.com/JFJun/kernel/internal/dispatch"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/status"
	"github.com/JFJun/kernel/internal/store"
	"github.com/cenkalti/backoff/v3"
	"go.uber.org/zap"
)

const (
	MinRetryInterval = time.Second
	MaxRetryInterval = 256 * time.Second
	retryMultiplier  = 1.5
)

type Loop struct {
	connector chat.Connector
	source    *config.Source
	store     *friends.Store
	friends   *friends.Controller
	handler   *dispatch.Handler
	catalog   *profiles.Catalog
	renderer  renderer.Renderer
	machine   *status.Machine
	bus       *bus.Bus
	db        friends.Checkpointer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	backoff *backoff.ExponentialBackOff
	cancel  context.CancelFunc
	done    chan struct{}
}

// Deps groups the Loop's collaborators.
type Deps struct {
	Connector chat.Connector
	Source    *config.Source
	Store     *friends.Store
	Friends   *friends.Controller
	Handler   *dispatch.Handler
	Catalog   *profiles.Catalog
	Renderer  renderer.Renderer
	Machine   *status.Machine
	Bus       *bus.Bus
	DB        friends.Checkpointer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func NewLoop(d Deps) *Loop {
	return &Loop{
		connector: d.Connector,
		source:    d.Source,
		store:     d.Store,
		friends:   d.Friends,
		handler:   d.Handler,
		catalog:   d.Catalog,
		renderer:  d.Renderer,
		machine:   d.Machine,
		bus:       d.Bus,
		db:        d.DB,
		metrics:   d.Metrics,
		logger:    d.Logger.Named("login"),
		now:       time.Now,
		backoff:   newBackOff(),
	}
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = MinRetryInterval
	b.Multiplier = retryMultiplier
	b.MaxInterval = MaxRetryInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Start runs the loop in the background until Stop.
func (l *Loop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		l.Run(ctx)
	}()
}

// Stop cancels the loop and waits for it to return.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// Run waits for an authentication event or the retry delay, then logs in
// unless a session is already up. It returns when chat is disabled, the
// identity is a guest, retries are turned off, or ctx is done.
func (l *Loop) Run(ctx context.Context) {
	if l.source.ChatDisabled() {
		l.transition(status.Disabled)
		return
	}
	auth, unsub := l.bus.Subscribe(bus.SessionAuthenticated, 4)
	defer unsub()

	wait := l.backoff.NextBackOff()
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-auth:
			timer.Stop()
		case <-timer.C:
		}

		next, ok := l.check(ctx, wait)
		if !ok {
			return
		}
		wait = next
		l.logger.Debug("next login check", zap.Duration("in", wait))
	}
}

// check runs one login check and returns the delay before the next one.
// The delay grows only after a failed attempt, drops back to the minimum
// after a successful one and is left alone while the session is up. ok is
// false when the loop must end.
func (l *Loop) check(ctx context.Context, wait time.Duration) (next time.Duration, ok bool) {
	if err := l.renderer.WaitReady(ctx); err != nil {
		return 0, false
	}

	if l.source.Current().Identity.Guest {
		l.logger.Info("guest identity, social features stay off")
		l.transition(status.Guest)
		return 0, false
	}

	next = wait
	if !l.loggedIn() {
		err := l.Initialize(ctx)
		switch {
		case err == nil:
			l.backoff.Reset()
			next = l.backoff.NextBackOff()
		case errors.Is(err, ErrNoIdentity):
			l.transition(status.WaitingAuth)
			next = l.backoff.NextBackOff()
		case ctx.Err() != nil:
			return 0, false
		default:
			l.logger.Error("chat login failed", zap.Error(err))
			l.transition(status.Retrying)
			next = l.backoff.NextBackOff()
		}
	}
	return next, l.source.RetryLogin()
}

func (l *Loop) loggedIn() bool {
	session := l.store.Session()
	return session != nil && session.IsLoggedIn()
}

// Initialize signs in with the configured identity, publishes the profile
// name, loads the friend lists and starts dispatching service events.
func (l *Loop) Initialize(ctx context.Context) error {
	cfg := l.source.Current()
	signer, err := NewKeySigner(cfg.Identity.PrivateKey)
	if err != nil {
		return err
	}

	l.transition(status.Connecting)
	ts := l.now().UnixMilli()
	chain, err := signer.Sign(strconv.FormatInt(ts, 10))
	if err != nil {
		l.metrics.LoginAttempts.WithLabelValues("error").Inc()
		return err
	}
	session, err := l.connector.Login(ctx, chat.LoginRequest{
		ServerURL:       cfg.Chat.ServerURL,
		Address:         signer.Address(),
		Timestamp:       ts,
		AuthChain:       chain,
		DisablePresence: l.source.PresenceDisabled(),
	})
	if err != nil {
		l.metrics.LoginAttempts.WithLabelValues("error").Inc()
		return fmt.Errorf("login %s: %w", signer.Address(), err)
	}
	l.metrics.LoginAttempts.WithLabelValues("ok").Inc()

	if name := cfg.Identity.DisplayName; name != "" {
		if err := session.SetProfileInfo(ctx, chat.ProfileInfo{DisplayName: name}); err != nil {
			l.logger.Warn("set profile info", zap.Error(err))
		}
	}

	l.store.SetSession(session)
	if err := l.friends.Refresh(ctx); err != nil {
		l.logger.Error("initial friends load failed", zap.Error(err))
	}
	l.handler.Bind(ctx, session)

	if l.db != nil {
		if err := l.db.SetCheckpoint(store.CheckpointLastLogin, l.now().UTC().Format(time.RFC3339)); err != nil {
			l.logger.Warn("login checkpoint", zap.Error(err))
		}
	}
	l.transition(status.Ready)
	l.bus.Emit(bus.SessionConnected, session.UserID())
	l.logger.Info("chat session ready", zap.String("user_id", session.UserID()))
	return nil
}

// Logout ends the session and forgets all social state.
func (l *Loop) Logout(ctx context.Context) error {
	session := l.store.Session()
	if session == nil {
		return nil
	}
	err := session.Logout(ctx)
	l.store.Reset()
	l.catalog.Reset()
	l.transition(status.WaitingAuth)
	l.bus.Emit(bus.SessionLoggedOut, session.UserID())
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (l *Loop) transition(to status.State) {
	if err := l.machine.Transition(to); err != nil {
		l.logger.Debug("status transition skipped", zap.Error(err))
	}
}
