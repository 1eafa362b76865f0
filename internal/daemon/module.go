package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JFJun/kernel/internal/api"
	"github.com/JFJun/kernel/internal/bus"
	"github.com/JFJun/kernel/internal/channels"
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/chat/memory"
	"github.com/JFJun/kernel/internal/config"
	"github.com/JFJun/kernel/internal/dispatch"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/gateway"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/lock"
	"github.com/JFJun/kernel/internal/logging"
	"github.com/JFJun/kernel/internal/login"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/peers"
	"github.com/JFJun/kernel/internal/presence"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/session"
	"github.com/JFJun/kernel/internal/status"
	"github.com/JFJun/kernel/internal/store"
	"github.com/JFJun/kernel/internal/unread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const profileCacheSize = 1024

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional; empty = the session's config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			metrics.New,
			friends.NewStore,
			peers.NewRegistry,
			provideMapper,
			provideBridge,
			provideCatalog,
			provideMutes,
			provideBlocklist,
			provideUnread,
			provideTracker,
			provideController,
			provideChannels,
			provideRoom,
			provideBroadcaster,
			provideHandler,
			provideConnector,
			provideLoginLoop,
			provideService,
			api.NewRouter,
			provideGateway,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.For(p.SessionName).Log, p.SessionName)
}

func provideConfig(p Params, logger *zap.Logger) (*config.Source, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.For(p.SessionName).Config
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("path", path), zap.String("server_url", cfg.Chat.ServerURL))
	return config.NewSource(cfg, path), nil
}

func provideBus(m *metrics.Metrics, logger *zap.Logger) *bus.Bus {
	b := bus.New()
	b.OnDrop(func(namespace string, evt bus.Event) {
		m.DroppedEvents.WithLabelValues(namespace).Inc()
		if namespace == bus.RendererPrefix {
			logger.Warn("renderer outbox full, payload dropped", zap.String("type", evt.Kind))
		}
	})
	return b
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	paths := session.For(p.SessionName)
	if err := paths.Ensure(); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(paths.Dir, p.SessionName)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// The lock is taken before the database is opened.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(session.For(p.SessionName).State)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("store opened",
		zap.String("path", db.Path()),
		zap.Uint("schema_version", result.Version),
		zap.Bool("migrated", result.Changed))
	return db, nil
}

func provideMapper(cfg *config.Source, logger *zap.Logger) *identity.Mapper {
	return identity.NewMapper(cfg.Domain(), logger)
}

func provideBridge(b *bus.Bus) (*renderer.Bridge, renderer.Renderer) {
	br := renderer.NewBridge(b)
	return br, br
}

func provideCatalog(cfg *config.Source, r renderer.Renderer) (*profiles.Catalog, error) {
	return profiles.NewCatalog(profileCacheSize, profiles.DefaultFetcher(cfg.ServerURL()), r)
}

func provideMutes(db *store.DB) (*channels.Mutes, error) {
	return channels.LoadMutes(db)
}

func provideBlocklist(db *store.DB) (*dispatch.Blocklist, error) {
	return dispatch.LoadBlocklist(db)
}

func provideUnread(st *friends.Store, mapper *identity.Mapper, mutes *channels.Mutes, cfg *config.Source) *unread.Accounting {
	return unread.New(st, mapper, mutes, cfg)
}

func provideTracker(st *friends.Store, mapper *identity.Mapper, r renderer.Renderer, reg *peers.Registry, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(st, mapper, r, reg, logger)
}

func provideController(
	st *friends.Store,
	mapper *identity.Mapper,
	r renderer.Renderer,
	catalog *profiles.Catalog,
	tracker *presence.Tracker,
	acc *unread.Accounting,
	db *store.DB,
	m *metrics.Metrics,
	logger *zap.Logger,
) *friends.Controller {
	return friends.NewController(st, mapper, r, catalog, tracker, acc, db, m, logger)
}

func provideChannels(
	st *friends.Store,
	mapper *identity.Mapper,
	r renderer.Renderer,
	cfg *config.Source,
	mutes *channels.Mutes,
	acc *unread.Accounting,
	catalog *profiles.Catalog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *channels.Manager {
	return channels.NewManager(st, mapper, r, cfg, mutes, acc, catalog, m, logger)
}

func provideRoom(cfg *config.Source, b *bus.Bus) *presence.RoomContext {
	return presence.NewRoomContext(cfg.RealmConnectionString(), b)
}

func provideBroadcaster(
	st *friends.Store,
	mapper *identity.Mapper,
	tracker *presence.Tracker,
	room *presence.RoomContext,
	cfg *config.Source,
	b *bus.Bus,
	m *metrics.Metrics,
	logger *zap.Logger,
) *presence.Broadcaster {
	return presence.NewBroadcaster(st, mapper, tracker, room, cfg, b, m, logger)
}

type handlerIn struct {
	fx.In

	Store    *friends.Store
	Mapper   *identity.Mapper
	Renderer renderer.Renderer
	Catalog  *profiles.Catalog
	Tracker  *presence.Tracker
	Friends  *friends.Controller
	Channels *channels.Manager
	Unread   *unread.Accounting
	Config   *config.Source
	Blocked  *dispatch.Blocklist
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func provideHandler(in handlerIn) *dispatch.Handler {
	return dispatch.NewHandler(dispatch.Deps{
		Store:    in.Store,
		Mapper:   in.Mapper,
		Renderer: in.Renderer,
		Catalog:  in.Catalog,
		Tracker:  in.Tracker,
		Friends:  in.Friends,
		Channels: in.Channels,
		Unread:   in.Unread,
		Flags:    in.Config,
		Blocked:  in.Blocked,
		Dedup:    dispatch.NewDedup(dispatch.MessageLifespan),
		Metrics:  in.Metrics,
		Logger:   in.Logger,
	})
}

// memory is the only driver the config accepts.
func provideConnector(cfg *config.Source, logger *zap.Logger) chat.Connector {
	logger.Info("chat driver", zap.String("driver", cfg.Current().Chat.Driver))
	return memory.NewServer(cfg.Domain())
}

type loginIn struct {
	fx.In

	Connector chat.Connector
	Config    *config.Source
	Store     *friends.Store
	Friends   *friends.Controller
	Handler   *dispatch.Handler
	Catalog   *profiles.Catalog
	Renderer  renderer.Renderer
	Machine   *status.Machine
	Bus       *bus.Bus
	DB        *store.DB
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func provideLoginLoop(in loginIn) *login.Loop {
	return login.NewLoop(login.Deps{
		Connector: in.Connector,
		Source:    in.Config,
		Store:     in.Store,
		Friends:   in.Friends,
		Handler:   in.Handler,
		Catalog:   in.Catalog,
		Renderer:  in.Renderer,
		Machine:   in.Machine,
		Bus:       in.Bus,
		DB:        in.DB,
		Metrics:   in.Metrics,
		Logger:    in.Logger,
	})
}

type serviceIn struct {
	fx.In

	Store    *friends.Store
	Mapper   *identity.Mapper
	Renderer renderer.Renderer
	Catalog  *profiles.Catalog
	Tracker  *presence.Tracker
	Friends  *friends.Controller
	Channels *channels.Manager
	Unread   *unread.Accounting
	Room     *presence.RoomContext
	Peers    *peers.Registry
	Blocked  *dispatch.Blocklist
	Logger   *zap.Logger
}

func provideService(in serviceIn) *api.Service {
	return api.NewService(api.Deps{
		Store:    in.Store,
		Mapper:   in.Mapper,
		Renderer: in.Renderer,
		Catalog:  in.Catalog,
		Tracker:  in.Tracker,
		Friends:  in.Friends,
		Channels: in.Channels,
		Unread:   in.Unread,
		Room:     in.Room,
		Peers:    in.Peers,
		Blocked:  in.Blocked,
		Logger:   in.Logger,
	})
}

func provideGateway(cfg *config.Source, b *bus.Bus, router *api.Router, m *metrics.Metrics, logger *zap.Logger) *gateway.Server {
	return gateway.New(cfg.Current().Gateway.Listen, b, router, m, logger)
}

type lifecycleIn struct {
	fx.In

	Server      *Server
	Lock        *lock.Lock
	DB          *store.DB
	Bridge      *renderer.Bridge
	Gateway     *gateway.Server
	Login       *login.Loop
	Broadcaster *presence.Broadcaster
	Handler     *dispatch.Handler
	Config      *config.Source
	Logger      *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, in lifecycleIn) {
	var (
		cancel   context.CancelFunc
		hup      = make(chan os.Signal, 1)
		reloaded = make(chan struct{})
	)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			in.Bridge.Start(ctx)
			in.Handler.Start(ctx)
			in.Server.Start()
			if err := in.Gateway.Start(ctx); err != nil {
				cancel()
				return err
			}
			in.Login.Start(ctx)
			in.Broadcaster.Start(ctx)
			signal.Notify(hup, syscall.SIGHUP)
			go reloadOnSignal(ctx, in.Config, hup, in.Logger, reloaded)
			in.Logger.Info("daemon started", zap.String("gateway", in.Gateway.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			signal.Stop(hup)
			in.Login.Stop()
			in.Broadcaster.Stop()
			in.Handler.Wait()
			if err := in.Login.Logout(ctx); err != nil {
				in.Logger.Warn("logout on stop", zap.Error(err))
			}
			in.Handler.Stop()
			if cancel != nil {
				cancel()
				<-reloaded
			}
			in.Gateway.Stop(ctx)
			in.Bridge.Stop()
			in.Server.Stop(ctx)
			if err := in.DB.Close(); err != nil {
				in.Logger.Warn("error closing store", zap.Error(err))
			}
			if err := in.Lock.Release(); err != nil {
				in.Logger.Warn("error releasing lock", zap.Error(err))
			}
			in.Logger.Info("daemon stopped")
			return nil
		},
	})
}
