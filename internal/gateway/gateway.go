// Package gateway exposes the renderer bridge over a websocket, plus the
// metrics and health endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JFJun/kernel/internal/api"
	"github.com/JFJun/kernel/internal/bus"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	outboxSize   = 256
)

// Envelope is one websocket frame in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Server serves a single renderer connection at a time.
type Server struct {
	addr     string
	engine   *gin.Engine
	http     *http.Server
	listener net.Listener
	bus      *bus.Bus
	router   *api.Router
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	active *websocket.Conn
	conns  sync.WaitGroup
}

func New(addr string, b *bus.Bus, router *api.Router, m *metrics.Metrics, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		addr:   addr,
		engine: gin.New(),
		bus:    b,
		router: router,
		logger: logger.Named("gateway"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		ctx: context.Background(),
	}
	s.engine.Use(gin.Recovery(), s.logRequests)
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	s.engine.GET("/renderer", s.renderer)
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.listener = ln
	s.http = &http.Server{Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()

	s.logger.Info("gateway listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway serve", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop closes the renderer connection and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.active != nil {
		_ = s.active.Close()
	}
	srv := s.http
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("gateway shutdown", zap.Error(err))
		}
	}
	s.conns.Wait()
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)),
	)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) renderer(c *gin.Context) {
	s.mu.Lock()
	busy := s.active != nil
	s.mu.Unlock()
	if busy {
		c.JSON(http.StatusConflict, gin.H{"error": "a renderer is already connected"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.active = conn
	ctx := s.ctx
	s.conns.Add(1)
	s.mu.Unlock()

	s.serve(ctx, conn)
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	defer s.conns.Done()
	events, unsub := s.bus.Subscribe(bus.RendererPrefix, outboxSize)
	ctx, cancel := context.WithCancel(ctx)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.write(ctx, conn, events)
	}()

	s.bus.Emit(bus.GatewayConnected, conn.RemoteAddr().String())
	s.logger.Info("renderer connected", zap.String("remote", conn.RemoteAddr().String()))

	s.read(ctx, conn)

	cancel()
	unsub()
	<-writerDone
	_ = conn.Close()

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
	s.bus.Emit(bus.GatewayDisconnected, conn.RemoteAddr().String())
	s.logger.Info("renderer disconnected")
}

func (s *Server) read(ctx context.Context, conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("renderer read", zap.Error(err))
			}
			return
		}
		if env.Type == "" {
			s.logger.Warn("renderer frame without type")
			continue
		}
		// Failures are logged and counted by the router.
		_ = s.router.Dispatch(ctx, env.Type, env.Payload)
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			frame := outbound{Type: strings.TrimPrefix(evt.Kind, bus.RendererPrefix), Payload: evt.Payload}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Warn("renderer write", zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}
}
