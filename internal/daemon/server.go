package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/JFJun/kernel/internal/bus"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/session"
	"github.com/JFJun/kernel/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatService is the health service name that is SERVING while the chat
// session is ready. The empty name reports the daemon itself.
const ChatService = "socialsync.chat"

// Server manages the gRPC health server bound to the session's Unix socket.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	machine    *status.Machine
	bus        *bus.Bus
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cancel     context.CancelFunc
}

// NewServer creates a gRPC server bound to the session's Unix domain socket.
func NewServer(p Params, machine *status.Machine, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.For(p.SessionName).Socket
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		machine:    machine,
		bus:        b,
		metrics:    m,
		logger:     logger,
	}, nil
}

// Start follows the session status and serves health checks in the background.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ch, unsub := s.bus.Subscribe(bus.SessionStatusChanged, 16)
	s.setChatStatus(s.machine.Current())
	s.metrics.SetSessionState(string(s.machine.Current()), stateNames())
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				if change, ok := evt.Payload.(status.StatusChange); ok {
					s.setChatStatus(change.To)
					s.metrics.SetSessionState(string(change.To), stateNames())
					s.logger.Info("session status changed",
						zap.String("from", string(change.From)),
						zap.String("to", string(change.To)),
						zap.Duration("held", change.Held))
				}
			}
		}
	}()

	s.logger.Info("gRPC health server starting", zap.String("socket", s.socketPath))
	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			s.logger.Error("gRPC server error", zap.Error(err))
		}
	}()
}

func (s *Server) setChatStatus(state status.State) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if state == status.Ready {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ChatService, st)
}

func stateNames() []string {
	names := make([]string, len(status.States))
	for i, st := range status.States {
		names[i] = string(st)
	}
	return names
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("gRPC health server stopping")
	if s.cancel != nil {
		s.cancel()
	}
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}
