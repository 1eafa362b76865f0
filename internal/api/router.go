package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/JFJun/kernel/internal/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrUnknownMethod is returned for a request type the router does not serve.
var ErrUnknownMethod = errors.New("api: unknown method")

type handlerFunc func(ctx context.Context, payload json.RawMessage) error

// Router decodes renderer requests by method name and calls the Service.
type Router struct {
	routes  map[string]handlerFunc
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRouter(s *Service, m *metrics.Metrics, logger *zap.Logger) *Router {
	r := &Router{
		metrics: m,
		logger:  logger.Named("router"),
		routes: map[string]handlerFunc{
			"GetFriends":                    route(s.GetFriends),
			"GetFriendRequests":             route(s.GetFriendRequests),
			"GetFriendsWithDirectMessages":  route(s.GetFriendsWithDirectMessages),
			"GetPrivateMessages":            route(s.GetPrivateMessages),
			"MarkAsSeenPrivateChatMessages": route(s.MarkPrivateSeen),
			"GetUnseenMessagesByUser":       bare(s.GetUnseenMessagesByUser),
			"GetUnseenMessagesByChannel":    bare(s.GetUnseenMessagesByChannel),
			"SendPrivateMessage":            route(s.SendPrivateMessage),
			"SendChannelMessage":            route(s.SendChannelMessage),
			"UpdateFriendship":              route(s.UpdateFriendship),
			"JoinOrCreateChannel":           route(s.JoinOrCreateChannel),
			"JoinChannel":                   route(s.JoinChannel),
			"CreateChannel":                 route(s.CreateChannel),
			"LeaveChannel":                  route(s.LeaveChannel),
			"MuteChannel":                   route(s.MuteChannel),
			"MarkChannelMessagesAsSeen":     route(s.MarkChannelSeen),
			"SearchChannels":                route(s.SearchChannels),
			"GetChannelInfo":                route(s.GetChannelInfo),
			"GetChannelMembers":             route(s.GetChannelMembers),
			"GetChannelMessages":            route(s.GetChannelMessages),
			"GetJoinedChannels":             route(s.GetJoinedChannels),
			"SetRoomContext":                route(s.SetRoomContext),
			"SetPeerOnline":                 route(s.SetPeerOnline),
			"SetBlocked":                    route(s.SetBlocked),
		},
	}
	return r
}

func route[T any](fn func(context.Context, T) error) handlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var req T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
		}
		if err := validate.Struct(req); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		return fn(ctx, req)
	}
}

func bare(fn func(context.Context) error) handlerFunc {
	return func(ctx context.Context, _ json.RawMessage) error { return fn(ctx) }
}

// Methods lists the served method names, sorted.
func (r *Router) Methods() []string {
	out := make([]string, 0, len(r.routes))
	for m := range r.routes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Dispatch handles one request. Failures are logged and returned.
func (r *Router) Dispatch(ctx context.Context, method string, payload json.RawMessage) error {
	h, ok := r.routes[method]
	if !ok {
		r.metrics.Requests.WithLabelValues("unknown", "error").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if err := h(ctx, payload); err != nil {
		r.metrics.Requests.WithLabelValues(method, "error").Inc()
		r.logger.Warn("request failed", zap.String("method", method), zap.Error(err))
		return fmt.Errorf("%s: %w", method, err)
	}
	r.metrics.Requests.WithLabelValues(method, "ok").Inc()
	return nil
}
