// Package metrics holds the daemon's prometheus collectors. They replace the
// analytics events of the social controller.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socialsync"

type Metrics struct {
	Registry *prometheus.Registry

	Events            *prometheus.CounterVec
	EventFailures     *prometheus.CounterVec
	DuplicateMessages prometheus.Counter
	FriendshipActions *prometheus.CounterVec
	Resyncs           *prometheus.CounterVec
	LoginAttempts     *prometheus.CounterVec
	ChannelErrors     *prometheus.CounterVec
	Requests          *prometheus.CounterVec
	StatusBroadcasts  prometheus.Counter
	SessionState      *prometheus.GaugeVec
	DroppedEvents     *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "chat_events_total",
			Help: "Chat service events dispatched, by type.",
		}, []string{"type"}),
		EventFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "chat_event_failures_total",
			Help: "Chat service events whose handler panicked, by type.",
		}, []string{"type"}),
		DuplicateMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "duplicate_messages_total",
			Help: "Message events dropped by the dedup window.",
		}),
		FriendshipActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "friendship_actions_total",
			Help: "Friendship transitions, by action and direction.",
		}, []string{"action", "direction"}),
		Resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "friends_resyncs_total",
			Help: "Full friend/request resynchronizations, by result.",
		}, []string{"result"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "login_attempts_total",
			Help: "Chat service login attempts, by result.",
		}, []string{"result"}),
		ChannelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "channel_errors_total",
			Help: "Channel operation errors reported to the renderer, by operation and code.",
		}, []string{"op", "code"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "renderer_requests_total",
			Help: "Requests received from the renderer, by method and result.",
		}, []string{"method", "result"}),
		StatusBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_broadcasts_total",
			Help: "Own presence updates sent to the chat service.",
		}),
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_state",
			Help: "1 for the chat session's current lifecycle state, 0 for the others.",
		}, []string{"state"}),
		DroppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bus_dropped_events_total",
			Help: "Bus events missed by a subscriber with a full buffer, by subscription namespace.",
		}, []string{"namespace"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Events, m.EventFailures, m.DuplicateMessages, m.FriendshipActions,
		m.Resyncs, m.LoginAttempts, m.ChannelErrors, m.Requests, m.StatusBroadcasts,
		m.SessionState, m.DroppedEvents,
	)
	return m
}

// SetSessionState raises the gauge of current and lowers every other state.
func (m *Metrics) SetSessionState(current string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
