package config

import (
	"strings"
	"sync/atomic"
)

// Source answers feature-flag queries against the current configuration.
// Every query reads the configuration at call time, so a Reload takes effect
// on the next call.
type Source struct {
	cur  atomic.Pointer[Config]
	path string
}

// NewSource wraps cfg. path is used by Reload and may be empty.
func NewSource(cfg *Config, path string) *Source {
	s := &Source{path: path}
	if cfg == nil {
		cfg = Default()
	}
	s.cur.Store(cfg)
	return s
}

// Current returns the active configuration. Callers must not mutate it.
func (s *Source) Current() *Config { return s.cur.Load() }

// Set replaces the active configuration.
func (s *Source) Set(cfg *Config) { s.cur.Store(cfg) }

// Reload re-reads the config file. On error the active configuration is kept.
func (s *Source) Reload() error {
	cfg, err := LoadOrDefault(s.path)
	if err != nil {
		return err
	}
	s.cur.Store(cfg)
	return nil
}

func (s *Source) ChatDisabled() bool     { return s.Current().Features.ChatDisabled }
func (s *Source) RetryLogin() bool       { return s.Current().Features.RetryLogin }
func (s *Source) PresenceDisabled() bool { return s.Current().Features.PresenceDisabled }
func (s *Source) ChannelsEnabled() bool  { return s.Current().Features.ChannelsEnabled }
func (s *Source) MaxChannels() int       { return s.Current().Features.MaxChannels }
func (s *Source) ServerURL() string      { return s.Current().Chat.ServerURL }
func (s *Source) Domain() string         { return s.Current().Chat.Domain }

// IsAllowedToCreateChannels reports whether userID may create channels.
func (s *Source) IsAllowedToCreateChannels(userID string) bool {
	creators := s.Current().Features.ChannelCreators
	if creators.Mode != 0 {
		return false
	}
	for _, addr := range creators.AllowList {
		if strings.EqualFold(addr, userID) {
			return true
		}
	}
	return false
}

// RealmConnectionString is the realm the daemon starts in.
func (s *Source) RealmConnectionString() string { return s.Current().Realm.ConnectionString }
