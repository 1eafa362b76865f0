package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Global represents the global ~/.socialsync/config.toml.
type Global struct {
	DefaultSession string `toml:"default_session"`
}

// Config is the per-session daemon configuration. Feature flags live under
// [features] and are read through a Source at call time.
type Config struct {
	Chat     Chat     `toml:"chat"`
	Features Features `toml:"features"`
	Identity Identity `toml:"identity"`
	Realm    Realm    `toml:"realm"`
	Gateway  Gateway  `toml:"gateway"`
}

type Chat struct {
	ServerURL string `toml:"server_url" validate:"required,url"`
	Domain    string `toml:"domain" validate:"required,hostname"`
	Driver    string `toml:"driver" validate:"oneof=memory"`
}

type Features struct {
	ChatDisabled     bool            `toml:"chat_disabled"`
	RetryLogin       bool            `toml:"retry_login"`
	PresenceDisabled bool            `toml:"presence_disabled"`
	ChannelsEnabled  bool            `toml:"channels_enabled"`
	MaxChannels      int             `toml:"max_joined_channels" validate:"gte=0"`
	ChannelCreators  ChannelCreators `toml:"channel_creators"`
}

// ChannelCreators restricts who may create channels. Mode 0 means only the
// allow-listed addresses may create; any other mode denies everyone.
type ChannelCreators struct {
	Mode      int      `toml:"mode" validate:"gte=0"`
	AllowList []string `toml:"allow_list" validate:"dive,eth_addr"`
}

type Identity struct {
	Address     string `toml:"address" validate:"omitempty,eth_addr"`
	Guest       bool   `toml:"guest"`
	DisplayName string `toml:"display_name"`
	PrivateKey  string `toml:"private_key" validate:"omitempty,hexadecimal,len=64"`
}

type Realm struct {
	ConnectionString string `toml:"connection_string"`
}

type Gateway struct {
	Listen string `toml:"listen" validate:"required,hostname_port"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Chat: Chat{
			ServerURL: "https://synapse.decentraland.org",
			Domain:    "decentraland.org",
			Driver:    "memory",
		},
		Features: Features{
			RetryLogin:      true,
			ChannelsEnabled: true,
			MaxChannels:     10,
		},
		Realm:   Realm{ConnectionString: OfflineRealm},
		Gateway: Gateway{Listen: "127.0.0.1:7666"},
	}
}

// OfflineRealm is the realm connection string reported while not connected to any realm.
const OfflineRealm = "offline"

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads and validates a session config. Fields absent from the file keep
// their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	return writeTOML(path, cfg)
}

// LoadGlobal reads the global config. Returns error if file missing.
func LoadGlobal(path string) (*Global, error) {
	var g Global
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGlobal writes the global config.
func SaveGlobal(path string, g *Global) error {
	return writeTOML(path, g)
}

func writeTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
