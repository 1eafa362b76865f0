package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Features.MaxChannels = 3
	cfg.Identity.Address = "0x1111111111111111111111111111111111111111"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Features.MaxChannels != 3 {
		t.Errorf("MaxChannels = %d, want 3", loaded.Features.MaxChannels)
	}
	if loaded.Identity.Address != cfg.Identity.Address {
		t.Errorf("Address = %q, want %q", loaded.Identity.Address, cfg.Identity.Address)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[features]\nchannels_enabled = false\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Features.ChannelsEnabled {
		t.Error("ChannelsEnabled = true, want false from file")
	}
	if cfg.Chat.Domain != "decentraland.org" {
		t.Errorf("Domain = %q, want default", cfg.Chat.Domain)
	}
	if !cfg.Features.RetryLogin {
		t.Error("RetryLogin default lost")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad driver", "[chat]\ndriver = \"carrier-pigeon\"\n"},
		{"bad allow list", "[features.channel_creators]\nallow_list = [\"nope\"]\n"},
		{"negative limit", "[features]\nmax_joined_channels = -1\n"},
		{"bad listen", "[gateway]\nlisten = \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected validation error")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Chat.Driver != "memory" {
		t.Errorf("Driver = %q, want memory", cfg.Chat.Driver)
	}
}

func TestGlobalSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := SaveGlobal(path, &Global{DefaultSession: "work"}); err != nil {
		t.Fatalf("SaveGlobal() error = %v", err)
	}
	g, err := LoadGlobal(path)
	if err != nil {
		t.Fatalf("LoadGlobal() error = %v", err)
	}
	if g.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want work", g.DefaultSession)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
