package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/JFJun/kernel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	t.Setenv("SOCIALSYNC_SESSION", "")
	home := t.TempDir()
	t.Setenv("SOCIALSYNC_HOME", home)

	out, err := run(t, "--session", "work", "config", "init")
	require.NoError(t, err)
	path := filepath.Join(home, "sessions", "work", "config.toml")
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Chat, cfg.Chat)
	assert.Equal(t, config.Default().Gateway, cfg.Gateway)

	_, err = run(t, "--session", "work", "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "--session", "work", "config", "init", "--force")
	assert.NoError(t, err)
}

func TestPathsJSON(t *testing.T) {
	t.Setenv("SOCIALSYNC_SESSION", "")
	home := t.TempDir()
	t.Setenv("SOCIALSYNC_HOME", home)

	out, err := run(t, "--json", "paths")
	require.NoError(t, err)
	var paths []pathEntry
	require.NoError(t, json.Unmarshal([]byte(out), &paths))
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(home, "sessions", "main"), paths[0].Path)
}

func TestInvalidSessionName(t *testing.T) {
	t.Setenv("SOCIALSYNC_HOME", t.TempDir())
	_, err := run(t, "--session", "../escape", "paths")
	assert.Error(t, err)
}

func TestStatusWithoutDaemon(t *testing.T) {
	t.Setenv("SOCIALSYNC_SESSION", "")
	t.Setenv("SOCIALSYNC_HOME", t.TempDir())
	_, err := run(t, "status")
	assert.ErrorContains(t, err, "cannot reach daemon")
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printStatus(&buf, daemonStatus{Session: "main", Daemon: "SERVING", Chat: "NOT_SERVING"}, false))
	assert.Equal(t, "session: main\ndaemon:  SERVING\nchat:    NOT_SERVING\n", buf.String())
}
