package session

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the socialsync home directory.
const HomeEnv = "SOCIALSYNC_HOME"

// BaseDir returns $SOCIALSYNC_HOME, or ~/.socialsync.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".socialsync")
}

// ConfigPath is the global config holding default_session.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Paths is the on-disk layout of one session.
type Paths struct {
	Dir    string
	Config string
	State  string
	Socket string
	Lock   string
	Logs   string
	Log    string
}

// For returns the layout of the named session under BaseDir.
func For(name string) Paths {
	dir := filepath.Join(BaseDir(), "sessions", name)
	logs := filepath.Join(dir, "logs")
	return Paths{
		Dir:    dir,
		Config: filepath.Join(dir, "config.toml"),
		State:  filepath.Join(dir, "social.db"),
		Socket: filepath.Join(dir, "daemon.sock"),
		Lock:   filepath.Join(dir, "LOCK"),
		Logs:   logs,
		Log:    filepath.Join(logs, "socialsyncd.log"),
	}
}

// Ensure creates the session and log directories, owner-only.
func (p Paths) Ensure() error {
	for _, d := range []string{p.Dir, p.Logs} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
