// Package session names daemon sessions and lays out their files.
package session

import (
	"fmt"
	"os"
	"regexp"

	"github.com/JFJun/kernel/internal/config"
)

const (
	DefaultName = "main"
	// NameEnv selects the session when no flag is given.
	NameEnv = "SOCIALSYNC_SESSION"
)

// Names are lowercase so one identity never maps to two directories on
// case-insensitive filesystems. A leading hyphen would read as a flag.
var namePattern = regexp.MustCompile(`^[a-z0-9_][a-z0-9_-]{0,63}$`)

// NameError reports a session name that cannot be used as a directory.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid session name %q: must match %s", e.Name, namePattern)
}

// ValidateName returns a *NameError when name breaks the naming rules.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return &NameError{Name: name}
	}
	return nil
}

// Resolve picks the session: the flag, then $SOCIALSYNC_SESSION, then
// default_session from the global config, then "main".
func Resolve(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(NameEnv); env != "" {
		return env
	}
	if g, err := config.LoadGlobal(ConfigPath()); err == nil && g.DefaultSession != "" {
		return g.DefaultSession
	}
	return DefaultName
}
