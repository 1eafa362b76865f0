// Package lock keeps a single daemon per session directory.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const fileName = "LOCK"

// LockHeldError is returned when another daemon holds the session lock.
type LockHeldError struct {
	PID     int
	Session string
	Path    string
}

func (e *LockHeldError) Error() string {
	if e.Session != "" {
		return fmt.Sprintf("session %q already served by PID %d (%s)", e.Session, e.PID, e.Path)
	}
	return fmt.Sprintf("session lock held by PID %d (%s)", e.PID, e.Path)
}

// Lock is an exclusive flock on a session directory. Holding it makes the
// process the only actor mutating that session's social state.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock for sessionDir on behalf of the named session and
// records the owner in the lock file.
func Acquire(sessionDir, sessionName string) (*Lock, error) {
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	path := filepath.Join(sessionDir, fileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, heldBy(path)
	}

	owner := fmt.Sprintf("pid=%d\nsession=%s\ntime=%s\n", os.Getpid(), sessionName, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(owner), 0600); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("record lock owner: %w", err)
	}
	return &Lock{fl: fl}, nil
}

// Release removes the lock file and drops the lock. Safe on a nil receiver
// and more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	_ = os.Remove(l.fl.Path())
	err := l.fl.Unlock()
	l.fl = nil
	return err
}

func heldBy(path string) *LockHeldError {
	e := &LockHeldError{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return e
	}
	for _, line := range strings.Split(string(data), "\n") {
		k, v, _ := strings.Cut(line, "=")
		switch k {
		case "pid":
			e.PID, _ = strconv.Atoi(v)
		case "session":
			e.Session = v
		}
	}
	return e
}
