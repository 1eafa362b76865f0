package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRecordsOwner(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions", "main")

	l, err := Acquire(dir, "main")
	require.NoError(t, err)

	held := heldBy(filepath.Join(dir, fileName))
	assert.Equal(t, os.Getpid(), held.PID)
	assert.Equal(t, "main", held.Session)

	require.NoError(t, l.Release())
	_, err = os.Stat(filepath.Join(dir, fileName))
	assert.True(t, os.IsNotExist(err), "lock file should be removed on release")
}

func TestSecondAcquireReportsHolder(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "work")
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Release() })

	_, err = Acquire(dir, "work")
	var held *LockHeldError
	require.True(t, errors.As(err, &held), "got %v", err)
	assert.Equal(t, os.Getpid(), held.PID)
	assert.Equal(t, "work", held.Session)
	assert.Contains(t, held.Error(), `session "work" already served`)
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "main")
	require.NoError(t, err)
	require.NoError(t, l.Release())

	l, err = Acquire(dir, "main")
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestReleaseIsIdempotent(t *testing.T) {
	var nilLock *Lock
	assert.NoError(t, nilLock.Release())

	l, err := Acquire(t.TempDir(), "main")
	require.NoError(t, err)
	assert.NoError(t, l.Release())
	assert.NoError(t, l.Release())
}

func TestHeldErrorWithoutOwner(t *testing.T) {
	e := heldBy(filepath.Join(t.TempDir(), "missing"))
	assert.Zero(t, e.PID)
	assert.Equal(t, "session lock held by PID 0 ("+e.Path+")", e.Error())
}
