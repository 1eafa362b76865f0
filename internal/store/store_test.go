package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)
	if filepath.Base(db.Path()) != "test.db" {
		t.Errorf("Path() = %q", db.Path())
	}

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestMutedChannels(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"!a:server", "!b:server", "!a:server"} {
		if err := db.SetMuted(id, true); err != nil {
			t.Fatalf("SetMuted(%s) error = %v", id, err)
		}
	}
	muted, err := db.MutedChannels()
	if err != nil {
		t.Fatal(err)
	}
	if len(muted) != 2 {
		t.Fatalf("got %d muted channels, want 2: %v", len(muted), muted)
	}

	if err := db.SetMuted("!a:server", false); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMuted("!missing:server", false); err != nil {
		t.Fatalf("unmuting an unknown channel should succeed, got %v", err)
	}
	muted, err = db.MutedChannels()
	if err != nil {
		t.Fatal(err)
	}
	if len(muted) != 1 || muted[0] != "!b:server" {
		t.Errorf("muted = %v, want [!b:server]", muted)
	}
}

func TestBlockedUsers(t *testing.T) {
	db := testDB(t)

	if err := db.SetBlocked("0xbad", true); err != nil {
		t.Fatal(err)
	}
	blocked, err := db.BlockedUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocked) != 1 || blocked[0] != "0xbad" {
		t.Errorf("blocked = %v, want [0xbad]", blocked)
	}

	if err := db.SetBlocked("0xbad", false); err != nil {
		t.Fatal(err)
	}
	blocked, err = db.BlockedUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocked) != 0 {
		t.Errorf("blocked = %v, want empty", blocked)
	}
}

func TestCheckpoint(t *testing.T) {
	db := testDB(t)

	v, err := db.Checkpoint(CheckpointLastResync)
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("unset checkpoint = %q, want empty", v)
	}

	if err := db.SetCheckpoint(CheckpointLastResync, "100"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCheckpoint(CheckpointLastResync, "200"); err != nil {
		t.Fatal(err)
	}
	v, err = db.Checkpoint(CheckpointLastResync)
	if err != nil {
		t.Fatal(err)
	}
	if v != "200" {
		t.Errorf("checkpoint = %q, want 200", v)
	}
}
