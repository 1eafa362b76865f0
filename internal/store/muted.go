package store

import (
	"fmt"
	"time"
)

// MutedChannels returns every muted channel id.
func (db *DB) MutedChannels() ([]string, error) {
	return db.ids(`SELECT channel_id FROM muted_channels ORDER BY muted_at ASC`)
}

// SetMuted mutes or unmutes a channel. Both directions are idempotent.
func (db *DB) SetMuted(channelID string, muted bool) error {
	if !muted {
		_, err := db.Exec(`DELETE FROM muted_channels WHERE channel_id = ?`, channelID)
		return err
	}
	_, err := db.Exec(`
		INSERT INTO muted_channels (channel_id, muted_at) VALUES (?, ?)
		ON CONFLICT(channel_id) DO NOTHING`,
		channelID, time.Now().UnixMilli())
	return err
}

// BlockedUsers returns the user ids whose messages are dropped.
func (db *DB) BlockedUsers() ([]string, error) {
	return db.ids(`SELECT user_id FROM blocked_users ORDER BY blocked_at ASC`)
}

// SetBlocked blocks or unblocks a user.
func (db *DB) SetBlocked(userID string, blocked bool) error {
	if !blocked {
		_, err := db.Exec(`DELETE FROM blocked_users WHERE user_id = ?`, userID)
		return err
	}
	_, err := db.Exec(`
		INSERT INTO blocked_users (user_id, blocked_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, time.Now().UnixMilli())
	return err
}

func (db *DB) ids(query string) ([]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
