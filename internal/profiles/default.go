package profiles

import (
	"context"
	"strings"
)

// DefaultProfile builds the placeholder profile used for users whose real
// profile is unavailable: a display name and the chat server's picture.
func DefaultProfile(userID, name, serverURL string) Avatar {
	if name == "" {
		name = userID
	}
	return Avatar{
		UserID:  userID,
		Name:    name,
		Face256: strings.TrimRight(serverURL, "/") + "/profile-pictures/" + userID,
	}
}

// DefaultFetcher resolves every user to its DefaultProfile.
func DefaultFetcher(serverURL string) FetchFunc {
	return func(_ context.Context, userID string) (Avatar, error) {
		return DefaultProfile(userID, "", serverURL), nil
	}
}
