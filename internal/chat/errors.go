package chat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLoggedIn is returned by operations that need an active session.
var ErrNotLoggedIn = errors.New("chat: not logged in")

// UnknownUsersError reports that the service has never seen the listed users.
type UnknownUsersError struct {
	UserIDs []string
}

func (e *UnknownUsersError) Error() string {
	return fmt.Sprintf("chat: unknown users %s", strings.Join(e.UserIDs, ", "))
}

// ChannelsErrorKind classifies channel creation failures.
type ChannelsErrorKind int

const (
	ChannelsErrorOther ChannelsErrorKind = iota
	ChannelsErrorBadRegex
	ChannelsErrorReservedName
)

// ChannelsError is returned by GetOrCreateChannel when the service refuses a name.
type ChannelsError struct {
	Kind ChannelsErrorKind
	Name string
}

func (e *ChannelsError) Error() string {
	switch e.Kind {
	case ChannelsErrorBadRegex:
		return fmt.Sprintf("chat: channel name %q has an invalid format", e.Name)
	case ChannelsErrorReservedName:
		return fmt.Sprintf("chat: channel name %q is reserved", e.Name)
	default:
		return fmt.Sprintf("chat: channel %q could not be created", e.Name)
	}
}
