package friends

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Action is a friendship lifecycle transition.
type Action int

const (
	ActionNone Action = iota
	ActionApproved
	ActionRejected
	ActionCanceled
	ActionRequestedFrom
	ActionRequestedTo
	ActionDeleted
)

var actionNames = []string{"NONE", "APPROVED", "REJECTED", "CANCELED", "REQUESTED_FROM", "REQUESTED_TO", "DELETED"}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "Action(" + strconv.Itoa(int(a)) + ")"
	}
	return actionNames[a]
}

// ParseAction accepts either the symbolic name or the numeric value.
func ParseAction(s string) (Action, error) {
	if i := slices.Index(actionNames, strings.ToUpper(s)); i >= 0 {
		return Action(i), nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(actionNames) {
		return Action(n), nil
	}
	return ActionNone, fmt.Errorf("unknown friendship action %q", s)
}

// UnmarshalJSON accepts numbers and names.
func (a *Action) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		parsed, err := ParseAction(strconv.Itoa(n))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Apply returns the state after action on userID and whether anything changed.
// The input state is not modified.
//
// APPROVED and REJECTED share the removal of the pending request; APPROVED
// additionally adds the user to Friends. REQUESTED_* on an existing friend is
// ignored.
func Apply(s State, action Action, userID string, now time.Time) (State, bool) {
	next := s.Clone()
	changed := false

	switch action {
	case ActionApproved, ActionRejected, ActionCanceled:
		var removedTo, removedFrom bool
		next.ToFriendRequests, removedTo = removeRequest(next.ToFriendRequests, userID)
		next.FromFriendRequests, removedFrom = removeRequest(next.FromFriendRequests, userID)
		changed = removedTo || removedFrom
		if action == ActionApproved && changed && !slices.Contains(next.Friends, userID) {
			next.Friends = append(next.Friends, userID)
		}
	case ActionRequestedFrom:
		if !slices.Contains(next.Friends, userID) && indexOfRequest(next.FromFriendRequests, userID) < 0 {
			next.FromFriendRequests = append(next.FromFriendRequests, FriendRequest{UserID: userID, CreatedAt: now.UnixMilli()})
			changed = true
		}
	case ActionRequestedTo:
		if !slices.Contains(next.Friends, userID) && indexOfRequest(next.ToFriendRequests, userID) < 0 {
			next.ToFriendRequests = append(next.ToFriendRequests, FriendRequest{UserID: userID, CreatedAt: now.UnixMilli()})
			changed = true
		}
	case ActionDeleted:
		if i := slices.Index(next.Friends, userID); i >= 0 {
			next.Friends = slices.Delete(next.Friends, i, i+1)
			changed = true
		}
	}

	if !changed {
		return s, false
	}
	return next, true
}
