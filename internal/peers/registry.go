// Package peers tracks which users have a live world transport connection.
package peers

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Registry is a thread-safe set of online local user ids. Ids are compared
// case-insensitively.
type Registry struct {
	online mapset.Set[string]
}

func NewRegistry() *Registry {
	return &Registry{online: mapset.NewSet[string]()}
}

// IsOnline reports whether userID has a live transport connection.
func (r *Registry) IsOnline(userID string) bool {
	return r.online.Contains(strings.ToLower(userID))
}

// SetOnline records a peer connecting or disconnecting.
func (r *Registry) SetOnline(userID string, online bool) {
	if online {
		r.online.Add(strings.ToLower(userID))
		return
	}
	r.online.Remove(strings.ToLower(userID))
}

// Count returns the number of online peers.
func (r *Registry) Count() int { return r.online.Cardinality() }
