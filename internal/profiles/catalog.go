// Package profiles resolves user profiles and tracks which of them the
// renderer already holds in its catalog.
package profiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/JFJun/kernel/internal/renderer"
	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Avatar is the minimal profile shape needed to key lookups.
type Avatar struct {
	UserID         string
	Name           string
	Face256        string
	HasClaimedName bool
}

func (a Avatar) toPayload() renderer.Profile {
	return renderer.Profile{UserID: a.UserID, Name: a.Name, Face256: a.Face256, HasClaimedName: a.HasClaimedName}
}

// Resolver loads a profile. Callers await it before reading catalog state
// that depends on it.
type Resolver interface {
	EnsureProfile(ctx context.Context, userID string) (Avatar, error)
}

// FetchFunc loads a profile from its origin.
type FetchFunc func(ctx context.Context, userID string) (Avatar, error)

// Catalog is a Resolver backed by an LRU cache. Every profile it resolves is
// pushed to the renderer catalog once.
type Catalog struct {
	cache    *lru.Cache[string, Avatar]
	added    mapset.Set[string]
	fetch    FetchFunc
	renderer renderer.Renderer
}

var _ Resolver = (*Catalog)(nil)

// NewCatalog creates a catalog holding up to size profiles.
func NewCatalog(size int, fetch FetchFunc, r renderer.Renderer) (*Catalog, error) {
	cache, err := lru.New[string, Avatar](size)
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return &Catalog{
		cache:    cache,
		added:    mapset.NewSet[string](),
		fetch:    fetch,
		renderer: r,
	}, nil
}

// EnsureProfile returns the cached profile, fetching and publishing it on a miss.
func (c *Catalog) EnsureProfile(ctx context.Context, userID string) (Avatar, error) {
	if a, ok := c.cache.Get(userID); ok {
		if !c.added.Contains(userID) {
			c.AddToCatalog(a)
		}
		return a, nil
	}
	a, err := c.fetch(ctx, userID)
	if err != nil {
		return Avatar{}, fmt.Errorf("fetch profile %s: %w", userID, err)
	}
	c.cache.Add(userID, a)
	c.AddToCatalog(a)
	return a, nil
}

// Get returns a cached profile without fetching.
func (c *Catalog) Get(userID string) (Avatar, bool) {
	return c.cache.Get(userID)
}

// IsAdded reports whether the renderer catalog already has userID.
func (c *Catalog) IsAdded(userID string) bool {
	return c.added.Contains(userID)
}

// AddToCatalog caches the profiles and sends them to the renderer.
func (c *Catalog) AddToCatalog(avatars ...Avatar) {
	if len(avatars) == 0 {
		return
	}
	payload := renderer.AddUserProfilesToCatalog{Profiles: make([]renderer.Profile, 0, len(avatars))}
	for _, a := range avatars {
		c.cache.Add(a.UserID, a)
		c.added.Add(a.UserID)
		payload.Profiles = append(payload.Profiles, a.toPayload())
	}
	c.renderer.Send(payload)
}

// Filter returns the cached profiles among userIDs whose name or id contains
// nameOrID, case-insensitively, in userIDs order. An empty filter keeps all.
func (c *Catalog) Filter(userIDs []string, nameOrID string) []Avatar {
	needle := strings.ToLower(nameOrID)
	out := make([]Avatar, 0, len(userIDs))
	for _, id := range userIDs {
		a, ok := c.cache.Get(id)
		if !ok {
			continue
		}
		if matches(a, needle) {
			out = append(out, a)
		}
	}
	return out
}

// FilterIDs is Filter over ids. A user without a cached profile is matched
// on the id alone and kept as a bare id.
func (c *Catalog) FilterIDs(userIDs []string, nameOrID string) []string {
	needle := strings.ToLower(nameOrID)
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		a, ok := c.cache.Get(id)
		if !ok {
			a = Avatar{UserID: id}
		}
		if matches(a, needle) {
			out = append(out, id)
		}
	}
	return out
}

func matches(a Avatar, needle string) bool {
	return needle == "" ||
		strings.Contains(strings.ToLower(a.Name), needle) ||
		strings.Contains(strings.ToLower(a.UserID), needle)
}

// Reset forgets every profile and catalog mark.
func (c *Catalog) Reset() {
	c.cache.Purge()
	c.added.Clear()
}

// ToPayloads converts avatars for AddUserProfilesToCatalog.
func ToPayloads(avatars []Avatar) []renderer.Profile {
	out := make([]renderer.Profile, 0, len(avatars))
	for _, a := range avatars {
		out = append(out, a.toPayload())
	}
	return out
}
