package dispatch

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MessageLifespan is how long a message id is remembered.
const MessageLifespan = time.Second

// Dedup remembers message ids for a fixed lifespan. Expired ids are purged
// by the cache's own sweep; nothing removes them explicitly.
type Dedup struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, time.Time]
	now   func() time.Time
}

func NewDedup(lifespan time.Duration) *Dedup {
	return &Dedup{
		cache: expirable.NewLRU[string, time.Time](0, nil, lifespan),
		now:   time.Now,
	}
}

// Seen records id and reports whether it was already recorded within the
// lifespan.
func (d *Dedup) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache.Contains(id) {
		return true
	}
	d.cache.Add(id, d.now())
	return false
}

func (d *Dedup) Len() int { return d.cache.Len() }
