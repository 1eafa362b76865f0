package dispatch

import (
	"context"
	"sync"

	"github.com/JFJun/kernel/internal/friends"
)

type friendshipEvent struct {
	kind     string
	action   friends.Action
	socialID string
}

// friendshipQueue is an unbounded FIFO of incoming friendship transitions.
// Pushing never blocks; one worker applies the events in arrival order.
type friendshipQueue struct {
	mu      sync.Mutex
	items   []friendshipEvent
	closed  bool
	wake    chan struct{}
	pending sync.WaitGroup
}

func newFriendshipQueue() *friendshipQueue {
	return &friendshipQueue{wake: make(chan struct{}, 1)}
}

// push appends evt. Events pushed after close are dropped.
func (q *friendshipQueue) push(evt friendshipEvent) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending.Add(1)
	q.items = append(q.items, evt)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *friendshipQueue) pop() (friendshipEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return friendshipEvent{}, false
	}
	evt := q.items[0]
	q.items[0] = friendshipEvent{}
	q.items = q.items[1:]
	return evt, true
}

// run applies queued events with apply until ctx is done.
func (q *friendshipQueue) run(ctx context.Context, apply func(friendshipEvent)) {
	for {
		for {
			evt, ok := q.pop()
			if !ok {
				break
			}
			apply(evt)
			q.pending.Done()
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return
		}
	}
}

// close refuses further events and discards the ones not yet applied.
func (q *friendshipQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for range q.items {
		q.pending.Done()
	}
	q.items = nil
}

func (q *friendshipQueue) wait() { q.pending.Wait() }
