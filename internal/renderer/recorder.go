package renderer

import (
	"context"
	"sync"
)

// Recorder is a Renderer that keeps every payload in memory. It is always ready.
type Recorder struct {
	mu       sync.Mutex
	payloads []Payload
}

var _ Renderer = (*Recorder)(nil)

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Send(p Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *Recorder) WaitReady(ctx context.Context) error { return ctx.Err() }

// All returns a copy of the recorded payloads in send order.
func (r *Recorder) All() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Payload, len(r.payloads))
	copy(out, r.payloads)
	return out
}

// Reset forgets every recorded payload.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = nil
}

// Sent returns the recorded payloads of type T.
func Sent[T Payload](r *Recorder) []T {
	var out []T
	for _, p := range r.All() {
		if v, ok := p.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// Last returns the most recent payload of type T.
func Last[T Payload](r *Recorder) (T, bool) {
	all := Sent[T](r)
	if len(all) == 0 {
		var zero T
		return zero, false
	}
	return all[len(all)-1], true
}
