package renderer

import (
	"context"
	"sync"

	"github.com/JFJun/kernel/internal/bus"
)

// Bridge publishes payloads on the bus as "renderer.<Method>" events, where
// the gateway forwards them to the connected front end. Readiness follows the
// gateway's connect and disconnect events.
type Bridge struct {
	bus *bus.Bus

	mu     sync.Mutex
	ready  chan struct{}
	isUp   bool
	cancel context.CancelFunc
}

var _ Renderer = (*Bridge)(nil)

// NewBridge creates a bridge in the not-ready state.
func NewBridge(b *bus.Bus) *Bridge {
	return &Bridge{bus: b, ready: make(chan struct{})}
}

// Send implements Renderer.
func (r *Bridge) Send(p Payload) {
	r.bus.Emit(bus.RendererPrefix+p.Method(), p)
}

// WaitReady blocks until a front end is connected or ctx is done.
func (r *Bridge) WaitReady(ctx context.Context) error {
	r.mu.Lock()
	ready := r.ready
	r.mu.Unlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetReady marks the front end as connected or gone.
func (r *Bridge) SetReady(up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if up == r.isUp {
		return
	}
	r.isUp = up
	if up {
		close(r.ready)
	} else {
		r.ready = make(chan struct{})
	}
}

// Start follows gateway connection events until Stop.
func (r *Bridge) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("gateway.", 16)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				switch evt.Kind {
				case bus.GatewayConnected:
					r.SetReady(true)
				case bus.GatewayDisconnected:
					r.SetReady(false)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops following gateway events.
func (r *Bridge) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}
