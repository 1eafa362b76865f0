// Package renderer is the one-way notification sink towards the rendering
// front end. Payloads are fire-and-forget; only readiness can be awaited.
package renderer

import "context"

// Payload is a typed notification. Method names the renderer entry point.
type Payload interface {
	Method() string
}

// Renderer accepts payloads for the front end.
type Renderer interface {
	Send(p Payload)
	WaitReady(ctx context.Context) error
}
