package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds shared across the daemon.
const (
	SessionStatusChanged = "session.status_changed"
	SessionAuthenticated = "session.authenticated"
	SessionConnected     = "session.connected"
	SessionLoggedOut     = "session.logged_out"
	RoomChanged          = "comms.room_changed"
	RendererPrefix       = "renderer."
	GatewayConnected     = "gateway.connected"
	GatewayDisconnected  = "gateway.disconnected"
)
