package device

import "context"

// Sink receives every device status change committed by the store.
// This abstraction lets the panel forward state to different downstream
// integrations (MQTT bridge, vendor clouds) through a unified interface.
type Sink interface {
	// PublishStatus forwards the full merged status of a device
	PublishStatus(ctx context.Context, d Device) error

	// IsConnected returns true if the downstream integration is reachable
	IsConnected() bool

	// Close disconnects the sink
	Close()
}
