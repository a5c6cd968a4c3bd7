package device

import "context"

// NullSink is a no-op sink used when no downstream integration is configured.
// The panel still persists and logs every change; nothing leaves the process.
type NullSink struct{}

// NewNullSink creates a new NullSink.
func NewNullSink() *NullSink {
	return &NullSink{}
}

func (s *NullSink) PublishStatus(ctx context.Context, d Device) error {
	return nil
}

func (s *NullSink) IsConnected() bool {
	return false
}

func (s *NullSink) Close() {}
