package domain

import "context"

// SignalBus provides pub/sub fan-out of scanner events (price ticks,
// opportunities, status) to external consumers such as the dashboard
// WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a read-only channel of raw payloads. The channel is
	// closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// FeedStatus reports whether a streaming feed is live. Implemented by the
// feed package and consumed by the scanner's status snapshot.
type FeedStatus interface {
	IsRunning() bool
}
