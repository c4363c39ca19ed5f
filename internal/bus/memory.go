// Package bus provides an in-process signal bus used when no Redis address
// is configured. It mirrors the Redis Pub/Sub semantics: fire-and-forget
// delivery, per-subscriber buffering, drops when a subscriber lags.
package bus

import (
	"context"
	"sync"

	"github.com/GM-Tomas/arbot/internal/domain"
)

const subscriberBuffer = 128

// Memory is an in-process fan-out bus. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan []byte)}
}

// Publish delivers the payload to every current subscriber of the channel.
// A subscriber whose buffer is full misses the message, matching Pub/Sub's
// at-most-once delivery.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	// The read lock is held across the sends so an unsubscribing goroutine
	// cannot close a channel mid-delivery. Sends never block, so the
	// critical section stays short.
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber for the channel. The returned channel
// closes when the context is cancelled.
func (m *Memory) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		// Copy-on-write removal keeps slices held by concurrent readers
		// intact, and closing under the lock cannot overlap a delivery.
		old := m.subs[channel]
		next := make([]chan []byte, 0, len(old))
		for _, c := range old {
			if c != ch {
				next = append(next, c)
			}
		}
		m.subs[channel] = next
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*Memory)(nil)
