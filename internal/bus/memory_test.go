package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/GM-Tomas/arbot/internal/bus"
)

func TestMemoryPublishReachesSubscribers(t *testing.T) {
	b := bus.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, err := b.Subscribe(ctx, "opps")
	if err != nil {
		t.Fatal(err)
	}
	ch2, err := b.Subscribe(ctx, "opps")
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Publish(ctx, "opps", []byte("hello")); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case msg := <-ch:
			if string(msg) != "hello" {
				t.Errorf("subscriber %d got %q", i, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive message", i)
		}
	}
}

func TestMemoryChannelsAreIsolated(t *testing.T) {
	b := bus.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	other, err := b.Subscribe(ctx, "prices")
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Publish(ctx, "opps", []byte("x")); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-other:
		t.Errorf("message leaked across channels: %q", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryPublishWithoutSubscribers(t *testing.T) {
	b := bus.NewMemory()
	if err := b.Publish(context.Background(), "empty", []byte("x")); err != nil {
		t.Errorf("publish to empty channel: %v", err)
	}
}

// Publishing must never send on a channel that an unsubscribing goroutine
// has closed. Run with -race to catch regressions in the locking.
func TestMemoryPublishDuringUnsubscribe(t *testing.T) {
	b := bus.NewMemory()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			ctx, cancel := context.WithCancel(context.Background())
			if _, err := b.Subscribe(ctx, "opps"); err != nil {
				t.Errorf("subscribe: %v", err)
				cancel()
				return
			}
			cancel()
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
			if err := b.Publish(context.Background(), "opps", []byte("tick")); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
	}
}

func TestMemorySubscriptionClosesOnCancel(t *testing.T) {
	b := bus.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "opps")
	if err != nil {
		t.Fatal(err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
