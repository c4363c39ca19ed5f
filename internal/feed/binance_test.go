package feed

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GM-Tomas/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFeed(opts Options) *BinanceFeed {
	return NewBinanceFeed(opts, testLogger())
}

func TestBackoffDelay(t *testing.T) {
	base := 5 * time.Second
	limit := 80 * time.Second

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		80 * time.Second,
	}
	for i, w := range want {
		if got := backoffDelay(base, limit, i+1); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestHandleReconnectionGivesUpAfterMaxAttempts(t *testing.T) {
	f := newTestFeed(Options{
		ReconnectBase:        time.Millisecond,
		ReconnectCap:         2 * time.Millisecond,
		MaxReconnectAttempts: 3,
	})
	f.done = make(chan struct{})

	calls := 0
	ok := f.handleReconnection(func() error {
		calls++
		return errors.New("dial refused")
	})

	if ok {
		t.Fatal("expected handleReconnection to give up")
	}
	if calls != 3 {
		t.Errorf("reconnect attempts = %d, want 3", calls)
	}

	// The budget stays exhausted: no further attempts are made.
	if f.handleReconnection(func() error {
		calls++
		return nil
	}) {
		t.Fatal("exhausted feed should not reconnect again")
	}
	if calls != 3 {
		t.Errorf("reconnect called after exhaustion, calls = %d", calls)
	}
}

func TestHandleReconnectionResetsOnSuccess(t *testing.T) {
	f := newTestFeed(Options{
		ReconnectBase:        time.Millisecond,
		ReconnectCap:         2 * time.Millisecond,
		MaxReconnectAttempts: 5,
	})
	f.done = make(chan struct{})
	f.symbols = []string{"BTCUSDT"}

	calls := 0
	ok := f.handleReconnection(func() error {
		calls++
		if calls < 3 {
			return errors.New("dial refused")
		}
		return nil
	})

	if !ok {
		t.Fatal("expected reconnection to succeed")
	}
	if f.reconnectAttempts != 0 {
		t.Errorf("attempt counter = %d after success, want 0", f.reconnectAttempts)
	}

	// The symbol set is queued for re-subscription.
	select {
	case set := <-f.pending:
		if len(set) != 1 || set[0] != "BTCUSDT" {
			t.Errorf("re-subscription set = %v", set)
		}
	default:
		t.Error("expected symbol set queued after reconnect")
	}
}

func TestHandleReconnectionInterruptedByStop(t *testing.T) {
	f := newTestFeed(Options{
		ReconnectBase:        time.Hour,
		MaxReconnectAttempts: 5,
	})
	f.done = make(chan struct{})
	close(f.done)

	calls := 0
	start := time.Now()
	ok := f.handleReconnection(func() error {
		calls++
		return nil
	})

	if ok || calls != 0 {
		t.Errorf("closed feed reconnected: ok=%v calls=%d", ok, calls)
	}
	if time.Since(start) > time.Second {
		t.Error("stop did not interrupt the backoff delay")
	}
}

func TestDispatchIsolatesPanickingListener(t *testing.T) {
	f := newTestFeed(Options{})

	f.AddListener(func(domain.PricePoint) {
		panic("listener bug")
	})

	var got domain.PricePoint
	f.AddListener(func(p domain.PricePoint) {
		got = p
	})

	f.dispatch(domain.PricePoint{Symbol: "BTCUSDT", Price: 50000})

	if got.Symbol != "BTCUSDT" || got.Price != 50000 {
		t.Errorf("second listener not invoked after panic, got %+v", got)
	}
}

func TestEnqueueLatestWins(t *testing.T) {
	f := newTestFeed(Options{})

	f.Subscribe([]string{"BTCUSDT"})
	f.Subscribe([]string{"ETHUSDT", "BNBUSDT"})

	select {
	case set := <-f.pending:
		if len(set) != 2 || set[0] != "ETHUSDT" {
			t.Errorf("pending set = %v, want latest", set)
		}
	default:
		t.Fatal("expected a pending set")
	}

	select {
	case set := <-f.pending:
		t.Errorf("unexpected second pending set %v", set)
	default:
	}
}

func TestStreamNames(t *testing.T) {
	kline := newTestFeed(Options{Channel: ChannelKline, KlineInterval: "1m"})
	got := kline.streamNames([]string{"BTCUSDT", "ETHUSDT"})
	want := []string{"btcusdt@kline_1m", "ethusdt@kline_1m"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kline stream[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	ticker := newTestFeed(Options{Channel: ChannelTicker})
	got = ticker.streamNames([]string{"BTCUSDT"})
	if got[0] != "btcusdt@ticker" {
		t.Errorf("ticker stream = %q", got[0])
	}

	// Market-wide streams pass through verbatim.
	got = ticker.streamNames([]string{"!ticker@arr"})
	if got[0] != "!ticker@arr" {
		t.Errorf("market stream = %q", got[0])
	}
}

func TestOptionsDefaults(t *testing.T) {
	f := newTestFeed(Options{})

	if f.opts.GroupSize != defaultGroupSize {
		t.Errorf("GroupSize = %d, want %d", f.opts.GroupSize, defaultGroupSize)
	}
	if f.opts.GroupSpacing != defaultGroupSpacing {
		t.Errorf("GroupSpacing = %v, want %v", f.opts.GroupSpacing, defaultGroupSpacing)
	}
	if f.opts.MaxReconnectAttempts != defaultMaxReconnectAttempts {
		t.Errorf("MaxReconnectAttempts = %d, want %d", f.opts.MaxReconnectAttempts, defaultMaxReconnectAttempts)
	}
	if f.opts.Channel != ChannelKline {
		t.Errorf("Channel = %q, want kline", f.opts.Channel)
	}
}

func TestIsRunningFalseBeforeStart(t *testing.T) {
	f := newTestFeed(Options{})
	if f.IsRunning() {
		t.Fatal("feed should not report running before Start")
	}
}

// newEchoWSServer accepts one WebSocket upgrade and discards everything the
// feed sends until the connection closes.
func newEchoWSServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStopReportsNotRunningImmediately(t *testing.T) {
	srv := newEchoWSServer(t)

	f := newTestFeed(Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	f.Subscribe([]string{"BTCUSDT"})

	if err := f.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !f.IsRunning() {
		t.Fatal("feed should report running after Start")
	}

	f.Stop()
	if f.IsRunning() {
		t.Error("feed should report not running immediately after Stop")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	srv := newEchoWSServer(t)

	f := newTestFeed(Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	if err := f.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.Stop()

	if err := f.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !f.IsRunning() {
		t.Error("feed should still be running after duplicate Start")
	}
}
