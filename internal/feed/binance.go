// Package feed maintains a live WebSocket connection to the Binance public
// stream endpoint, manages a dynamic subscription set, and dispatches parsed
// price ticks to registered listeners. It owns reconnection with exponential
// backoff and rate-limited (re)subscription.
package feed

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GM-Tomas/arbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// defaultGroupSize is the number of streams per SUBSCRIBE request.
	defaultGroupSize = 3

	// defaultGroupSpacing is the pause between SUBSCRIBE requests so the
	// exchange's per-connection rate limit is respected.
	defaultGroupSpacing = 2 * time.Second

	// defaultReconnectBase is the first reconnection delay.
	defaultReconnectBase = 5 * time.Second

	// defaultReconnectCap bounds the exponential backoff.
	defaultReconnectCap = 80 * time.Second

	// defaultMaxReconnectAttempts is the retry budget before the feed gives
	// up for good.
	defaultMaxReconnectAttempts = 5

	// defaultRefreshInterval re-sends the full subscription set to guard
	// against silent server-side subscription loss.
	defaultRefreshInterval = 300 * time.Second

	// defaultStopTimeout bounds how long Stop waits for background
	// goroutines to exit.
	defaultStopTimeout = 5 * time.Second
)

// Channel selects which stream type a feed instance subscribes to.
type Channel string

const (
	// ChannelKline subscribes to per-symbol candlestick streams.
	ChannelKline Channel = "kline"
	// ChannelTicker subscribes to per-symbol 24h rolling ticker streams.
	ChannelTicker Channel = "ticker"
	// ChannelTickerArray subscribes to the full-market ticker snapshot
	// stream (no per-symbol subscription required).
	ChannelTickerArray Channel = "ticker_array"
)

// Listener receives every successfully parsed price tick.
type Listener func(domain.PricePoint)

// SnapshotListener receives full-market ticker snapshots.
type SnapshotListener func([]domain.TickerStat)

// Options configures a BinanceFeed. Zero values fall back to the defaults
// above.
type Options struct {
	URL                  string
	Channel              Channel
	KlineInterval        string
	GroupSize            int
	GroupSpacing         time.Duration
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	MaxReconnectAttempts int
	RefreshInterval      time.Duration
	StopTimeout          time.Duration
}

func (o *Options) withDefaults() {
	if o.Channel == "" {
		o.Channel = ChannelKline
	}
	if o.KlineInterval == "" {
		o.KlineInterval = "1m"
	}
	if o.GroupSize <= 0 {
		o.GroupSize = defaultGroupSize
	}
	if o.GroupSpacing <= 0 {
		o.GroupSpacing = defaultGroupSpacing
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = defaultReconnectBase
	}
	if o.ReconnectCap <= 0 {
		o.ReconnectCap = defaultReconnectCap
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = defaultRefreshInterval
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = defaultStopTimeout
	}
}

// subscribeCommand is the JSON request that adds streams to the connection.
type subscribeCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// BinanceFeed is a reconnecting WebSocket client for the Binance combined
// stream endpoint. One read loop owns the connection; a second worker drains
// a queue of pending subscription-set changes so exactly one subscription
// operation is in flight at a time.
type BinanceFeed struct {
	opts   Options
	logger *slog.Logger

	mu                sync.Mutex
	conn              *websocket.Conn
	running           bool
	done              chan struct{}
	symbols           []string
	reconnectAttempts int
	nextID            int64

	listenerMu        sync.RWMutex
	listeners         []Listener
	snapshotListeners []SnapshotListener

	// pending holds at most one queued subscription set; a newer set
	// displaces an unprocessed older one so the latest submitted set wins.
	pending chan []string

	wg    sync.WaitGroup
	loops atomic.Int32
}

// NewBinanceFeed creates a feed for the given options. Call Start to connect.
func NewBinanceFeed(opts Options, logger *slog.Logger) *BinanceFeed {
	opts.withDefaults()
	return &BinanceFeed{
		opts:    opts,
		logger:  logger.With(slog.String("component", "binance_feed")),
		pending: make(chan []string, 1),
	}
}

// Start dials the stream endpoint and launches the read loop and the
// subscription worker. Calling Start while already running is a logged no-op.
func (f *BinanceFeed) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		f.logger.Warn("feed already running, ignoring start")
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(f.opts.URL, nil)
	if err != nil {
		f.mu.Unlock()
		return err
	}

	f.conn = conn
	f.running = true
	f.done = make(chan struct{})
	f.reconnectAttempts = 0
	if f.opts.Channel == ChannelTickerArray && len(f.symbols) == 0 {
		f.symbols = []string{"!ticker@arr"}
	}
	symbols := append([]string(nil), f.symbols...)

	f.loops.Add(2)
	f.wg.Add(2)
	go f.readLoop()
	go f.subscribeWorker()
	f.mu.Unlock()

	f.logger.Info("feed started", slog.String("url", f.opts.URL), slog.String("channel", string(f.opts.Channel)))

	if len(symbols) > 0 {
		f.enqueue(symbols)
	}
	return nil
}

// Stop closes the transport and joins the background goroutines with a
// bounded timeout. The running flag is cleared synchronously, so IsRunning
// reports false immediately after Stop returns. Stop is idempotent.
func (f *BinanceFeed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		f.logger.Warn("feed not running, ignoring stop")
		return
	}
	f.running = false
	close(f.done)
	if f.conn != nil {
		_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = f.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = f.conn.Close()
	}
	f.mu.Unlock()

	joined := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
		f.logger.Info("feed stopped")
	case <-time.After(f.opts.StopTimeout):
		f.logger.Warn("feed stop timed out waiting for background goroutines")
	}
}

// IsRunning reports true only while the feed believes it is active and its
// background goroutines are actually alive.
func (f *BinanceFeed) IsRunning() bool {
	f.mu.Lock()
	running := f.running
	f.mu.Unlock()
	return running && f.loops.Load() > 0
}

// Subscribe replaces the active subscription set. The call never blocks:
// the set is queued for the subscription worker, and a set queued while a
// previous one is still unprocessed displaces it.
func (f *BinanceFeed) Subscribe(symbols []string) {
	set := append([]string(nil), symbols...)
	f.mu.Lock()
	f.symbols = set
	f.mu.Unlock()
	f.enqueue(set)
}

// Symbols returns a copy of the current subscription set.
func (f *BinanceFeed) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.symbols...)
}

// AddListener registers a callback invoked with every parsed tick. Every
// listener independently receives every tick; a panicking listener is logged
// and does not affect the others.
func (f *BinanceFeed) AddListener(l Listener) {
	f.listenerMu.Lock()
	defer f.listenerMu.Unlock()
	f.listeners = append(f.listeners, l)
}

// AddSnapshotListener registers a callback for full-market ticker snapshots.
func (f *BinanceFeed) AddSnapshotListener(l SnapshotListener) {
	f.listenerMu.Lock()
	defer f.listenerMu.Unlock()
	f.snapshotListeners = append(f.snapshotListeners, l)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// enqueue offers a subscription set to the worker, displacing any set that
// is still waiting so the latest submitted set eventually wins.
func (f *BinanceFeed) enqueue(set []string) {
	for {
		select {
		case f.pending <- set:
			return
		default:
		}
		select {
		case <-f.pending:
		default:
		}
	}
}

// streamNames maps the subscription set to stream identifiers for the
// configured channel type.
func (f *BinanceFeed) streamNames(symbols []string) []string {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym == "" {
			continue
		}
		if strings.HasPrefix(sym, "!") {
			// Market-wide streams like "!ticker@arr" pass through verbatim.
			streams = append(streams, sym)
			continue
		}
		switch f.opts.Channel {
		case ChannelTicker:
			streams = append(streams, strings.ToLower(sym)+"@ticker")
		default:
			streams = append(streams, strings.ToLower(sym)+"@kline_"+f.opts.KlineInterval)
		}
	}
	return streams
}

// subscribeWorker serializes subscription operations: it drains queued
// subscription sets and periodically re-sends the full current set.
func (f *BinanceFeed) subscribeWorker() {
	defer func() {
		f.loops.Add(-1)
		f.wg.Done()
	}()

	refresh := time.NewTicker(f.opts.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-f.done:
			return
		case set := <-f.pending:
			f.sendSubscriptions(set)
		case <-refresh.C:
			f.mu.Lock()
			set := append([]string(nil), f.symbols...)
			f.mu.Unlock()
			if len(set) > 0 {
				f.logger.Info("refreshing subscriptions", slog.Int("symbols", len(set)))
				f.sendSubscriptions(set)
			}
		}
	}
}

// sendSubscriptions chunks the stream list into groups and sends them with
// inter-group spacing. Only the subscription worker calls this, so at most
// one subscription operation is in flight at a time.
func (f *BinanceFeed) sendSubscriptions(symbols []string) {
	streams := f.streamNames(symbols)
	for start := 0; start < len(streams); start += f.opts.GroupSize {
		end := start + f.opts.GroupSize
		if end > len(streams) {
			end = len(streams)
		}

		if start > 0 {
			select {
			case <-f.done:
				return
			case <-time.After(f.opts.GroupSpacing):
			}
		}

		f.mu.Lock()
		conn := f.conn
		var err error
		if conn == nil {
			f.mu.Unlock()
			f.logger.Warn("not connected, skipping subscription group")
			return
		}
		f.nextID++
		cmd := subscribeCommand{Method: "SUBSCRIBE", Params: streams[start:end], ID: f.nextID}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteJSON(cmd)
		f.mu.Unlock()

		if err != nil {
			f.logger.Warn("subscription group send failed",
				slog.Int("group_start", start),
				slog.String("error", err.Error()),
			)
			return
		}
		f.logger.Debug("sent subscription group",
			slog.Int("streams", end-start),
			slog.Int64("id", cmd.ID),
		)
	}
}

// readLoop blocks on the socket and dispatches parsed frames. On transport
// error it hands control to handleReconnection; a normal close or an
// exhausted retry budget ends the loop.
func (f *BinanceFeed) readLoop() {
	defer func() {
		f.loops.Add(-1)
		f.wg.Done()
	}()

	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				f.logger.Info("feed closed normally")
				f.mu.Lock()
				f.running = false
				f.mu.Unlock()
				return
			}

			if !f.handleReconnection(f.redial) {
				f.logger.Error("feed terminated: reconnect attempts exhausted",
					slog.Int("max_attempts", f.opts.MaxReconnectAttempts),
				)
				f.mu.Lock()
				f.running = false
				f.mu.Unlock()
				return
			}
			continue
		}

		f.handleMessage(raw)
	}
}

// handleMessage routes a raw message by its parsed shape. Malformed payloads
// are logged and dropped, never surfaced to the read loop.
func (f *BinanceFeed) handleMessage(raw []byte) {
	fr, err := parseFrame(raw)
	if err != nil {
		f.logger.Warn("dropping malformed message", slog.String("error", err.Error()))
		return
	}

	switch fr.kind {
	case frameControl:
		// Keep-alive traffic, nothing to do.
	case frameAck:
		f.logger.Debug("subscription acknowledged", slog.Int64("id", fr.ackID))
	case frameTick:
		f.dispatch(fr.tick)
	case frameSnapshot:
		f.dispatchSnapshot(fr.stats)
	default:
		f.logger.Warn("unrecognized message shape", slog.Int("bytes", len(raw)))
	}
}

// dispatch delivers a tick to every listener in registration order. Listener
// execution is isolated: a panic is logged and delivery continues.
func (f *BinanceFeed) dispatch(tick domain.PricePoint) {
	f.listenerMu.RLock()
	listeners := f.listeners
	f.listenerMu.RUnlock()

	for _, l := range listeners {
		f.callListener(l, tick)
	}
}

func (f *BinanceFeed) callListener(l Listener, tick domain.PricePoint) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("listener panicked",
				slog.String("symbol", tick.Symbol),
				slog.Any("panic", r),
			)
		}
	}()
	l(tick)
}

func (f *BinanceFeed) dispatchSnapshot(stats []domain.TickerStat) {
	f.listenerMu.RLock()
	listeners := f.snapshotListeners
	f.listenerMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					f.logger.Error("snapshot listener panicked", slog.Any("panic", r))
				}
			}()
			l(stats)
		}()
	}
}

// handleReconnection retries the reconnect action with exponential backoff
// until it succeeds or the retry budget is exhausted. It returns false once
// reconnectAttempts reaches the maximum; subsequent calls return false
// without invoking the action. On success the attempt counter resets and the
// full symbol set is queued for re-subscription.
func (f *BinanceFeed) handleReconnection(reconnect func() error) bool {
	for {
		f.mu.Lock()
		if f.reconnectAttempts >= f.opts.MaxReconnectAttempts {
			f.mu.Unlock()
			return false
		}
		f.reconnectAttempts++
		attempt := f.reconnectAttempts
		f.mu.Unlock()

		delay := backoffDelay(f.opts.ReconnectBase, f.opts.ReconnectCap, attempt)
		f.logger.Warn("feed disconnected, reconnecting",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", f.opts.MaxReconnectAttempts),
			slog.Duration("delay", delay),
		)

		select {
		case <-f.done:
			return false
		case <-time.After(delay):
		}

		if err := reconnect(); err != nil {
			f.logger.Warn("reconnect failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}

		f.mu.Lock()
		f.reconnectAttempts = 0
		set := append([]string(nil), f.symbols...)
		f.mu.Unlock()

		f.logger.Info("feed reconnected", slog.Int("symbols", len(set)))
		if len(set) > 0 {
			f.enqueue(set)
		}
		return true
	}
}

// redial replaces the connection with a freshly dialed one.
func (f *BinanceFeed) redial() error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(f.opts.URL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.conn = conn
	f.mu.Unlock()
	return nil
}

// backoffDelay computes min(base * 2^(attempt-1), cap) for 1-based attempts.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

// Compile-time interface check.
var _ domain.FeedStatus = (*BinanceFeed)(nil)
