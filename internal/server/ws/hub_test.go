package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GM-Tomas/arbot/internal/bus"
	"github.com/GM-Tomas/arbot/internal/domain"
	"github.com/GM-Tomas/arbot/internal/server/ws"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

func dialHub(t *testing.T, status ws.StatusFunc) (*websocket.Conn, domain.SignalBus, context.CancelFunc) {
	t.Helper()

	b := bus.NewMemory()
	hub := ws.NewHub(b, status, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn, b, cancel
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHubForwardsBusMessages(t *testing.T) {
	conn, b, cancel := dialHub(t, nil)
	defer cancel()

	// Give the hub a moment to register the client.
	time.Sleep(50 * time.Millisecond)

	payload := []byte(`{"route":"BTCUSDT -> BTCETH -> ETHUSDT","profit_percent":0.9}`)
	if err := b.Publish(context.Background(), "arbot:opportunities", payload); err != nil {
		t.Fatal(err)
	}

	env := readEnvelope(t, conn)
	if env.Channel != "arbot:opportunities" {
		t.Errorf("channel = %q", env.Channel)
	}
	if !strings.Contains(string(env.Payload), "profit_percent") {
		t.Errorf("payload = %s", env.Payload)
	}
}

func TestHubSendsInitialStatus(t *testing.T) {
	status := func() domain.Status {
		return domain.Status{FeedRunning: true, CycleCount: 42}
	}
	conn, _, cancel := dialHub(t, status)
	defer cancel()

	env := readEnvelope(t, conn)
	if env.Channel != "arbot:status" {
		t.Fatalf("channel = %q, want arbot:status", env.Channel)
	}

	var st map[string]any
	if err := json.Unmarshal(env.Payload, &st); err != nil {
		t.Fatal(err)
	}
	if st["feed_running"] != true {
		t.Errorf("feed_running = %v", st["feed_running"])
	}
	if st["cycles"].(float64) != 42 {
		t.Errorf("cycles = %v", st["cycles"])
	}
}

func TestHubHonorsUnsubscribe(t *testing.T) {
	conn, b, cancel := dialHub(t, nil)
	defer cancel()

	time.Sleep(50 * time.Millisecond)

	unsub := `{"action":"unsubscribe","channels":["arbot:prices"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(unsub)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	// A price event should no longer reach the client; an opportunity still
	// does, proving the connection itself is alive.
	b.Publish(context.Background(), "arbot:prices", []byte(`{"symbol":"BTCUSDT"}`))
	b.Publish(context.Background(), "arbot:opportunities", []byte(`{"route":"r"}`))

	env := readEnvelope(t, conn)
	if env.Channel != "arbot:opportunities" {
		t.Errorf("got channel %q after unsubscribe", env.Channel)
	}
}
