package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/GM-Tomas/arbot/internal/domain"
)

// frameKind tags the variant of a parsed stream message. The exchange mixes
// control frames, subscription acknowledgements, and data frames on the same
// connection, distinguished only by which JSON fields are present.
type frameKind int

const (
	frameUnknown frameKind = iota
	frameControl
	frameAck
	frameTick
	frameSnapshot
)

// frame is a decoded stream message.
type frame struct {
	kind  frameKind
	ackID int64
	tick  domain.PricePoint
	stats []domain.TickerStat
}

// envelope is the outer shape shared by all server messages. Combined-stream
// data arrives wrapped as {"stream": ..., "data": {...}}; acknowledgements as
// {"result": null, "id": N}; raw-endpoint events carry their fields directly.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	ID     *int64          `json:"id"`
}

// eventHeader carries the fields common to all data events.
type eventHeader struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
}

// klineEvent is a kline data frame; numeric fields arrive as strings.
type klineEvent struct {
	Kline struct {
		Open   string `json:"o"`
		High   string `json:"h"`
		Low    string `json:"l"`
		Close  string `json:"c"`
		Volume string `json:"v"`
	} `json:"k"`
}

// tickerEvent is a 24h rolling ticker frame; numeric fields arrive as strings.
type tickerEvent struct {
	Symbol      string `json:"s"`
	LastPrice   string `json:"c"`
	Volume      string `json:"v"`
	QuoteVolume string `json:"q"`
}

// parseFrame decodes a raw message into its tagged variant. A non-nil error
// means the payload was malformed and should be dropped; an Unknown kind
// means the shape parsed but was not recognized.
func parseFrame(raw []byte) (frame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return frame{}, fmt.Errorf("empty message")
	}

	// Full-market ticker snapshots arrive as a bare JSON array.
	if raw[0] == '[' {
		return parseSnapshot(raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return frame{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.ID != nil {
		return frame{kind: frameAck, ackID: *env.ID}, nil
	}

	payload := raw
	if len(env.Data) > 0 {
		payload = env.Data
	}
	if payload[0] == '[' {
		return parseSnapshot(payload)
	}

	var hdr eventHeader
	if err := json.Unmarshal(payload, &hdr); err != nil {
		return frame{}, fmt.Errorf("decode event header: %w", err)
	}

	switch hdr.Event {
	case "ping", "pong":
		return frame{kind: frameControl}, nil

	case "kline":
		var ev klineEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return frame{}, fmt.Errorf("decode kline: %w", err)
		}
		price, err := strconv.ParseFloat(ev.Kline.Close, 64)
		if err != nil {
			return frame{}, fmt.Errorf("parse kline close %q: %w", ev.Kline.Close, err)
		}
		volume, err := strconv.ParseFloat(ev.Kline.Volume, 64)
		if err != nil {
			return frame{}, fmt.Errorf("parse kline volume %q: %w", ev.Kline.Volume, err)
		}
		return frame{kind: frameTick, tick: domain.PricePoint{
			Symbol:     hdr.Symbol,
			Price:      price,
			Volume:     volume,
			ObservedAt: eventTime(hdr.EventTime),
		}}, nil

	case "24hrTicker":
		var ev tickerEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return frame{}, fmt.Errorf("decode ticker: %w", err)
		}
		price, err := strconv.ParseFloat(ev.LastPrice, 64)
		if err != nil {
			return frame{}, fmt.Errorf("parse ticker price %q: %w", ev.LastPrice, err)
		}
		volume := 0.0
		if ev.Volume != "" {
			if v, err := strconv.ParseFloat(ev.Volume, 64); err == nil {
				volume = v
			}
		}
		return frame{kind: frameTick, tick: domain.PricePoint{
			Symbol:     hdr.Symbol,
			Price:      price,
			Volume:     volume,
			ObservedAt: eventTime(hdr.EventTime),
		}}, nil
	}

	return frame{kind: frameUnknown}, nil
}

// parseSnapshot decodes a full-market ticker array. Entries with unparseable
// volumes are skipped rather than failing the whole snapshot.
func parseSnapshot(raw []byte) (frame, error) {
	var events []tickerEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return frame{}, fmt.Errorf("decode ticker array: %w", err)
	}

	stats := make([]domain.TickerStat, 0, len(events))
	for _, ev := range events {
		if ev.Symbol == "" {
			continue
		}
		q, err := strconv.ParseFloat(ev.QuoteVolume, 64)
		if err != nil {
			continue
		}
		stats = append(stats, domain.TickerStat{Symbol: ev.Symbol, QuoteVolume: q})
	}
	return frame{kind: frameSnapshot, stats: stats}, nil
}

func eventTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
