// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Binance  BinanceConfig  `toml:"binance"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Universe UniverseConfig `toml:"universe"`
	Cache    CacheConfig    `toml:"cache"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// BinanceConfig holds the public Binance endpoints and stream parameters.
type BinanceConfig struct {
	WsURL         string `toml:"ws_url"`
	ApiURL        string `toml:"api_url"`
	Channel       string `toml:"channel"` // "kline" or "ticker"
	KlineInterval string `toml:"kline_interval"`
}

// ScannerConfig holds the profitability model parameters.
type ScannerConfig struct {
	ReferenceCurrency string   `toml:"reference_currency"`
	TradingFeePct     float64  `toml:"trading_fee_pct"`
	SlippagePct       float64  `toml:"slippage_pct"`
	MinProfitPct      float64  `toml:"min_profit_pct"`
	InitialAmount     float64  `toml:"initial_amount"`
	ScanInterval      duration `toml:"scan_interval"`
	HistoryCapacity   int      `toml:"history_capacity"`
}

// UniverseConfig holds volume-ranking parameters for universe selection.
type UniverseConfig struct {
	TopPairsCount int      `toml:"top_pairs_count"`
	Source        string   `toml:"source"` // "rest" or "stream"
	StreamTimeout duration `toml:"stream_timeout"`
}

// CacheConfig holds price-cache staleness parameters.
type CacheConfig struct {
	MaxAge duration `toml:"max_age"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables Redis
// and the application falls back to the in-process signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. The
// scanner numbers mirror the constants the system has always run with:
// 0.1% fee per leg, 0.05% slippage per leg, 0.5% minimum profit, 5 s scans.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			WsURL:         "wss://stream.binance.com:9443/ws",
			ApiURL:        "https://api.binance.com",
			Channel:       "kline",
			KlineInterval: "1m",
		},
		Scanner: ScannerConfig{
			ReferenceCurrency: "USDT",
			TradingFeePct:     0.1,
			SlippagePct:       0.05,
			MinProfitPct:      0.5,
			InitialAmount:     100.0,
			ScanInterval:      duration{5 * time.Second},
			HistoryCapacity:   100,
		},
		Universe: UniverseConfig{
			TopPairsCount: 20,
			Source:        "rest",
			StreamTimeout: duration{30 * time.Second},
		},
		Cache: CacheConfig{
			MaxAge: duration{60 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Binance endpoints
	if c.Binance.WsURL == "" {
		errs = append(errs, "binance: ws_url must not be empty")
	}
	if c.Binance.ApiURL == "" {
		errs = append(errs, "binance: api_url must not be empty")
	}
	if c.Binance.Channel != "kline" && c.Binance.Channel != "ticker" {
		errs = append(errs, fmt.Sprintf("binance: channel must be \"kline\" or \"ticker\", got %q", c.Binance.Channel))
	}
	if c.Binance.Channel == "kline" && c.Binance.KlineInterval == "" {
		errs = append(errs, "binance: kline_interval must not be empty for the kline channel")
	}

	// Scanner
	if c.Scanner.ReferenceCurrency == "" {
		errs = append(errs, "scanner: reference_currency must not be empty")
	}
	if c.Scanner.TradingFeePct < 0 {
		errs = append(errs, "scanner: trading_fee_pct must be >= 0")
	}
	if c.Scanner.SlippagePct < 0 {
		errs = append(errs, "scanner: slippage_pct must be >= 0")
	}
	if c.Scanner.InitialAmount <= 0 {
		errs = append(errs, "scanner: initial_amount must be > 0")
	}
	if c.Scanner.ScanInterval.Duration <= 0 {
		errs = append(errs, "scanner: scan_interval must be > 0")
	}
	if c.Scanner.HistoryCapacity < 1 {
		errs = append(errs, "scanner: history_capacity must be >= 1")
	}

	// Universe
	if c.Universe.TopPairsCount < 0 {
		errs = append(errs, "universe: top_pairs_count must be >= 0 (0 disables the volume filter)")
	}
	if c.Universe.Source != "rest" && c.Universe.Source != "stream" {
		errs = append(errs, fmt.Sprintf("universe: source must be \"rest\" or \"stream\", got %q", c.Universe.Source))
	}

	// Cache
	if c.Cache.MaxAge.Duration <= 0 {
		errs = append(errs, "cache: max_age must be > 0")
	}

	// Redis (only when enabled via non-empty addr)
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
