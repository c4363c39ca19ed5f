package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults() should validate cleanly, got: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Scanner.InitialAmount = 0
	cfg.Scanner.ScanInterval = duration{0}
	cfg.Binance.WsURL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"unknown mode", "initial_amount", "scan_interval", "ws_url"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error missing %q: %s", want, msg)
		}
	}
}

func TestValidateRejectsBadChannel(t *testing.T) {
	cfg := Defaults()
	cfg.Binance.Channel = "depth"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "scan"

[scanner]
min_profit_pct = 1.25
scan_interval = "10s"

[universe]
top_pairs_count = 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "scan" {
		t.Errorf("mode = %q, want scan", cfg.Mode)
	}
	if cfg.Scanner.MinProfitPct != 1.25 {
		t.Errorf("min_profit_pct = %v, want 1.25", cfg.Scanner.MinProfitPct)
	}
	if cfg.Scanner.ScanInterval.Duration != 10*time.Second {
		t.Errorf("scan_interval = %v, want 10s", cfg.Scanner.ScanInterval.Duration)
	}
	if cfg.Universe.TopPairsCount != 5 {
		t.Errorf("top_pairs_count = %d, want 5", cfg.Universe.TopPairsCount)
	}
	// Untouched fields keep their defaults.
	if cfg.Scanner.TradingFeePct != 0.1 {
		t.Errorf("trading_fee_pct = %v, want default 0.1", cfg.Scanner.TradingFeePct)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("ARBOT_MODE", "server")
	t.Setenv("ARBOT_SCANNER_MIN_PROFIT_PCT", "2.5")
	t.Setenv("ARBOT_CACHE_MAX_AGE", "90s")
	t.Setenv("ARBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("mode = %q, want server", cfg.Mode)
	}
	if cfg.Scanner.MinProfitPct != 2.5 {
		t.Errorf("min_profit_pct = %v, want 2.5", cfg.Scanner.MinProfitPct)
	}
	if cfg.Cache.MaxAge.Duration != 90*time.Second {
		t.Errorf("max_age = %v, want 90s", cfg.Cache.MaxAge.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("cors_origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("cors_origins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestEnvOverrideIgnoresUnparsable(t *testing.T) {
	t.Setenv("ARBOT_SCANNER_INITIAL_AMOUNT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scanner.InitialAmount != 100.0 {
		t.Errorf("initial_amount = %v, want default 100", cfg.Scanner.InitialAmount)
	}
}
