package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. When path is empty, the
// defaults plus environment overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators tweak the scanner at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// --- Binance ---
	setStr(&cfg.Binance.WsURL, "ARBOT_BINANCE_WS_URL")
	setStr(&cfg.Binance.ApiURL, "ARBOT_BINANCE_API_URL")
	setStr(&cfg.Binance.Channel, "ARBOT_BINANCE_CHANNEL")
	setStr(&cfg.Binance.KlineInterval, "ARBOT_BINANCE_KLINE_INTERVAL")

	// --- Scanner ---
	setStr(&cfg.Scanner.ReferenceCurrency, "ARBOT_SCANNER_REFERENCE_CURRENCY")
	setFloat64(&cfg.Scanner.TradingFeePct, "ARBOT_SCANNER_TRADING_FEE_PCT")
	setFloat64(&cfg.Scanner.SlippagePct, "ARBOT_SCANNER_SLIPPAGE_PCT")
	setFloat64(&cfg.Scanner.MinProfitPct, "ARBOT_SCANNER_MIN_PROFIT_PCT")
	setFloat64(&cfg.Scanner.InitialAmount, "ARBOT_SCANNER_INITIAL_AMOUNT")
	setDuration(&cfg.Scanner.ScanInterval, "ARBOT_SCANNER_SCAN_INTERVAL")
	setInt(&cfg.Scanner.HistoryCapacity, "ARBOT_SCANNER_HISTORY_CAPACITY")

	// --- Universe ---
	setInt(&cfg.Universe.TopPairsCount, "ARBOT_UNIVERSE_TOP_PAIRS_COUNT")
	setStr(&cfg.Universe.Source, "ARBOT_UNIVERSE_SOURCE")
	setDuration(&cfg.Universe.StreamTimeout, "ARBOT_UNIVERSE_STREAM_TIMEOUT")

	// --- Cache ---
	setDuration(&cfg.Cache.MaxAge, "ARBOT_CACHE_MAX_AGE")

	// --- Redis ---
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBOT_REDIS_TLS_ENABLED")

	// --- Server ---
	setBool(&cfg.Server.Enabled, "ARBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBOT_SERVER_CORS_ORIGINS")

	// --- Top-level ---
	setStr(&cfg.Mode, "ARBOT_MODE")
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
