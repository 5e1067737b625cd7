package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the root configuration for the signal engine.
type Config struct {
	StreamingConfig StreamingConfig `json:"streaming"`
	TradingConfig   TradingConfig   `json:"trading"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	AnalyticsConfig AnalyticsConfig `json:"analytics"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// StreamingConfig controls the ingestion scheduler and quote sources.
type StreamingConfig struct {
	UpdateIntervalSec    int     `json:"update_interval_sec"`    // cadence between collection cycles
	MaxWorkers           int     `json:"max_workers"`            // worker pool size (1..20)
	ConnectionTimeoutSec int     `json:"connection_timeout_sec"` // per-HTTP-call timeout
	RateLimitExchange    float64 `json:"rate_limit_exchange"`    // min seconds between exchange fetches
	RateLimitAggregator  float64 `json:"rate_limit_aggregator"`  // min seconds between aggregator fetches
	RateLimitSimulated   float64 `json:"rate_limit_simulated"`
	FallbackToSimulated  bool    `json:"fallback_to_simulated"` // include simulated source in the chain
}

// TradingConfig controls the signal manager.
type TradingConfig struct {
	MaxConcurrentSignals   int     `json:"max_concurrent_signals"`
	DefaultStopLossPct     float64 `json:"default_stop_loss_pct"`
	DefaultTakeProfitPct   float64 `json:"default_take_profit_pct"`
	SignalExpiryHours      int     `json:"signal_expiry_hours"`
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"` // 0..1
	StrictMACD             bool    `json:"strict_macd"`              // proper 9-period EMA signal line
}

// DatabaseConfig controls the persistence store.
type DatabaseConfig struct {
	Path        string `json:"path"`
	CleanupDays int    `json:"cleanup_days"`
}

// AnalyticsConfig scopes reporting windows.
type AnalyticsConfig struct {
	HistoryDays int `json:"history_days"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StreamingConfig: StreamingConfig{
			UpdateIntervalSec:    5,
			MaxWorkers:           5,
			ConnectionTimeoutSec: 10,
			RateLimitExchange:    0.5,
			RateLimitAggregator:  1.0,
			RateLimitSimulated:   0.1,
			FallbackToSimulated:  true,
		},
		TradingConfig: TradingConfig{
			MaxConcurrentSignals:   10,
			DefaultStopLossPct:     2.0,
			DefaultTakeProfitPct:   4.0,
			SignalExpiryHours:      24,
			MinConfidenceThreshold: 0.6,
		},
		DatabaseConfig: DatabaseConfig{
			Path:        "data/trading_system.db",
			CleanupDays: 30,
		},
		AnalyticsConfig: AnalyticsConfig{
			HistoryDays: 30,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

// Load reads configuration from an optional JSON file, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional and only fills unset environment variables.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.StreamingConfig.UpdateIntervalSec = getEnvInt("STREAMING_INTERVAL", c.StreamingConfig.UpdateIntervalSec)
	c.StreamingConfig.MaxWorkers = getEnvInt("STREAMING_MAX_WORKERS", c.StreamingConfig.MaxWorkers)
	c.StreamingConfig.ConnectionTimeoutSec = getEnvInt("STREAMING_TIMEOUT", c.StreamingConfig.ConnectionTimeoutSec)
	c.StreamingConfig.RateLimitExchange = getEnvFloat("RATE_LIMIT_EXCHANGE", c.StreamingConfig.RateLimitExchange)
	c.StreamingConfig.RateLimitAggregator = getEnvFloat("RATE_LIMIT_AGGREGATOR", c.StreamingConfig.RateLimitAggregator)
	c.StreamingConfig.RateLimitSimulated = getEnvFloat("RATE_LIMIT_SIMULATED", c.StreamingConfig.RateLimitSimulated)
	c.StreamingConfig.FallbackToSimulated = getEnvBool("FALLBACK_SIMULATED", c.StreamingConfig.FallbackToSimulated)

	c.TradingConfig.MaxConcurrentSignals = getEnvInt("MAX_CONCURRENT_SIGNALS", c.TradingConfig.MaxConcurrentSignals)
	c.TradingConfig.DefaultStopLossPct = getEnvFloat("DEFAULT_STOP_LOSS", c.TradingConfig.DefaultStopLossPct)
	c.TradingConfig.DefaultTakeProfitPct = getEnvFloat("DEFAULT_TAKE_PROFIT", c.TradingConfig.DefaultTakeProfitPct)
	c.TradingConfig.SignalExpiryHours = getEnvInt("SIGNAL_EXPIRY_HOURS", c.TradingConfig.SignalExpiryHours)
	c.TradingConfig.MinConfidenceThreshold = getEnvFloat("MIN_CONFIDENCE", c.TradingConfig.MinConfidenceThreshold)
	c.TradingConfig.StrictMACD = getEnvBool("STRICT_MACD", c.TradingConfig.StrictMACD)

	c.DatabaseConfig.Path = getEnv("DB_PATH", c.DatabaseConfig.Path)
	c.DatabaseConfig.CleanupDays = getEnvInt("DB_CLEANUP_DAYS", c.DatabaseConfig.CleanupDays)

	c.AnalyticsConfig.HistoryDays = getEnvInt("ANALYTICS_HISTORY_DAYS", c.AnalyticsConfig.HistoryDays)

	c.LoggingConfig.Level = getEnv("LOG_LEVEL", c.LoggingConfig.Level)
	c.LoggingConfig.Output = getEnv("LOG_OUTPUT", c.LoggingConfig.Output)
	c.LoggingConfig.JSONFormat = getEnvBool("LOG_JSON", c.LoggingConfig.JSONFormat)
}

// Validate checks configuration bounds.
func (c *Config) Validate() error {
	if c.StreamingConfig.UpdateIntervalSec < 1 {
		return fmt.Errorf("streaming update interval must be >= 1s, got %d", c.StreamingConfig.UpdateIntervalSec)
	}
	if c.StreamingConfig.MaxWorkers < 1 || c.StreamingConfig.MaxWorkers > 20 {
		return fmt.Errorf("streaming max workers must be in [1, 20], got %d", c.StreamingConfig.MaxWorkers)
	}
	if c.TradingConfig.MaxConcurrentSignals < 1 {
		return fmt.Errorf("max concurrent signals must be >= 1, got %d", c.TradingConfig.MaxConcurrentSignals)
	}
	if c.TradingConfig.MinConfidenceThreshold < 0 || c.TradingConfig.MinConfidenceThreshold > 1 {
		return fmt.Errorf("min confidence threshold must be in [0, 1], got %v", c.TradingConfig.MinConfidenceThreshold)
	}
	if c.DatabaseConfig.CleanupDays < 1 {
		return fmt.Errorf("database cleanup days must be >= 1, got %d", c.DatabaseConfig.CleanupDays)
	}
	if c.DatabaseConfig.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
