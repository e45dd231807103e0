// Package bitfinex provides a client for the Bitfinex public candles API.
package bitfinex

import (
	"os"
	"time"
)

const (
	defaultBaseURL   = "https://api-pub.bitfinex.com/v2"
	defaultTimeframe = "1m"
)

// Config holds configuration for the Bitfinex API client.
type Config struct {
	BaseURL   string        // Base URL for the API (e.g., "https://api-pub.bitfinex.com/v2")
	Timeframe string        // Candle timeframe key (e.g., "1m")
	Timeout   time.Duration // HTTP request timeout
}

// LoadConfig loads Bitfinex configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		BaseURL:   os.Getenv("BITFINEX_BASE_URL"),
		Timeframe: os.Getenv("BITFINEX_TIMEFRAME"),
		Timeout:   15 * time.Second,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = defaultTimeframe
	}
	return cfg
}
