// Package twelvedata provides a client for the Twelve Data market API.
package twelvedata

import (
	"os"
	"time"
)

const (
	defaultBaseURL  = "https://api.twelvedata.com"
	defaultInterval = "1min"
)

// Config holds configuration for the Twelve Data API client.
type Config struct {
	TwelveDataAPIKey string        // API key for authentication
	BaseURL          string        // Base URL for the API (e.g., "https://api.twelvedata.com")
	Interval         string        // time_series interval (e.g., "1min")
	Timeout          time.Duration // HTTP request timeout
}

// LoadConfig loads Twelve Data configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		TwelveDataAPIKey: os.Getenv("TWELVE_DATA_API_KEY"),
		BaseURL:          os.Getenv("TWELVE_DATA_BASE_URL"),
		Interval:         os.Getenv("TWELVE_DATA_INTERVAL"),
		Timeout:          10 * time.Second,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Interval == "" {
		cfg.Interval = defaultInterval
	}
	return cfg
}
