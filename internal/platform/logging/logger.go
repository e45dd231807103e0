// Package logging はプロセス全体で使う slog ロガーを構成します。
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config はロガーの設定です。
type Config struct {
	Level  string // debug | info | warn | error
	Format string // json | text
}

// LoadConfig は LOG_LEVEL / LOG_FORMAT を読み込みます。
func LoadConfig() Config {
	return Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
}

// ParseLevel は未知の値を info として扱います。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger は w に書き込む構造化ロガーを作成します。Format が "text" 以外なら JSON です。
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Setup は環境変数からロガーを作成し、デフォルトロガーとして設定します。
func Setup(service string) *slog.Logger {
	logger := NewLogger(os.Stdout, LoadConfig()).With("service", service)
	slog.SetDefault(logger)
	return logger
}
