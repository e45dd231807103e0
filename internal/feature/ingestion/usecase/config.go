package usecase

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"stonk_db/internal/feature/ingestion/domain"
)

const (
	// DefaultDataSource はデフォルトのデータソース識別子です。
	DefaultDataSource = "bitfinex"
	// DefaultMaxEntriesPerCall はプロバイダーが1回の呼び出しで返す最大件数です。
	DefaultMaxEntriesPerCall = 9000
	// DefaultCandleDuration はローソク足1本の長さです。
	DefaultCandleDuration = time.Minute
	// DefaultFallbackLookback は保存済みデータがない銘柄の取得開始位置（終了時刻からの遡り幅）です。
	DefaultFallbackLookback = 24 * time.Hour
	// DefaultRateLimitCalls / DefaultRateLimitPeriod はプロバイダー呼び出しの上限です。
	DefaultRateLimitCalls  = 60
	DefaultRateLimitPeriod = 60 * time.Second
	// DefaultRecurringInterval は定期取り込みの実行間隔です。
	DefaultRecurringInterval = time.Minute
)

// Config は取り込みエンジンの設定を保持します。
type Config struct {
	DataSource        string        // 使用するデータソース（"bitfinex", "twelvedata"）
	MaxEntriesPerCall int           // 1回の呼び出しで取得する最大件数
	CandleDuration    time.Duration // ローソク足の長さ
	FallbackLookback  time.Duration // 保存済みデータがない場合の遡り幅
	RateLimitCalls    int           // RateLimitPeriod あたりの最大呼び出し回数
	RateLimitPeriod   time.Duration
	RecurringInterval time.Duration // 定期取り込みの間隔
	RecurringEnabled  bool          // false の場合、定期取り込みを起動しない

	// AbortAssetOnWindowError が true の場合、ウィンドウの失敗後にその銘柄の残りのウィンドウをスキップします。
	// false（デフォルト）の場合は次のウィンドウに進みます。
	AbortAssetOnWindowError bool
}

// Limit は MAX_ENTRIES_PER_CALL とプロバイダーの上限 maxLimit の小さい方です。
// maxLimit が 0 以下の場合は MAX_ENTRIES_PER_CALL をそのまま使います。
func (c Config) Limit(maxLimit int) int {
	if maxLimit > 0 && maxLimit < c.MaxEntriesPerCall {
		return maxLimit
	}
	return c.MaxEntriesPerCall
}

// WindowSize は1回のプロバイダー呼び出しでカバーできる期間です。
func (c Config) WindowSize(maxLimit int) time.Duration {
	return time.Duration(c.Limit(maxLimit)) * c.CandleDuration
}

// CheckSource は CANDLE_TIMEFRAME がデータソースの足の長さと一致するかを検証します。
// 一致しない場合は domain.ErrConfiguration です。
func (c Config) CheckSource(src DataSource) error {
	if d := src.CandleDuration(); d != c.CandleDuration {
		return fmt.Errorf("%w: CANDLE_TIMEFRAME %s does not match the %s candle length %s",
			domain.ErrConfiguration, c.CandleDuration, src.Name(), d)
	}
	return nil
}

// DefaultConfig はデフォルト値の設定を返します。
func DefaultConfig() Config {
	return Config{
		DataSource:        DefaultDataSource,
		MaxEntriesPerCall: DefaultMaxEntriesPerCall,
		CandleDuration:    DefaultCandleDuration,
		FallbackLookback:  DefaultFallbackLookback,
		RateLimitCalls:    DefaultRateLimitCalls,
		RateLimitPeriod:   DefaultRateLimitPeriod,
		RecurringInterval: DefaultRecurringInterval,
		RecurringEnabled:  true,
	}
}

// LoadConfig は環境変数から取り込み設定を読み込みます。未設定や不正な値はデフォルト値になります。
func LoadConfig() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.DataSource = v
	}
	cfg.MaxEntriesPerCall = envInt("MAX_ENTRIES_PER_CALL", cfg.MaxEntriesPerCall)
	cfg.CandleDuration = envDuration("CANDLE_TIMEFRAME", cfg.CandleDuration)
	cfg.FallbackLookback = envDuration("FALLBACK_LOOKBACK", cfg.FallbackLookback)
	cfg.RateLimitCalls = envInt("RATE_LIMIT_CALLS", cfg.RateLimitCalls)
	cfg.RateLimitPeriod = envDuration("RATE_LIMIT_PERIOD", cfg.RateLimitPeriod)
	cfg.RecurringInterval = envDuration("RECURRING_INTERVAL", cfg.RecurringInterval)
	cfg.RecurringEnabled = envBool("RECURRING_ENABLED", cfg.RecurringEnabled)
	cfg.AbortAssetOnWindowError = envBool("ABORT_ASSET_ON_WINDOW_ERROR", cfg.AbortAssetOnWindowError)
	return cfg
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", v)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", v)
		return def
	}
	return d
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring invalid boolean setting", "key", key, "value", v)
		return def
	}
	return b
}
