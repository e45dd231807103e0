package bitfinex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stonk_db/internal/feature/ingestion/domain/entity"
	"stonk_db/internal/feature/ingestion/usecase"
)

// SourceName はこのデータソースの識別子です。
const SourceName = "bitfinex"

// maxBodyBytes はレスポンスボディの読み込み上限です（10000件分のローソク足に十分な大きさ）。
const maxBodyBytes = 8 << 20

// maxLimit は candles エンドポイントの limit 上限です。
const maxLimit = 10000

// timeframes は Bitfinex のタイムフレーム表記と足の長さの対応です。
var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"3h":  3 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1D":  24 * time.Hour,
	"1W":  7 * 24 * time.Hour,
	"14D": 14 * 24 * time.Hour,
}

// BitfinexSource はBitfinexの公開APIからローソク足を取得するDataSource実装です。
type BitfinexSource struct {
	cfg    Config
	client *http.Client
}

// BitfinexSourceがDataSourceを実装していることをコンパイル時に検証します。
var _ usecase.DataSource = (*BitfinexSource)(nil)

// NewBitfinexSource は指定された設定とHTTPクライアントでBitfinexSourceを生成します。
func NewBitfinexSource(cfg Config, client *http.Client) *BitfinexSource {
	return &BitfinexSource{cfg: cfg, client: client}
}

func (b *BitfinexSource) Name() string { return SourceName }

func (b *BitfinexSource) MaxLimit() int { return maxLimit }

// CandleDuration は設定されたタイムフレームの足の長さを返します。未知の表記は0です。
func (b *BitfinexSource) CandleDuration() time.Duration { return timeframes[b.cfg.Timeframe] }

// Fetch は [start, end) のローソク足を古い順に最大 limit 件取得します。
// Bitfinex の end パラメータは終端を含むため、1ミリ秒手前を指定します。
func (b *BitfinexSource) Fetch(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error) {
	limit = min(limit, maxLimit)

	q := url.Values{}
	q.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(end.UnixMilli()-1, 10))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "1")

	u := fmt.Sprintf("%s/candles/trade:%s:t%s/hist?%s",
		strings.TrimRight(b.cfg.BaseURL, "/"), b.cfg.Timeframe, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("bitfinex: read body: %w", err)
	}

	// エラー時は ["error", code, "message"] の形式で返る
	if apiErr := parseError(body); apiErr != nil {
		return nil, fmt.Errorf("bitfinex http %d: %w", res.StatusCode, apiErr)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("bitfinex http %d", res.StatusCode)
	}

	return parseCandles(body)
}

// APIError はBitfinexが返すエラー配列です。
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitfinex error %d: %s", e.Code, e.Message)
}

func parseError(body []byte) *APIError {
	if !gjson.ValidBytes(body) {
		return nil
	}
	r := gjson.ParseBytes(body)
	if !r.IsArray() || r.Get("0").String() != "error" || r.Get("0").Type != gjson.String {
		return nil
	}
	return &APIError{Code: r.Get("1").Int(), Message: r.Get("2").String()}
}

// parseCandles は [[MTS, OPEN, CLOSE, HIGH, LOW, VOLUME], ...] を観測値に変換します。
func parseCandles(body []byte) ([]entity.Observation, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("bitfinex: invalid JSON payload")
	}
	r := gjson.ParseBytes(body)
	if !r.IsArray() {
		return nil, fmt.Errorf("bitfinex: unexpected payload %.64s", r.Raw)
	}

	rows := r.Array()
	out := make([]entity.Observation, 0, len(rows))
	for i, row := range rows {
		fields := row.Array()
		if !row.IsArray() || len(fields) < 6 {
			return nil, fmt.Errorf("bitfinex: malformed candle at index %d: %s", i, row.Raw)
		}
		for j, f := range fields[:6] {
			if f.Type != gjson.Number {
				return nil, fmt.Errorf("bitfinex: malformed candle at index %d: field %d is %s", i, j, f.Type)
			}
		}
		out = append(out, entity.Observation{
			Timestamp: time.UnixMilli(fields[0].Int()).UTC().Truncate(time.Second),
			Source:    SourceName,
			Open:      fields[1].Float(),
			Close:     fields[2].Float(),
			High:      fields[3].Float(),
			Low:       fields[4].Float(),
			Volume:    fields[5].Float(),
		})
	}
	return out, nil
}
