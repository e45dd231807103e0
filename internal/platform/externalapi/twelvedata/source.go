package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stonk_db/internal/feature/ingestion/domain/entity"
	"stonk_db/internal/feature/ingestion/usecase"
	"stonk_db/internal/platform/externalapi/twelvedata/dto"
)

// SourceName はこのデータソースの識別子です。
const SourceName = "twelvedata"

// dateTimeLayout は start_date / end_date と datetime の書式です。
const dateTimeLayout = "2006-01-02 15:04:05"

// maxOutputSize は time_series の outputsize 上限です。超えた分は黙って切り捨てられる。
const maxOutputSize = 5000

// intervals は Twelve Data の interval 表記と足の長さの対応です。
var intervals = map[string]time.Duration{
	"1min":  time.Minute,
	"5min":  5 * time.Minute,
	"15min": 15 * time.Minute,
	"30min": 30 * time.Minute,
	"45min": 45 * time.Minute,
	"1h":    time.Hour,
	"2h":    2 * time.Hour,
	"4h":    4 * time.Hour,
	"1day":  24 * time.Hour,
	"1week": 7 * 24 * time.Hour,
}

// TwelveDataSource はTwelve Data外部APIから時系列データを取得するDataSource実装です。
type TwelveDataSource struct {
	cfg    Config
	client *http.Client
}

// TwelveDataSourceがDataSourceを実装していることをコンパイル時に検証します。
var _ usecase.DataSource = (*TwelveDataSource)(nil)

// NewTwelveDataSource は指定された設定とHTTPクライアントでTwelveDataSourceの新しいインスタンスを生成します。
func NewTwelveDataSource(cfg Config, client *http.Client) *TwelveDataSource {
	return &TwelveDataSource{cfg: cfg, client: client}
}

func (t *TwelveDataSource) Name() string { return SourceName }

func (t *TwelveDataSource) MaxLimit() int { return maxOutputSize }

// CandleDuration は設定された interval の足の長さを返します。未知の表記は0です。
func (t *TwelveDataSource) CandleDuration() time.Duration { return intervals[t.cfg.Interval] }

// Fetch は [start, end) の時系列データを古い順に最大 limit 件取得します。
// タイムゾーンはUTCを指定し、end_date は終端を含むため1秒手前を指定します。
func (t *TwelveDataSource) Fetch(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error) {
	q := url.Values{}
	// クエリパラメータを追加
	q.Set("symbol", symbol)
	q.Set("interval", t.cfg.Interval)
	q.Set("start_date", start.UTC().Format(dateTimeLayout))
	q.Set("end_date", end.UTC().Add(-time.Second).Format(dateTimeLayout))
	q.Set("outputsize", strconv.Itoa(min(limit, maxOutputSize)))
	q.Set("timezone", "UTC")
	q.Set("order", "ASC")
	q.Set("apikey", t.cfg.TwelveDataAPIKey)

	u := fmt.Sprintf("%s/time_series?%s", t.cfg.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("twelvedata http %d", res.StatusCode)
	}

	// JSONレスポンスをDTOにデコード
	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Status == "error" {
		// 期間内にデータがない場合もエラーとして返る
		if body.Code == http.StatusBadRequest && isNoDataMessage(body.Message) {
			return nil, nil
		}
		return nil, fmt.Errorf("twelvedata: %s", body.Message)
	}

	obs := make([]entity.Observation, 0, len(body.Values))
	for _, v := range body.Values {
		o, err := toObservation(v)
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, nil
}

func toObservation(v dto.TimeSeriesValue) (entity.Observation, error) {
	// タイムスタンプをパース
	tm, err := time.ParseInLocation(dateTimeLayout, v.Datetime, time.UTC)
	if err != nil {
		tm, err = time.ParseInLocation("2006-01-02", v.Datetime, time.UTC)
		if err != nil {
			return entity.Observation{}, fmt.Errorf("parse time %q: %w", v.Datetime, err)
		}
	}
	o, err := strconv.ParseFloat(v.Open, 64)
	if err != nil {
		return entity.Observation{}, fmt.Errorf("parse open %q: %w", v.Open, err)
	}
	h, err := strconv.ParseFloat(v.High, 64)
	if err != nil {
		return entity.Observation{}, fmt.Errorf("parse high %q: %w", v.High, err)
	}
	l, err := strconv.ParseFloat(v.Low, 64)
	if err != nil {
		return entity.Observation{}, fmt.Errorf("parse low %q: %w", v.Low, err)
	}
	c, err := strconv.ParseFloat(v.Close, 64)
	if err != nil {
		return entity.Observation{}, fmt.Errorf("parse close %q: %w", v.Close, err)
	}
	// 出来高のない銘柄（為替など）は0とする
	var vol float64
	if v.Volume != "" {
		vol, err = strconv.ParseFloat(v.Volume, 64)
		if err != nil {
			return entity.Observation{}, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}
	}

	return entity.Observation{
		Timestamp: tm,
		Source:    SourceName,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    vol,
	}, nil
}

func isNoDataMessage(msg string) bool {
	return strings.HasPrefix(msg, "No data is available")
}
