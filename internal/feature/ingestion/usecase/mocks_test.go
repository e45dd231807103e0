package usecase

import (
	"context"
	"errors"
	"maps"
	"sort"
	"time"

	"stonk_db/internal/feature/ingestion/domain"
	"stonk_db/internal/feature/ingestion/domain/entity"
)

var (
	ErrDB       = errors.New("database error")
	ErrProvider = errors.New("provider unavailable")
)

// memStore は ObservationStore のインメモリ実装です。
// Transaction は fn がエラーを返した場合に状態を巻き戻します。
type memStore struct {
	assets map[string]entity.Asset
	obs    map[uint]map[int64]entity.Observation
	nextID uint

	// 失敗注入用。nil でなければ各操作の前に呼ばれます。
	FindAssetFunc          func(symbol string) error
	LatestObservationFunc  func(assetID uint) error
	ExistingTimestampsFunc func(assetID uint) error
	BulkInsertFunc         func(assetID uint, obs []entity.Observation) error

	CreateAssetCalls  int
	BulkInsertCalls   int
	TransactionCalls  int
	ExistingLoadCalls int
}

func newMemStore() *memStore {
	return &memStore{
		assets: map[string]entity.Asset{},
		obs:    map[uint]map[int64]entity.Observation{},
		nextID: 1,
	}
}

var _ ObservationStore = (*memStore)(nil)

func (m *memStore) FindAsset(ctx context.Context, symbol string) (*entity.Asset, error) {
	if m.FindAssetFunc != nil {
		if err := m.FindAssetFunc(symbol); err != nil {
			return nil, err
		}
	}
	a, ok := m.assets[symbol]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return &a, nil
}

func (m *memStore) CreateAsset(ctx context.Context, info entity.AssetInfo) (*entity.Asset, error) {
	m.CreateAssetCalls++
	a := entity.Asset{ID: m.nextID, AssetInfo: info}
	m.nextID++
	m.assets[info.Symbol] = a
	return &a, nil
}

func (m *memStore) ExistingTimestamps(ctx context.Context, assetID uint) (entity.TimestampSet, error) {
	m.ExistingLoadCalls++
	if m.ExistingTimestampsFunc != nil {
		if err := m.ExistingTimestampsFunc(assetID); err != nil {
			return nil, err
		}
	}
	set := entity.NewTimestampSet()
	for _, o := range m.obs[assetID] {
		set.Add(o.Timestamp)
	}
	return set, nil
}

func (m *memStore) LatestObservation(ctx context.Context, assetID uint) (entity.Observation, bool, error) {
	if m.LatestObservationFunc != nil {
		if err := m.LatestObservationFunc(assetID); err != nil {
			return entity.Observation{}, false, err
		}
	}
	var latest entity.Observation
	found := false
	for _, o := range m.obs[assetID] {
		if !found || o.Timestamp.After(latest.Timestamp) {
			latest = o
			found = true
		}
	}
	return latest, found, nil
}

func (m *memStore) BulkInsert(ctx context.Context, assetID uint, observations []entity.Observation) (int64, error) {
	m.BulkInsertCalls++
	if m.BulkInsertFunc != nil {
		if err := m.BulkInsertFunc(assetID, observations); err != nil {
			return 0, err
		}
	}
	rows, ok := m.obs[assetID]
	if !ok {
		rows = map[int64]entity.Observation{}
		m.obs[assetID] = rows
	}
	var n int64
	for _, o := range observations {
		key := o.Timestamp.Unix()
		if _, dup := rows[key]; dup {
			continue
		}
		o.AssetID = assetID
		rows[key] = o
		n++
	}
	return n, nil
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx ObservationStore) error) error {
	m.TransactionCalls++
	assets := maps.Clone(m.assets)
	obs := make(map[uint]map[int64]entity.Observation, len(m.obs))
	for id, rows := range m.obs {
		obs[id] = maps.Clone(rows)
	}
	nextID := m.nextID

	if err := fn(m); err != nil {
		m.assets, m.obs, m.nextID = assets, obs, nextID
		return err
	}
	return nil
}

// timestamps は銘柄の保存済みタイムスタンプを昇順で返します。
func (m *memStore) timestamps(symbol string) []time.Time {
	a, ok := m.assets[symbol]
	if !ok {
		return nil
	}
	out := make([]time.Time, 0, len(m.obs[a.ID]))
	for _, o := range m.obs[a.ID] {
		out = append(out, o.Timestamp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// mockDataSource は DataSource のモック実装です。
type mockDataSource struct {
	name     string
	maxLimit int           // 0 は上限なし
	candle   time.Duration // 0 は1分足

	FetchFunc   func(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error)
	FetchCalls  []entity.TimeRange
	FetchLimits []int
}

func (m *mockDataSource) Name() string { return m.name }

func (m *mockDataSource) MaxLimit() int { return m.maxLimit }

func (m *mockDataSource) CandleDuration() time.Duration {
	if m.candle == 0 {
		return time.Minute
	}
	return m.candle
}

func (m *mockDataSource) Fetch(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error) {
	m.FetchCalls = append(m.FetchCalls, entity.TimeRange{Start: start, End: end})
	m.FetchLimits = append(m.FetchLimits, limit)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol, start, end, limit)
	}
	return nil, errors.New("FetchFunc is not implemented")
}

// minuteSource は [start, end] の1分足を返すデータソースです（終端を含むプロバイダーを模倣）。
func minuteSource() *mockDataSource {
	return &mockDataSource{
		name: "bitfinex",
		FetchFunc: func(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error) {
			return minuteCandles(start, end, limit), nil
		},
	}
}

func minuteCandles(start, end time.Time, limit int) []entity.Observation {
	var out []entity.Observation
	for ts := start.Truncate(time.Minute); !ts.After(end) && len(out) < limit; ts = ts.Add(time.Minute) {
		if ts.Before(start) {
			continue
		}
		out = append(out, entity.Observation{
			Timestamp: ts,
			Open:      100, Close: 101, High: 102, Low: 99, Volume: 1.5,
		})
	}
	return out
}

// mockRateLimiter は RateLimiterInterface のモック実装です。
type mockRateLimiter struct {
	WaitIfNeededCalls int
	Err               error
}

func (m *mockRateLimiter) WaitIfNeeded(ctx context.Context) error {
	m.WaitIfNeededCalls++
	return m.Err
}

// mockCatalog は AssetCatalog のモック実装です。
type mockCatalog struct {
	LoadFunc  func(ctx context.Context) ([]entity.AssetInfo, error)
	LoadCalls int
}

func (m *mockCatalog) Load(ctx context.Context) ([]entity.AssetInfo, error) {
	m.LoadCalls++
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil, errors.New("LoadFunc is not implemented")
}

func staticCatalog(assets ...entity.AssetInfo) *mockCatalog {
	return &mockCatalog{LoadFunc: func(ctx context.Context) ([]entity.AssetInfo, error) {
		return assets, nil
	}}
}

var (
	btc = entity.AssetInfo{Name: "Bitcoin", Symbol: "BTCUSD", BaseSymbol: "BTC", QuoteSymbol: "USD", Type: "crypto"}
	eth = entity.AssetInfo{Name: "Ethereum", Symbol: "ETHUSD", BaseSymbol: "ETH", QuoteSymbol: "USD", Type: "crypto"}
)

// testConfig は3分のウィンドウ（3件 × 1分）を持つ設定を返します。
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxEntriesPerCall = 3
	return cfg
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptr(t time.Time) *time.Time { return &t }
