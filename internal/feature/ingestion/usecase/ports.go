package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stonk_db/internal/feature/ingestion/domain"
	"stonk_db/internal/feature/ingestion/domain/entity"
)

// ObservationStore は銘柄と観測値の永続化を抽象化します。
// 実装は (asset_id, timestamp) の一意制約を保証しなければなりません。
type ObservationStore interface {
	// FindAsset はシンボルで銘柄を検索します。存在しない場合は domain.ErrAssetNotFound を返します。
	FindAsset(ctx context.Context, symbol string) (*entity.Asset, error)
	// CreateAsset は新しい銘柄を作成します。
	CreateAsset(ctx context.Context, info entity.AssetInfo) (*entity.Asset, error)
	// ExistingTimestamps は銘柄の保存済みタイムスタンプをすべて返します。
	ExistingTimestamps(ctx context.Context, assetID uint) (entity.TimestampSet, error)
	// LatestObservation は最新の観測値を返します。観測値がない場合 ok は false です。
	LatestObservation(ctx context.Context, assetID uint) (obs entity.Observation, ok bool, err error)
	// BulkInsert は観測値を一括挿入し、実際に挿入した件数を返します。
	// 既に存在する (asset_id, timestamp) は無視されます。
	BulkInsert(ctx context.Context, assetID uint, observations []entity.Observation) (int64, error)
	// Transaction は fn を1つのトランザクション内で実行します。fn がエラーを返すとロールバックされます。
	Transaction(ctx context.Context, fn func(tx ObservationStore) error) error
}

// DataSource は外部の時系列データプロバイダーを抽象化します。
type DataSource interface {
	// Name はデータソースの識別子です（観測値の Source タグにも使用されます）。
	Name() string
	// MaxLimit は1回の呼び出しで返せる最大件数です。0 以下は上限なしを意味します。
	MaxLimit() int
	// CandleDuration はプロバイダーに要求しているローソク足の長さです。
	CandleDuration() time.Duration
	// Fetch は [start, end) の観測値を古い順に最大 limit 件返します。
	Fetch(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error)
}

// AssetCatalog は追跡対象の銘柄一覧を提供します。
type AssetCatalog interface {
	Load(ctx context.Context) ([]entity.AssetInfo, error)
}

// SourceRegistry は識別子からデータソースを引きます。
type SourceRegistry map[string]DataSource

// NewSourceRegistry は与えられたデータソースを名前で登録します。
func NewSourceRegistry(sources ...DataSource) SourceRegistry {
	r := make(SourceRegistry, len(sources))
	for _, s := range sources {
		r[s.Name()] = s
	}
	return r
}

// Lookup は name のデータソースを返します。未登録の場合は domain.ErrConfiguration です。
func (r SourceRegistry) Lookup(name string) (DataSource, error) {
	s, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized data source %q (known: %v)", domain.ErrConfiguration, name, r.names())
	}
	return s, nil
}

func (r SourceRegistry) names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
