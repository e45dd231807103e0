package adapters

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stonk_db/internal/feature/ingestion/domain"
	"stonk_db/internal/feature/ingestion/domain/entity"
	"stonk_db/internal/feature/ingestion/usecase"
)

// insertBatchSize は1回の INSERT 文に含める行数です。
const insertBatchSize = 1000

type observationGorm struct {
	db *gorm.DB
}

var (
	_ usecase.ObservationStore = (*observationGorm)(nil)
	_ usecase.AssetRepository  = (*observationGorm)(nil)
)

// NewObservationStore は gorm ベースの ObservationStore を作成します。
func NewObservationStore(db *gorm.DB) *observationGorm {
	return &observationGorm{db: db}
}

// AssetModel は追跡対象の銘柄テーブルです。
type AssetModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:128;not null"`
	Symbol      string `gorm:"size:32;not null;uniqueIndex"`
	BaseSymbol  string `gorm:"size:16;not null"`
	QuoteSymbol string `gorm:"size:16;not null"`
	Type        string `gorm:"column:type;size:16;not null"`
}

func (AssetModel) TableName() string {
	return "assets"
}

// ObservationModel は銘柄ごとの OHLCV データのテーブルです。
// (asset_id, date_time) は一意です。
type ObservationModel struct {
	ID       uint      `gorm:"primaryKey"`
	AssetID  uint      `gorm:"not null;uniqueIndex:asset_data_asset_time,priority:1"`
	DateTime time.Time `gorm:"column:date_time;not null;uniqueIndex:asset_data_asset_time,priority:2"`
	Source   string    `gorm:"size:32;not null"`

	Open   float64 `gorm:"not null"`
	Close  float64 `gorm:"not null"`
	High   float64 `gorm:"not null"`
	Low    float64 `gorm:"not null"`
	Volume float64 `gorm:"not null;default:0"`

	Asset AssetModel `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
}

func (ObservationModel) TableName() string {
	return "asset_data"
}

// Models は AutoMigrate の対象モデルです。
func Models() []any {
	return []any{&AssetModel{}, &ObservationModel{}}
}

func toAsset(m AssetModel) *entity.Asset {
	return &entity.Asset{
		ID: m.ID,
		AssetInfo: entity.AssetInfo{
			Name:        m.Name,
			Symbol:      m.Symbol,
			BaseSymbol:  m.BaseSymbol,
			QuoteSymbol: m.QuoteSymbol,
			Type:        m.Type,
		},
	}
}

func toObservationModel(assetID uint, o entity.Observation) ObservationModel {
	return ObservationModel{
		AssetID:  assetID,
		DateTime: entity.NormalizeUTC(o.Timestamp),
		Source:   o.Source,
		Open:     o.Open,
		Close:    o.Close,
		High:     o.High,
		Low:      o.Low,
		Volume:   o.Volume,
	}
}

func (r *observationGorm) FindAsset(ctx context.Context, symbol string) (*entity.Asset, error) {
	// Take は見つからない場合に gorm のロガーがエラーを出すため Limit(1).Find を使う
	var m AssetModel
	res := r.db.WithContext(ctx).Where("symbol = ?", symbol).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, symbol)
	}
	return toAsset(m), nil
}

func (r *observationGorm) CreateAsset(ctx context.Context, info entity.AssetInfo) (*entity.Asset, error) {
	m := AssetModel{
		Name:        info.Name,
		Symbol:      info.Symbol,
		BaseSymbol:  info.BaseSymbol,
		QuoteSymbol: info.QuoteSymbol,
		Type:        info.Type,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return toAsset(m), nil
}

func (r *observationGorm) ListAssets(ctx context.Context) ([]entity.Asset, error) {
	var rows []AssetModel
	if err := r.db.WithContext(ctx).Order("symbol").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Asset, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toAsset(m))
	}
	return out, nil
}

func (r *observationGorm) ExistingTimestamps(ctx context.Context, assetID uint) (entity.TimestampSet, error) {
	var ts []time.Time
	err := r.db.WithContext(ctx).
		Model(&ObservationModel{}).
		Where("asset_id = ?", assetID).
		Pluck("date_time", &ts).Error
	if err != nil {
		return nil, err
	}
	return entity.NewTimestampSet(ts...), nil
}

func (r *observationGorm) LatestObservation(ctx context.Context, assetID uint) (entity.Observation, bool, error) {
	var m ObservationModel
	res := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("date_time DESC").
		Limit(1).
		Find(&m)
	if res.Error != nil {
		return entity.Observation{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return entity.Observation{}, false, nil
	}
	return entity.Observation{
		AssetID:   m.AssetID,
		Timestamp: entity.NormalizeUTC(m.DateTime),
		Source:    m.Source,
		Open:      m.Open,
		Close:     m.Close,
		High:      m.High,
		Low:       m.Low,
		Volume:    m.Volume,
	}, true, nil
}

// BulkInsert は既存の (asset_id, date_time) を無視して挿入します（上書きはしません）。
func (r *observationGorm) BulkInsert(ctx context.Context, assetID uint, observations []entity.Observation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	ms := make([]ObservationModel, 0, len(observations))
	for _, o := range observations {
		ms = append(ms, toObservationModel(assetID, o))
	}

	res := r.db.WithContext(ctx).
		Omit("Asset").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}, {Name: "date_time"}},
			DoNothing: true,
		}).
		CreateInBatches(&ms, insertBatchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *observationGorm) Transaction(ctx context.Context, fn func(tx usecase.ObservationStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&observationGorm{db: tx})
	})
}
