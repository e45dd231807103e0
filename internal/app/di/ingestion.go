package di

import (
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"stonk_db/internal/feature/ingestion/adapters"
	"stonk_db/internal/feature/ingestion/usecase"
	"stonk_db/internal/platform/cache"
	"stonk_db/internal/shared/gate"
	"stonk_db/internal/shared/ratelimiter"
)

const defaultAssetsFile = "./config/assets.json"

// Ingestion は取り込みに必要なコンポーネント一式です。
type Ingestion struct {
	Config  usecase.Config
	Gate    *gate.Gate
	Trigger *usecase.Trigger
	Jobs    *usecase.Jobs
	Assets  *usecase.AssetsUsecase
}

// NewObservationStore は ObservationStore を作成します。
// Redis が利用可能な場合は銘柄検索をキャッシュする実装で包みます。
func NewObservationStore(db *gorm.DB, rdb *redis.Client) usecase.ObservationStore {
	store := adapters.NewObservationStore(db)
	if rdb == nil {
		return store
	}
	return cache.NewCachingObservationStore(rdb, 0, store, "assets")
}

// AssetsFile は ASSETS_FILE（デフォルト ./config/assets.json）を返します。
func AssetsFile() string {
	if p := os.Getenv("ASSETS_FILE"); p != "" {
		return p
	}
	return defaultAssetsFile
}

// NewIngestion は設定を環境変数から読み込み、取り込みユースケースを組み立てます。
// rdb は nil でも構いません。
// DATA_SOURCE が未知の場合や CANDLE_TIMEFRAME がデータソースの足の長さと一致しない場合は
// domain.ErrConfiguration を返します。
func NewIngestion(db *gorm.DB, rdb *redis.Client) (*Ingestion, error) {
	cfg := usecase.LoadConfig()
	g := gate.New()

	store := NewObservationStore(db, rdb)
	limiter := ratelimiter.NewRateLimiter(cfg.RateLimitCalls, cfg.RateLimitPeriod)
	ingest := usecase.NewIngestUsecase(NewSourceRegistry(), store, limiter, cfg)
	if _, err := ingest.Source(); err != nil {
		return nil, err
	}
	trigger := usecase.NewTrigger(adapters.NewFileAssetCatalog(AssetsFile()), ingest)

	return &Ingestion{
		Config:  cfg,
		Gate:    g,
		Trigger: trigger,
		Jobs:    usecase.NewJobs(trigger, g),
		Assets:  usecase.NewAssetsUsecase(adapters.NewObservationStore(db)),
	}, nil
}
