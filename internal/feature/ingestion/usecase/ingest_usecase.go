package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stonk_db/internal/feature/ingestion/domain"
	"stonk_db/internal/feature/ingestion/domain/entity"
	"stonk_db/internal/shared/ratelimiter"
)

// IngestUsecase は銘柄ごとに期間を決定し、ウィンドウ単位でデータを取得・重複排除・保存します。
// ウィンドウの失敗はレポートに記録され、実行自体は最後まで続きます。
type IngestUsecase struct {
	sources     SourceRegistry
	store       ObservationStore
	rateLimiter ratelimiter.RateLimiterInterface
	cfg         Config

	now func() time.Time
}

// NewIngestUsecase は新しい IngestUsecase を作成します。
func NewIngestUsecase(sources SourceRegistry, store ObservationStore, rateLimiter ratelimiter.RateLimiterInterface, cfg Config) *IngestUsecase {
	return &IngestUsecase{
		sources:     sources,
		store:       store,
		rateLimiter: rateLimiter,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run は与えられた銘柄を順番に取り込みます。
// データソースが不正な場合は銘柄に触れる前に中断します。それ以外のエラーは影響範囲
// （ウィンドウまたは銘柄）だけをスキップしてレポートに記録します。
func (iu *IngestUsecase) Run(ctx context.Context, assets []entity.AssetInfo, b Bounds) *Report {
	report := &Report{RunID: uuid.NewString()}
	log := slog.With("run_id", report.RunID)

	src, err := iu.Source()
	if err != nil {
		log.Error("ingestion aborted", "error", err)
		report.fail(Failure{Err: err})
		return report
	}

	started := iu.now()
	log.Info("ingestion started", "source", src.Name(), "assets", len(assets),
		"limit", iu.cfg.Limit(src.MaxLimit()), "window", iu.cfg.WindowSize(src.MaxLimit()))
	for _, info := range assets {
		if err := ctx.Err(); err != nil {
			report.fail(Failure{Symbol: info.Symbol, Err: err})
			continue
		}
		iu.ingestAsset(ctx, log.With("symbol", info.Symbol), src, info, b, report)
	}
	log.Info("ingestion finished",
		"inserted", report.Inserted,
		"windows", report.Windows,
		"failures", len(report.Failures),
		"elapsed", iu.now().Sub(started))
	return report
}

// Source は設定されたデータソースを返します。未登録の場合や、足の長さが
// CANDLE_TIMEFRAME と一致しない場合は domain.ErrConfiguration です。
func (iu *IngestUsecase) Source() (DataSource, error) {
	src, err := iu.sources.Lookup(iu.cfg.DataSource)
	if err != nil {
		return nil, err
	}
	if err := iu.cfg.CheckSource(src); err != nil {
		return nil, err
	}
	return src, nil
}

// ingestAsset は1銘柄分の取り込みを行います。
func (iu *IngestUsecase) ingestAsset(ctx context.Context, log *slog.Logger, src DataSource, info entity.AssetInfo, b Bounds, report *Report) {
	asset, err := iu.ensureAsset(ctx, log, info)
	if err != nil {
		log.Error("failed to ensure asset", "error", err)
		report.fail(Failure{Symbol: info.Symbol, Err: err})
		return
	}
	report.Assets++

	// 形成中の足を保存しないよう、現在時刻は足の境界に切り捨てる
	now := iu.now().UTC().Truncate(iu.cfg.CandleDuration)
	rng, err := ResolveRange(ctx, iu.store, asset.ID, b, now, iu.cfg.FallbackLookback)
	if err != nil {
		log.Error("failed to resolve time range", "error", err)
		report.fail(Failure{Symbol: info.Symbol, Err: err})
		return
	}

	// 既存タイムスタンプは銘柄ごとに1回だけ読み込み、挿入に成功するたびにメモリ上で更新する
	existing, err := iu.store.ExistingTimestamps(ctx, asset.ID)
	if err != nil {
		err = &domain.StoreError{Op: "existing timestamps", Err: err}
		log.Error("failed to load existing timestamps", "error", err)
		report.fail(Failure{Symbol: info.Symbol, Err: err})
		return
	}

	log.Info("ingesting asset", "range", rng.String(), "existing", len(existing))
	index := 0
	for w := range PlanWindows(rng, iu.cfg.WindowSize(src.MaxLimit()), now) {
		index++
		report.Windows++
		n, err := iu.ingestWindow(ctx, src, asset, w, existing)
		if err != nil {
			log.Error("window failed", "window", index, "range", w.String(), "error", err)
			report.fail(Failure{Symbol: info.Symbol, Index: index, Window: &w, Err: err})
			if iu.cfg.AbortAssetOnWindowError || ctx.Err() != nil {
				break
			}
			continue
		}
		report.Inserted += n
		log.Debug("window ingested", "window", index, "range", w.String(), "inserted", n)
	}
}

// ensureAsset はシンボルの銘柄を取得し、なければ作成します。
func (iu *IngestUsecase) ensureAsset(ctx context.Context, log *slog.Logger, info entity.AssetInfo) (*entity.Asset, error) {
	var asset *entity.Asset
	err := iu.store.Transaction(ctx, func(tx ObservationStore) error {
		a, err := tx.FindAsset(ctx, info.Symbol)
		if err == nil {
			asset = a
			return nil
		}
		if !errors.Is(err, domain.ErrAssetNotFound) {
			return err
		}
		a, err = tx.CreateAsset(ctx, info)
		if err != nil {
			return err
		}
		log.Info("asset created", "asset_id", a.ID, "name", info.Name)
		asset = a
		return nil
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "ensure asset", Err: err}
	}
	return asset, nil
}

// ingestWindow は1ウィンドウ分のデータを取得し、新しい観測値だけを1つのトランザクションで保存します。
// 取得とレート制限の待機はトランザクションの外で行います。
func (iu *IngestUsecase) ingestWindow(ctx context.Context, src DataSource, asset *entity.Asset, w entity.TimeRange, existing entity.TimestampSet) (int64, error) {
	if err := iu.rateLimiter.WaitIfNeeded(ctx); err != nil {
		return 0, err
	}

	fetched, err := src.Fetch(ctx, asset.Symbol, w.Start, w.End, iu.cfg.Limit(src.MaxLimit()))
	if err != nil {
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			err = domain.NewProviderError(asset.Symbol, w.Start, w.End, err)
		}
		return 0, err
	}

	fresh := FilterNew(clip(fetched, w), existing)
	if len(fresh) == 0 {
		return 0, nil
	}
	for i := range fresh {
		fresh[i].AssetID = asset.ID
		if fresh[i].Source == "" {
			fresh[i].Source = src.Name()
		}
	}

	var inserted int64
	err = iu.store.Transaction(ctx, func(tx ObservationStore) error {
		n, err := tx.BulkInsert(ctx, asset.ID, fresh)
		if err != nil {
			return err
		}
		inserted = n
		return nil
	})
	if err != nil {
		return 0, &domain.StoreError{Op: "bulk insert", Err: err}
	}

	for _, o := range fresh {
		existing.Add(o.Timestamp)
	}
	return inserted, nil
}

// clip はウィンドウ [Start, End) の外にある観測値を取り除きます。
// 隣接ウィンドウは境界を共有するため、終端を含めて返すプロバイダーでも二重取得にならないようにします。
func clip(obs []entity.Observation, w entity.TimeRange) []entity.Observation {
	out := make([]entity.Observation, 0, len(obs))
	for _, o := range obs {
		o.Timestamp = entity.NormalizeUTC(o.Timestamp)
		if w.Contains(o.Timestamp) {
			out = append(out, o)
		}
	}
	return out
}
