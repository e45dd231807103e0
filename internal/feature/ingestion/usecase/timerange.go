package usecase

import (
	"context"
	"fmt"
	"time"

	"stonk_db/internal/feature/ingestion/domain"
	"stonk_db/internal/feature/ingestion/domain/entity"
)

// Bounds は呼び出し元が指定する取り込み期間です。nil は未指定を意味します。
type Bounds struct {
	Start *time.Time
	End   *time.Time
}

// ResolveRange は1銘柄の取り込み期間を決定します。
//   - 終了: 指定があればそれ、なければ now
//   - 開始: 指定があればそれ、なければ最新の観測値の時刻、それもなければ 終了 - lookback
//
// 開始が終了より前でない場合は domain.ErrInvalidRange を返します。
func ResolveRange(ctx context.Context, store ObservationStore, assetID uint, b Bounds, now time.Time, lookback time.Duration) (entity.TimeRange, error) {
	end := entity.NormalizeUTC(now)
	if b.End != nil {
		end = entity.NormalizeUTC(*b.End)
	}

	var start time.Time
	if b.Start != nil {
		start = entity.NormalizeUTC(*b.Start)
	} else {
		latest, ok, err := store.LatestObservation(ctx, assetID)
		if err != nil {
			return entity.TimeRange{}, &domain.StoreError{Op: "latest observation", Err: err}
		}
		if ok {
			start = entity.NormalizeUTC(latest.Timestamp)
		} else {
			start = end.Add(-lookback)
		}
	}

	if !start.Before(end) {
		return entity.TimeRange{}, fmt.Errorf("%w: start %s is not before end %s",
			domain.ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return entity.TimeRange{Start: start, End: end}, nil
}
