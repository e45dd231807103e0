package usecase

import (
	"iter"
	"time"

	"stonk_db/internal/feature/ingestion/domain/entity"
)

// PlanWindows は期間 r を size 以下のサブウィンドウ [s_i, e_i) に左から順に分割します。
// e_i は min(s_i+size, r.End, now) に制限され、未来の時刻を要求するウィンドウは生成されません。
// 境界は秒単位に切り捨てられます。
//
// 返すシーケンスは遅延評価で、何度でも最初から列挙し直せます。
func PlanWindows(r entity.TimeRange, size time.Duration, now time.Time) iter.Seq[entity.TimeRange] {
	return func(yield func(entity.TimeRange) bool) {
		if size <= 0 {
			return
		}
		end := r.End
		if now.Before(end) {
			end = now
		}
		for s := r.Start; s.Before(end); s = s.Add(size) {
			e := s.Add(size)
			if e.After(end) {
				e = end
			}
			w := entity.TimeRange{
				Start: s.Truncate(time.Second),
				End:   e.Truncate(time.Second),
			}
			if !w.Start.Before(w.End) {
				continue
			}
			if !yield(w) {
				return
			}
		}
	}
}
