package usecase

import "stonk_db/internal/feature/ingestion/domain/entity"

// FilterNew は existing に含まれないタイムスタンプの観測値だけを返します。
// 比較はタイムスタンプのみで行い、価格や出来高は比較しません。入力は変更しません。
func FilterNew(fetched []entity.Observation, existing entity.TimestampSet) []entity.Observation {
	out := make([]entity.Observation, 0, len(fetched))
	for _, o := range fetched {
		if existing.Contains(o.Timestamp) {
			continue
		}
		out = append(out, o)
	}
	return out
}
