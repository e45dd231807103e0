package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stonk_db/internal/feature/ingestion/domain"
	"stonk_db/internal/feature/ingestion/domain/entity"
)

// Trigger は外部からの取り込み要求（定期実行・バックフィル）を受け付け、
// 銘柄一覧と期間を解決して IngestUsecase に渡します。
type Trigger struct {
	catalog AssetCatalog
	ingest  *IngestUsecase
}

// NewTrigger は新しい Trigger を作成します。
func NewTrigger(catalog AssetCatalog, ingest *IngestUsecase) *Trigger {
	return &Trigger{catalog: catalog, ingest: ingest}
}

// Request は取り込み要求のパラメータです。空文字列は未指定を意味します。
type Request struct {
	Symbols   []string // 空の場合はカタログのすべての銘柄
	StartDate string   // ISO 8601
	EndDate   string   // ISO 8601
}

// Validate は日付の形式と前後関係だけを検証します。違反は domain.ErrInvalidRange です。
func (r Request) Validate() error {
	_, err := parseBounds(r.StartDate, r.EndDate)
	return err
}

// RunIngestion は要求を検証して取り込みを実行します。
// 入力や設定が不正な場合は取り込みを行わずに失敗の結果を返します。
func (t *Trigger) RunIngestion(ctx context.Context, req Request) Result {
	bounds, err := parseBounds(req.StartDate, req.EndDate)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	assets, err := t.Assets(ctx)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	assets, err = selectAssets(assets, req.Symbols)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	return t.ingest.Run(ctx, assets, bounds).Result()
}

// Assets はカタログの銘柄一覧を返します。読み込みに失敗した場合は domain.ErrConfiguration です。
func (t *Trigger) Assets(ctx context.Context) ([]entity.AssetInfo, error) {
	assets, err := t.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load asset list: %v", domain.ErrConfiguration, err)
	}
	return assets, nil
}

func parseBounds(startDate, endDate string) (Bounds, error) {
	var b Bounds
	if s := strings.TrimSpace(startDate); s != "" {
		t, err := entity.ParseTimestamp(s)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: start_date: %v", domain.ErrInvalidRange, err)
		}
		b.Start = &t
	}
	if s := strings.TrimSpace(endDate); s != "" {
		t, err := entity.ParseTimestamp(s)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: end_date: %v", domain.ErrInvalidRange, err)
		}
		b.End = &t
	}
	if b.Start != nil && b.End != nil && !b.Start.Before(*b.End) {
		return Bounds{}, fmt.Errorf("%w: start_date %s is not before end_date %s",
			domain.ErrInvalidRange, b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339))
	}
	return b, nil
}

// selectAssets は symbols に一致する銘柄を絞り込みます（大文字小文字は区別しません）。
// カタログにないシンボルが含まれる場合は domain.ErrConfiguration です。
func selectAssets(assets []entity.AssetInfo, symbols []string) ([]entity.AssetInfo, error) {
	if len(symbols) == 0 {
		return assets, nil
	}
	bySymbol := make(map[string]entity.AssetInfo, len(assets))
	for _, a := range assets {
		bySymbol[strings.ToUpper(a.Symbol)] = a
	}

	selected := make([]entity.AssetInfo, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	var unknown []string
	for _, s := range symbols {
		key := strings.ToUpper(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		a, ok := bySymbol[key]
		if !ok {
			unknown = append(unknown, s)
			continue
		}
		selected = append(selected, a)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown symbols %v", domain.ErrConfiguration, unknown)
	}
	return selected, nil
}
