package usecase

import (
	"context"

	"stonk_db/internal/feature/ingestion/domain/entity"
)

// AssetRepository は保存済みの銘柄一覧を取得するリポジトリのインターフェイスです。
type AssetRepository interface {
	ListAssets(ctx context.Context) ([]entity.Asset, error)
}

// AssetsUsecase は保存済み銘柄の参照ユースケースです。
type AssetsUsecase struct {
	repo AssetRepository
}

// NewAssetsUsecase は新しい AssetsUsecase を作成します。
func NewAssetsUsecase(repo AssetRepository) *AssetsUsecase {
	return &AssetsUsecase{repo: repo}
}

// ListAssets はシンボル順に銘柄を返します。
func (u *AssetsUsecase) ListAssets(ctx context.Context) ([]entity.Asset, error) {
	return u.repo.ListAssets(ctx)
}
