// Package handler はingestionフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stonk_db/internal/feature/ingestion/domain/entity"
	"stonk_db/internal/feature/ingestion/transport/http/dto"
	"stonk_db/internal/feature/ingestion/usecase"
)

// JobRunner はゲート越しに取り込みを実行するユースケースです（usecase.Jobs が満たします）。
type JobRunner interface {
	Recurring(ctx context.Context) (usecase.Result, error)
	Backfill(ctx context.Context, req usecase.Request) usecase.Result
}

// AssetLister は保存済み銘柄を返します。
type AssetLister interface {
	ListAssets(ctx context.Context) ([]entity.Asset, error)
}

// IngestionHandler は取り込みトリガーと銘柄一覧の HTTP リクエストを処理します。
type IngestionHandler struct {
	jobs   JobRunner
	assets AssetLister
}

func NewIngestionHandler(jobs JobRunner, assets AssetLister) *IngestionHandler {
	return &IngestionHandler{jobs: jobs, assets: assets}
}

// Backfill は指定期間の取り込みを同期的に実行します。
//
// POST /backfill_data {"start_date": "2024-01-01", "end_date": "...", "symbol": "BTCUSD"}
//
// 実行中は定期取り込みが停止します。クライアントが切断しても実行は最後まで続けます。
func (h *IngestionHandler) Backfill(c *gin.Context) {
	var req dto.BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "start_date is required"})
		return
	}

	ureq := usecase.Request{
		Symbols:   req.AllSymbols(),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := ureq.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	res := h.jobs.Backfill(context.WithoutCancel(c.Request.Context()), ureq)
	writeResult(c, res)
}

// Ingest は定期取り込みと同じ処理を今すぐ 1 回実行します。
// バックフィル中または実行中の場合は 409 を返します。
//
// POST /ingest
func (h *IngestionHandler) Ingest(c *gin.Context) {
	res, err := h.jobs.Recurring(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, usecase.ErrRecurringSkipped) {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	writeResult(c, res)
}

// ListAssets は保存済みの銘柄一覧を返します。
//
// GET /assets
func (h *IngestionHandler) ListAssets(c *gin.Context) {
	assets, err := h.assets.ListAssets(c.Request.Context())
	if err != nil {
		slog.Error("list assets failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]dto.AssetItem, 0, len(assets))
	for _, a := range assets {
		out = append(out, dto.AssetItem{
			Symbol:      a.Symbol,
			Name:        a.Name,
			BaseSymbol:  a.BaseSymbol,
			QuoteSymbol: a.QuoteSymbol,
			Type:        a.Type,
		})
	}
	c.JSON(http.StatusOK, out)
}

// 部分的に保存された場合も含め、失敗した実行は 500 で報告する
func writeResult(c *gin.Context, res usecase.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, dto.RunResponse{Success: res.Success, Message: res.Message})
}
