package router

import (
	"github.com/gin-gonic/gin"

	ingestionhandler "stonk_db/internal/feature/ingestion/transport/handler"
	"stonk_db/internal/platform/http/handler"
	jwtmw "stonk_db/internal/platform/jwt"
)

func NewRouter(ingestion *ingestionhandler.IngestionHandler, state handler.RecurringState) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 認証不要
	// 導通確認用（定期取り込みの状態も返す）
	health := handler.Health(state)
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	// 保存済み銘柄の一覧
	r.GET("/assets", ingestion.ListAssets)

	// 取り込みを起動するルートは ingest スコープの JWT が必要
	auth := r.Group("/")
	auth.Use(jwtmw.AuthRequired())
	{
		auth.POST("/backfill_data", ingestion.Backfill)
		auth.POST("/ingest", ingestion.Ingest)
	}

	return r
}
