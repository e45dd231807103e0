// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RecurringState は定期取り込みが有効かどうかを報告します（gate.Gate が満たします）。
type RecurringState interface {
	Enabled() bool
}

// Health は /healthz エンドポイントのハンドラーを返します。
// GET ではプロセスの稼働と定期取り込みの状態（enabled / paused）を返し、キャッシュを防止します。
func Health(state RecurringState) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		switch c.Request.Method {
		case http.MethodHead:
			c.Status(http.StatusOK)
		case http.MethodOptions:
			c.Status(http.StatusNoContent)
		default:
			recurring := "enabled"
			if state != nil && !state.Enabled() {
				// バックフィル実行中
				recurring = "paused"
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok", "recurring": recurring})
		}
	}
}
