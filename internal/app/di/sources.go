// Package di provides dependency injection factories for creating application components.
package di

import (
	"stonk_db/internal/feature/ingestion/usecase"
	"stonk_db/internal/platform/externalapi/bitfinex"
	"stonk_db/internal/platform/externalapi/twelvedata"
	infrahttp "stonk_db/internal/platform/http"
)

// NewSourceRegistry はすべてのデータソースを HTTP クライアント付きで登録します。
// どれを使うかは DATA_SOURCE で選択されます。
func NewSourceRegistry() usecase.SourceRegistry {
	bfCfg := bitfinex.LoadConfig()
	tdCfg := twelvedata.LoadConfig()
	return usecase.NewSourceRegistry(
		bitfinex.NewBitfinexSource(bfCfg, infrahttp.NewHTTPClient(bfCfg.Timeout)),
		twelvedata.NewTwelveDataSource(tdCfg, infrahttp.NewHTTPClient(tdCfg.Timeout)),
	)
}
