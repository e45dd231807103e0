// Package dto defines data transfer objects for the ingestion HTTP API.
package dto

// BackfillRequest は POST /backfill_data のリクエストボディです。
// symbol / symbols を省略すると全銘柄が対象になります。
type BackfillRequest struct {
	StartDate string   `json:"start_date" binding:"required"`
	EndDate   string   `json:"end_date"`
	Symbol    string   `json:"symbol"`
	Symbols   []string `json:"symbols"`
}

// AllSymbols は symbol と symbols をまとめて返します。
func (r BackfillRequest) AllSymbols() []string {
	out := make([]string, 0, len(r.Symbols)+1)
	if r.Symbol != "" {
		out = append(out, r.Symbol)
	}
	return append(out, r.Symbols...)
}

// RunResponse は取り込み実行の結果です。
type RunResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AssetItem は GET /assets のレスポンス要素です。
type AssetItem struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	BaseSymbol  string `json:"base_symbol"`
	QuoteSymbol string `json:"quote_symbol"`
	Type        string `json:"type"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
