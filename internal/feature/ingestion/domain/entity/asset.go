// Package entity defines the domain models for the ingestion feature.
package entity

// AssetInfo は銘柄設定ファイルに記載される銘柄の記述子です。
// すべてのフィールドが必須です。
type AssetInfo struct {
	Name        string // 表示名（例: "Bitcoin"）
	Symbol      string // 取引ペアのシンボル（例: "BTCUSD"）
	BaseSymbol  string // 基軸通貨（例: "BTC"）
	QuoteSymbol string // 決済通貨（例: "USD"）
	Type        string // 分類タグ（例: "crypto", "stock"）
}

// Asset は永続化された追跡対象の銘柄です。
// 初回取り込み時に作成され、その後は変更も削除もされません。
type Asset struct {
	ID uint
	AssetInfo
}
