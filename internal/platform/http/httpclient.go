package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient はデータソース呼び出し用の HTTP クライアントを作成します。
//
// http.DefaultClient にはタイムアウトがないため、常にこのクライアントを使用すること。
// timeout はリクエスト全体（接続、送信、ボディ読み込み）の上限です。
// 1 実行中は同じホストへ連続して窓ごとのリクエストを送るため、ホストあたりのアイドル接続を多めに保持します。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
