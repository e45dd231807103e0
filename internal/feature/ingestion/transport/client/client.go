// Package client は稼働中のサーバーの取り込みAPIを呼び出すクライアントです。
// CLI はこのクライアント経由で取り込みを依頼し、サーバーのゲートとレート制限を共有します。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"stonk_db/internal/feature/ingestion/transport/http/dto"
)

// DefaultBaseURL は INGEST_API_URL 未設定時の接続先です。
const DefaultBaseURL = "http://localhost:5002"

const maxResponseBytes = 1 << 20

// Client は取り込みAPIのクライアントです。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New は baseURL に Bearer token 付きでリクエストする Client を生成します。
func New(baseURL, token string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// BaseURLFromEnv は INGEST_API_URL（デフォルト DefaultBaseURL）を返します。
func BaseURLFromEnv() string {
	if u := os.Getenv("INGEST_API_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultBaseURL
}

// Backfill は POST /backfill_data を呼び出し、完了まで待ちます。
func (c *Client) Backfill(ctx context.Context, req dto.BackfillRequest) (dto.RunResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return dto.RunResponse{}, err
	}
	return c.post(ctx, "/backfill_data", body)
}

// Ingest は POST /ingest を呼び出し、定期取り込みと同じ処理を1回実行させます。
// 実行中やバックフィル中はサーバーが 409 を返し、エラーになります。
func (c *Client) Ingest(ctx context.Context) (dto.RunResponse, error) {
	return c.post(ctx, "/ingest", nil)
}

func (c *Client) post(ctx context.Context, path string, body []byte) (dto.RunResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return dto.RunResponse{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return dto.RunResponse{}, fmt.Errorf("%s request: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return dto.RunResponse{}, err
	}

	var out dto.RunResponse
	if err := json.Unmarshal(b, &out); err != nil || out.Message == "" {
		// 400/401/409 などはエラー形式で返る
		var e dto.ErrorResponse
		if jerr := json.Unmarshal(b, &e); jerr == nil && e.Error != "" {
			return dto.RunResponse{}, fmt.Errorf("%s http %d: %s", path, resp.StatusCode, e.Error)
		}
		return dto.RunResponse{}, fmt.Errorf("%s http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return out, nil
}
