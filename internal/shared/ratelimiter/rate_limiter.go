package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RateLimiterInterface は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	WaitIfNeeded(ctx context.Context) error
}

// RateLimiterは、任意の連続した interval の間に開始される呼び出しを limit 回以下に抑えます。
// 上限に達した場合はエラーにせず、空きができるまで呼び出し元を待機させます。
// プロバイダーのアカウント単位の上限なので、同じプロバイダーを使うすべての取り込み処理で1つを共有します。
type RateLimiter struct {
	mu       sync.Mutex
	limit    int           // interval あたりの上限
	interval time.Duration // ローリングウィンドウの長さ
	calls    []time.Time   // 直近 interval 内の呼び出し開始時刻（古い順）

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiterは新しいRateLimiterのインスタンスを生成します。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{
		limit:    limit,
		interval: interval,
		calls:    make([]time.Time, 0, limit),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// WaitIfNeededは次の呼び出しが上限を超えない時刻まで待機し、呼び出しを記録します。
// 待機中に ctx がキャンセルされた場合のみエラーを返します。
func (rl *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for {
		now := rl.now()
		rl.evict(now)
		if len(rl.calls) < rl.limit {
			rl.calls = append(rl.calls, now)
			return nil
		}

		wait := rl.calls[0].Add(rl.interval).Sub(now)
		slog.Info("rate limit reached, waiting", "limit", rl.limit, "interval", rl.interval, "wait", wait)
		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// evict は interval より古い呼び出し記録を取り除きます。
func (rl *RateLimiter) evict(now time.Time) {
	i := 0
	for i < len(rl.calls) && !rl.calls[i].Add(rl.interval).After(now) {
		i++
	}
	if i > 0 {
		rl.calls = append(rl.calls[:0], rl.calls[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
