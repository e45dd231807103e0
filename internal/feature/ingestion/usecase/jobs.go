package usecase

import (
	"context"
	"errors"
	"log/slog"

	"stonk_db/internal/shared/gate"
)

// ErrRecurringSkipped は定期取り込みがゲートによりスキップされたことを示します。
var ErrRecurringSkipped = errors.New("recurring ingestion skipped: gate disabled or a run is active")

// Jobs は定期取り込みとバックフィルをゲート越しに実行します。
// バックフィル中は定期取り込みが無効になり、終了後（失敗時も含む）に再び有効になります。
type Jobs struct {
	trigger *Trigger
	gate    *gate.Gate
}

// NewJobs は新しい Jobs を作成します。
func NewJobs(trigger *Trigger, g *gate.Gate) *Jobs {
	return &Jobs{trigger: trigger, gate: g}
}

// Recurring は期間指定なしで全銘柄を取り込みます。
// ゲートが無効な場合や前回の実行が続いている場合は何もせず ErrRecurringSkipped を返します。
func (j *Jobs) Recurring(ctx context.Context) (Result, error) {
	var res Result
	ran := j.gate.TryRecurring(func() {
		res = j.trigger.RunIngestion(ctx, Request{})
	})
	if !ran {
		slog.Info("recurring ingestion skipped", "gate_enabled", j.gate.Enabled())
		return Result{}, ErrRecurringSkipped
	}
	if !res.Success {
		slog.Warn("recurring ingestion finished with errors", "message", res.Message)
	}
	return res, nil
}

// Backfill はゲートを保持したまま指定期間の取り込みを行います。
// 実行中の定期取り込みがあれば終了を待ってから開始します。
func (j *Jobs) Backfill(ctx context.Context, req Request) Result {
	var res Result
	_ = j.gate.Exclusive(func() error {
		slog.Info("backfill started", "symbols", req.Symbols, "start_date", req.StartDate, "end_date", req.EndDate)
		res = j.trigger.RunIngestion(ctx, req)
		slog.Info("backfill finished", "success", res.Success)
		return nil
	})
	return res
}

// RecurringEnabled は定期取り込みが現在有効かどうかを返します。
func (j *Jobs) RecurringEnabled() bool {
	return j.gate.Enabled()
}
