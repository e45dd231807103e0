// Package scheduler は足の境界に揃えて定期タスクを実行します。
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// AlignedScheduler は Interval の境界（UTC）+ Offset ごとに task を実行します。
// task は同期的に呼ばれ、実行中に迎えた境界は読み飛ばされます。
type AlignedScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAlignedScheduler(interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

// Run は ctx がキャンセルされるまでブロックします。
func (s *AlignedScheduler) Run(ctx context.Context, task func(context.Context)) {
	if task == nil {
		slog.Warn("scheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		slog.Warn("scheduler: invalid interval, exit", "interval", s.Interval)
		return
	}
	if s.Offset < 0 {
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	slog.Info("scheduler started", "interval", s.Interval, "offset", s.Offset, "run_immediately", s.RunImmediately)
	if s.RunImmediately && ctx.Err() == nil {
		task(ctx)
	}

	for {
		wakeAt, wait := s.nextTimes(s.nowFn())
		slog.Debug("scheduler: next tick", "at", wakeAt.Format(time.RFC3339))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("scheduler stopped")
			return
		case <-timer.C:
		}
		task(ctx)
	}
}

// nextTimes は now より後の最初の境界 + Offset と、それまでの待ち時間を返します。
func (s *AlignedScheduler) nextTimes(now time.Time) (wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	wakeAt = now.Truncate(s.Interval).Add(s.Offset)
	for !wakeAt.After(now) {
		wakeAt = wakeAt.Add(s.Interval)
	}
	return wakeAt, wakeAt.Sub(now)
}
