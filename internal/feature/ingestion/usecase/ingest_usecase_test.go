package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonk_db/internal/feature/ingestion/domain"
	"stonk_db/internal/feature/ingestion/domain/entity"
)

var testNow = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func newTestUsecase(src DataSource, store ObservationStore, limiter *mockRateLimiter, cfg Config) *IngestUsecase {
	iu := NewIngestUsecase(NewSourceRegistry(src), store, limiter, cfg)
	iu.now = fixedClock(testNow)
	return iu
}

// TestIngestUsecase_Run_FreshAsset は空のストアに5分間のデータを取り込むシナリオを検証します。
func TestIngestUsecase_Run_FreshAsset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	store := newMemStore()
	src := minuteSource()
	limiter := &mockRateLimiter{}
	iu := newTestUsecase(src, store, limiter, DefaultConfig())

	report := iu.Run(ctx, []entity.AssetInfo{btc}, Bounds{Start: ptr(start), End: ptr(end)})

	require.True(t, report.Success(), report.ErrorReport())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, int64(5), report.Inserted)
	assert.Equal(t, 1, store.CreateAssetCalls)
	assert.Equal(t, 1, limiter.WaitIfNeededCalls)
	require.Len(t, src.FetchCalls, 1)
	assert.Equal(t, entity.TimeRange{Start: start, End: end}, src.FetchCalls[0])

	want := []time.Time{
		start,
		start.Add(1 * time.Minute),
		start.Add(2 * time.Minute),
		start.Add(3 * time.Minute),
		start.Add(4 * time.Minute),
	}
	assert.Equal(t, want, store.timestamps("BTCUSD"), "the candle at the window end belongs to the next window")

	a, err := store.FindAsset(ctx, "BTCUSD")
	require.NoError(t, err)
	for _, o := range store.obs[a.ID] {
		assert.Equal(t, "bitfinex", o.Source)
		assert.Equal(t, a.ID, o.AssetID)
	}
}

// TestIngestUsecase_Run_Idempotent は同じ期間を2回取り込んでも件数が増えないことを検証します。
func TestIngestUsecase_Run_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := Bounds{Start: ptr(start), End: ptr(start.Add(10 * time.Minute))}

	store := newMemStore()
	iu := newTestUsecase(minuteSource(), store, &mockRateLimiter{}, testConfig())

	first := iu.Run(ctx, []entity.AssetInfo{btc}, b)
	require.True(t, first.Success(), first.ErrorReport())
	assert.Equal(t, int64(10), first.Inserted)

	second := iu.Run(ctx, []entity.AssetInfo{btc}, b)
	require.True(t, second.Success(), second.ErrorReport())
	assert.Equal(t, int64(0), second.Inserted)
	assert.Len(t, store.timestamps("BTCUSD"), 10)
	assert.Equal(t, 1, store.CreateAssetCalls, "the asset must be created only once")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestIngestUsecase_Run_WindowFailure(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	secondWindow := start.Add(3 * time.Minute)

	tests := []struct {
		name          string
		abort         bool
		wantFetches   int
		wantStored    int
		wantLastStamp time.Time
	}{
		{
			name:          "success: later windows still run after a failure",
			abort:         false,
			wantFetches:   3,
			wantStored:    6,
			wantLastStamp: start.Add(8 * time.Minute),
		},
		{
			name:          "success: remaining windows are skipped when configured to abort",
			abort:         true,
			wantFetches:   2,
			wantStored:    3,
			wantLastStamp: start.Add(2 * time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			src := minuteSource()
			src.FetchFunc = func(ctx context.Context, symbol string, s, e time.Time, limit int) ([]entity.Observation, error) {
				if s.Equal(secondWindow) {
					return nil, ErrProvider
				}
				return minuteCandles(s, e, limit), nil
			}
			cfg := testConfig()
			cfg.AbortAssetOnWindowError = tt.abort
			store := newMemStore()
			iu := newTestUsecase(src, store, &mockRateLimiter{}, cfg)

			report := iu.Run(ctx, []entity.AssetInfo{btc}, Bounds{Start: ptr(start), End: ptr(start.Add(9 * time.Minute))})

			assert.False(t, report.Success())
			require.Len(t, report.Failures, 1)
			f := report.Failures[0]
			assert.Equal(t, "BTCUSD", f.Symbol)
			assert.Equal(t, 2, f.Index)
			require.NotNil(t, f.Window)
			assert.Equal(t, secondWindow, f.Window.Start)
			require.ErrorIs(t, f.Err, ErrProvider)
			var pe *domain.ProviderError
			require.ErrorAs(t, f.Err, &pe)
			assert.Equal(t, "BTCUSD", pe.Symbol)

			assert.Len(t, src.FetchCalls, tt.wantFetches)
			stored := store.timestamps("BTCUSD")
			require.Len(t, stored, tt.wantStored)
			assert.Equal(t, tt.wantLastStamp, stored[len(stored)-1])
			for _, ts := range stored {
				assert.False(t, (entity.TimeRange{Start: secondWindow, End: secondWindow.Add(3 * time.Minute)}).Contains(ts),
					"nothing from the failed window may be stored")
			}

			res := report.Result()
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, "BTCUSD window 2")
		})
	}
}

func TestIngestUsecase_Run_StoreFailureRollsBackOnlyThatWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store := newMemStore()
	calls := 0
	store.BulkInsertFunc = func(assetID uint, obs []entity.Observation) error {
		calls++
		if calls == 1 {
			return ErrDB
		}
		return nil
	}
	iu := newTestUsecase(minuteSource(), store, &mockRateLimiter{}, testConfig())

	report := iu.Run(ctx, []entity.AssetInfo{btc}, Bounds{Start: ptr(start), End: ptr(start.Add(6 * time.Minute))})

	require.Len(t, report.Failures, 1)
	var se *domain.StoreError
	require.ErrorAs(t, report.Failures[0].Err, &se)
	assert.Equal(t, "bulk insert", se.Op)
	assert.ErrorIs(t, se, ErrDB)
	assert.Equal(t, []time.Time{start.Add(3 * time.Minute), start.Add(4 * time.Minute), start.Add(5 * time.Minute)},
		store.timestamps("BTCUSD"))
	assert.Equal(t, int64(3), report.Inserted)
}

func TestIngestUsecase_Run_AssetLevelFailures(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setup     func(store *memStore)
		bounds    Bounds
		wantErrIs error
	}{
		{
			name: "error: asset lookup fails",
			setup: func(store *memStore) {
				store.FindAssetFunc = func(symbol string) error {
					if symbol == "BTCUSD" {
						return ErrDB
					}
					return nil
				}
			},
			bounds:    Bounds{Start: ptr(start), End: ptr(start.Add(3 * time.Minute))},
			wantErrIs: ErrDB,
		},
		{
			name: "error: existing timestamps cannot be loaded",
			setup: func(store *memStore) {
				store.ExistingTimestampsFunc = func(assetID uint) error {
					if assetID == 1 {
						return ErrDB
					}
					return nil
				}
			},
			bounds:    Bounds{Start: ptr(start), End: ptr(start.Add(3 * time.Minute))},
			wantErrIs: ErrDB,
		},
		{
			name: "error: latest observation is after the requested end",
			setup: func(store *memStore) {
				a, _ := store.CreateAsset(context.Background(), btc)
				_, _ = store.BulkInsert(context.Background(), a.ID, []entity.Observation{{Timestamp: start.Add(time.Hour)}})
			},
			bounds:    Bounds{End: ptr(start.Add(3 * time.Minute))},
			wantErrIs: domain.ErrInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			store := newMemStore()
			tt.setup(store)
			src := minuteSource()
			iu := newTestUsecase(src, store, &mockRateLimiter{}, DefaultConfig())

			report := iu.Run(ctx, []entity.AssetInfo{btc, eth}, tt.bounds)

			require.Len(t, report.Failures, 1)
			assert.Equal(t, "BTCUSD", report.Failures[0].Symbol)
			assert.Nil(t, report.Failures[0].Window)
			assert.ErrorIs(t, report.Failures[0].Err, tt.wantErrIs)
			assert.NotEmpty(t, store.timestamps("ETHUSD"), "the next asset must still be ingested")
		})
	}
}

func TestIngestUsecase_Run_UnknownSourceAbortsBeforeAnyAsset(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	cfg := DefaultConfig()
	cfg.DataSource = "nope"
	iu := newTestUsecase(minuteSource(), store, &mockRateLimiter{}, cfg)

	report := iu.Run(context.Background(), []entity.AssetInfo{btc}, Bounds{})

	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrConfiguration)
	assert.Equal(t, 0, store.TransactionCalls)
	assert.Equal(t, 0, store.ExistingLoadCalls)
}

// TestIngestUsecase_Run_RecurringResume は保存済みの最新時刻から現在時刻までを取り込むことを検証します。
func TestIngestUsecase_Run_RecurringResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	a, err := store.CreateAsset(ctx, btc)
	require.NoError(t, err)
	latest := testNow.Add(-4 * time.Minute)
	_, err = store.BulkInsert(ctx, a.ID, []entity.Observation{{Timestamp: latest}})
	require.NoError(t, err)

	src := minuteSource()
	limiter := &mockRateLimiter{}
	iu := newTestUsecase(src, store, limiter, testConfig())

	report := iu.Run(ctx, []entity.AssetInfo{btc}, Bounds{})

	require.True(t, report.Success(), report.ErrorReport())
	assert.Equal(t, int64(3), report.Inserted, "the stored candle is not inserted again")
	require.Len(t, src.FetchCalls, 2)
	assert.Equal(t, latest, src.FetchCalls[0].Start)
	assert.Equal(t, testNow, src.FetchCalls[1].End, "no window may extend past now")
	assert.Equal(t, 2, limiter.WaitIfNeededCalls, "the limiter is consulted before every provider call")
}

func TestIngestUsecase_Run_NoBoundsNoDataUsesLookback(t *testing.T) {
	t.Parallel()

	src := &mockDataSource{
		name: "bitfinex",
		FetchFunc: func(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error) {
			return nil, nil
		},
	}
	iu := newTestUsecase(src, newMemStore(), &mockRateLimiter{}, DefaultConfig())

	report := iu.Run(context.Background(), []entity.AssetInfo{btc}, Bounds{})

	require.True(t, report.Success(), report.ErrorReport())
	require.Len(t, src.FetchCalls, 1)
	assert.Equal(t, entity.TimeRange{Start: testNow.Add(-24 * time.Hour), End: testNow}, src.FetchCalls[0])
}

func TestIngestUsecase_Run_RateLimiterCanceled(t *testing.T) {
	t.Parallel()

	src := minuteSource()
	limiter := &mockRateLimiter{Err: context.Canceled}
	store := newMemStore()
	iu := newTestUsecase(src, store, limiter, testConfig())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	report := iu.Run(context.Background(), []entity.AssetInfo{btc}, Bounds{Start: ptr(start), End: ptr(start.Add(9 * time.Minute))})

	assert.Len(t, report.Failures, 3)
	for _, f := range report.Failures {
		assert.True(t, errors.Is(f.Err, context.Canceled))
	}
	assert.Empty(t, src.FetchCalls, "the provider must not be called when the wait fails")
	assert.Equal(t, 0, store.BulkInsertCalls)
}

func TestIngestUsecase_Run_ContextCanceledStopsRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemStore()
	iu := newTestUsecase(minuteSource(), store, &mockRateLimiter{}, testConfig())

	report := iu.Run(ctx, []entity.AssetInfo{btc, eth}, Bounds{})

	require.Len(t, report.Failures, 2)
	for _, f := range report.Failures {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}
	assert.Equal(t, 0, store.TransactionCalls)
}

// TestIngestUsecase_Run_ProviderCapLimitsWindows はプロバイダーの上限が MAX_ENTRIES_PER_CALL より小さい場合、
// ウィンドウと limit がその上限に収まることを検証します。
func TestIngestUsecase_Run_ProviderCapLimitsWindows(t *testing.T) {
	t.Parallel()

	src := &mockDataSource{
		name:     "bitfinex",
		maxLimit: 5000,
		FetchFunc: func(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error) {
			return nil, nil
		},
	}
	iu := newTestUsecase(src, newMemStore(), &mockRateLimiter{}, DefaultConfig())

	start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(12000 * time.Minute)
	report := iu.Run(context.Background(), []entity.AssetInfo{btc}, Bounds{Start: ptr(start), End: ptr(end)})

	require.True(t, report.Success(), report.ErrorReport())
	require.Len(t, src.FetchCalls, 3)
	for i, w := range src.FetchCalls {
		assert.LessOrEqual(t, w.End.Sub(w.Start), 5000*time.Minute, "window %d", i+1)
		assert.Equal(t, 5000, src.FetchLimits[i])
	}
	assert.Equal(t, end, src.FetchCalls[2].End)
}

func TestIngestUsecase_Run_CandleMismatchAbortsBeforeAnyAsset(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	src := minuteSource()
	src.candle = 5 * time.Minute
	iu := newTestUsecase(src, store, &mockRateLimiter{}, DefaultConfig())

	report := iu.Run(context.Background(), []entity.AssetInfo{btc}, Bounds{})

	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrConfiguration)
	assert.Empty(t, src.FetchCalls)
	assert.Equal(t, 0, store.TransactionCalls)
}

// TestIngestUsecase_Run_NowAlignedToCandle は終端未指定の実行が形成中の足を含まないことを検証します。
func TestIngestUsecase_Run_NowAlignedToCandle(t *testing.T) {
	t.Parallel()

	src := &mockDataSource{
		name: "bitfinex",
		FetchFunc: func(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Observation, error) {
			return nil, nil
		},
	}
	iu := newTestUsecase(src, newMemStore(), &mockRateLimiter{}, DefaultConfig())
	iu.now = fixedClock(testNow.Add(42 * time.Second))

	start := testNow.Add(-3 * time.Minute)
	report := iu.Run(context.Background(), []entity.AssetInfo{btc}, Bounds{Start: ptr(start)})

	require.True(t, report.Success(), report.ErrorReport())
	require.Len(t, src.FetchCalls, 1)
	assert.Equal(t, entity.TimeRange{Start: start, End: testNow}, src.FetchCalls[0])
}
