package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"stonk_db/internal/app/di"
	"stonk_db/internal/app/router"
	ingestionhandler "stonk_db/internal/feature/ingestion/transport/handler"
	infradb "stonk_db/internal/platform/db"
	jwtmw "stonk_db/internal/platform/jwt"
	"stonk_db/internal/platform/logging"
	infraredis "stonk_db/internal/platform/redis"
	"stonk_db/internal/platform/scheduler"
)

func main() {
	_ = godotenv.Load()
	logging.Setup("stonk-server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.OpenDB(infradb.LoadConfigFromEnv())
	if err != nil {
		log.Fatal(err)
	}

	// Redis（任意）
	var rdb *redisv9.Client
	if rcfg := infraredis.LoadConfig(); rcfg.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, rcfg); err != nil {
			slog.Warn("Redis unavailable. Running without cache.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
		}
	}

	ing, err := di.NewIngestion(db, rdb)
	if err != nil {
		log.Fatal(err)
	}

	// JWT_SECRETチェック（未設定だと取り込みAPIはすべて500になる）
	if os.Getenv(jwtmw.EnvKeyJWTSecret) == "" {
		slog.Warn("JWT_SECRET is not set. /backfill_data and /ingest will reject every request.")
	}

	r := router.NewRouter(ingestionhandler.NewIngestionHandler(ing.Jobs, ing.Assets), ing.Gate)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":5002"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if ing.Config.RecurringEnabled {
		g.Go(func() error {
			s := scheduler.NewAlignedScheduler(ing.Config.RecurringInterval, 0)
			s.RunImmediately = true
			s.Run(gctx, func(ctx context.Context) {
				// スキップ時は Jobs 側でログ済み
				_, _ = ing.Jobs.Recurring(ctx)
			})
			return nil
		})
	} else {
		slog.Info("recurring ingestion disabled")
	}

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	slog.Info("server stopped")
}
