// Command ingest は稼働中のサーバーに取り込みを 1 回依頼して終了します。
//
//	go run ./cmd/ingest                                    # POST /ingest
//	go run ./cmd/ingest -start 2024-01-01 -end 2024-01-02 -symbols BTCUSD,ETHUSD  # POST /backfill_data
//
// 取り込みは必ずサーバー側で実行されるため、定期取り込みとのゲートとプロバイダーのレート制限を共有します。
// このコマンドが DB やプロバイダーに直接アクセスすることはありません。
// 期間を省略すると定期取り込みと同じく前回の続きから現在までを取り込み、
// 定期取り込みやバックフィルの実行中はサーバーが 409 を返して失敗します。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stonk_db/internal/feature/ingestion/transport/client"
	"stonk_db/internal/feature/ingestion/transport/http/dto"
	infrahttp "stonk_db/internal/platform/http"
	jwtmw "stonk_db/internal/platform/jwt"
	"stonk_db/internal/platform/logging"
)

var errSymbolsWithoutStart = errors.New("-symbols and -end require -start (POST /ingest always covers every asset)")

type runner interface {
	Ingest(ctx context.Context) (dto.RunResponse, error)
	Backfill(ctx context.Context, req dto.BackfillRequest) (dto.RunResponse, error)
}

func main() {
	symbols := flag.String("symbols", "", "comma separated symbols (requires -start; default: every asset in the catalog)")
	start := flag.String("start", "", "ISO 8601 start (inclusive)")
	end := flag.String("end", "", "ISO 8601 end (exclusive)")
	timeout := flag.Duration("timeout", 30*time.Minute, "how long to wait for the run to finish")
	flag.Parse()

	_ = godotenv.Load()
	logging.Setup("stonk-ingest")

	token, err := jwtmw.NewGenerator(os.Getenv(jwtmw.EnvKeyJWTSecret), *timeout+time.Minute).GenerateToken("ingest-cli")
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(client.BaseURLFromEnv(), token, infrahttp.NewHTTPClient(*timeout))
	res, err := run(ctx, c, splitSymbols(*symbols), *start, *end)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Message)
	if !res.Success {
		os.Exit(1)
	}
}

// run は期間の指定がなければ /ingest、あれば /backfill_data を呼び出します。
func run(ctx context.Context, c runner, symbols []string, start, end string) (dto.RunResponse, error) {
	if start == "" {
		if len(symbols) > 0 || end != "" {
			return dto.RunResponse{}, errSymbolsWithoutStart
		}
		return c.Ingest(ctx)
	}
	return c.Backfill(ctx, dto.BackfillRequest{StartDate: start, EndDate: end, Symbols: symbols})
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
