// Command backfill は稼働中のサーバーにバックフィルを依頼します。
//
//	go run ./cmd/backfill -start 2024-01-01 [-end 2024-02-01] [-symbol BTCUSD]
//
// JWT_SECRET からトークンを発行して POST /backfill_data を呼び出し、完了まで待ちます。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stonk_db/internal/feature/ingestion/transport/client"
	"stonk_db/internal/feature/ingestion/transport/http/dto"
	infrahttp "stonk_db/internal/platform/http"
	jwtmw "stonk_db/internal/platform/jwt"
	"stonk_db/internal/platform/logging"
)

func main() {
	start := flag.String("start", "", "ISO 8601 start date (required)")
	end := flag.String("end", "", "ISO 8601 end date (default: now)")
	symbol := flag.String("symbol", "", "single symbol (default: all assets)")
	timeout := flag.Duration("timeout", 30*time.Minute, "how long to wait for the backfill to finish")
	flag.Parse()

	_ = godotenv.Load()
	logging.Setup("stonk-backfill")

	if *start == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := jwtmw.NewGenerator(os.Getenv(jwtmw.EnvKeyJWTSecret), *timeout+time.Minute).GenerateToken("backfill-cli")
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(client.BaseURLFromEnv(), token, infrahttp.NewHTTPClient(*timeout))
	res, err := c.Backfill(ctx, dto.BackfillRequest{StartDate: *start, EndDate: *end, Symbol: *symbol})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Message)
	if !res.Success {
		os.Exit(1)
	}
}
