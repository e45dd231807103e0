package db

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	ingestionadapters "stonk_db/internal/feature/ingestion/adapters"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultSQLitePath = "./db/assets.db"
)

// retryInterval は接続リトライの間隔です。
var retryInterval = 3 * time.Second

// Config はデータベース接続設定です。
type Config struct {
	Driver string // "sqlite"（デフォルト）または "postgres"

	// sqlite
	Path string

	// postgres
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	SSLMode  string

	RunMigrations  bool
	ConnectTimeout time.Duration
}

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	cfg := Config{
		Driver:         os.Getenv("DB_DRIVER"),
		Path:           os.Getenv("DB_PATH"),
		User:           os.Getenv("DB_USER"),
		Password:       os.Getenv("DB_PASSWORD"),
		Name:           os.Getenv("DB_NAME"),
		Host:           os.Getenv("DB_HOST"),
		Port:           os.Getenv("DB_PORT"),
		SSLMode:        os.Getenv("DB_SSLMODE"),
		RunMigrations:  true,
		ConnectTimeout: 60 * time.Second,
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Path == "" {
		cfg.Path = defaultSQLitePath
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if v := os.Getenv("RUN_MIGRATIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RunMigrations = b
		}
	}
	return cfg
}

// BuildDSN はドライバに応じた接続文字列を生成します。
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverPostgres {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     cfg.Host + ":" + cfg.Port,
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
		}
		return u.String()
	}
	return "file:" + cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"
}

// ConnectWithRetry は opener が成功するか timeout を過ぎるまで接続を試みます。
func ConnectWithRetry(dsn string, timeout time.Duration, opener func(string) (*gorm.DB, error)) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempt, err)
		}
		slog.Warn("db connect failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(min(retryInterval, remaining))
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
}

func openSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), gormConfig())
}

// openPostgres は pgx の stdlib ドライバで接続を作成し、gorm に渡します。
func openPostgres(dsn string) (*gorm.DB, error) {
	pcfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	sqlDB := stdlib.OpenDB(*pcfg)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB は設定に従ってデータベースに接続し、必要であればマイグレーションを実行します。
func OpenDB(cfg Config) (*gorm.DB, error) {
	var opener func(string) (*gorm.DB, error)
	switch cfg.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		opener = openSQLite
	case DriverPostgres:
		opener = openPostgres
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want %q or %q)", cfg.Driver, DriverSQLite, DriverPostgres)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	db, err := ConnectWithRetry(BuildDSN(cfg), timeout, opener)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// SQLite は書き込みを直列化するため1接続に制限する
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if cfg.RunMigrations {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	slog.Info("database ready", "driver", cfg.Driver, "migrated", cfg.RunMigrations)
	return db, nil
}

// Migrate は assets / asset_data テーブルを作成・更新します。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(ingestionadapters.Models()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
