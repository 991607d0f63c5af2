// Package testutil は統合テスト用の PostgreSQL / Redis を用意する
//
// TEST_DATABASE_URL / TEST_REDIS_ADDR が設定されていればそれを使い、
// なければ testcontainers でコンテナを起動する。どちらも使えない場合はテストをスキップする。
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/config"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/postgres"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error

	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// PostgresDSN はマイグレーション済みの DB の接続文字列を返す
func PostgresDSN(t testing.TB) string {
	t.Helper()
	pgOnce.Do(func() {
		pgDSN, pgErr = startPostgres()
		if pgErr == nil {
			pgErr = migrate(pgDSN)
		}
	})
	if pgErr != nil {
		t.Skipf("PostgreSQL が利用できません: %v", pgErr)
	}
	return pgDSN
}

// Postgres はテスト用の DB 接続を返す。テスト終了時にテーブルを空にして閉じる
func Postgres(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := PostgresDSN(t)

	db, err := postgres.NewConnection(context.Background(), &config.DatabaseConfig{URL: dsn})
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}
	Truncate(t, db)
	t.Cleanup(func() {
		Truncate(t, db)
		db.Close()
	})
	return db
}

// Truncate は全テーブルを空にする
func Truncate(t testing.TB, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE ledger_entries, holds, promo_codes, ticket_categories, events CASCADE`)
	if err != nil {
		t.Fatalf("テーブルの初期化に失敗: %v", err)
	}
}

// Redis はテスト用の Redis クライアントを返す。DB はテストごとに FLUSHDB される
func Redis(t testing.TB) *redis.Client {
	t.Helper()
	redisOnce.Do(func() {
		redisAddr, redisErr = startRedis()
	})
	if redisErr != nil {
		t.Skipf("Redis が利用できません: %v", redisErr)
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis接続エラー: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func startPostgres() (dsn string, err error) {
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url, nil
	}
	// Docker が無い環境では testcontainers が panic することがある
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("コンテナ起動中に panic: %v", r)
		}
	}()

	ctx := context.Background()
	c, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		tcpostgres.WithDatabase("holds"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return "", err
	}
	return c.ConnectionString(ctx, "sslmode=disable", "application_name=test")
}

func startRedis() (addr string, err error) {
	if a := os.Getenv("TEST_REDIS_ADDR"); a != "" {
		return a, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("コンテナ起動中に panic: %v", r)
		}
	}()

	ctx := context.Background()
	c, err := tcredis.RunContainer(ctx, testcontainers.WithImage("docker.io/redis:7"))
	if err != nil {
		return "", err
	}
	uri, err := c.ConnectionString(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(uri, "redis://"), nil
}

func migrate(dsn string) error {
	db, err := postgres.NewConnection(context.Background(), &config.DatabaseConfig{URL: dsn})
	if err != nil {
		return err
	}
	defer db.Close()
	return postgres.RunMigrations(db.DB)
}
