// Package testutils 提供整合測試用的容器環境
//
// 啟動 PostgreSQL 與 Redis 測試容器，執行嵌入的資料庫遷移，
// 並在測試結束時自動清理。
package testutils

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koopa0/system-design/14-monster-tcg/internal/migrations"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

// 遊戲資料表，TRUNCATE 時依此順序
var gameTables = []string{"trading_deals", "cards", "packages", "players"}

// TestEnvironment 封裝測試環境
type TestEnvironment struct {
	PostgresPool *pgxpool.Pool
	PostgresDSN  string
	RedisClient  *redis.Client
	RedisAddr    string
	Logger       *slog.Logger

	containers []tc.Container
}

// SetupPostgres 啟動 PostgreSQL 容器並執行遷移
//
//	func TestSomething(t *testing.T) {
//	    env := testutils.SetupPostgres(t)
//	    store := postgres.New(env.PostgresPool)
//	}
func SetupPostgres(t testing.TB) *TestEnvironment {
	t.Helper()
	env := newEnvironment(t)
	env.setupPostgres(t)
	return env
}

// SetupRedis 只啟動 Redis 容器
func SetupRedis(t testing.TB) *TestEnvironment {
	t.Helper()
	env := newEnvironment(t)
	env.setupRedis(t)
	return env
}

func newEnvironment(t testing.TB) *TestEnvironment {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	env := &TestEnvironment{Logger: logger.Discard()}
	t.Cleanup(env.Cleanup)
	return env
}

func (env *TestEnvironment) setupRedis(t testing.TB) {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	env.containers = append(env.containers, container)

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	env.RedisAddr = endpoint

	env.RedisClient = redis.NewClient(&redis.Options{
		Addr:         endpoint,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := env.RedisClient.Ping(pingCtx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
}

func (env *TestEnvironment) setupPostgres(t testing.TB) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mtcg"),
		tcpostgres.WithUsername("mtcg"),
		tcpostgres.WithPassword("mtcg"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	env.containers = append(env.containers, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	env.PostgresDSN = dsn

	if err := migrations.Run(dsn, env.Logger); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse postgres config: %v", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	env.PostgresPool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	if err := env.PostgresPool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
}

// Cleanup 關閉連線並終止容器
func (env *TestEnvironment) Cleanup() {
	ctx := context.Background()

	if env.RedisClient != nil {
		_ = env.RedisClient.Close()
	}
	if env.PostgresPool != nil {
		env.PostgresPool.Close()
	}
	for _, c := range env.containers {
		_ = c.Terminate(ctx)
	}
}

// FlushRedis 清空 Redis 資料
func (env *TestEnvironment) FlushRedis(t testing.TB) {
	t.Helper()
	if err := env.RedisClient.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

// TruncateTables 清空遊戲資料表（用於子測試之間）
func (env *TestEnvironment) TruncateTables(t testing.TB) {
	t.Helper()
	for _, table := range gameTables {
		query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := env.PostgresPool.Exec(context.Background(), query); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}
