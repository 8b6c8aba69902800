package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/koopa0/system-design/14-monster-tcg/internal/config"
	"github.com/koopa0/system-design/14-monster-tcg/internal/events"
	"github.com/koopa0/system-design/14-monster-tcg/internal/game"
	"github.com/koopa0/system-design/14-monster-tcg/internal/handler"
	"github.com/koopa0/system-design/14-monster-tcg/internal/migrations"
	"github.com/koopa0/system-design/14-monster-tcg/internal/ratelimit"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
	"github.com/koopa0/system-design/14-monster-tcg/internal/server"
	"github.com/koopa0/system-design/14-monster-tcg/internal/session"
	"github.com/koopa0/system-design/14-monster-tcg/internal/storage/memory"
	"github.com/koopa0/system-design/14-monster-tcg/internal/storage/postgres"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/snowflake"
)

func main() {
	configPath := flag.String("config", "config.yaml", "設定檔路徑，空字串表示只使用預設值與環境變數")
	migrateCmd := flag.String("migrate", "", "執行遷移指令後結束：up | down | reset | version")
	flag.Parse()

	// 載入配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 設定日誌
	logCloser, err := logger.Init(logger.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    cfg.Log.Output,
		AddSource: cfg.Log.AddSource,
		TimeZone:  cfg.Log.TimeZone,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if *migrateCmd != "" {
		if err := migrate(cfg, *migrateCmd, slog.Default()); err != nil {
			slog.Error("migrate failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, slog.Default()); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// run 建立所有依賴並執行伺服器直到收到停止訊號
func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []handler.ReadinessCheck

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis：session 快取與分散式限流
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		checks = append(checks, handler.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	// NATS：領域事件
	var publisher game.Publisher = events.Noop{}
	if cfg.NATS.Enabled {
		js, err := events.Connect(events.Config{URL: cfg.NATS.URL, Stream: cfg.NATS.Stream})
		if err != nil {
			return err
		}
		defer func() {
			if err := js.Close(); err != nil {
				log.Warn("failed to drain nats connection", "error", err)
			}
		}()
		publisher = js
		checks = append(checks, handler.ReadinessCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if !js.Ready() {
					return errors.New("not connected")
				}
				return nil
			},
		})
		log.Info("nats connected", "url", cfg.NATS.URL, "stream", cfg.NATS.Stream)
	}

	ids, err := snowflake.New(cfg.Game.NodeID)
	if err != nil {
		return fmt.Errorf("create id generator: %w", err)
	}

	opts := []game.Option{game.WithPublisher(publisher), game.WithLogger(log)}
	switch {
	case redisClient != nil:
		opts = append(opts, game.WithSessionCache(session.NewRedisCache(redisClient)))
	case cfg.Auth.SessionCacheSize > 0:
		opts = append(opts, game.WithSessionCache(session.NewLRUCache(cfg.Auth.SessionCacheSize)))
	}
	svc := game.NewService(store, ids, rulesFrom(cfg), opts...)

	// 路由表在監聽前建好，之後唯讀
	table, err := buildRoutes(cfg, svc, redisClient, log, checks)
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, table, log)

	if err := srv.Listen(); err != nil {
		return err
	}
	log.Info("starting server", "addr", srv.Addr().String(), "storage", cfg.Storage.Driver)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve(ctx)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// 給予進行中的連線時間完成
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// migrate 只對 PostgreSQL 儲存層有意義
func migrate(cfg *config.Config, command string, log *slog.Logger) error {
	if cfg.Storage.Driver == config.StorageMemory {
		return errors.New("migrate requires storage.driver postgres")
	}
	return migrations.Command(cfg.MigrationURL(), command, log)
}

// openStore 依 storage.driver 建立儲存層，回傳的函式負責釋放資源
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (game.Store, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	// 執行資料庫遷移
	if err := migrations.Run(cfg.MigrationURL(), log); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	pgConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pgConfig.MaxConns = cfg.Postgres.MaxConns
	pgConfig.MinConns = cfg.Postgres.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("postgres connected", "host", cfg.Postgres.Host, "db", cfg.Postgres.DBName)
	return postgres.New(pool), pool.Close, nil
}

func rulesFrom(cfg *config.Config) game.Rules {
	return game.Rules{
		StartingCoins: cfg.Game.StartingCoins,
		StartingElo:   cfg.Game.StartingElo,
		PackagePrice:  cfg.Game.PackagePrice,
		PackageSize:   cfg.Game.PackageSize,
		DeckSize:      cfg.Game.DeckSize,
		AdminAccount:  cfg.Auth.AdminAccount,
		FakeTokens:    cfg.Auth.FakeTokens,
		SessionTTL:    cfg.Auth.SessionTTL,
		BcryptCost:    cfg.Auth.BcryptCost,
	}
}

// buildRoutes 註冊所有路由；登入路由套用限流
func buildRoutes(cfg *config.Config, svc *game.Service, redisClient *redis.Client, log *slog.Logger, checks []handler.ReadinessCheck) (*router.Table, error) {
	var login []router.Middleware
	if cfg.RateLimit.Enabled {
		var limiter ratelimit.Limiter = ratelimit.NewLocal(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
		if cfg.RateLimit.Distributed && redisClient != nil {
			limiter = ratelimit.NewDistributedTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
		}
		login = append(login, ratelimit.Middleware(ratelimit.Config{
			Limiter: limiter,
			KeyFunc: ratelimit.UsernameKey,
			Logger:  log,
		}))
	}

	b := router.NewBuilder().Use(router.Logger(log))
	handler.NewHandler(svc, log, checks...).Routes(b, login...)
	return b.Build()
}
