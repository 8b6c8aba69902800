// Package config 載入遊戲伺服器設定
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// 儲存後端
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`  // 0 表示不設逾時
		WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 表示不設逾時
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | postgres
	} `yaml:"storage"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"postgres"`

	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"redis"`

	NATS struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Stream  string `yaml:"stream"`
	} `yaml:"nats"`

	Auth struct {
		// FakeTokens 發放 "Bearer <帳號>-mtcgToken" 形式的固定 token，供整合測試腳本使用
		FakeTokens   bool          `yaml:"fake_tokens"`
		AdminAccount string        `yaml:"admin_account"`
		SessionTTL   time.Duration `yaml:"session_ttl"`
		BcryptCost   int           `yaml:"bcrypt_cost"`
		// SessionCacheSize 未啟用 Redis 時單機 token 快取的容量，0 表示不快取
		SessionCacheSize int `yaml:"session_cache_size"`
	} `yaml:"auth"`

	RateLimit struct {
		Enabled     bool    `yaml:"enabled"`
		Capacity    int64   `yaml:"capacity"`
		RefillRate  float64 `yaml:"refill_rate"` // 每秒補充的 token 數
		Distributed bool    `yaml:"distributed"` // 使用 Redis 共享計數
	} `yaml:"rate_limit"`

	Game struct {
		StartingCoins int   `yaml:"starting_coins"`
		StartingElo   int   `yaml:"starting_elo"`
		PackagePrice  int   `yaml:"package_price"`
		PackageSize   int   `yaml:"package_size"`
		DeckSize      int   `yaml:"deck_size"`
		NodeID        int64 `yaml:"node_id"`
	} `yaml:"game"`

	Log struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		AddSource bool   `yaml:"add_source"`
		TimeZone  string `yaml:"time_zone"`
	} `yaml:"log"`
}

// Default 回傳預設設定
func Default() *Config {
	c := &Config{}

	c.Server.Port = 10001
	c.Server.ShutdownTimeout = 30 * time.Second

	c.Storage.Driver = StorageMemory

	c.Postgres.Host = "localhost"
	c.Postgres.Port = 5432
	c.Postgres.User = "postgres"
	c.Postgres.Password = "postgres"
	c.Postgres.DBName = "mtcg"
	c.Postgres.MaxConns = 10
	c.Postgres.MinConns = 2

	c.Redis.Addr = "localhost:6379"
	c.Redis.PoolSize = 10
	c.Redis.MinIdleConns = 2
	c.Redis.ReadTimeout = 3 * time.Second
	c.Redis.WriteTimeout = 3 * time.Second

	c.NATS.URL = "nats://localhost:4222"
	c.NATS.Stream = "MTCG"

	c.Auth.FakeTokens = true
	c.Auth.AdminAccount = "admin"
	c.Auth.SessionTTL = 24 * time.Hour
	c.Auth.BcryptCost = 10
	c.Auth.SessionCacheSize = 1024

	c.RateLimit.Enabled = true
	c.RateLimit.Capacity = 10
	c.RateLimit.RefillRate = 1

	c.Game.StartingCoins = 20
	c.Game.StartingElo = 1000
	c.Game.PackagePrice = 5
	c.Game.PackageSize = 5
	c.Game.DeckSize = 4

	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Log.Output = "stdout"

	return c
}

// Load 讀取 YAML 設定檔並覆蓋預設值，path 為空時只套用預設值與環境變數
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - 路徑來自命令列參數
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 套用環境變數覆蓋（部署時常用）
func (c *Config) applyEnv() error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
	return nil
}

// Validate 檢查設定值
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Game.PackageSize <= 0 {
		errs = append(errs, errors.New("game.package_size must be positive"))
	}
	if c.Game.DeckSize <= 0 {
		errs = append(errs, errors.New("game.deck_size must be positive"))
	}
	if c.Game.PackagePrice < 0 {
		errs = append(errs, errors.New("game.package_price must not be negative"))
	}
	if c.Auth.AdminAccount == "" {
		errs = append(errs, errors.New("auth.admin_account is required"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity <= 0 || c.RateLimit.RefillRate <= 0) {
		errs = append(errs, errors.New("rate_limit.capacity and rate_limit.refill_rate must be positive"))
	}
	if c.RateLimit.Distributed && !c.Redis.Enabled {
		errs = append(errs, errors.New("rate_limit.distributed requires redis.enabled"))
	}

	return errors.Join(errs...)
}

// PostgresDSN 生成 PostgreSQL 連線字串
func (c *Config) PostgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.DBName,
	)
}

// MigrationURL 回傳 golang-migrate 使用的 URL 形式連線字串
func (c *Config) MigrationURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
	)
}
