package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port          string `toml:"port"`
	SessionSecret string `toml:"session_secret"`
	Debug         bool   `toml:"debug"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // postgres | sqlite
	URL    string `toml:"url"`
}

type CacheConfig struct {
	RedisURL   string `toml:"redis_url"` // 为空时使用进程内 LRU
	Size       int    `toml:"size"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type ListingConfig struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Cache    CacheConfig    `toml:"cache"`
	Listing  ListingConfig  `toml:"listing"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			SessionSecret: "secret_key_change_me",
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			URL:    "host=localhost user=postgres password=postgres dbname=zhutan port=5432 sslmode=disable TimeZone=Asia/Shanghai",
		},
		Cache: CacheConfig{
			Size:       500,
			TTLSeconds: 300,
		},
		Listing: ListingConfig{
			DefaultPageSize: 30,
			MaxPageSize:     100,
		},
	}
}

// Load 依次叠加：默认值 -> TOML 配置文件（可选）-> .env -> 环境变量
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// .env 不存在时直接使用系统环境变量
	_ = godotenv.Load()

	applyEnv(cfg)

	if cfg.Listing.DefaultPageSize <= 0 {
		cfg.Listing.DefaultPageSize = 30
	}
	if cfg.Listing.MaxPageSize < cfg.Listing.DefaultPageSize {
		cfg.Listing.MaxPageSize = cfg.Listing.DefaultPageSize
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getenv("PORT", cfg.Server.Port)
	cfg.Server.SessionSecret = getenv("SESSION_SECRET", cfg.Server.SessionSecret)
	if v := os.Getenv("DEBUG"); v != "" {
		cfg.Server.Debug = v == "true"
	}
	cfg.Database.Driver = getenv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = getenv("DATABASE_URL", cfg.Database.URL)
	cfg.Cache.RedisURL = getenv("REDIS_URL", cfg.Cache.RedisURL)
	cfg.Cache.Size = getenvInt("CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.TTLSeconds = getenvInt("CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds)
	cfg.Listing.DefaultPageSize = getenvInt("DEFAULT_PAGE_SIZE", cfg.Listing.DefaultPageSize)
	cfg.Listing.MaxPageSize = getenvInt("MAX_PAGE_SIZE", cfg.Listing.MaxPageSize)
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
