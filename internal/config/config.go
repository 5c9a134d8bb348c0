package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 服务运行所需的全部配置，来源于环境变量（可选 .env 文件）
type Config struct {
	AppEnv      string
	Port        int
	DatabaseURL string
	JWTSecret   string
	LogMode     string

	// 用户总数缓存时长，参与率计算使用
	UserCountTTL time.Duration
	// 统计数据全量重算间隔，0 表示关闭
	StatsRefreshInterval time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	PageSize int
}

func Default() *Config {
	return &Config{
		AppEnv:               "development",
		Port:                 8080,
		LogMode:              "dev",
		UserCountTTL:         30 * time.Second,
		StatsRefreshInterval: 24 * time.Hour,
		RateLimitRPS:         5,
		RateLimitBurst:       10,
		PageSize:             30,
	}
}

// Load 读取 .env（不存在时忽略）后从环境变量覆盖默认值
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	var err error

	cfg.AppEnv = loadEnvString("APP_ENV", cfg.AppEnv)
	cfg.DatabaseURL = loadEnvString("DATABASE_URL", "")
	cfg.JWTSecret = loadEnvString("JWT_SECRET", "")
	cfg.LogMode = loadEnvString("LOG_MODE", cfg.LogMode)

	if cfg.Port, err = loadEnvInt("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.UserCountTTL, err = loadEnvDuration("USER_COUNT_TTL", cfg.UserCountTTL); err != nil {
		return nil, err
	}
	if cfg.StatsRefreshInterval, err = loadEnvDuration("STATS_REFRESH_INTERVAL", cfg.StatsRefreshInterval); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = loadEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = loadEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = loadEnvInt("PAGE_SIZE", cfg.PageSize); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.UserCountTTL < 0 {
		return fmt.Errorf("USER_COUNT_TTL must not be negative")
	}
	if c.StatsRefreshInterval < 0 {
		return fmt.Errorf("STATS_REFRESH_INTERVAL must not be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func loadEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func loadEnvInt(key string, def int) (int, error) {
	v := loadEnvString(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func loadEnvFloat(key string, def float64) (float64, error) {
	v := loadEnvString(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// loadEnvDuration 支持 "30s" 这类写法，纯数字按秒处理
func loadEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := loadEnvString(key, "")
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
