package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=pos port=5432 sslmode=disable"

type Config struct {
	AppEnv      string
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	LogLevel    string
	SeedData    bool
	TimeZone    string // IANA name; business days and the database session use it

	Redis   RedisConfig
	Kafka   KafkaConfig
	Reports ReportsConfig
	Jobs    JobsConfig
}

type RedisConfig struct {
	Addr     string // empty disables Redis and keeps the report cache in memory
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string // empty disables the change-feed relay
	Topic   string
}

type ReportsConfig struct {
	CacheTTL          time.Duration
	LowStockThreshold int
}

type JobsConfig struct {
	LowStockSpec     string
	DailySummarySpec string
}

// Load reads the environment, after merging an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "production"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SeedData:    getEnvBool("SEED_DATA", true),
		TimeZone:    getEnv("TIMEZONE", "UTC"),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "pos.changes"),
		},
		Reports: ReportsConfig{
			CacheTTL:          getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
			LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 20),
		},
		Jobs: JobsConfig{
			LowStockSpec:     getEnv("LOW_STOCK_CRON", "0 * * * *"),
			DailySummarySpec: getEnv("DAILY_SUMMARY_CRON", "55 23 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) UsingDefaultDSN() bool {
	return c.DatabaseDSN == defaultDSN
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if !c.IsDevelopment() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if c.Reports.LowStockThreshold < 0 {
		return errors.New("LOW_STOCK_THRESHOLD must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
