// Package config provides configuration management for the price ETL service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sources  SourcesConfig
	Schedule ScheduleConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by golang-migrate
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// ClickHouseConfig holds ClickHouse configuration for the analytics mirror.
// The mirror is optional; an empty Host disables it.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// Enabled reports whether the analytics mirror is configured
func (c *ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// SourcesConfig holds the source registry configuration
type SourcesConfig struct {
	Enabled     []string
	CoinGecko   CoinGeckoConfig
	CoinPaprika CoinPaprikaConfig
	CSV         CSVConfig
}

// CoinGeckoConfig holds CoinGecko source configuration
type CoinGeckoConfig struct {
	BaseURL           string
	APIKey            string
	PageSize          int
	RequestsPerSecond float64
}

// CoinPaprikaConfig holds CoinPaprika source configuration
type CoinPaprikaConfig struct {
	BaseURL           string
	APIKey            string
	Limit             int
	RequestsPerSecond float64
}

// CSVConfig holds file source configuration
type CSVConfig struct {
	Path      string
	BatchSize int
}

// ScheduleConfig holds scheduler configuration
type ScheduleConfig struct {
	Interval time.Duration
	Enabled  bool
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "price_etl"),
				User:           getEnv("POSTGRES_USER", "etl"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "price_etl"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Sources: SourcesConfig{
			Enabled: splitList(getEnv("ENABLED_SOURCES", "coingecko,coinpaprika,csv")),
			CoinGecko: CoinGeckoConfig{
				BaseURL:           getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
				APIKey:            getEnv("COINGECKO_API_KEY", ""),
				PageSize:          getEnvAsInt("COINGECKO_PAGE_SIZE", 100),
				RequestsPerSecond: getEnvAsFloat("COINGECKO_RPS", 0.5),
			},
			CoinPaprika: CoinPaprikaConfig{
				BaseURL:           getEnv("COINPAPRIKA_BASE_URL", "https://api.coinpaprika.com/v1"),
				APIKey:            getEnv("COINPAPRIKA_API_KEY", ""),
				Limit:             getEnvAsInt("COINPAPRIKA_LIMIT", 100),
				RequestsPerSecond: getEnvAsFloat("COINPAPRIKA_RPS", 0.5),
			},
			CSV: CSVConfig{
				Path:      getEnv("CSV_PATH", "data/crypto_prices.csv"),
				BatchSize: getEnvAsInt("CSV_BATCH_SIZE", 500),
			},
		},
		Schedule: ScheduleConfig{
			Interval: getEnvAsDuration("SCHEDULE_INTERVAL", time.Hour),
			Enabled:  getEnvAsBool("SCHEDULE_ENABLED", true),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 20*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// splitList splits a comma-separated env value into trimmed entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
