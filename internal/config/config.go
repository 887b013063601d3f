// Package config loads the server configuration from an optional .env file and the environment.
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

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	PriceFeed  PriceFeedConfig
	Balance    BalanceConfig
	Registry   RegistryConfig
	Allocation AllocationConfig
	Logging    LoggingConfig
}

// ServerConfig holds the gRPC and metrics listeners
type ServerConfig struct {
	GRPCPort    string
	MetricsPort string
	APIToken    string
}

// DatabaseConfig holds Postgres configuration; drafts live in memory when disabled
type DatabaseConfig struct {
	Enabled  bool
	ConnStr  string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// ConnString returns DB_CONN_STR when set, otherwise builds one from the individual fields
func (c DatabaseConfig) ConnString() string {
	if c.ConnStr != "" {
		return c.ConnStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// RedisConfig holds the price cache connection; prices are not cached when disabled
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// PriceFeedConfig holds the live price client settings
type PriceFeedConfig struct {
	URL               string
	RequestsPerSecond int
	CacheTTL          time.Duration
}

// BalanceConfig holds the wallet balance client settings
type BalanceConfig struct {
	URL string
}

// RegistryConfig holds the asset refresh loop settings
type RegistryConfig struct {
	RefreshInterval time.Duration
	HTTPTimeout     time.Duration
}

// AllocationConfig holds engine policies
type AllocationConfig struct {
	OverAllocationPolicy string // reject or clamp
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			GRPCPort:    getEnv("GRPC_PORT", "8080"),
			MetricsPort: getEnv("METRICS_PORT", "9090"),
			APIToken:    getEnv("API_TOKEN", "dev-token"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			ConnStr:  getEnv("DB_CONN_STR", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "zlegacy"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		PriceFeed: PriceFeedConfig{
			URL:               getEnv("PRICE_FEED_URL", "https://api.coingecko.com/api/v3"),
			RequestsPerSecond: getEnvAsInt("PRICE_FEED_RPS", 5),
			CacheTTL:          getEnvAsDuration("PRICE_CACHE_TTL", 10*time.Minute),
		},
		Balance: BalanceConfig{
			URL: getEnv("BALANCE_API_URL", "http://localhost:3030"),
		},
		Registry: RegistryConfig{
			RefreshInterval: getEnvAsDuration("ASSET_REFRESH_INTERVAL", 60*time.Second),
			HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		},
		Allocation: AllocationConfig{
			OverAllocationPolicy: strings.ToLower(getEnv("OVERALLOCATION_POLICY", "reject")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch c.Allocation.OverAllocationPolicy {
	case "reject", "clamp":
	default:
		return fmt.Errorf("OVERALLOCATION_POLICY must be reject or clamp, got %q", c.Allocation.OverAllocationPolicy)
	}
	if c.Registry.RefreshInterval <= 0 {
		return errors.New("ASSET_REFRESH_INTERVAL must be positive")
	}
	if c.Registry.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.PriceFeed.RequestsPerSecond <= 0 {
		return errors.New("PRICE_FEED_RPS must be positive")
	}
	if c.Server.APIToken == "" {
		return errors.New("API_TOKEN cannot be empty")
	}
	return nil
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

// getEnvAsBool gets an environment variable as a boolean with a default value
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
