package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// SQLite archive
	SQLitePath string

	// Engine configuration
	RequestTimeout time.Duration
	RequestRetries int
	RetryDelay     time.Duration
	BlockTime      time.Duration
	WorkerCount    int

	// Crawl loop configuration
	CrawlInterval time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "mariaquiteria"),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 5000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		SQLitePath:           getEnv("SQLITE_PATH", "mariaquiteria.db"),
		RequestTimeout:       getEnvSeconds("REQUEST_TIMEOUT_SECONDS", 30),
		RequestRetries:       getEnvInt("REQUEST_RETRIES", 3),
		RetryDelay:           getEnvSeconds("RETRY_DELAY_SECONDS", 5),
		BlockTime:            getEnvSeconds("BLOCK_TIME_SECONDS", 300),
		WorkerCount:          getEnvInt("WORKER_COUNT", 4),
		CrawlInterval:        getEnvSeconds("CRAWL_INTERVAL_SECONDS", 86400),
		Environment:          getEnv("MQ_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the services cannot run with.
func (c Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.RequestRetries < 0 {
		return fmt.Errorf("request retries must not be negative, got %d", c.RequestRetries)
	}
	if c.RedisStreamMaxLength < 1 {
		return fmt.Errorf("redis stream max length must be positive, got %d", c.RedisStreamMaxLength)
	}
	if c.CrawlInterval <= 0 {
		return fmt.Errorf("crawl interval must be positive, got %s", c.CrawlInterval)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvSeconds retrieves a duration expressed in whole seconds
func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}
