package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Jobs     JobsConfig
	Relay    RelayConfig
	Admin    AdminConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	Timeout   time.Duration
	UserAgent string
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JobsConfig struct {
	PollInterval time.Duration
	MinDelay     time.Duration
	MaxDelay     time.Duration
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// AdminConfig holds the bootstrap admin account. It is only used when
// the database has no admin yet.
type AdminConfig struct {
	Username string
	Password string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			Timeout: getDurationOrDefault("SCRAPER_TIMEOUT", 30*time.Second),
			UserAgent: getEnvOrDefault("SCRAPER_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
		},
		Database: DatabaseConfig{
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			Name:        getEnvOrDefault("DB_NAME", "pricewatch"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns:    int32(getIntOrDefault("DB_MIN_CONNS", 2)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdle: getDurationOrDefault("DB_MAX_CONN_IDLE", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Jobs: JobsConfig{
			PollInterval: getDurationOrDefault("JOBS_POLL_INTERVAL", 10*time.Second),
			MinDelay:     getDurationOrDefault("JOBS_MIN_DELAY", 2*time.Second),
			MaxDelay:     getDurationOrDefault("JOBS_MAX_DELAY", 5*time.Second),
		},
		Relay: RelayConfig{
			PollInterval: getDurationOrDefault("RELAY_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getIntOrDefault("RELAY_BATCH_SIZE", 100),
		},
		Admin: AdminConfig{
			Username: getEnvOrDefault("ADMIN_USERNAME", "admin"),
			Password: getEnvOrDefault("ADMIN_PASSWORD", "admin"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be a valid port number")
	}

	if c.Scraper.Timeout < time.Second {
		return fmt.Errorf("SCRAPER_TIMEOUT must be at least 1s")
	}

	if c.Jobs.MaxDelay < c.Jobs.MinDelay {
		return fmt.Errorf("JOBS_MAX_DELAY must not be less than JOBS_MIN_DELAY")
	}

	if c.Relay.BatchSize < 1 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be at least 1")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
