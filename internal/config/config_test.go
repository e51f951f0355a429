package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Scraper.Timeout)
	assert.Contains(t, cfg.Scraper.UserAgent, "Mozilla/5.0")
	assert.Equal(t, "pricewatch", cfg.Database.Name)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 100, cfg.Relay.BatchSize)
	assert.Equal(t, "admin", cfg.Admin.Username)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCRAPER_TIMEOUT", "5s")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Scraper.Timeout)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "SERVER_PORT",
		},
		{
			name:    "scraper timeout too short",
			mutate:  func(c *Config) { c.Scraper.Timeout = 100 * time.Millisecond },
			wantErr: "SCRAPER_TIMEOUT",
		},
		{
			name:    "inverted job delays",
			mutate:  func(c *Config) { c.Jobs.MinDelay = 10 * time.Second; c.Jobs.MaxDelay = time.Second },
			wantErr: "JOBS_MAX_DELAY",
		},
		{
			name:    "relay batch size",
			mutate:  func(c *Config) { c.Relay.BatchSize = 0 },
			wantErr: "RELAY_BATCH_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
