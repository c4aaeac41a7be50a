package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	envKeys := []string{
		"RESTOREASSIST_APP_NAME",
		"RESTOREASSIST_APP_ENV",
		"RESTOREASSIST_APP_PORT",
		"RESTOREASSIST_DATABASE_HOST",
		"RESTOREASSIST_DATABASE_PORT",
		"RESTOREASSIST_DATABASE_USER",
		"RESTOREASSIST_DATABASE_PASSWORD",
		"RESTOREASSIST_DATABASE_DBNAME",
		"RESTOREASSIST_DATABASE_SSLMODE",
		"RESTOREASSIST_DATABASE_MAX_OPEN_CONNS",
		"RESTOREASSIST_DATABASE_MAX_IDLE_CONNS",
		"RESTOREASSIST_SYNC_WORKERS",
		"RESTOREASSIST_SYNC_MAX_RETRIES",
		"RESTOREASSIST_BREAKER_FAILURE_THRESHOLD",
		"RESTOREASSIST_BREAKER_COOLDOWN",
		"RESTOREASSIST_BREAKER_MAX_COOLDOWN",
		"RESTOREASSIST_RATELIMIT_XERO_CAPACITY",
	}
	originalEnv := make(map[string]string, len(envKeys))
	for _, k := range envKeys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "restoreassist-accounting", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "restoreassist", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)

		// Resilience defaults
		assert.Equal(t, 4, cfg.Sync.Workers)
		assert.Equal(t, 5, cfg.Sync.MaxRetries)
		assert.Equal(t, 2*time.Second, cfg.Sync.BackoffBase)
		assert.Equal(t, 5*time.Minute, cfg.Sync.BackoffMax)
		assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
		assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
		assert.Equal(t, 10*time.Minute, cfg.Breaker.MaxCooldown)
		assert.Equal(t, 60, cfg.RateLimit.DefaultCapacity)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 2, cfg.Webhook.Consumers)
		assert.Equal(t, 72*time.Hour, cfg.Webhook.IdempotencyTTL)
	})

	t.Run("loads values from environment variables with RESTOREASSIST prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("RESTOREASSIST_APP_NAME", "test-app")
		os.Setenv("RESTOREASSIST_APP_ENV", "testing")
		os.Setenv("RESTOREASSIST_APP_PORT", "9000")
		os.Setenv("RESTOREASSIST_DATABASE_HOST", "testdb.local")
		os.Setenv("RESTOREASSIST_DATABASE_PORT", "5433")
		os.Setenv("RESTOREASSIST_DATABASE_USER", "testuser")
		os.Setenv("RESTOREASSIST_DATABASE_PASSWORD", "testpass")
		os.Setenv("RESTOREASSIST_SYNC_WORKERS", "8")
		os.Setenv("RESTOREASSIST_SYNC_MAX_RETRIES", "3")
		os.Setenv("RESTOREASSIST_BREAKER_COOLDOWN", "45s")
		os.Setenv("RESTOREASSIST_BREAKER_MAX_COOLDOWN", "20m")
		os.Setenv("RESTOREASSIST_RATELIMIT_XERO_CAPACITY", "30")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 8, cfg.Sync.Workers)
		assert.Equal(t, 3, cfg.Sync.MaxRetries)
		assert.Equal(t, 45*time.Second, cfg.Breaker.Cooldown)
		assert.Equal(t, 20*time.Minute, cfg.Breaker.MaxCooldown)
		assert.Equal(t, 30, cfg.RateLimit.XeroCapacity)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("RESTOREASSIST_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("RESTOREASSIST_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("RESTOREASSIST_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxCooldown cannot be below Cooldown", func(t *testing.T) {
		clearEnv()
		os.Setenv("RESTOREASSIST_BREAKER_COOLDOWN", "15m")
		os.Setenv("RESTOREASSIST_BREAKER_MAX_COOLDOWN", "1m")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_cooldown")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	envKeys := []string{
		"RESTOREASSIST_APP_ENV",
		"RESTOREASSIST_DATABASE_PASSWORD",
		"RESTOREASSIST_DATABASE_SSLMODE",
		"RESTOREASSIST_PROVIDERS_XERO_ENABLED",
		"RESTOREASSIST_PROVIDERS_XERO_WEBHOOK_SECRET",
	}
	originalEnv := make(map[string]string, len(envKeys))
	for _, k := range envKeys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	setValidProductionBase := func() {
		os.Setenv("RESTOREASSIST_APP_ENV", "production")
		os.Setenv("RESTOREASSIST_DATABASE_PASSWORD", "secure-password")
		os.Setenv("RESTOREASSIST_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("RESTOREASSIST_APP_ENV", "production")
		os.Setenv("RESTOREASSIST_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("RESTOREASSIST_APP_ENV", "production")
		os.Setenv("RESTOREASSIST_DATABASE_PASSWORD", "secure-password")
		os.Setenv("RESTOREASSIST_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires webhook secret for enabled providers in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("RESTOREASSIST_PROVIDERS_XERO_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "providers.xero.webhook_secret is required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("RESTOREASSIST_PROVIDERS_XERO_ENABLED", "true")
		os.Setenv("RESTOREASSIST_PROVIDERS_XERO_WEBHOOK_SECRET", "whsec-a-long-random-secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		assert.True(t, cfg.Providers.Xero.Enabled)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
