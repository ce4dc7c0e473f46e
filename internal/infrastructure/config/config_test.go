package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"TOOLFORGE_APP_NAME":                os.Getenv("TOOLFORGE_APP_NAME"),
		"TOOLFORGE_APP_ENV":                 os.Getenv("TOOLFORGE_APP_ENV"),
		"TOOLFORGE_APP_PORT":                os.Getenv("TOOLFORGE_APP_PORT"),
		"TOOLFORGE_DATABASE_HOST":           os.Getenv("TOOLFORGE_DATABASE_HOST"),
		"TOOLFORGE_DATABASE_PORT":           os.Getenv("TOOLFORGE_DATABASE_PORT"),
		"TOOLFORGE_DATABASE_USER":           os.Getenv("TOOLFORGE_DATABASE_USER"),
		"TOOLFORGE_DATABASE_PASSWORD":       os.Getenv("TOOLFORGE_DATABASE_PASSWORD"),
		"TOOLFORGE_DATABASE_DBNAME":         os.Getenv("TOOLFORGE_DATABASE_DBNAME"),
		"TOOLFORGE_DATABASE_SSLMODE":        os.Getenv("TOOLFORGE_DATABASE_SSLMODE"),
		"TOOLFORGE_DATABASE_MAX_OPEN_CONNS": os.Getenv("TOOLFORGE_DATABASE_MAX_OPEN_CONNS"),
		"TOOLFORGE_DATABASE_MAX_IDLE_CONNS": os.Getenv("TOOLFORGE_DATABASE_MAX_IDLE_CONNS"),
		"TOOLFORGE_JWT_SECRET":              os.Getenv("TOOLFORGE_JWT_SECRET"),
		"TOOLFORGE_QUOTA_ANONYMOUS_LIMIT":   os.Getenv("TOOLFORGE_QUOTA_ANONYMOUS_LIMIT"),
		"TOOLFORGE_QUOTA_FREE_LIMIT":        os.Getenv("TOOLFORGE_QUOTA_FREE_LIMIT"),
		"TOOLFORGE_HTTP_TRUSTED_PROXIES":    os.Getenv("TOOLFORGE_HTTP_TRUSTED_PROXIES"),
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

		assert.Equal(t, "toolforge-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "", cfg.Database.Password)
		assert.Equal(t, "toolforge", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 10, cfg.Quota.AnonymousLimit)
		assert.Equal(t, 50, cfg.Quota.FreeLimit)
	})

	t.Run("loads values from environment variables with TOOLFORGE prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("TOOLFORGE_APP_NAME", "test-app")
		os.Setenv("TOOLFORGE_APP_ENV", "testing")
		os.Setenv("TOOLFORGE_APP_PORT", "9000")
		os.Setenv("TOOLFORGE_DATABASE_HOST", "testdb.local")
		os.Setenv("TOOLFORGE_DATABASE_PORT", "5433")
		os.Setenv("TOOLFORGE_DATABASE_USER", "testuser")
		os.Setenv("TOOLFORGE_DATABASE_PASSWORD", "testpass")
		os.Setenv("TOOLFORGE_DATABASE_DBNAME", "testdb")
		os.Setenv("TOOLFORGE_DATABASE_SSLMODE", "require")
		os.Setenv("TOOLFORGE_QUOTA_ANONYMOUS_LIMIT", "5")
		os.Setenv("TOOLFORGE_QUOTA_FREE_LIMIT", "100")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 5, cfg.Quota.AnonymousLimit)
		assert.Equal(t, 100, cfg.Quota.FreeLimit)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("TOOLFORGE_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("TOOLFORGE_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("TOOLFORGE_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("rejects negative quota limits", func(t *testing.T) {
		clearEnv()
		os.Setenv("TOOLFORGE_QUOTA_ANONYMOUS_LIMIT", "-3")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota.anonymous_limit must be positive")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"TOOLFORGE_APP_ENV":              os.Getenv("TOOLFORGE_APP_ENV"),
		"TOOLFORGE_JWT_SECRET":           os.Getenv("TOOLFORGE_JWT_SECRET"),
		"TOOLFORGE_DATABASE_PASSWORD":    os.Getenv("TOOLFORGE_DATABASE_PASSWORD"),
		"TOOLFORGE_DATABASE_SSLMODE":     os.Getenv("TOOLFORGE_DATABASE_SSLMODE"),
		"TOOLFORGE_HTTP_TRUSTED_PROXIES": os.Getenv("TOOLFORGE_HTTP_TRUSTED_PROXIES"),
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
		os.Setenv("TOOLFORGE_APP_ENV", "production")
		os.Setenv("TOOLFORGE_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		os.Setenv("TOOLFORGE_DATABASE_PASSWORD", "secure-password")
		os.Setenv("TOOLFORGE_DATABASE_SSLMODE", "require")
		os.Setenv("TOOLFORGE_HTTP_TRUSTED_PROXIES", "10.0.0.1")
	}

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("TOOLFORGE_JWT_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("TOOLFORGE_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be at least 32 characters")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("TOOLFORGE_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("TOOLFORGE_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires trusted proxies in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("TOOLFORGE_HTTP_TRUSTED_PROXIES")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http.trusted_proxies is required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
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
