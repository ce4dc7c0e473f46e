package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Quota    QuotaConfig
}

// AppConfig holds application identity and environment
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection and pool settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds settings for validating identity-provider tokens
type JWTConfig struct {
	Secret string
	Issuer string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server and edge settings
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// QuotaConfig holds the daily call limits. These are deploy-time settings;
// there is no per-request override path.
type QuotaConfig struct {
	AnonymousLimit int
	FreeLimit      int
}

// Load reads configuration in priority order: TOOLFORGE_-prefixed
// environment variables, then config.toml, then built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("TOOLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: loadDatabase(v),
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: loadHTTP(v),
		Quota: QuotaConfig{
			AnonymousLimit: v.GetInt("quota.anonymous_limit"),
			FreeLimit:      v.GetInt("quota.free_limit"),
		},
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDatabase(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Host:            v.GetString("database.host"),
		Port:            v.GetInt("database.port"),
		User:            v.GetString("database.user"),
		Password:        v.GetString("database.password"),
		DBName:          v.GetString("database.dbname"),
		SSLMode:         v.GetString("database.sslmode"),
		MaxOpenConns:    v.GetInt("database.max_open_conns"),
		MaxIdleConns:    v.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
	}
}

func loadHTTP(v *viper.Viper) HTTPConfig {
	return HTTPConfig{
		ReadTimeout:       v.GetDuration("http.read_timeout"),
		WriteTimeout:      v.GetDuration("http.write_timeout"),
		IdleTimeout:       v.GetDuration("http.idle_timeout"),
		MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
		RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
		RateLimitRequests: v.GetInt("http.rate_limit_requests"),
		RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
		CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
		CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
		TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
	}
}

func strDefault(field *string, fallback string) {
	if *field == "" {
		*field = fallback
	}
}

func intDefault(field *int, fallback int) {
	if *field == 0 {
		*field = fallback
	}
}

// applyDefaults fills zero-valued fields. Defaults apply after reading so an
// explicit zero in the environment also falls back rather than breaking the
// pool or quota settings.
func (c *Config) applyDefaults() {
	strDefault(&c.App.Name, "toolforge-backend")
	strDefault(&c.App.Env, "development")
	strDefault(&c.App.Port, "8080")

	strDefault(&c.Database.Host, "localhost")
	intDefault(&c.Database.Port, 5432)
	strDefault(&c.Database.User, "postgres")
	strDefault(&c.Database.DBName, "toolforge")
	strDefault(&c.Database.SSLMode, "disable")
	intDefault(&c.Database.MaxOpenConns, 25)
	intDefault(&c.Database.MaxIdleConns, 5)
	intDefault(&c.Database.ConnMaxLifetime, 60)
	intDefault(&c.Database.ConnMaxIdleTime, 30)

	strDefault(&c.Redis.Host, "localhost")
	intDefault(&c.Redis.Port, 6379)

	strDefault(&c.JWT.Issuer, "toolforge")

	strDefault(&c.Log.Level, "info")
	strDefault(&c.Log.Format, "console")
	strDefault(&c.Log.Output, "stdout")

	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	intDefault(&c.HTTP.MaxHeaderBytes, 1<<20)
	intDefault(&c.HTTP.RateLimitRequests, 60)
	if c.HTTP.RateLimitWindow == 0 {
		c.HTTP.RateLimitWindow = time.Minute
	}
	// CORS origins deliberately get no fallback: an empty list rejects all
	// cross-origin requests until origins are configured.
	if len(c.HTTP.CORSAllowMethods) == 0 {
		c.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(c.HTTP.CORSAllowHeaders) == 0 {
		c.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	intDefault(&c.Quota.AnonymousLimit, 10)
	intDefault(&c.Quota.FreeLimit, 50)
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Quota.AnonymousLimit <= 0 {
		return fmt.Errorf("quota.anonymous_limit must be positive")
	}
	if c.Quota.FreeLimit <= 0 {
		return fmt.Errorf("quota.free_limit must be positive")
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateProduction() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 characters in production")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database.sslmode cannot be 'disable' in production")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}
	if len(c.HTTP.TrustedProxies) == 0 {
		return fmt.Errorf("http.trusted_proxies is required in production (client addresses come from proxy headers)")
	}
	return nil
}

// DSN returns the postgres connection URL with credentials escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
