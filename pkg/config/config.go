// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Recognised values for Config.Env.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full runtime configuration of the API process.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Policy   PolicyConfig
	Reports  ReportsConfig
}

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds signing settings shared by access and refresh tokens.
type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PolicyConfig tunes course date-policy construction and caching.
type PolicyConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// defaults apply whenever neither the environment nor .env provides a value.
var defaults = map[string]interface{}{
	"ENV":        EnvDevelopment,
	"PORT":       8080,
	"API_PREFIX": "/api/v1",

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "canvas_lms",
	"DB_SSL_MODE":       "disable",
	"DB_MAX_OPEN_CONNS": 10,
	"DB_MAX_IDLE_CONNS": 5,

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"JWT_SECRET":               "dev_secret",
	"JWT_EXPIRATION":           "24h",
	"REFRESH_TOKEN_EXPIRATION": "168h",

	"ALLOWED_ORIGINS": "",
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"POLICY_CACHE_ENABLED": true,
	"POLICY_CACHE_TTL":     "5m",

	"ENABLE_REPORTS":             false,
	"REPORTS_STORAGE_DIR":        "./exports",
	"REPORTS_SIGNED_URL_SECRET":  "dev_reports_secret",
	"REPORTS_SIGNED_URL_TTL":     "24h",
	"REPORTS_CLEANUP_INTERVAL":   "1h",
	"REPORTS_WORKER_CONCURRENCY": 1,
	"REPORTS_WORKER_RETRIES":     3,
}

// Load reads configuration from the process environment. A .env file in the
// working directory is merged in when present; explicit environment variables
// win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil && !missingConfigFile(err) {
		return nil, err
	}

	return &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:            v.GetString("JWT_SECRET"),
			Expiration:        duration(v, "JWT_EXPIRATION", 24*time.Hour),
			RefreshExpiration: duration(v, "REFRESH_TOKEN_EXPIRATION", 7*24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: originList(v.GetString("ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Policy: PolicyConfig{
			CacheEnabled: v.GetBool("POLICY_CACHE_ENABLED"),
			CacheTTL:     duration(v, "POLICY_CACHE_TTL", 5*time.Minute),
		},
		Reports: ReportsConfig{
			Enabled:           v.GetBool("ENABLE_REPORTS"),
			StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
			SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
			SignedURLTTL:      duration(v, "REPORTS_SIGNED_URL_TTL", 24*time.Hour),
			CleanupInterval:   duration(v, "REPORTS_CLEANUP_INTERVAL", time.Hour),
			WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
			WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		},
	}, nil
}

// A .env file is optional. Viper reports its absence as a path error because
// the file is named explicitly rather than searched for.
func missingConfigFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// duration parses the named setting, falling back when unset or malformed.
func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// originList splits a comma separated origin list, dropping empty entries.
func originList(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			origins = append(origins, part)
		}
	}
	return origins
}
