package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backend selection. Which backend is authoritative is a deployment
// decision; both normalise records into the same Capsule shape.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendLegacy   = "legacy"
)

type Config struct {
	Env       string `validate:"required"`
	Port      int    `validate:"required,min=1,max=65535"`
	APIPrefix string `validate:"required,startswith=/"`
	BaseURL   string `validate:"required,url"`

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Store    StoreConfig
	Media    MediaConfig
	Hints    HintConfig
	Exports  ExportConfig
}

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

// AuthConfig holds the parameters needed to validate bearer tokens issued by
// the external identity provider. The service never issues or refreshes
// tokens itself.
type AuthConfig struct {
	TokenSecret string `validate:"required"`
	Issuer      string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the capsule store backend.
type StoreConfig struct {
	Backend       string `validate:"required,oneof=postgres legacy"`
	LegacyBaseURL string
	LegacyTimeout time.Duration
	SlugCacheTTL  time.Duration
}

// MediaConfig governs the media blob store and signed download URLs.
type MediaConfig struct {
	StorageDir       string `validate:"required"`
	SignedURLSecret  string `validate:"required"`
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// HintConfig tunes the advisory unlock-hint reconciliation sweep.
type HintConfig struct {
	Enabled           bool
	SweepInterval     time.Duration
	BatchSize         int
	WorkerConcurrency int
	WorkerRetries     int
}

// ExportConfig toggles the owner "memory book" export endpoints.
type ExportConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.BaseURL = strings.TrimRight(v.GetString("BASE_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		TokenSecret: v.GetString("AUTH_TOKEN_SECRET"),
		Issuer:      v.GetString("AUTH_TOKEN_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	backend := strings.ToLower(v.GetString("STORE_BACKEND"))
	if backend != StoreBackendLegacy {
		backend = StoreBackendPostgres
	}
	cfg.Store = StoreConfig{
		Backend:       backend,
		LegacyBaseURL: strings.TrimRight(v.GetString("LEGACY_STORE_BASE_URL"), "/"),
		LegacyTimeout: parseDuration(v.GetString("LEGACY_STORE_TIMEOUT"), 5*time.Second),
		SlugCacheTTL:  parseDuration(v.GetString("SLUG_CACHE_TTL"), 5*time.Minute),
	}

	maxMediaSize := v.GetInt64("MEDIA_MAX_FILE_SIZE")
	if maxMediaSize <= 0 {
		maxMediaSize = 50 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		StorageDir:       v.GetString("MEDIA_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("MEDIA_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("MEDIA_SIGNED_URL_TTL"), time.Hour),
		MaxFileSizeBytes: maxMediaSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("MEDIA_ALLOWED_MIME_PREFIXES")),
	}

	cfg.Hints = HintConfig{
		Enabled:           v.GetBool("ENABLE_HINT_SWEEP"),
		SweepInterval:     parseDuration(v.GetString("HINT_SWEEP_INTERVAL"), time.Minute),
		BatchSize:         v.GetInt("HINT_SWEEP_BATCH_SIZE"),
		WorkerConcurrency: v.GetInt("HINT_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("HINT_WORKER_RETRIES"),
	}

	cfg.Exports = ExportConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "capsules")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_TOKEN_SECRET", "dev_secret")
	v.SetDefault("AUTH_TOKEN_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_BACKEND", StoreBackendPostgres)
	v.SetDefault("LEGACY_STORE_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("LEGACY_STORE_TIMEOUT", "5s")
	v.SetDefault("SLUG_CACHE_TTL", "5m")

	v.SetDefault("MEDIA_STORAGE_DIR", "./media")
	v.SetDefault("MEDIA_SIGNED_URL_SECRET", "dev_media_secret")
	v.SetDefault("MEDIA_SIGNED_URL_TTL", "1h")
	v.SetDefault("MEDIA_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("MEDIA_ALLOWED_MIME_PREFIXES", "image/,video/")

	v.SetDefault("ENABLE_HINT_SWEEP", true)
	v.SetDefault("HINT_SWEEP_INTERVAL", "1m")
	v.SetDefault("HINT_SWEEP_BATCH_SIZE", 200)
	v.SetDefault("HINT_WORKER_CONCURRENCY", 1)
	v.SetDefault("HINT_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
