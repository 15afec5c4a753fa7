package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Screening ScreeningConfig `mapstructure:"screening"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains connection options for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig contains S3 settings for the CV bucket.
type StorageConfig struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	BasePath string `mapstructure:"base_path"`
}

// OpenAIConfig contains settings for the LLM gateway.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// AuthConfig contains JWT settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	Issuer        string        `mapstructure:"issuer"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
}

// ScreeningConfig tunes the analysis pipeline.
//
// PlanLimits is the single canonical monthly-analysis quota table; the
// previous deployment shipped two diverging tables in different places,
// so the quota now lives here and nowhere else.
type ScreeningConfig struct {
	PlanLimits        map[string]int `mapstructure:"plan_limits"`
	DispatchPolicy    string         `mapstructure:"dispatch_policy"` // charge_on_attempt | charge_on_success
	UploadConcurrency int            `mapstructure:"upload_concurrency"`
	AnalysisWorkers   int            `mapstructure:"analysis_workers"`
	SweepInterval     time.Duration  `mapstructure:"sweep_interval"`
	StuckThreshold    time.Duration  `mapstructure:"stuck_threshold"`
	MaxUploadBytes    int64          `mapstructure:"max_upload_bytes"`
	BatchRetention    time.Duration  `mapstructure:"batch_retention"`
}

// Dispatch policies for the analysis dispatcher.
const (
	PolicyChargeOnAttempt = "charge_on_attempt"
	PolicyChargeOnSuccess = "charge_on_success"
)

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "sift")
	v.SetDefault("database.user", "sift")
	v.SetDefault("database.password", "sift")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "sift-cvs")
	v.SetDefault("storage.base_path", "uploads")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "sift")
	v.SetDefault("screening.plan_limits", map[string]int{
		"free":     25,
		"starter":  100,
		"pro":      250,
		"business": 1000,
	})
	v.SetDefault("screening.dispatch_policy", PolicyChargeOnAttempt)
	v.SetDefault("screening.upload_concurrency", 4)
	v.SetDefault("screening.analysis_workers", 4)
	v.SetDefault("screening.sweep_interval", time.Minute)
	v.SetDefault("screening.stuck_threshold", 5*time.Minute)
	v.SetDefault("screening.max_upload_bytes", int64(10*1024*1024))
	v.SetDefault("screening.batch_retention", time.Hour)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                     "API_PORT",
		"database.host":                "DATABASE_HOST",
		"database.port":                "DATABASE_PORT",
		"database.name":                "POSTGRES_DB",
		"database.user":                "POSTGRES_USER",
		"database.password":            "POSTGRES_PASSWORD",
		"database.sslmode":             "DATABASE_SSLMODE",
		"redis.addr":                   "REDIS_ADDR",
		"redis.password":               "REDIS_PASSWORD",
		"storage.region":               "AWS_REGION",
		"storage.bucket":               "STORAGE_BUCKET",
		"storage.base_path":            "STORAGE_BASE_PATH",
		"openai.api_key":               "OPENAI_API_KEY",
		"openai.model":                 "OPENAI_MODEL",
		"auth.jwt_secret":              "JWT_SECRET",
		"auth.webhook_secret":          "BILLING_WEBHOOK_SECRET",
		"auth.issuer":                  "JWT_ISSUER",
		"screening.dispatch_policy":    "DISPATCH_POLICY",
		"screening.upload_concurrency": "UPLOAD_CONCURRENCY",
		"screening.analysis_workers":   "ANALYSIS_WORKERS",
		"screening.sweep_interval":     "SWEEP_INTERVAL",
		"screening.stuck_threshold":    "STUCK_THRESHOLD",
		"screening.max_upload_bytes":   "MAX_UPLOAD_BYTES",
		"screening.batch_retention":    "BATCH_RETENTION",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("redis addr is required")
	}
	if cfg.Storage.Bucket == "" {
		return errors.New("storage bucket is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if cfg.Auth.WebhookSecret == "" {
		return errors.New("billing webhook secret is required")
	}
	if cfg.Screening.DispatchPolicy != PolicyChargeOnAttempt &&
		cfg.Screening.DispatchPolicy != PolicyChargeOnSuccess {
		return fmt.Errorf("unknown dispatch policy %q", cfg.Screening.DispatchPolicy)
	}
	if cfg.Screening.UploadConcurrency < 1 {
		return errors.New("upload concurrency must be at least 1")
	}
	if cfg.Screening.AnalysisWorkers < 1 {
		return errors.New("analysis workers must be at least 1")
	}
	for tier, limit := range cfg.Screening.PlanLimits {
		if limit < 0 {
			return fmt.Errorf("plan limit for %q must not be negative", tier)
		}
	}
	return nil
}
