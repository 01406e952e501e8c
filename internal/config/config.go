package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	Logging        LoggingConfig        `yaml:"logging"`
	Email          EmailConfig          `yaml:"email"`
	Storage        StorageConfig        `yaml:"storage"`
	Redis          RedisConfig          `yaml:"redis"`
	Tracing        TracingConfig        `yaml:"tracing"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CORS           CORSConfig           `yaml:"cors"`
	AdminBootstrap AdminBootstrapConfig `yaml:"admin_bootstrap"`
	Jobs           JobsConfig           `yaml:"jobs"`
	Timezone       string               `yaml:"timezone"`
	Environment    string               `yaml:"environment"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
}

// AuthConfig holds the two signing secrets. Token lifetimes are fixed in the auth package.
type AuthConfig struct {
	AccessSecret  string `yaml:"access_secret"`
	RefreshSecret string `yaml:"refresh_secret"`
	Issuer        string `yaml:"issuer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type EmailConfig struct {
	Provider     string `yaml:"provider"`
	From         string `yaml:"from"`
	ResendAPIKey string `yaml:"resend_api_key"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
}

type StorageConfig struct {
	Provider      string        `yaml:"provider"`
	CloudinaryURL string        `yaml:"cloudinary_url"`
	LocalDir      string        `yaml:"local_dir"`
	PublicBaseURL string        `yaml:"public_base_url"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type RateLimitConfig struct {
	PublicPerMinute   int      `yaml:"public_per_minute"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	// AllowAllOrigins echoes any Origin back. Only set for development
	// without an explicit origin list.
	AllowAllOrigins bool `yaml:"-"`
}

type AdminBootstrapConfig struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
}

type JobsConfig struct {
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// Defaults returns the configuration used when neither a file nor env vars set a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{MaxConnections: 25},
		Auth:     AuthConfig{Issuer: "eventviewer"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Email: EmailConfig{
			Provider: "none",
			From:     "BINUS Event Viewer <no-reply@eventviewer.local>",
			SMTPPort: 587,
		},
		Storage: StorageConfig{
			Provider:      "local",
			LocalDir:      "uploads",
			PublicBaseURL: "http://localhost:8080/uploads",
			UploadTimeout: 60 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "eventviewer-server",
			SampleRate:  1.0,
		},
		RateLimit:   RateLimitConfig{PublicPerMinute: 120},
		Jobs:        JobsConfig{CleanupEnabled: true},
		Timezone:    "Local",
		Environment: "development",
	}
}

// Load reads configuration from the environment on top of Defaults.
func Load() (Config, error) {
	return LoadWithBase(Defaults())
}

// LoadWithBase applies env vars over base and validates the result.
func LoadWithBase(base Config) (Config, error) {
	cfg := base

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("SERVER_BASE_URL", cfg.Server.BaseURL)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)

	cfg.Auth.AccessSecret = getEnv("ACCESS_JWT_SECRET", cfg.Auth.AccessSecret)
	cfg.Auth.RefreshSecret = getEnv("REFRESH_JWT_SECRET", cfg.Auth.RefreshSecret)
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Email.Provider = strings.ToLower(getEnv("EMAIL_PROVIDER", cfg.Email.Provider))
	cfg.Email.From = getEnv("EMAIL_FROM", cfg.Email.From)
	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)
	cfg.Email.SMTPHost = getEnv("SMTP_HOST", cfg.Email.SMTPHost)
	cfg.Email.SMTPPort = getEnvInt("SMTP_PORT", cfg.Email.SMTPPort)
	cfg.Email.SMTPUser = getEnv("SMTP_USER", cfg.Email.SMTPUser)
	cfg.Email.SMTPPassword = getEnv("SMTP_PASSWORD", cfg.Email.SMTPPassword)

	cfg.Storage.Provider = strings.ToLower(getEnv("STORAGE_PROVIDER", cfg.Storage.Provider))
	cfg.Storage.CloudinaryURL = getEnv("CLOUDINARY_URL", cfg.Storage.CloudinaryURL)
	cfg.Storage.LocalDir = getEnv("STORAGE_LOCAL_DIR", cfg.Storage.LocalDir)
	cfg.Storage.PublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)
	cfg.Storage.UploadTimeout = getEnvDuration("STORAGE_UPLOAD_TIMEOUT", cfg.Storage.UploadTimeout)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.RateLimit.PublicPerMinute = getEnvInt("RATE_LIMIT_PUBLIC", cfg.RateLimit.PublicPerMinute)
	cfg.RateLimit.TrustedProxyCIDRs = getEnvList("TRUSTED_PROXY_CIDRS", cfg.RateLimit.TrustedProxyCIDRs)

	cfg.CORS.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.AdminBootstrap.Email = getEnv("ADMIN_EMAIL", cfg.AdminBootstrap.Email)
	cfg.AdminBootstrap.Password = getEnv("ADMIN_PASSWORD", cfg.AdminBootstrap.Password)
	cfg.AdminBootstrap.FirstName = getEnv("ADMIN_FIRST_NAME", cfg.AdminBootstrap.FirstName)

	cfg.Jobs.CleanupEnabled = getEnvBool("JOBS_CLEANUP_ENABLED", cfg.Jobs.CleanupEnabled)

	cfg.Timezone = getEnv("APP_TIMEZONE", cfg.Timezone)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.CORS.AllowAllOrigins = cfg.Environment == "development" && len(cfg.CORS.AllowedOrigins) == 0

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("ACCESS_JWT_SECRET is required")
	}
	if c.Auth.RefreshSecret == "" {
		return fmt.Errorf("REFRESH_JWT_SECRET is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("ACCESS_JWT_SECRET and REFRESH_JWT_SECRET must differ")
	}
	if c.Environment == "production" && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves the configured timezone used for date bucketing and the cleanup schedule.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
