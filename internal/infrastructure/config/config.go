package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	MediaBackendS3  = "s3"
	MediaBackendGCS = "gcs"
)

type Config struct {
	Port         string   `env:"PORT,          default=8000"`
	Env          string   `env:"ENV,           default=development"`
	LogLevel     string   `env:"LOG_LEVEL,     default=info"`
	CookieSecure bool     `env:"COOKIE_SECURE, default=true"`
	CookieDomain string   `env:"COOKIE_DOMAIN"`
	CORSOrigins  []string `env:"CORS_ORIGINS"`
	BodyLimit    string   `env:"BODY_LIMIT,    default=10M"`

	BcryptCost          int           `env:"BCRYPT_COST,           default=10"`
	RegistrationLockTTL time.Duration `env:"REGISTRATION_LOCK_TTL, default=30s"`

	Tokens TokenConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Media  MediaConfig
}

type TokenConfig struct {
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL,  default=15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL, default=240h"`
}

type MongoConfig struct {
	URI         string        `env:"MONGO_URI,           default=mongodb://localhost:27017"`
	Database    string        `env:"MONGO_DB,            default=videotube"`
	MaxPoolSize uint64        `env:"MONGO_MAX_POOL_SIZE, default=50"`
	Timeout     time.Duration `env:"MONGO_TIMEOUT,       default=10s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type MediaConfig struct {
	Backend        string `env:"MEDIA_BACKEND,          default=s3"`
	PublicBaseURL  string `env:"MEDIA_PUBLIC_BASE_URL"`
	CleanupWorkers int    `env:"MEDIA_CLEANUP_WORKERS,  default=2"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION,  default=us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	GCSBucket          string `env:"GCS_BUCKET"`
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Tokens.AccessSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.Tokens.RefreshSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.Tokens.AccessSecret != "" && c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}

	switch strings.ToLower(c.Media.Backend) {
	case MediaBackendS3:
		if c.Media.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 media backend"))
		}
	case MediaBackendGCS:
		if c.Media.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs media backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("MEDIA_BACKEND %q is not one of s3, gcs", c.Media.Backend))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}
