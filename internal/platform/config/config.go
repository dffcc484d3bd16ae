package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Engine defaults.
const (
	DefaultMaxCategoryRetries = 3
	DefaultRetryBaseDelay     = 200 * time.Millisecond
	DefaultCategoryTimeout    = 30 * time.Second
	DefaultExportHandleTTL    = 72 * time.Hour
	DefaultIdentityFreshness  = 15 * time.Minute
	DefaultWorkers            = 4
	DefaultSweepInterval      = time.Hour
	DefaultPollInterval       = 5 * time.Second
	DefaultRateLimitRequests  = 120
)

// Config is the full process configuration for the server binary.
type Config struct {
	Server   Server
	Engine   Engine
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Export   ExportConfig
	Identity IdentityConfig
	Auth     AuthConfig
	Limits   RateLimitConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// Engine holds the privacy-request processing knobs.
type Engine struct {
	RegistryFile       string
	MaxCategoryRetries int
	RetryBaseDelay     time.Duration
	CategoryTimeout    time.Duration
	ExportHandleTTL    time.Duration
	IdentityFreshness  time.Duration
	Workers            int
	QueueSize          int
	PollInterval       time.Duration
	SweepInterval      time.Duration
	AsyncAudit         bool
}

// DatabaseConfig configures the Postgres pool. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig configures the export handle index. An empty URL keeps handles in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit fan-out. Empty brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
	ClientID   string
}

// ExportConfig selects where export payloads live. An empty bucket keeps them in memory.
type ExportConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	KeyPrefix string
	AccessKey string
	SecretKey string
	PublicURL string

	// AgeIdentity, when set, encrypts payloads at rest and disables presigned URLs.
	AgeIdentity string
}

// IdentityConfig points at the identity-verification service. An empty URL
// selects the static verifier, which is only meant for development.
type IdentityConfig struct {
	URL     string
	Timeout time.Duration
}

// AuthConfig enables bearer-token authentication when SigningKey is set.
type AuthConfig struct {
	SigningKey string
	Issuer     string
	AdminRole  string
}

// RateLimitConfig caps API requests per client. Requests of 0 disables the limiter.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether bearer tokens are required.
func (a AuthConfig) Enabled() bool { return a.SigningKey != "" }

// FromEnv builds the process config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, v))
			return def
		}
		return d
	}
	num := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", key, v))
			return def
		}
		return n
	}

	cfg := Config{
		Server: Server{
			Addr:            envOr("DSR_ADDR", ":8080"),
			RequestTimeout:  dur("DSR_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: dur("DSR_SHUTDOWN_TIMEOUT", 15*time.Second),
			LogLevel:        envOr("DSR_LOG_LEVEL", "info"),
		},
		Engine: Engine{
			RegistryFile:       envOr("DSR_REGISTRY_FILE", "config/categories.yaml"),
			MaxCategoryRetries: num("DSR_MAX_CATEGORY_RETRIES", DefaultMaxCategoryRetries),
			RetryBaseDelay:     dur("DSR_RETRY_BASE_DELAY", DefaultRetryBaseDelay),
			CategoryTimeout:    dur("DSR_CATEGORY_TIMEOUT", DefaultCategoryTimeout),
			ExportHandleTTL:    dur("DSR_EXPORT_HANDLE_TTL", DefaultExportHandleTTL),
			IdentityFreshness:  dur("DSR_IDENTITY_FRESHNESS", DefaultIdentityFreshness),
			Workers:            num("DSR_WORKERS", DefaultWorkers),
			QueueSize:          num("DSR_QUEUE_SIZE", 256),
			PollInterval:       dur("DSR_POLL_INTERVAL", DefaultPollInterval),
			SweepInterval:      dur("DSR_SWEEP_INTERVAL", DefaultSweepInterval),
			AsyncAudit:         os.Getenv("DSR_ASYNC_AUDIT") == "true",
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    num("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    num("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: dur("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     os.Getenv("DATABASE_AUTO_MIGRATE") != "false",
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     num("REDIS_POOL_SIZE", 10),
			MinIdleConns: num("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "privacy.audit"),
			ClientID:   envOr("KAFKA_CLIENT_ID", "dsrengine"),
		},
		Export: ExportConfig{
			Bucket:      os.Getenv("EXPORT_S3_BUCKET"),
			Region:      envOr("EXPORT_S3_REGION", "us-east-1"),
			Endpoint:    os.Getenv("EXPORT_S3_ENDPOINT"),
			KeyPrefix:   envOr("EXPORT_S3_PREFIX", "exports/"),
			AccessKey:   os.Getenv("EXPORT_S3_ACCESS_KEY"),
			SecretKey:   os.Getenv("EXPORT_S3_SECRET_KEY"),
			PublicURL:   envOr("EXPORT_PUBLIC_URL", "http://localhost:8080"),
			AgeIdentity: os.Getenv("EXPORT_AGE_IDENTITY"),
		},
		Identity: IdentityConfig{
			URL:     os.Getenv("IDENTITY_SERVICE_URL"),
			Timeout: dur("IDENTITY_SERVICE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			SigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:     os.Getenv("JWT_ISSUER"),
			AdminRole:  envOr("JWT_ADMIN_ROLE", "privacy_admin"),
		},
		Limits: RateLimitConfig{
			Requests: num("DSR_RATE_LIMIT_REQUESTS", DefaultRateLimitRequests),
			Window:   dur("DSR_RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if cfg.Engine.Workers == 0 {
		errs = append(errs, "DSR_WORKERS: must be at least 1")
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
