package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/crmacl/pkg/acl/table"
	"github.com/platinummonkey/crmacl/pkg/audit"
	"github.com/platinummonkey/crmacl/pkg/metadata"
	"github.com/platinummonkey/crmacl/pkg/observability"
	"github.com/platinummonkey/crmacl/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Postgres      postgres.ConnectionConfig
	Redis         RedisConfig
	Cache         table.CacheConfig
	Metadata      MetadataConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	RateLimitEnabled bool
}

// RedisConfig enables the shared table cache and Redis-backed rate limits.
type RedisConfig struct {
	table.RedisConfig
	Enabled   bool
	KeyPrefix string
	TableTTL  time.Duration
}

// MetadataConfig says where entity and scope definitions come from.
type MetadataConfig struct {
	Dirs     []string
	Watch    bool
	Debounce time.Duration

	// S3 bundle, used when S3.Bucket is set
	S3           metadata.S3Config
	SyncInterval time.Duration
}

// AuditConfig selects audit trail destinations. The file trail is written
// when File.BasePath is set.
type AuditConfig struct {
	File     audit.FileLoggerConfig
	Database bool

	// Database events older than RetentionDays are pruned on
	// RetentionSchedule. Zero keeps everything.
	RetentionDays     int
	RetentionSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string
	MetricsEnabled bool
	OTel           observability.OTelConfig
}

// LoadConfig loads configuration from environment variables. Variables from
// the file named by CRMACL_ENV_FILE, or ./.env, fill in unset variables.
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(getEnv("CRMACL_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Postgres:      loadPostgresConfig(),
		Redis:         loadRedisConfig(),
		Cache:         loadCacheConfig(),
		Metadata:      loadMetadataConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:             getEnv("CRMACL_HOST", "0.0.0.0"),
		Port:             getEnv("CRMACL_PORT", "8080"),
		ReadTimeout:      getEnvDuration("CRMACL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:     getEnvDuration("CRMACL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:      getEnvDuration("CRMACL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:  getEnvDuration("CRMACL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:       getEnv("CRMACL_HEALTH_PORT", "9090"),
		RateLimitEnabled: getEnvBool("CRMACL_RATE_LIMIT_ENABLED", true),
	}
}

func loadPostgresConfig() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		PrimaryURL:  getEnv("CRMACL_POSTGRES_URL", ""),
		ReplicaURLs: postgres.ParseReplicaURLs(getEnv("CRMACL_POSTGRES_REPLICA_URLS", "")),
		MaxConns:    getEnvInt("CRMACL_POSTGRES_MAX_CONNS", 20),
		MinConns:    getEnvInt("CRMACL_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("CRMACL_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("CRMACL_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("CRMACL_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	url := getEnv("CRMACL_REDIS_URL", "")
	return RedisConfig{
		RedisConfig: table.RedisConfig{
			URL:        url,
			Password:   getEnv("CRMACL_REDIS_PASSWORD", ""),
			DB:         getEnvInt("CRMACL_REDIS_DB", 0),
			MaxRetries: getEnvInt("CRMACL_REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("CRMACL_REDIS_POOL_SIZE", 10),
		},
		Enabled:   url != "",
		KeyPrefix: getEnv("CRMACL_REDIS_KEY_PREFIX", "crmacl:acl"),
		TableTTL:  getEnvDuration("CRMACL_REDIS_TABLE_TTL", time.Hour),
	}
}

func loadCacheConfig() table.CacheConfig {
	return table.CacheConfig{
		Size: getEnvInt("CRMACL_TABLE_CACHE_SIZE", 1024),
		TTL:  getEnvDuration("CRMACL_TABLE_CACHE_TTL", 10*time.Minute),
	}
}

func loadMetadataConfig() MetadataConfig {
	return MetadataConfig{
		Dirs:     splitList(getEnv("CRMACL_METADATA_DIRS", "metadata")),
		Watch:    getEnvBool("CRMACL_METADATA_WATCH", true),
		Debounce: getEnvDuration("CRMACL_METADATA_DEBOUNCE", 500*time.Millisecond),
		S3: metadata.S3Config{
			Bucket:       getEnv("CRMACL_METADATA_S3_BUCKET", ""),
			Key:          getEnv("CRMACL_METADATA_S3_KEY", "metadata.yaml"),
			Region:       getEnv("CRMACL_METADATA_S3_REGION", "us-east-1"),
			Endpoint:     getEnv("CRMACL_METADATA_S3_ENDPOINT", ""),
			AccessKey:    getEnv("CRMACL_METADATA_S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("CRMACL_METADATA_S3_SECRET_KEY", ""),
			UsePathStyle: getEnvBool("CRMACL_METADATA_S3_USE_PATH_STYLE", false),
		},
		SyncInterval: getEnvDuration("CRMACL_METADATA_SYNC_INTERVAL", time.Minute),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		File: audit.FileLoggerConfig{
			BasePath: getEnv("CRMACL_AUDIT_DIR", ""),
			Rotate:   getEnvBool("CRMACL_AUDIT_ROTATE", true),
			MaxSize:  int64(getEnvInt("CRMACL_AUDIT_MAX_SIZE", 100*1024*1024)),
			MaxFiles: getEnvInt("CRMACL_AUDIT_MAX_FILES", 10),
		},
		Database:          getEnvBool("CRMACL_AUDIT_DATABASE", false),
		RetentionDays:     getEnvInt("CRMACL_AUDIT_RETENTION_DAYS", 90),
		RetentionSchedule: getEnv("CRMACL_AUDIT_RETENTION_SCHEDULE", "5 0 * * *"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       getEnv("CRMACL_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("CRMACL_METRICS_ENABLED", true),
		OTel: observability.OTelConfig{
			Enabled:        getEnvBool("CRMACL_OTEL_ENABLED", false),
			Endpoint:       getEnv("CRMACL_OTEL_ENDPOINT", "localhost:4317"),
			ServiceName:    getEnv("CRMACL_OTEL_SERVICE_NAME", "crmacl"),
			ServiceVersion: getEnv("CRMACL_OTEL_SERVICE_VERSION", "1.0.0"),
			Insecure:       getEnvBool("CRMACL_OTEL_INSECURE", true),
			SampleRatio:    getEnvFloat("CRMACL_OTEL_SAMPLE_RATIO", 1),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Postgres.PrimaryURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("postgres min conns (%d) exceeds max conns (%d)", c.Postgres.MinConns, c.Postgres.MaxConns)
	}

	if c.Cache.Size <= 0 {
		return fmt.Errorf("table cache size must be positive")
	}

	if c.Metadata.S3.Bucket == "" && len(c.Metadata.Dirs) == 0 {
		return fmt.Errorf("metadata directories or an S3 bucket are required")
	}

	if c.Audit.File.MaxFiles < 0 {
		return fmt.Errorf("audit max files must not be negative")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention days must not be negative")
	}
	if c.Metadata.S3.Bucket != "" && c.Metadata.SyncInterval <= 0 {
		return fmt.Errorf("metadata sync interval must be positive")
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
