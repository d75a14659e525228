package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	pstrings "propie/pkg/platform/strings"
)

// Config is the full runtime configuration, read once at startup.
type Config struct {
	Environment string
	Server      Server
	Log         Log
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Documents   DocumentsConfig
	Expiry      ExpiryConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	JWTSigningKey     string
	JWTIssuer         string
	JWTAudience       string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	// RequestTimeout bounds the /v1 handlers; it must stay below WriteTimeout.
	RequestTimeout time.Duration
}

type Log struct {
	Level  string
	Format string
}

// DatabaseConfig selects the PostgreSQL store. An empty URL keeps state in memory.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// RedisConfig enables distributed per-entity locks. An empty URL uses in-process locks.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the Kafka notifier and journey publisher. No brokers means log-only delivery.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	JourneyTopic      string
}

// DocumentsConfig points at the external document registry.
type DocumentsConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ExpiryConfig controls the sweep cadence and the reservation TTL per type.
type ExpiryConfig struct {
	SweepInterval  time.Duration
	TemporaryHold  time.Duration
	PaidReserve    time.Duration
	DepositBooking time.Duration
	ContractExch   time.Duration
}

// FromEnv builds the config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Environment: envString("ENVIRONMENT", "development"),
		Server: Server{
			Addr: envString("PROPIE_ADDR", ":8080"),
			// Use a default for development - should be overridden in production
			JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     envString("JWT_ISSUER", "propie-auth"),
			JWTAudience:   envString("JWT_AUDIENCE", "propie-transactions"),

			ReadHeaderTimeout: envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			WriteTimeout:      envDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:    envDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
		},
		Log: Log{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			AutoMigrate:  envBool("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			NotificationTopic: envString("KAFKA_NOTIFICATION_TOPIC", "propie.notifications"),
			JourneyTopic:      envString("KAFKA_JOURNEY_TOPIC", "propie.journey"),
		},
		Documents: DocumentsConfig{
			BaseURL: os.Getenv("DOCUMENT_REGISTRY_URL"),
			Timeout: envDuration("DOCUMENT_REGISTRY_TIMEOUT", 3*time.Second),
		},
		Expiry: ExpiryConfig{
			SweepInterval:  envDuration("SWEEP_INTERVAL", 5*time.Minute),
			TemporaryHold:  envDuration("RESERVATION_TTL_TEMPORARY_HOLD", 24*time.Hour),
			PaidReserve:    envDuration("RESERVATION_TTL_PAID_RESERVATION", 14*24*time.Hour),
			DepositBooking: envDuration("RESERVATION_TTL_DEPOSIT_BOOKING", 30*24*time.Hour),
			ContractExch:   envDuration("RESERVATION_TTL_CONTRACT_EXCHANGE", 90*24*time.Hour),
		},
	}
}

// IsProduction reports whether dev defaults must be refused.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	return pstrings.SplitList(os.Getenv(key), ",")
}
