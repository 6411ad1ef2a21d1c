package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "rumbo/pkg/platform/strings"
)

// Server captures process-level configuration. Built once in main so the rest
// of the tree never reads the environment directly.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	// PostgresDSN empty means in-memory stores (local development, tests).
	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	// PaymentGatewayURLs is the ordered list of checkout endpoints to try.
	// Empty disables the checkout surface.
	PaymentGatewayURLs []string

	ShutdownTimeout time.Duration
}

// RedisConfig holds connection settings for the idempotency store.
// An empty URL disables Redis and falls back to the in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the lifecycle event sink.
// Empty brokers disable event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file next to the binary is loaded first when present.
func FromEnv() Server {
	_ = godotenv.Load()

	addr := os.Getenv("RUMBO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("RUMBO_ADMIN_TOKEN")

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_BOOKING_EVENTS_TOPIC")
	if topic == "" {
		topic = "booking.lifecycle"
	}

	return Server{
		Addr:          addr,
		AdminToken:    adminToken,
		JWTSigningKey: jwtSigningKey,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   topic,
		},
		PaymentGatewayURLs: splitNonEmpty(os.Getenv("PAYMENT_GATEWAY_URLS")),
		ShutdownTimeout:    envDuration("RUMBO_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// splitNonEmpty parses a comma-separated env value, dropping blank and
// repeated entries.
func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	out := pstrings.DedupeAndTrim(strings.Split(raw, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
