package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// ───── Infrastructure ─────
	DatabaseURL  string
	KafkaBrokers []string

	// ───── Runtime ─────
	HTTPAddr    string
	ObsHTTPAddr string
	ServiceName string
	LogLevel    string

	// ───── Outbox relay ─────
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	PublishTimeout     time.Duration

	// ───── Consumer ─────
	ConsumerGroupID string

	// ───── Observability ─────
	MetricsEnabled bool
	TracingEnabled bool
	JaegerURL      string
}

func Load() Config {
	return Config{
		// Infra
		DatabaseURL:  mustEnv("DATABASE_URL"),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),

		// Runtime
		HTTPAddr:    fixPort(mustEnv("HTTP_ADDR")),
		ObsHTTPAddr: fixPort(mustEnv("OBS_HTTP_ADDR")),
		ServiceName: getEnv("SERVICE_NAME", "order"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Outbox relay
		OutboxPollInterval: time.Duration(getEnvInt("OUTBOX_POLL_INTERVAL_MS", 5000)) * time.Millisecond,
		OutboxBatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 50),
		OutboxMaxRetries:   getEnvInt("OUTBOX_MAX_RETRIES", 3),
		PublishTimeout:     time.Duration(getEnvInt("PUBLISH_TIMEOUT_MS", 30000)) * time.Millisecond,

		// Consumer
		ConsumerGroupID: getEnv("CONSUMER_GROUP_ID", "order-service"),

		// Observability
		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		JaegerURL:      getEnv("JAEGER_URL", "http://jaeger:14268/api/traces"),
	}
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env: %s", k)
	}
	return v
}

func getEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}

func getEnvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s: %v", k, err)
	}
	return i
}

func getEnvBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return strings.ToLower(v) == "true"
}

func getEnvSlice(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return strings.Split(v, ",")
}
