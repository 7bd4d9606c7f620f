package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers        []string
	KafkaGroupID        string
	LifecycleTopic      string
	NotifierGroupID     string
	NotifierAdminEmails []string

	// Session store
	SessionBackend string // "memory" or "redis"
	SessionTTL     time.Duration

	// SMTP delivery
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	SMTPFrom      string
	DeliveryEmail string

	// Artifact rendering
	ArtifactDir string

	// Intake
	PromptCatalogPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "tripflow"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "tripflow123"),
		PostgresDB:       getEnv("POSTGRES_DB", "tripflow"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "tripflow-platform"),
		LifecycleTopic:      getEnv("LIFECYCLE_TOPIC", "tripflow.lifecycle"),
		NotifierGroupID:     getEnv("NOTIFIER_GROUP_ID", "tripflow-notifier"),
		NotifierAdminEmails: getStringSliceEnv("NOTIFIER_ADMIN_EMAILS", nil),

		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		SessionTTL:     getDuration("SESSION_TTL", 24*time.Hour),

		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getIntEnv("SMTP_PORT", 465),
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:      getEnv("SMTP_FROM", ""),
		DeliveryEmail: getEnv("DELIVERY_EMAIL", ""),

		ArtifactDir: getEnv("ARTIFACT_DIR", "/tmp"),

		PromptCatalogPath: getEnv("PROMPT_CATALOG_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
