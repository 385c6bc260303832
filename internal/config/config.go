package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI      string
	MongoDatabase string

	RedisAddr string

	PostgresHost      string
	PostgresPort      int
	PostgresUser      string
	PostgresPassword  string
	PostgresDB        string
	MigrationsDirPath string

	KafkaBrokers []string

	PesapalBaseURL        string
	PesapalConsumerKey    string
	PesapalConsumerSecret string
	PesapalTimeout        time.Duration
	PesapalMaxRetries     int

	Currency        string
	AdminToken      string
	PaymentPollTick time.Duration
}

func Load() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "storefront"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		PostgresHost:      getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:      getInt("POSTGRES_PORT", 5432),
		PostgresUser:      getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:  getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:        getEnv("POSTGRES_DB", "storefront"),
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "./internal/order/migrations"),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),

		PesapalBaseURL:        getEnv("PESAPAL_BASE_URL", "https://www.pesapal.com/api"),
		PesapalConsumerKey:    getEnv("PESAPAL_CONSUMER_KEY", ""),
		PesapalConsumerSecret: getEnv("PESAPAL_CONSUMER_SECRET", ""),
		PesapalTimeout:        getDuration("PESAPAL_TIMEOUT", 8*time.Second),
		PesapalMaxRetries:     getInt("PESAPAL_MAX_RETRIES", 2),

		Currency:        getEnv("CURRENCY", "KES"),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		PaymentPollTick: getDuration("PAYMENT_POLL_TICK", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
