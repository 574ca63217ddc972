package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Gateway   GatewayConfig
	Redirect  RedirectConfig
	Mail      MailConfig
	Events    EventsConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type MongoConfig struct {
	URI              string
	Database         string
	OrdersCollection string
	CartsCollection  string
	OpTimeout        time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// GatewayConfig configures the payment gateway client. SecretKey doubles as
// the webhook signing secret: the gateway signs each delivery with
// HMAC-SHA512 over the raw request body.
type GatewayConfig struct {
	SecretKey       string
	BaseURL         string
	SignatureHeader string
	Timeout         time.Duration
}

// RedirectConfig holds the frontend destinations for the verification redirect.
type RedirectConfig struct {
	SuccessURL string
	FailureURL string
}

type MailConfig struct {
	Enabled     bool
	APIURL      string
	APIKey      string
	FromAddress string
	FromName    string
	Timeout     time.Duration
}

type EventsConfig struct {
	NATSURL string
	Subject string
}

type RedisConfig struct {
	URL string
}

type RateLimitConfig struct {
	InitializeRPM int
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Mongo: MongoConfig{
			URI:              getEnv("MONGO_URI", ""),
			Database:         getEnv("MONGO_DATABASE", "storefront"),
			OrdersCollection: getEnv("MONGO_ORDERS_COLLECTION", "orders"),
			CartsCollection:  getEnv("MONGO_CARTS_COLLECTION", "carts"),
			OpTimeout:        getEnvDuration("MONGO_OP_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Gateway: GatewayConfig{
			SecretKey:       getEnv("GATEWAY_SECRET_KEY", ""),
			BaseURL:         getEnv("GATEWAY_BASE_URL", "https://api.paystack.co"),
			SignatureHeader: getEnv("GATEWAY_SIGNATURE_HEADER", "x-paystack-signature"),
			Timeout:         getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Redirect: RedirectConfig{
			SuccessURL: getEnv("REDIRECT_SUCCESS_URL", "https://shop.example.com/checkout/success"),
			FailureURL: getEnv("REDIRECT_FAILURE_URL", "https://shop.example.com/checkout/failed"),
		},
		Mail: MailConfig{
			Enabled:     getEnvBool("MAIL_ENABLED", false),
			APIURL:      getEnv("MAIL_API_URL", "https://api.sendgrid.com/v3/mail/send"),
			APIKey:      getEnv("MAIL_API_KEY", ""),
			FromAddress: getEnv("MAIL_FROM_ADDRESS", "orders@shop.example.com"),
			FromName:    getEnv("MAIL_FROM_NAME", "Storefront Orders"),
			Timeout:     getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			NATSURL: getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_ORDER_SUBJECT", "order.created"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		RateLimit: RateLimitConfig{
			InitializeRPM: getEnvInt("RATELIMIT_INITIALIZE_RPM", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base URL must not be empty")
	}
	if _, err := url.Parse(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("invalid gateway base URL: %w", err)
	}
	if c.Gateway.SignatureHeader == "" {
		return fmt.Errorf("gateway signature header must not be empty")
	}
	if c.RateLimit.InitializeRPM < 1 {
		return fmt.Errorf("initialize rate limit must be at least 1 rpm")
	}
	if c.Mail.Enabled && c.Mail.APIKey == "" {
		return fmt.Errorf("mail enabled but MAIL_API_KEY not set")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
