package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"storefront-service/middleware"
	aws_pkg "storefront-service/pkg/aws"
	"storefront-service/repository"
	"storefront-service/services"
)

type Config struct {
	Port string
	Env  string

	Database repository.DatabaseConfig

	RedisURL        string
	CatalogCacheTTL time.Duration

	ReservationTTL             time.Duration
	CleanupInterval            time.Duration
	CleanupCancelExpiredOrders bool

	Admin              middleware.AdminCredentials
	ProtectAdminRoutes bool

	OrderNumberPrefix     string
	WhatsAppNumber        string
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal

	OrderEventsTopicArn string
	KafkaBrokers        []string
	OrderEventsTopic    string
	OrderStatusQueueURL string

	OTLPEndpoint       string
	CloudWatchLogs     bool
	CloudWatchMetrics  bool
	CloudWatchLogGroup string
	MetricsNamespace   string

	RateLimitPerMinute int
	RateLimitBurst     int
	CORSOrigins        []string
}

// secretsSource is the subset of the Secrets Manager client LoadConfig uses.
type secretsSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

const (
	dbSecretName    = "storefront/DB_CREDENTIALS"
	adminSecretName = "storefront/ADMIN_CREDENTIALS"
)

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var secrets secretsSource
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			secrets = aws_pkg.NewSecretsClient(awsCfg)
		}
	}
	return loadConfig(context.Background(), secrets)
}

func loadConfig(ctx context.Context, secrets secretsSource) (*Config, error) {
	var errs []string
	duration := func(key string, fallback time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return fallback
		}
		return d
	}
	amount := func(key string, fallback int64) decimal.Decimal {
		raw := os.Getenv(key)
		if raw == "" {
			return decimal.NewFromInt(fallback)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			errs = append(errs, fmt.Sprintf("%s: invalid amount %q", key, raw))
			return decimal.NewFromInt(fallback)
		}
		return d
	}
	integer := func(key string, fallback int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return fallback
		}
		return n
	}

	cfg := &Config{
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("ENV", "development"),
		Database: repository.DatabaseConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		},
		RedisURL:                   os.Getenv("REDIS_URL"),
		CatalogCacheTTL:            duration("CATALOG_CACHE_TTL", services.DefaultCatalogTTL),
		ReservationTTL:             duration("RESERVATION_TTL", services.DefaultReservationTTL),
		CleanupInterval:            duration("CLEANUP_INTERVAL", 0),
		CleanupCancelExpiredOrders: getEnv("CLEANUP_CANCEL_EXPIRED_ORDERS", "true") == "true",
		Admin: middleware.AdminCredentials{
			CronSecret: os.Getenv("CRON_SECRET"),
			JWTSecret:  strings.TrimSpace(os.Getenv("JWT_SECRET")),
			Username:   os.Getenv("ADMIN_USERNAME"),
			Password:   os.Getenv("ADMIN_PASSWORD"),
		},
		ProtectAdminRoutes:    os.Getenv("PROTECT_ADMIN_ROUTES") == "true",
		OrderNumberPrefix:     getEnv("ORDER_NUMBER_PREFIX", services.DefaultOrderNumberPrefix),
		WhatsAppNumber:        getEnv("WHATSAPP_NUMBER", services.DefaultWhatsAppNumber),
		ShippingFee:           amount("SHIPPING_FEE", services.DefaultShippingFee),
		FreeShippingThreshold: amount("FREE_SHIPPING_THRESHOLD", services.DefaultFreeShippingAbove),
		OrderEventsTopicArn:   os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:      getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		OrderStatusQueueURL:   os.Getenv("ORDER_STATUS_QUEUE_URL"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CloudWatchLogs:        os.Getenv("CLOUDWATCH_LOGS_ENABLED") == "true",
		CloudWatchMetrics:     os.Getenv("CLOUDWATCH_METRICS_ENABLED") == "true",
		CloudWatchLogGroup:    getEnv("CLOUDWATCH_LOG_GROUP", "/storefront/services"),
		MetricsNamespace:      getEnv("CLOUDWATCH_METRICS_NAMESPACE", aws_pkg.DefaultMetricsNamespace),
		RateLimitPerMinute:    integer("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:        integer("RATE_LIMIT_BURST", 50),
		CORSOrigins:           splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if secrets != nil {
		applySecrets(ctx, cfg, secrets)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	if cfg.Database.User == "" || cfg.Database.Password == "" || cfg.Database.Name == "" || cfg.Database.Host == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.ProtectAdminRoutes && !cfg.Admin.Configured() {
		return nil, fmt.Errorf("PROTECT_ADMIN_ROUTES requires CRON_SECRET, JWT_SECRET or ADMIN_USERNAME/ADMIN_PASSWORD")
	}
	return cfg, nil
}

// applySecrets overrides credentials with values from Secrets Manager. A
// missing secret keeps the environment value.
func applySecrets(ctx context.Context, cfg *Config, secrets secretsSource) {
	if m, err := secrets.GetSecretMap(ctx, dbSecretName); err == nil {
		override(&cfg.Database.User, m["POSTGRES_USER"])
		override(&cfg.Database.Password, m["POSTGRES_PASSWORD"])
		override(&cfg.Database.Name, m["POSTGRES_DB"])
		override(&cfg.Database.Host, m["POSTGRES_HOST"])
		override(&cfg.Database.Port, m["POSTGRES_PORT"])
	}
	if m, err := secrets.GetSecretMap(ctx, adminSecretName); err == nil {
		override(&cfg.Admin.CronSecret, m["CRON_SECRET"])
		override(&cfg.Admin.JWTSecret, m["JWT_SECRET"])
		override(&cfg.Admin.Username, m["ADMIN_USERNAME"])
		override(&cfg.Admin.Password, m["ADMIN_PASSWORD"])
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
