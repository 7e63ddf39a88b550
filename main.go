package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-service/controllers"
	"storefront-service/kafka"
	"storefront-service/logger"
	"storefront-service/middleware"
	"storefront-service/observability"
	aws_pkg "storefront-service/pkg/aws"
	"storefront-service/repository"
	"storefront-service/routes"
	"storefront-service/services"
)

const (
	serviceName    = "storefront-service"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		bootLog, _ := zap.NewProduction()
		bootLog.Fatal("Config load failed", zap.Error(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- AWS ---
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(rootCtx)
	awsReady := awsErr == nil

	var cwWriter io.Writer
	var cwErr error
	if awsReady && cfg.CloudWatchLogs {
		cwWriter, cwErr = aws_pkg.NewCloudWatchLogsClient(rootCtx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if cwErr != nil {
			cwWriter = nil
		}
	}

	log, err := logger.Initialize(cfg.Env, cwWriter)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if awsErr != nil {
		log.Warn("AWS config unavailable, AWS integrations disabled (non-fatal)", zap.Error(awsErr))
	}
	if cwErr != nil {
		log.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(cwErr))
	}

	shutdownTracing, err := observability.SetupTracing(rootCtx, cfg.OTLPEndpoint, serviceName, serviceVersion)
	if err != nil {
		log.Warn("Tracing disabled (non-fatal)", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// --- Storage ---
	db, err := repository.ConnectPostgres(cfg.Database, log)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}

	var cache services.CatalogCache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, cache = connectRedis(rootCtx, cfg, log)
	}

	var metrics *aws_pkg.MetricsClient
	if awsReady {
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.CloudWatchMetrics)
	}

	events, kafkaProducer := buildEventPublisher(cfg, awsCfg, awsReady, log)

	// --- Service wiring ---
	productRepo := repository.NewGormProductRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	reservationRepo := repository.NewGormReservationRepository(db)
	offerRepo := repository.NewGormOfferRepository(db)

	var recorder services.MetricsRecorder
	if metrics != nil && metrics.IsEnabled() {
		recorder = metrics
	}

	catalogService := services.NewCatalogService(productRepo, cache, recorder, log)
	reservationService := services.NewReservationService(reservationRepo, cache, recorder, cfg.ReservationTTL, log)
	offerService := services.NewOfferService(offerRepo, recorder, log)
	orderService := services.NewOrderService(orderRepo, productRepo, reservationService, offerService, events, recorder, orderSettings(cfg), log)
	webhookService := services.NewWebhookService(orderService, recorder, log)
	cleanupService := services.NewCleanupService(reservationService, orderService, orderRepo, cfg.CleanupCancelExpiredOrders, log)

	if !cfg.Admin.Configured() {
		log.Warn("No admin credentials configured; /cron routes will reject every request")
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if metrics != nil {
		r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	}
	r.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(r, routes.Controllers{
		Products: controllers.NewProductController(catalogService, log),
		Orders:   controllers.NewOrderController(orderService, log),
		Webhooks: controllers.NewWebhookController(webhookService, log),
		Cleanup:  controllers.NewCleanupController(cleanupService, log),
		Offers:   controllers.NewOfferController(offerService, log),
	}, routes.Options{
		Admin:              cfg.Admin,
		ProtectAdminRoutes: cfg.ProtectAdminRoutes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	// --- Background workers ---
	var workers sync.WaitGroup
	if cfg.CleanupInterval > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			services.StartCleanupScheduler(rootCtx, cleanupService, cfg.CleanupInterval, log)
		}()
	}
	if awsReady && cfg.OrderStatusQueueURL != "" {
		consumer := services.NewSQSStatusConsumer(aws_pkg.NewSQSConsumer(awsCfg, cfg.OrderStatusQueueURL, log), webhookService, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			consumer.Start(rootCtx)
		}()
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Storefront service starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	<-rootCtx.Done()
	log.Info("Shutting down storefront service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	workers.Wait()

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Warn("Kafka producer close failed", zap.Error(err))
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := repository.Close(db); err != nil {
		log.Warn("Database close failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}

	log.Info("Storefront service stopped gracefully")
}

func connectRedis(ctx context.Context, cfg *Config, log *zap.Logger) (*redis.Client, services.CatalogCache) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn("Invalid REDIS_URL, catalog cache disabled", zap.Error(err))
		return nil, nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unreachable, catalog cache disabled", zap.Error(err))
		_ = client.Close()
		return nil, nil
	}
	log.Info("Catalog cache enabled", zap.String("addr", opts.Addr), zap.Duration("ttl", cfg.CatalogCacheTTL))
	return client, services.NewRedisCatalogCache(client, cfg.CatalogCacheTTL, log)
}

// buildEventPublisher fans order events out to every configured sink.
func buildEventPublisher(cfg *Config, awsCfg sdkaws.Config, awsReady bool, log *zap.Logger) (services.EventPublisher, *kafka.Producer) {
	var sinks services.FanoutPublisher
	if awsReady && cfg.OrderEventsTopicArn != "" {
		sinks = append(sinks, services.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.OrderEventsTopicArn))
	}

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic, log)
		sinks = append(sinks, producer)
	}

	if len(sinks) == 0 {
		log.Info("No order event sinks configured")
		return nil, nil
	}
	return sinks, producer
}

func orderSettings(cfg *Config) services.OrderSettings {
	return services.OrderSettings{
		ReservationTTL:        cfg.ReservationTTL,
		OrderNumberPrefix:     cfg.OrderNumberPrefix,
		ShippingFee:           cfg.ShippingFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		WhatsAppNumber:        cfg.WhatsAppNumber,
	}
}
