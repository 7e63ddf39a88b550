package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("storefront-service/services")

// Business metric names.
const (
	MetricOrdersCreated       = "OrdersCreated"
	MetricOrdersCancelled     = "OrdersCancelled"
	MetricOrdersDelivered     = "OrdersDelivered"
	MetricInventoryReserved   = "InventoryReserved"
	MetricInventoryReleased   = "InventoryReleased"
	MetricInventoryConsumed   = "InventoryConsumed"
	MetricInventoryOutOfStock = "InventoryOutOfStock"
	MetricReservationsExpired = "ReservationsExpired"
	MetricStatusWebhooks      = "StatusWebhooksProcessed"
	MetricCatalogCacheHits    = "CacheHits"
	MetricCatalogCacheMisses  = "CacheMisses"
	MetricCouponsRedeemed     = "CouponsRedeemed"
)

// MetricsRecorder is satisfied by the CloudWatch metrics client.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// recordCount ships a counter in the background so metric latency never
// reaches the caller.
func recordCount(metrics MetricsRecorder, logger *zap.Logger, name string, dims map[string]string) {
	if metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.RecordCount(ctx, name, dims); err != nil {
			logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
		}
	}()
}
