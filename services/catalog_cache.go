package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront-service/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	catalogVersionKey = "catalog:version"
	DefaultCatalogTTL = 5 * time.Minute
	noCacheVersion    = int64(-1)
)

// CatalogCache caches catalog reads. Entries are keyed by a global version;
// Get returns the version it observed and Set must be given that version so
// a write that raced an invalidation lands on a key nobody reads any more.
type CatalogCache interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, int64, bool)
	SetProduct(ctx context.Context, version int64, product *models.Product)
	GetProductList(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, bool)
	SetProductList(ctx context.Context, version int64, filter models.ProductFilter, products []models.Product)
	InvalidateProduct(ctx context.Context, id uuid.UUID)
}

type noopCatalogCache struct{}

func (noopCatalogCache) GetProduct(context.Context, uuid.UUID) (*models.Product, int64, bool) {
	return nil, noCacheVersion, false
}
func (noopCatalogCache) SetProduct(context.Context, int64, *models.Product) {}
func (noopCatalogCache) GetProductList(context.Context, models.ProductFilter) ([]models.Product, int64, bool) {
	return nil, noCacheVersion, false
}
func (noopCatalogCache) SetProductList(context.Context, int64, models.ProductFilter, []models.Product) {}
func (noopCatalogCache) InvalidateProduct(context.Context, uuid.UUID) {}

// RedisCatalogCache is the Redis backed CatalogCache.
type RedisCatalogCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCatalogCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &RedisCatalogCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCatalogCache) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, int64, bool) {
	version, ok := c.version(ctx)
	if !ok {
		return nil, noCacheVersion, false
	}
	var product models.Product
	if !c.get(ctx, productCacheKey(version, id), &product) {
		return nil, version, false
	}
	return &product, version, true
}

func (c *RedisCatalogCache) SetProduct(ctx context.Context, version int64, product *models.Product) {
	if version < 0 {
		return
	}
	c.set(ctx, productCacheKey(version, product.ID), product)
}

func (c *RedisCatalogCache) GetProductList(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, bool) {
	version, ok := c.version(ctx)
	if !ok {
		return nil, noCacheVersion, false
	}
	var products []models.Product
	if !c.get(ctx, productListCacheKey(version, filter), &products) {
		return nil, version, false
	}
	return products, version, true
}

func (c *RedisCatalogCache) SetProductList(ctx context.Context, version int64, filter models.ProductFilter, products []models.Product) {
	if version < 0 {
		return
	}
	c.set(ctx, productListCacheKey(version, filter), products)
}

// InvalidateProduct bumps the catalog version, orphaning every cached entry.
func (c *RedisCatalogCache) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	if err := c.client.Incr(ctx, catalogVersionKey).Err(); err != nil {
		c.logger.Error("Failed to invalidate catalog cache", zap.String("product_id", id.String()), zap.Error(err))
	}
}

func (c *RedisCatalogCache) version(ctx context.Context) (int64, bool) {
	v, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		c.logger.Warn("Catalog cache unavailable", zap.Error(err))
		return 0, false
	}
	return v, true
}

func (c *RedisCatalogCache) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("Failed to unmarshal cached catalog entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *RedisCatalogCache) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal catalog entry for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache catalog entry", zap.String("key", key), zap.Error(err))
	}
}

func productCacheKey(version int64, id uuid.UUID) string {
	return fmt.Sprintf("catalog:v%d:product:%s", version, id)
}

func productListCacheKey(version int64, filter models.ProductFilter) string {
	active := "any"
	if filter.Active != nil {
		active = strconv.FormatBool(*filter.Active)
	}
	return fmt.Sprintf("catalog:v%d:products:%s:%s:%s",
		version,
		strings.ToLower(filter.MainCategory),
		strings.ToLower(filter.Category),
		active,
	)
}
