package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront-service/models"
	"storefront-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService defines the interface for product and variant management.
type CatalogService interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, *ServiceError)
	GetProduct(ctx context.Context, id string) (*models.Product, *ServiceError)
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *ServiceError)
	UpdateProduct(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *ServiceError)
	DeleteProduct(ctx context.Context, id string) *ServiceError
}

type catalogServiceImpl struct {
	repo      repository.ProductRepository
	cache     CatalogCache
	metrics   MetricsRecorder
	validator *requestValidator
	logger    *zap.Logger
}

// NewCatalogService creates a new CatalogService. cache and metrics may be nil.
func NewCatalogService(
	repo repository.ProductRepository,
	cache CatalogCache,
	metrics MetricsRecorder,
	logger *zap.Logger,
) CatalogService {
	if cache == nil {
		cache = noopCatalogCache{}
	}
	return &catalogServiceImpl{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: newRequestValidator(),
		logger:    logger,
	}
}

// ParseProductFilter builds a filter from query values. active must be empty
// or a boolean.
func ParseProductFilter(mainCategory, category, active string) (models.ProductFilter, *ServiceError) {
	filter := models.ProductFilter{
		MainCategory: strings.TrimSpace(mainCategory),
		Category:     strings.TrimSpace(category),
	}
	if active = strings.TrimSpace(active); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return filter, NewInvalidFieldError("active", "active must be true or false")
		}
		filter.Active = &v
	}
	return filter, nil
}

func (s *catalogServiceImpl) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, *ServiceError) {
	cached, version, ok := s.cache.GetProductList(ctx, filter)
	if ok {
		recordCount(s.metrics, s.logger, MetricCatalogCacheHits, map[string]string{"Cache": "products"})
		return cached, nil
	}

	products, err := s.repo.Find(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, NewInternalError("Failed to fetch products")
	}
	recordCount(s.metrics, s.logger, MetricCatalogCacheMisses, map[string]string{"Cache": "products"})
	s.cache.SetProductList(ctx, version, filter, products)
	return products, nil
}

func (s *catalogServiceImpl) GetProduct(ctx context.Context, id string) (*models.Product, *ServiceError) {
	productID, svcErr := parseProductID(id)
	if svcErr != nil {
		return nil, svcErr
	}

	cached, version, ok := s.cache.GetProduct(ctx, productID)
	if ok {
		recordCount(s.metrics, s.logger, MetricCatalogCacheHits, map[string]string{"Cache": "product"})
		return cached, nil
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("Product not found")
		}
		s.logger.Error("Failed to fetch product", zap.String("product_id", id), zap.Error(err))
		return nil, NewInternalError("Failed to fetch product")
	}
	recordCount(s.metrics, s.logger, MetricCatalogCacheMisses, map[string]string{"Cache": "product"})
	s.cache.SetProduct(ctx, version, product)
	return product, nil
}

func (s *catalogServiceImpl) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *ServiceError) {
	req.Name = strings.TrimSpace(req.Name)
	if svcErr := s.validator.check(req); svcErr != nil {
		return nil, svcErr
	}
	if req.BasePrice.IsNegative() {
		return nil, NewInvalidFieldError("base_price", "base_price must not be negative")
	}
	if svcErr := validateVariantInputs(req.Variants); svcErr != nil {
		return nil, svcErr
	}

	now := time.Now()
	base := slugify(req.Slug)
	if base == "" {
		base = slugify(req.Name)
	}

	product := &models.Product{
		ID:           uuid.New(),
		Name:         req.Name,
		Slug:         uniqueSlug(base, now),
		Description:  req.Description,
		BasePrice:    *req.BasePrice,
		MainCategory: strings.TrimSpace(req.MainCategory),
		Category:     strings.TrimSpace(req.Category),
		Active:       true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	product.Variants = buildVariants(product, req.Variants, now)

	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewConflictError("A product with this slug or SKU already exists")
		}
		s.logger.Error("Failed to create product", zap.String("name", product.Name), zap.Error(err))
		return nil, NewInternalError("Failed to create product")
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("slug", product.Slug),
		zap.Int("variants", len(product.Variants)))
	s.cache.InvalidateProduct(ctx, product.ID)
	return product, nil
}

func (s *catalogServiceImpl) UpdateProduct(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *ServiceError) {
	productID, svcErr := parseProductID(id)
	if svcErr != nil {
		return nil, svcErr
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("Product not found")
		}
		s.logger.Error("Failed to fetch product for update", zap.String("product_id", id), zap.Error(err))
		return nil, NewInternalError("Failed to update product")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewInvalidFieldError("name", "name must not be empty")
		}
		product.Name = name
	}
	if req.Slug != nil {
		slug := slugify(*req.Slug)
		if slug == "" {
			return nil, NewInvalidFieldError("slug", "slug must not be empty")
		}
		product.Slug = slug
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.BasePrice != nil {
		if req.BasePrice.IsNegative() {
			return nil, NewInvalidFieldError("base_price", "base_price must not be negative")
		}
		product.BasePrice = *req.BasePrice
	}
	if req.MainCategory != nil {
		product.MainCategory = strings.TrimSpace(*req.MainCategory)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	replaceVariants := req.Variants != nil
	if replaceVariants {
		if svcErr := validateVariantInputs(*req.Variants); svcErr != nil {
			return nil, svcErr
		}
		product.Variants = buildVariants(product, *req.Variants, time.Now())
	}

	if err := s.repo.Update(ctx, product, replaceVariants); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, NewNotFoundError("Product not found")
		case errors.Is(err, repository.ErrActiveReservations):
			return nil, NewConflictError("Variants cannot be replaced while the product has active reservations")
		case errors.Is(err, repository.ErrDuplicateKey):
			return nil, NewConflictError("A product with this slug or SKU already exists")
		}
		s.logger.Error("Failed to update product", zap.String("product_id", id), zap.Error(err))
		return nil, NewInternalError("Failed to update product")
	}
	s.cache.InvalidateProduct(ctx, productID)

	updated, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		s.logger.Error("Failed to reload product after update", zap.String("product_id", id), zap.Error(err))
		return nil, NewInternalError("Failed to update product")
	}

	s.logger.Info("Product updated", zap.String("product_id", id), zap.Bool("variants_replaced", replaceVariants))
	return updated, nil
}

func (s *catalogServiceImpl) DeleteProduct(ctx context.Context, id string) *ServiceError {
	productID, svcErr := parseProductID(id)
	if svcErr != nil {
		return svcErr
	}

	if err := s.repo.Delete(ctx, productID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewNotFoundError("Product not found")
		case errors.Is(err, repository.ErrActiveReservations):
			return NewConflictError("Product has active reservations and cannot be deleted")
		}
		s.logger.Error("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		return NewInternalError("Failed to delete product")
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))
	s.cache.InvalidateProduct(ctx, productID)
	return nil
}

// parseProductID treats malformed ids as unknown products.
func parseProductID(id string) (uuid.UUID, *ServiceError) {
	productID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, NewNotFoundError("Product not found")
	}
	return productID, nil
}

func validateVariantInputs(inputs []models.VariantInput) *ServiceError {
	for i, v := range inputs {
		if v.Quantity() < 0 {
			return NewInvalidFieldError(fmt.Sprintf("variants[%d].stock", i), "stock must not be negative")
		}
		if v.Price != nil && v.Price.IsNegative() {
			return NewInvalidFieldError(fmt.Sprintf("variants[%d].price", i), "price must not be negative")
		}
	}
	return nil
}

func buildVariants(product *models.Product, inputs []models.VariantInput, now time.Time) []models.Variant {
	variants := make([]models.Variant, 0, len(inputs))
	for i, in := range inputs {
		sku := strings.TrimSpace(in.SKU)
		if sku == "" {
			sku = fmt.Sprintf("%s-%s-%d", product.Slug, strconv.FormatInt(now.UnixMilli(), 36), i)
		}
		v := models.Variant{
			ID:        uuid.New(),
			ProductID: product.ID,
			SKU:       sku,
			Size:      strings.TrimSpace(in.Size),
			Color:     strings.TrimSpace(in.Color),
			StockQty:  in.Quantity(),
		}
		if in.Price != nil {
			v.Price = decimal.NullDecimal{Decimal: *in.Price, Valid: true}
		}
		variants = append(variants, v)
	}
	return variants
}
