package controllers

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-service/models"
	"storefront-service/services"
)

type mockCatalogService struct {
	ListProductsFunc  func(ctx context.Context, filter models.ProductFilter) ([]models.Product, *services.ServiceError)
	GetProductFunc    func(ctx context.Context, id string) (*models.Product, *services.ServiceError)
	CreateProductFunc func(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *services.ServiceError)
	UpdateProductFunc func(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *services.ServiceError)
	DeleteProductFunc func(ctx context.Context, id string) *services.ServiceError
}

func (m *mockCatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, *services.ServiceError) {
	return m.ListProductsFunc(ctx, filter)
}

func (m *mockCatalogService) GetProduct(ctx context.Context, id string) (*models.Product, *services.ServiceError) {
	return m.GetProductFunc(ctx, id)
}

func (m *mockCatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *services.ServiceError) {
	return m.CreateProductFunc(ctx, req)
}

func (m *mockCatalogService) UpdateProduct(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *services.ServiceError) {
	return m.UpdateProductFunc(ctx, id, req)
}

func (m *mockCatalogService) DeleteProduct(ctx context.Context, id string) *services.ServiceError {
	return m.DeleteProductFunc(ctx, id)
}

type mockOrderService struct {
	CreateOrderFunc  func(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, *services.ServiceError)
	GetOrderFunc     func(ctx context.Context, id string) (*models.Order, *services.ServiceError)
	ListOrdersFunc   func(ctx context.Context, filter models.OrderFilter) ([]models.Order, *services.ServiceError)
	UpdateStatusFunc func(ctx context.Context, update services.StatusUpdate) (*services.StatusChange, *services.ServiceError)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, *services.ServiceError) {
	return m.CreateOrderFunc(ctx, req)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id string) (*models.Order, *services.ServiceError) {
	return m.GetOrderFunc(ctx, id)
}

func (m *mockOrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, *services.ServiceError) {
	return m.ListOrdersFunc(ctx, filter)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, update services.StatusUpdate) (*services.StatusChange, *services.ServiceError) {
	return m.UpdateStatusFunc(ctx, update)
}

type mockWebhookService struct {
	HandleStatusWebhookFunc func(ctx context.Context, req *models.StatusWebhookRequest) (*models.StatusWebhookResponse, *services.ServiceError)
}

func (m *mockWebhookService) HandleStatusWebhook(ctx context.Context, req *models.StatusWebhookRequest) (*models.StatusWebhookResponse, *services.ServiceError) {
	return m.HandleStatusWebhookFunc(ctx, req)
}

type mockCleanupService struct {
	RunCleanupFunc func(ctx context.Context) (*models.CleanupResult, *services.ServiceError)
}

func (m *mockCleanupService) RunCleanup(ctx context.Context) (*models.CleanupResult, *services.ServiceError) {
	return m.RunCleanupFunc(ctx)
}

type mockOfferService struct {
	ListLiveOffersFunc func(ctx context.Context) ([]models.Offer, *services.ServiceError)
	ListOffersFunc     func(ctx context.Context) ([]models.Offer, *services.ServiceError)
	CreateOfferFunc    func(ctx context.Context, req *models.CreateOfferRequest) (*models.Offer, *services.ServiceError)
	SetOfferActiveFunc func(ctx context.Context, id string, active bool) (*models.Offer, *services.ServiceError)
	ValidateOfferFunc  func(ctx context.Context, req *models.ValidateOfferRequest) (*models.ValidateOfferResponse, *services.ServiceError)
}

func (m *mockOfferService) ListLiveOffers(ctx context.Context) ([]models.Offer, *services.ServiceError) {
	return m.ListLiveOffersFunc(ctx)
}

func (m *mockOfferService) ListOffers(ctx context.Context) ([]models.Offer, *services.ServiceError) {
	return m.ListOffersFunc(ctx)
}

func (m *mockOfferService) CreateOffer(ctx context.Context, req *models.CreateOfferRequest) (*models.Offer, *services.ServiceError) {
	return m.CreateOfferFunc(ctx, req)
}

func (m *mockOfferService) SetOfferActive(ctx context.Context, id string, active bool) (*models.Offer, *services.ServiceError) {
	return m.SetOfferActiveFunc(ctx, id, active)
}

func (m *mockOfferService) ValidateOffer(ctx context.Context, req *models.ValidateOfferRequest) (*models.ValidateOfferResponse, *services.ServiceError) {
	return m.ValidateOfferFunc(ctx, req)
}

func (m *mockOfferService) RedeemOffer(context.Context, string, decimal.Decimal, string) (*models.Offer, decimal.Decimal, *services.ServiceError) {
	return nil, decimal.Zero, services.NewInternalError("not used by controllers")
}

func (m *mockOfferService) ReleaseOffer(context.Context, uuid.UUID) {}
