package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-service/models"
	"storefront-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultPaymentMethod     = "COD"
	orderNumberAttempts      = 3
	DefaultShippingFee       = 50
	DefaultFreeShippingAbove = 1000
)

// OrderSettings are the pricing and reservation knobs of the order lifecycle.
type OrderSettings struct {
	ReservationTTL        time.Duration
	OrderNumberPrefix     string
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	WhatsAppNumber        string
}

func DefaultOrderSettings() OrderSettings {
	return OrderSettings{
		ReservationTTL:        DefaultReservationTTL,
		OrderNumberPrefix:     DefaultOrderNumberPrefix,
		ShippingFee:           decimal.NewFromInt(DefaultShippingFee),
		FreeShippingThreshold: decimal.NewFromInt(DefaultFreeShippingAbove),
		WhatsAppNumber:        DefaultWhatsAppNumber,
	}
}

// StatusUpdate requests a lifecycle transition. When ExpectedStatus is set the
// order must currently hold it; an order already in NewStatus is treated as
// a duplicate delivery and left untouched.
type StatusUpdate struct {
	OrderID        string
	NewStatus      string
	ExpectedStatus string
}

type StatusChange struct {
	Order     *models.Order
	OldStatus models.OrderStatus
	NewStatus models.OrderStatus
	Applied   bool
}

// OrderService defines the order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, *ServiceError)
	GetOrder(ctx context.Context, id string) (*models.Order, *ServiceError)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, *ServiceError)
	UpdateStatus(ctx context.Context, update StatusUpdate) (*StatusChange, *ServiceError)
}

type orderServiceImpl struct {
	orders       repository.OrderRepository
	products     repository.ProductRepository
	reservations ReservationService
	coupons      CouponRedeemer
	events       EventPublisher
	metrics      MetricsRecorder
	settings     OrderSettings
	links        WhatsAppLinkBuilder
	validator    *requestValidator
	locks        *keyedMutex
	logger       *zap.Logger
}

// NewOrderService creates a new OrderService. coupons, events and metrics may
// be nil; without coupons, orders carrying a coupon code are rejected.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	reservations ReservationService,
	coupons CouponRedeemer,
	events EventPublisher,
	metrics MetricsRecorder,
	settings OrderSettings,
	logger *zap.Logger,
) OrderService {
	if settings.OrderNumberPrefix == "" {
		settings.OrderNumberPrefix = DefaultOrderNumberPrefix
	}
	if settings.ReservationTTL <= 0 {
		settings.ReservationTTL = DefaultReservationTTL
	}
	return &orderServiceImpl{
		orders:       orders,
		products:     products,
		reservations: reservations,
		coupons:      coupons,
		events:       events,
		metrics:      metrics,
		settings:     settings,
		links:        WhatsAppLinkBuilder{Number: settings.WhatsAppNumber},
		validator:    newRequestValidator(),
		locks:        newKeyedMutex(),
		logger:       logger,
	}
}

// CreateOrder reserves stock for every item and persists a PENDING order.
// Either every item is reserved or none is. A coupon is priced against the
// item subtotal and shipping is charged on the discounted amount.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, *ServiceError) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if svcErr := s.validator.check(req); svcErr != nil {
		return nil, svcErr
	}

	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.Int("items", len(req.Items)),
	))
	defer span.End()

	orderID := uuid.New()
	items := make([]models.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for i, in := range req.Items {
		item, svcErr := s.priceItem(ctx, orderID, i, in)
		if svcErr != nil {
			return nil, svcErr
		}
		items = append(items, *item)
		subtotal = subtotal.Add(item.LineTotal)
	}

	discount := decimal.Zero
	var offer *models.Offer
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		if s.coupons == nil {
			return nil, NewInvalidFieldError("coupon_code", "Coupons are not available")
		}
		var svcErr *ServiceError
		if offer, discount, svcErr = s.coupons.RedeemOffer(ctx, code, subtotal, "coupon_code"); svcErr != nil {
			return nil, svcErr
		}
	}
	releaseOffer := func() {
		if offer != nil {
			s.coupons.ReleaseOffer(ctx, offer.ID)
		}
	}

	discounted := subtotal.Sub(discount)
	shipping := s.settings.ShippingFee
	if discounted.GreaterThanOrEqual(s.settings.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	reserved := make([]*models.Reservation, 0, len(items))
	for _, item := range items {
		res, svcErr := s.reservations.Reserve(ctx, ReserveRequest{
			OrderID:   orderID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			TTL:       s.settings.ReservationTTL,
		})
		if svcErr != nil {
			s.rollbackReservations(ctx, orderID, reserved)
			releaseOffer()
			if svcErr.Kind == KindInsufficientStock {
				return nil, NewInsufficientStockError(fmt.Sprintf("Insufficient stock for %s", describeItem(item)))
			}
			return nil, svcErr
		}
		reserved = append(reserved, res)
	}

	paymentMethod := strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}

	order := &models.Order{
		ID:              orderID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   paymentMethod,
		CouponCode:      couponCode(offer),
		Status:          models.OrderStatusPending,
		Subtotal:        subtotal,
		Discount:        discount,
		Shipping:        shipping,
		Total:           discounted.Add(shipping),
		ReservedUntil:   earliestExpiry(reserved),
		Version:         1,
		Items:           items,
	}

	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = generateOrderNumber(s.settings.OrderNumberPrefix, time.Now())
		if err = s.orders.Create(ctx, order); !errors.Is(err, repository.ErrDuplicateKey) {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to persist order", zap.String("order_id", orderID.String()), zap.Error(err))
		s.rollbackReservations(ctx, orderID, reserved)
		releaseOffer()
		return nil, NewInternalError("Failed to create order")
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)))
	recordCount(s.metrics, s.logger, MetricOrdersCreated, nil)
	s.publish(ctx, models.OrderEvent{
		Type:          models.EventOrderCreated,
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		CustomerPhone: order.CustomerPhone,
		NewStatus:     order.Status,
		Total:         order.Total.StringFixed(2),
		Timestamp:     order.CreatedAt,
	})

	return &models.CreateOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		WhatsAppURL: s.links.Link(order),
		Order:       order,
	}, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, id string) (*models.Order, *ServiceError) {
	orderID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, NewNotFoundError("Order not found")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("Order not found")
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", id), zap.Error(err))
		return nil, NewInternalError("Failed to fetch order")
	}
	return order, nil
}

// ListOrders looks orders up by exactly one of phone or order number.
func (s *orderServiceImpl) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, *ServiceError) {
	phone := strings.TrimSpace(filter.Phone)
	number := strings.TrimSpace(filter.OrderNumber)

	var orders []models.Order
	var err error
	switch {
	case phone == "" && number == "":
		return nil, NewMissingFilterError("Provide phone or order_number parameter")
	case phone != "" && number != "":
		return nil, NewInvalidFieldError("order_number", "Provide only one of phone or order_number")
	case phone != "":
		orders, err = s.orders.FindByPhone(ctx, phone)
	default:
		orders, err = s.orders.FindByOrderNumber(ctx, number)
	}
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, NewInternalError("Failed to fetch orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// UpdateStatus applies one lifecycle transition under the order's lock:
// CONFIRMED holds the reservations past their TTL, CANCELLED releases them
// and DELIVERED consumes them.
func (s *orderServiceImpl) UpdateStatus(ctx context.Context, update StatusUpdate) (*StatusChange, *ServiceError) {
	// Payload errors win over lookup errors: a bad status is a 400 even for
	// an unknown order.
	next, ok := models.ParseOrderStatus(update.NewStatus)
	if !ok {
		return nil, NewInvalidFieldError("status", fmt.Sprintf("Invalid status: %q", update.NewStatus))
	}
	var expected models.OrderStatus
	if update.ExpectedStatus != "" {
		if expected, ok = models.ParseOrderStatus(update.ExpectedStatus); !ok {
			return nil, NewInvalidFieldError("old_status", fmt.Sprintf("Invalid status: %q", update.ExpectedStatus))
		}
	}
	orderID, err := uuid.Parse(strings.TrimSpace(update.OrderID))
	if err != nil {
		return nil, NewNotFoundError("Order not found")
	}

	ctx, span := tracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("new_status", string(next)),
	))
	defer span.End()

	unlock := s.locks.Lock(orderID.String())
	defer unlock()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("Order not found")
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, NewInternalError("Failed to update order status")
	}

	current := order.Status
	if expected != "" && current != expected {
		if current == next {
			s.logger.Info("Duplicate status update ignored",
				zap.String("order_id", orderID.String()),
				zap.String("status", string(current)))
			// A redelivery finishes settlement an earlier attempt left behind.
			s.settleReservations(context.WithoutCancel(ctx), order, next)
			return &StatusChange{Order: order, OldStatus: current, NewStatus: next, Applied: false}, nil
		}
		return nil, NewConflictError(fmt.Sprintf("Order status is %s, expected %s", current, expected))
	}
	if !current.CanTransitionTo(next) {
		return nil, NewInvalidTransitionError(current, next)
	}

	// From here the transition runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	heldUntil := order.ReservedUntil
	if next == models.OrderStatusConfirmed {
		if svcErr := s.reservations.HoldOrder(ctx, order.ID); svcErr != nil {
			return nil, svcErr
		}
	}

	now := time.Now()
	order.Status = next
	switch next {
	case models.OrderStatusConfirmed:
		order.ConfirmedAt = &now
		order.ReservedUntil = nil
	case models.OrderStatusShipped:
		order.ShippedAt = &now
	case models.OrderStatusDelivered:
		order.DeliveredAt = &now
	case models.OrderStatusCancelled:
		order.CancelledAt = &now
		order.ReservedUntil = nil
	}

	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		if next == models.OrderStatusConfirmed && heldUntil != nil {
			_ = s.reservations.UnholdOrder(ctx, order.ID, *heldUntil)
		}
		switch {
		case errors.Is(err, repository.ErrOptimisticLock):
			return nil, NewConflictError("Order was modified concurrently")
		case errors.Is(err, repository.ErrNotFound):
			return nil, NewNotFoundError("Order not found")
		}
		span.RecordError(err)
		s.logger.Error("Failed to persist order status",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(next)),
			zap.Error(err))
		return nil, NewInternalError("Failed to update order status")
	}

	s.settleReservations(ctx, order, next)

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("old_status", string(current)),
		zap.String("new_status", string(next)))
	switch next {
	case models.OrderStatusCancelled:
		recordCount(s.metrics, s.logger, MetricOrdersCancelled, nil)
	case models.OrderStatusDelivered:
		recordCount(s.metrics, s.logger, MetricOrdersDelivered, nil)
	}
	s.publish(ctx, models.OrderEvent{
		Type:          models.EventOrderStatusChanged,
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		CustomerPhone: order.CustomerPhone,
		OldStatus:     current,
		NewStatus:     next,
		Total:         order.Total.StringFixed(2),
		Timestamp:     now,
	})

	return &StatusChange{Order: order, OldStatus: current, NewStatus: next, Applied: true}, nil
}

// settleReservations releases (CANCELLED) or consumes (DELIVERED) whatever
// the order still holds. It runs after the status is committed and skips
// reservations that are already settled.
func (s *orderServiceImpl) settleReservations(ctx context.Context, order *models.Order, status models.OrderStatus) {
	var svcErr *ServiceError
	switch status {
	case models.OrderStatusCancelled:
		_, svcErr = s.reservations.ReleaseOrder(ctx, order.ID)
	case models.OrderStatusDelivered:
		_, svcErr = s.reservations.ConsumeOrder(ctx, order.ID)
	}
	if svcErr != nil {
		s.logger.Error("Order reservations left unsettled",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(status)),
			zap.String("error", svcErr.Message))
	}
}

// priceItem resolves the variant an item refers to and snapshots its price.
func (s *orderServiceImpl) priceItem(ctx context.Context, orderID uuid.UUID, idx int, in models.OrderItemInput) (*models.OrderItem, *ServiceError) {
	product, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("Product %s not found", in.ProductID))
		}
		s.logger.Error("Failed to load product for order", zap.String("product_id", in.ProductID.String()), zap.Error(err))
		return nil, NewInternalError("Failed to create order")
	}
	if !product.Active {
		return nil, NewInvalidFieldError(fmt.Sprintf("items[%d].product_id", idx), fmt.Sprintf("Product %s is not available", product.Name))
	}

	variant, svcErr := resolveVariant(product, in, idx)
	if svcErr != nil {
		return nil, svcErr
	}

	unitPrice := variant.UnitPrice(product.BasePrice)
	return &models.OrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   product.ID,
		VariantID:   variant.ID,
		ProductName: product.Name,
		Size:        variant.Size,
		Color:       variant.Color,
		Quantity:    in.Quantity,
		UnitPrice:   unitPrice,
		LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
	}, nil
}

func resolveVariant(product *models.Product, in models.OrderItemInput, idx int) (*models.Variant, *ServiceError) {
	switch {
	case in.VariantID != nil:
		for i := range product.Variants {
			if product.Variants[i].ID == *in.VariantID {
				return &product.Variants[i], nil
			}
		}
		return nil, NewNotFoundError(fmt.Sprintf("Variant %s not found for product %s", *in.VariantID, product.ID))

	case in.Size != "" || in.Color != "":
		var match *models.Variant
		for i := range product.Variants {
			v := &product.Variants[i]
			if in.Size != "" && !strings.EqualFold(v.Size, in.Size) {
				continue
			}
			if in.Color != "" && !strings.EqualFold(v.Color, in.Color) {
				continue
			}
			if match != nil {
				return nil, NewInvalidFieldError(fmt.Sprintf("items[%d].variant_id", idx), "Size and color match more than one variant")
			}
			match = v
		}
		if match == nil {
			return nil, NewNotFoundError(fmt.Sprintf("No variant of %s matches size %q color %q", product.Name, in.Size, in.Color))
		}
		return match, nil

	case len(product.Variants) == 1:
		return &product.Variants[0], nil

	case len(product.Variants) == 0:
		return nil, NewNotFoundError(fmt.Sprintf("Product %s has no variants", product.Name))
	}
	return nil, NewMissingFieldError(fmt.Sprintf("items[%d].variant_id", idx))
}

// rollbackReservations releases what a failed CreateOrder managed to hold.
// It runs detached from ctx so a cancelled request still returns its stock.
func (s *orderServiceImpl) rollbackReservations(ctx context.Context, orderID uuid.UUID, reserved []*models.Reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, res := range reserved {
		if svcErr := s.reservations.Release(ctx, res.ID); svcErr != nil {
			s.logger.Error("Failed to roll back reservation",
				zap.String("order_id", orderID.String()),
				zap.String("reservation_id", res.ID.String()),
				zap.String("error", svcErr.Message))
		}
	}
	if len(reserved) > 0 {
		s.logger.Warn("Order reservations rolled back",
			zap.String("order_id", orderID.String()),
			zap.Int("count", len(reserved)))
	}
}

func (s *orderServiceImpl) publish(ctx context.Context, evt models.OrderEvent) {
	if s.events == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("type", evt.Type),
			zap.String("order_id", evt.OrderID),
			zap.Error(err))
	}
}

func couponCode(offer *models.Offer) string {
	if offer == nil {
		return ""
	}
	return offer.Code
}

func earliestExpiry(reserved []*models.Reservation) *time.Time {
	var earliest *time.Time
	for _, res := range reserved {
		if res.ExpiresAt != nil && (earliest == nil || res.ExpiresAt.Before(*earliest)) {
			t := *res.ExpiresAt
			earliest = &t
		}
	}
	return earliest
}

func describeItem(item models.OrderItem) string {
	var attrs []string
	if item.Size != "" {
		attrs = append(attrs, item.Size)
	}
	if item.Color != "" {
		attrs = append(attrs, item.Color)
	}
	if len(attrs) == 0 {
		return item.ProductName
	}
	return fmt.Sprintf("%s (%s)", item.ProductName, strings.Join(attrs, ", "))
}
