package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/models"
)

func seedOffer(t *testing.T, h *harness, o models.Offer) models.Offer {
	t.Helper()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.ValidFrom.IsZero() {
		o.ValidFrom = time.Now().Add(-time.Hour)
	}
	require.NoError(t, h.offerRepo.Create(context.Background(), &o))
	return o
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCreateOffer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	offer, svcErr := h.offers.CreateOffer(ctx, &models.CreateOfferRequest{
		Title:         " Festive sale ",
		Code:          " festive20 ",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(20),
		MaxDiscount:   decPtr("300"),
	})
	require.Nil(t, svcErr)
	assert.Equal(t, "FESTIVE20", offer.Code)
	assert.Equal(t, "Festive sale", offer.Title)
	assert.True(t, offer.Active)
	assert.True(t, offer.MaxDiscount.Valid)
	assert.False(t, offer.MinOrderValue.Valid)
	assert.WithinDuration(t, time.Now(), offer.ValidFrom, time.Minute)

	_, svcErr = h.offers.CreateOffer(ctx, &models.CreateOfferRequest{
		Title:         "Again",
		Code:          "Festive20",
		DiscountType:  models.DiscountFixed,
		DiscountValue: decimal.NewFromInt(50),
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, KindConflict, svcErr.Kind)
}

func TestCreateOffer_Validation(t *testing.T) {
	valid := func() *models.CreateOfferRequest {
		return &models.CreateOfferRequest{
			Title:         "Welcome",
			Code:          "WELCOME",
			DiscountType:  models.DiscountFixed,
			DiscountValue: decimal.NewFromInt(100),
		}
	}
	tests := []struct {
		name   string
		mutate func(*models.CreateOfferRequest)
		field  string
		reason Reason
	}{
		{"missing title", func(r *models.CreateOfferRequest) { r.Title = " " }, "title", ReasonMissingField},
		{"short code", func(r *models.CreateOfferRequest) { r.Code = "AB" }, "code", ReasonInvalidField},
		{"unknown type", func(r *models.CreateOfferRequest) { r.DiscountType = "bogo" }, "discount_type", ReasonInvalidField},
		{"zero value", func(r *models.CreateOfferRequest) { r.DiscountValue = decimal.Zero }, "discount_value", ReasonInvalidField},
		{"percentage over 100", func(r *models.CreateOfferRequest) {
			r.DiscountType = models.DiscountPercentage
			r.DiscountValue = decimal.NewFromInt(101)
		}, "discount_value", ReasonInvalidField},
		{"negative minimum", func(r *models.CreateOfferRequest) { r.MinOrderValue = decPtr("-1") }, "min_order_value", ReasonInvalidField},
		{"zero cap", func(r *models.CreateOfferRequest) { r.MaxDiscount = decPtr("0") }, "max_discount", ReasonInvalidField},
		{"negative usage limit", func(r *models.CreateOfferRequest) { r.UsageLimit = -1 }, "usage_limit", ReasonInvalidField},
		{"window ends before it starts", func(r *models.CreateOfferRequest) {
			r.ValidFrom = timePtr(time.Now())
			r.ValidTill = timePtr(time.Now().Add(-time.Hour))
		}, "valid_till", ReasonInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			req := valid()
			tt.mutate(req)
			_, svcErr := h.offers.CreateOffer(context.Background(), req)
			require.NotNil(t, svcErr)
			assert.Equal(t, KindValidation, svcErr.Kind)
			assert.Equal(t, tt.field, svcErr.Field)
			assert.Equal(t, tt.reason, svcErr.Reason)
		})
	}
}

func TestListLiveOffers_NewestThreeInWindow(t *testing.T) {
	h := newHarness()
	now := time.Now()
	for _, code := range []string{"ONE", "TWO", "THREE", "FOUR"} {
		seedOffer(t, h, models.Offer{Code: code, DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(10), Active: true})
	}
	seedOffer(t, h, models.Offer{Code: "PAUSED", Active: false})
	seedOffer(t, h, models.Offer{Code: "LATER", Active: true, ValidFrom: now.Add(time.Hour)})
	seedOffer(t, h, models.Offer{Code: "OVER", Active: true, ValidTill: timePtr(now.Add(-time.Minute))})

	offers, svcErr := h.offers.ListLiveOffers(context.Background())
	require.Nil(t, svcErr)
	codes := make([]string, 0, len(offers))
	for _, o := range offers {
		codes = append(codes, o.Code)
	}
	assert.Equal(t, []string{"FOUR", "THREE", "TWO"}, codes)

	all, svcErr := h.offers.ListOffers(context.Background())
	require.Nil(t, svcErr)
	assert.Len(t, all, 7)
}

func TestValidateOffer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	now := time.Now()
	seedOffer(t, h, models.Offer{Code: "WELCOME10", Title: "Welcome", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(10), Active: true})
	seedOffer(t, h, models.Offer{Code: "FLAT500", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(500), Active: true})
	seedOffer(t, h, models.Offer{Code: "BIGSPEND", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100), Active: true,
		MinOrderValue: decimal.NewNullDecimal(decimal.NewFromInt(2000))})
	seedOffer(t, h, models.Offer{Code: "EXPIRED", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100), Active: true,
		ValidTill: timePtr(now.Add(-time.Hour))})
	seedOffer(t, h, models.Offer{Code: "SOON", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100), Active: true,
		ValidFrom: now.Add(time.Hour)})
	seedOffer(t, h, models.Offer{Code: "PAUSED", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100)})
	seedOffer(t, h, models.Offer{Code: "USEDUP", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100), Active: true,
		UsageLimit: 2, UsedCount: 2})

	validate := func(code string, subtotal int64) (*models.ValidateOfferResponse, *ServiceError) {
		return h.offers.ValidateOffer(ctx, &models.ValidateOfferRequest{Code: code, Subtotal: decimal.NewFromInt(subtotal)})
	}

	t.Run("percentage", func(t *testing.T) {
		out, svcErr := validate("welcome10", 845)
		require.Nil(t, svcErr)
		assert.True(t, out.Valid)
		assert.Equal(t, "WELCOME10", out.Offer.Code)
		assert.Equal(t, "85", out.Discount.Amount.String())
		assert.Equal(t, "760", out.FinalTotal.String())
		// Validation does not use the coupon up.
		assert.Equal(t, 0, h.offerRepo.offer("WELCOME10").UsedCount)
	})

	t.Run("fixed discount capped at subtotal", func(t *testing.T) {
		out, svcErr := validate("FLAT500", 300)
		require.Nil(t, svcErr)
		assert.Equal(t, "300", out.Discount.Amount.String())
		assert.True(t, out.FinalTotal.IsZero())
	})

	tests := []struct {
		name   string
		code   string
		total  int64
		kind   ErrorKind
		field  string
		reason Reason
	}{
		{"missing code", " ", 500, KindValidation, "code", ReasonMissingField},
		{"missing subtotal", "WELCOME10", 0, KindValidation, "subtotal", ReasonInvalidField},
		{"unknown code", "NOPE", 500, KindNotFound, "", ""},
		{"inactive", "PAUSED", 500, KindNotFound, "", ""},
		{"not started", "SOON", 500, KindNotFound, "", ""},
		{"expired", "EXPIRED", 500, KindValidation, "code", ReasonInvalidField},
		{"usage limit", "USEDUP", 500, KindValidation, "code", ReasonInvalidField},
		{"below minimum", "BIGSPEND", 1999, KindValidation, "code", ReasonInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svcErr := validate(tt.code, tt.total)
			require.NotNil(t, svcErr)
			assert.Equal(t, tt.kind, svcErr.Kind)
			assert.Equal(t, tt.field, svcErr.Field)
			assert.Equal(t, tt.reason, svcErr.Reason)
		})
	}

	t.Run("lookup failure", func(t *testing.T) {
		h.offerRepo.FindErr = errBoom
		defer func() { h.offerRepo.FindErr = nil }()
		_, svcErr := validate("WELCOME10", 500)
		require.NotNil(t, svcErr)
		assert.Equal(t, KindInternal, svcErr.Kind)
	})
}

func TestSetOfferActive(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := seedOffer(t, h, models.Offer{Code: "WELCOME10", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(10), Active: true})

	updated, svcErr := h.offers.SetOfferActive(ctx, o.ID.String(), false)
	require.Nil(t, svcErr)
	assert.False(t, updated.Active)

	_, svcErr = h.offers.ValidateOffer(ctx, &models.ValidateOfferRequest{Code: "WELCOME10", Subtotal: decimal.NewFromInt(100)})
	require.NotNil(t, svcErr)
	assert.Equal(t, KindNotFound, svcErr.Kind)

	_, svcErr = h.offers.SetOfferActive(ctx, uuid.NewString(), true)
	require.NotNil(t, svcErr)
	assert.Equal(t, KindNotFound, svcErr.Kind)
	_, svcErr = h.offers.SetOfferActive(ctx, "not-a-uuid", true)
	require.NotNil(t, svcErr)
	assert.Equal(t, KindNotFound, svcErr.Kind)
}

func TestCreateOrder_AppliesCoupon(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	seedOffer(t, h, models.Offer{Code: "WELCOME10", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(10), Active: true})
	p := h.store.seedProduct("Silk Kurta", 1050, 5)

	req := orderRequest(item(p, 0, 1))
	req.CouponCode = "welcome10"
	resp, svcErr := h.orders.CreateOrder(ctx, req)
	require.Nil(t, svcErr)

	order := resp.Order
	assert.Equal(t, "WELCOME10", order.CouponCode)
	assert.Equal(t, "1050", order.Subtotal.String())
	assert.Equal(t, "105", order.Discount.String())
	// 945 after discount is below the free-shipping threshold.
	assert.Equal(t, "50", order.Shipping.String())
	assert.Equal(t, "995", order.Total.String())
	assert.Equal(t, 1, h.offerRepo.offer("WELCOME10").UsedCount)
}

func TestCreateOrder_CouponErrors(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	seedOffer(t, h, models.Offer{Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100), Active: true, UsageLimit: 1})
	p := h.store.seedProduct("Cotton Tee", 300, 2)

	req := orderRequest(item(p, 0, 1))
	req.CouponCode = "MISSING"
	_, svcErr := h.orders.CreateOrder(ctx, req)
	require.NotNil(t, svcErr)
	assert.Equal(t, KindNotFound, svcErr.Kind)
	assert.Equal(t, 2, h.store.variant(p.Variants[0].ID).StockQty)

	// A failed reservation gives the redemption back.
	req = orderRequest(item(p, 0, 3))
	req.CouponCode = "ONCE"
	_, svcErr = h.orders.CreateOrder(ctx, req)
	require.NotNil(t, svcErr)
	assert.Equal(t, KindInsufficientStock, svcErr.Kind)
	assert.Equal(t, 0, h.offerRepo.offer("ONCE").UsedCount)

	req = orderRequest(item(p, 0, 1))
	req.CouponCode = "ONCE"
	resp, svcErr := h.orders.CreateOrder(ctx, req)
	require.Nil(t, svcErr)
	assert.Equal(t, "250", resp.Order.Total.String())

	req = orderRequest(item(p, 0, 1))
	req.CouponCode = "ONCE"
	_, svcErr = h.orders.CreateOrder(ctx, req)
	require.NotNil(t, svcErr)
	assert.Equal(t, "coupon_code", svcErr.Field)
	assert.Equal(t, 1, h.store.variant(p.Variants[0].ID).StockQty)
}

func TestCreateOrder_CouponWithoutOffers(t *testing.T) {
	h := newHarness()
	orders := NewOrderService(h.orderRepo, h.products, h.reservations, nil, nil, nil, DefaultOrderSettings(), h.logger)
	p := h.store.seedProduct("Cotton Tee", 300, 2)

	req := orderRequest(item(p, 0, 1))
	req.CouponCode = "WELCOME10"
	_, svcErr := orders.CreateOrder(context.Background(), req)
	require.NotNil(t, svcErr)
	assert.Equal(t, "coupon_code", svcErr.Field)
}
