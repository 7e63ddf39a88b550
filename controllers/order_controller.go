package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/models"
	"storefront-service/services"
)

type OrderController struct {
	service services.OrderService
	logger  *zap.Logger
}

func NewOrderController(service services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{service: service, logger: logger}
}

// CreateOrder reserves stock for every item and returns the order with a
// WhatsApp link for the customer.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, svcErr := oc.service.CreateOrder(c.Request.Context(), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListOrders requires exactly one of phone or order_number.
func (oc *OrderController) ListOrders(c *gin.Context) {
	filter := models.OrderFilter{
		Phone:       c.Query("phone"),
		OrderNumber: c.Query("order_number"),
	}
	orders, svcErr := oc.service.ListOrders(c.Request.Context(), filter)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	order, svcErr := oc.service.GetOrder(c.Request.Context(), c.Param("id"))
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		respondError(c, services.NewMissingFieldError("status"))
		return
	}

	change, svcErr := oc.service.UpdateStatus(c.Request.Context(), services.StatusUpdate{
		OrderID:   c.Param("id"),
		NewStatus: req.Status,
	})
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, change.Order)
}
