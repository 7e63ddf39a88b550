package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/middleware"
	"storefront-service/services"
)

type CleanupController struct {
	service services.CleanupService
	logger  *zap.Logger
}

func NewCleanupController(service services.CleanupService, logger *zap.Logger) *CleanupController {
	return &CleanupController{service: service, logger: logger}
}

// CleanupReservations runs one sweep on demand. Route-level auth guards it.
func (cc *CleanupController) CleanupReservations(c *gin.Context) {
	result, svcErr := cc.service.RunCleanup(c.Request.Context())
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	cc.logger.Info("Manual cleanup finished",
		zap.Int("reservations_released", result.ReservationsReleased),
		zap.Int("orders_cancelled", result.OrdersCancelled),
		zap.String("principal", c.GetString(middleware.AdminContextKey)))
	c.JSON(http.StatusOK, result)
}
