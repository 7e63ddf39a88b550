package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/models"
	"storefront-service/services"
)

type WebhookController struct {
	service services.WebhookService
	logger  *zap.Logger
}

func NewWebhookController(service services.WebhookService, logger *zap.Logger) *WebhookController {
	return &WebhookController{service: service, logger: logger}
}

func (wc *WebhookController) OrderStatus(c *gin.Context) {
	var req models.StatusWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, svcErr := wc.service.HandleStatusWebhook(c.Request.Context(), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}
