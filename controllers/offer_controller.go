package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/models"
	"storefront-service/services"
)

type OfferController struct {
	service services.OfferService
	logger  *zap.Logger
}

func NewOfferController(service services.OfferService, logger *zap.Logger) *OfferController {
	return &OfferController{service: service, logger: logger}
}

// ListLiveOffers handles GET /offers. The storefront banner degrades to an
// empty list rather than an error.
func (oc *OfferController) ListLiveOffers(c *gin.Context) {
	offers, svcErr := oc.service.ListLiveOffers(c.Request.Context())
	if svcErr != nil {
		oc.logger.Warn("Serving empty offers list", zap.String("error", svcErr.Message))
		offers = []models.Offer{}
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

// ListOffers handles GET /offers/all (admin).
func (oc *OfferController) ListOffers(c *gin.Context) {
	offers, svcErr := oc.service.ListOffers(c.Request.Context())
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

func (oc *OfferController) CreateOffer(c *gin.Context) {
	var req models.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	offer, svcErr := oc.service.CreateOffer(c.Request.Context(), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer": offer})
}

// SetOfferActive handles PATCH /offers/:id with {"active": bool}.
func (oc *OfferController) SetOfferActive(c *gin.Context) {
	var req models.SetOfferActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if req.Active == nil {
		respondError(c, services.NewMissingFieldError("active"))
		return
	}

	offer, svcErr := oc.service.SetOfferActive(c.Request.Context(), c.Param("id"), *req.Active)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// ValidateOffer handles POST /offers/validate.
func (oc *OfferController) ValidateOffer(c *gin.Context) {
	var req models.ValidateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, svcErr := oc.service.ValidateOffer(c.Request.Context(), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}
