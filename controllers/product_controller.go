package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/models"
	"storefront-service/services"
)

type ProductController struct {
	service services.CatalogService
	logger  *zap.Logger
}

func NewProductController(service services.CatalogService, logger *zap.Logger) *ProductController {
	return &ProductController{service: service, logger: logger}
}

// ListProducts handles GET /products?main_category=&category=&active=
func (pc *ProductController) ListProducts(c *gin.Context) {
	filter, svcErr := services.ParseProductFilter(c.Query("main_category"), c.Query("category"), c.Query("active"))
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}

	products, svcErr := pc.service.ListProducts(c.Request.Context(), filter)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	product, svcErr := pc.service.GetProduct(c.Request.Context(), c.Param("id"))
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	product, svcErr := pc.service.CreateProduct(c.Request.Context(), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	pc.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("slug", product.Slug))
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) UpdateProduct(c *gin.Context) {
	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	product, svcErr := pc.service.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	if svcErr := pc.service.DeleteProduct(c.Request.Context(), id); svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted", "id": id})
}
