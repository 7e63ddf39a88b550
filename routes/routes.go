package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/controllers"
	"storefront-service/middleware"
)

// Controllers groups every HTTP handler set mounted by RegisterRoutes.
type Controllers struct {
	Products *controllers.ProductController
	Orders   *controllers.OrderController
	Webhooks *controllers.WebhookController
	Cleanup  *controllers.CleanupController
	Offers   *controllers.OfferController
}

// Options controls route protection.
type Options struct {
	Admin              middleware.AdminCredentials
	ProtectAdminRoutes bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

func RegisterRoutes(r *gin.Engine, ctrl Controllers, opts Options) {
	adminAuth := middleware.AdminAuth(opts.Admin)
	// Write routes are open unless explicitly protected.
	adminWrite := func(c *gin.Context) { c.Next() }
	if opts.ProtectAdminRoutes {
		adminWrite = adminAuth
	}
	limited := middleware.RateLimitMiddleware(opts.RateLimitPerMinute, opts.RateLimitBurst)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	productRoutes := r.Group("/products")
	{
		productRoutes.GET("", ctrl.Products.ListProducts)
		productRoutes.GET("/:id", ctrl.Products.GetProduct)
		productRoutes.POST("", adminWrite, ctrl.Products.CreateProduct)
		productRoutes.PATCH("/:id", adminWrite, ctrl.Products.UpdateProduct)
		productRoutes.DELETE("/:id", adminWrite, ctrl.Products.DeleteProduct)
	}

	orderRoutes := r.Group("/orders")
	{
		orderRoutes.POST("", limited, ctrl.Orders.CreateOrder)
		orderRoutes.GET("", ctrl.Orders.ListOrders)
		orderRoutes.GET("/:id", ctrl.Orders.GetOrder)
		orderRoutes.PATCH("/:id/status", adminWrite, ctrl.Orders.UpdateOrderStatus)
	}

	offerRoutes := r.Group("/offers")
	{
		offerRoutes.GET("", ctrl.Offers.ListLiveOffers)
		offerRoutes.POST("/validate", limited, ctrl.Offers.ValidateOffer)
		offerRoutes.GET("/all", adminAuth, ctrl.Offers.ListOffers)
		offerRoutes.POST("", adminWrite, ctrl.Offers.CreateOffer)
		offerRoutes.PATCH("/:id", adminWrite, ctrl.Offers.SetOfferActive)
	}

	r.POST("/webhooks/order-status", limited, ctrl.Webhooks.OrderStatus)

	cronRoutes := r.Group("/cron", adminAuth)
	{
		cronRoutes.POST("/cleanup-reservations", ctrl.Cleanup.CleanupReservations)
		cronRoutes.GET("/cleanup-reservations", ctrl.Cleanup.CleanupReservations)
	}
}
