package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/velora/storefront/internal/handlers"
)

type Deps struct {
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	ProductHandler *handlers.ProductHandler
	UserHandler    *handlers.UserHandler
	SearchHandler  *handlers.SearchHandler
	WebhookHandler *handlers.WebhookHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	// Processor callbacks live outside the versioned API.
	e.POST("/webhook/payment", d.WebhookHandler.Handle)

	v1 := e.Group("/api/v1")

	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	admin := v1.Group("/admin")
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	admin.PATCH("/orders/:id/status", d.OrderHandler.UpdateStatus)

	v1.PUT("/user/address", d.UserHandler.UpdateAddress)

	cart := v1.Group("/cart")
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.POST("/merge", d.CartHandler.MergeCart)
	cart.PATCH("/items/:productId", d.CartHandler.UpdateQuantity)
	cart.DELETE("/items/:productId", d.CartHandler.RemoveFromCart)

	orders := v1.Group("/orders")
	orders.POST("/checkout", d.OrderHandler.Checkout)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
}
