package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers are the storefront API handlers
type Handlers struct {
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Order    *handler.OrderHandler
	Return   *handler.ReturnHandler
	Stream   *handler.TrackingStreamHandler
	System   *handler.SystemHandler
}

// StorefrontGroups builds the route groups of the storefront API.
// requestScoped runs on every route except the live tracking stream, which
// must outlive per-request deadlines.
func StorefrontGroups(h Handlers, requestScoped ...gin.HandlerFunc) []*DomainGroup {
	admin := middleware.RequireAdmin()

	system := NewDomainGroup("system", "")
	system.GET("/ping", h.System.Ping)

	cart := NewDomainGroup("cart", "/cart").Use(requestScoped...)
	cart.GET("", h.Cart.Get)
	cart.PUT("/items", h.Cart.UpsertItem)
	cart.DELETE("/items/:variant_id", h.Cart.RemoveItem)

	checkout := NewDomainGroup("checkout", "/checkout").Use(requestScoped...)
	checkout.POST("", h.Checkout.CreateCheckout)
	checkout.GET("/success", h.Checkout.CompleteCheckout)
	checkout.GET("/cancel", h.Checkout.CancelCheckout)

	orders := NewDomainGroup("orders", "/orders").Use(requestScoped...)
	orders.GET("", admin, h.Order.List)
	orders.GET("/mine", h.Order.ListMine)
	orders.GET("/:id", h.Order.Get)
	orders.PUT("/:id", admin, h.Order.UpdateStatus)
	orders.DELETE("/:id", admin, h.Order.Delete)
	orders.GET("/:id/tracking", h.Order.GetTracking)
	orders.PUT("/:id/tracking", admin, h.Order.UpdateLocation)
	orders.PUT("/:id/tracking/destination", admin, h.Order.SetDestination)

	returns := NewDomainGroup("returns", "/returns").Use(requestScoped...)
	returns.POST("", h.Return.RequestReturn)
	returns.GET("", admin, h.Return.List)
	returns.GET("/mine", h.Return.ListMine)
	returns.GET("/:id", h.Return.Get)
	returns.PUT("/:id", admin, h.Return.UpdateStatus)
	returns.DELETE("/:id", admin, h.Return.Delete)

	tracking := NewDomainGroup("tracking", "/tracking")
	tracking.GET("/stream", h.Stream.Stream)

	return []*DomainGroup{system, cart, checkout, orders, returns, tracking}
}

// SpecFileName is the name the OpenAPI document is served under
const SpecFileName = "openapi.yaml"

// SwaggerHandler serves the swagger UI under /swagger and the OpenAPI
// document read from specPath at /swagger/openapi.yaml.
func SwaggerHandler(specPath string) gin.HandlerFunc {
	ui := ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(SpecFileName))
	return func(c *gin.Context) {
		if path.Base(c.Param("any")) == SpecFileName {
			c.Header("Content-Type", "application/yaml")
			c.File(specPath)
			return
		}
		if c.Param("any") == "/" {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
			return
		}
		ui(c)
	}
}
