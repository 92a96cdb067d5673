package router

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorefrontEngine(t *testing.T, actor *shared.Actor, requestScoped ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(func(c *gin.Context) {
		if actor != nil {
			middleware.SetActor(c, actor)
		}
		c.Next()
	})

	// Services are never reached: only routes that stop in middleware or
	// need no service are exercised.
	h := Handlers{
		Cart:     handler.NewCartHandler(nil),
		Checkout: handler.NewCheckoutHandler(nil),
		Order:    handler.NewOrderHandler(nil, nil),
		Return:   handler.NewReturnHandler(nil),
		Stream:   handler.NewTrackingStreamHandler(nil),
		System:   handler.NewSystemHandler("storefront-backend", "test", nil),
	}
	for _, g := range StorefrontGroups(h, requestScoped...) {
		r.Register(g)
	}
	r.Setup()
	return engine
}

func TestStorefrontGroups_Routes(t *testing.T) {
	engine := newStorefrontEngine(t, nil)

	registered := map[string]bool{}
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"GET /api/v1/ping",
		"GET /api/v1/cart",
		"PUT /api/v1/cart/items",
		"DELETE /api/v1/cart/items/:variant_id",
		"POST /api/v1/checkout",
		"GET /api/v1/checkout/success",
		"GET /api/v1/checkout/cancel",
		"GET /api/v1/orders",
		"GET /api/v1/orders/mine",
		"GET /api/v1/orders/:id",
		"PUT /api/v1/orders/:id",
		"DELETE /api/v1/orders/:id",
		"GET /api/v1/orders/:id/tracking",
		"PUT /api/v1/orders/:id/tracking",
		"PUT /api/v1/orders/:id/tracking/destination",
		"POST /api/v1/returns",
		"GET /api/v1/returns",
		"GET /api/v1/returns/mine",
		"GET /api/v1/returns/:id",
		"PUT /api/v1/returns/:id",
		"DELETE /api/v1/returns/:id",
		"GET /api/v1/tracking/stream",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestStorefrontGroups_AdminRoutesRejectCustomers(t *testing.T) {
	customer := &shared.Actor{UserID: uuid.New(), Role: shared.RoleCustomer}
	engine := newStorefrontEngine(t, customer)
	id := uuid.NewString()

	cases := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodPut, "/api/v1/orders/" + id},
		{http.MethodDelete, "/api/v1/orders/" + id},
		{http.MethodPut, "/api/v1/orders/" + id + "/tracking"},
		{http.MethodPut, "/api/v1/orders/" + id + "/tracking/destination"},
		{http.MethodGet, "/api/v1/returns"},
		{http.MethodPut, "/api/v1/returns/" + id},
		{http.MethodDelete, "/api/v1/returns/" + id},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

func TestStorefrontGroups_RequestScopedSkipsStream(t *testing.T) {
	var seen []string
	marker := func(c *gin.Context) {
		seen = append(seen, c.FullPath())
		c.AbortWithStatus(http.StatusTeapot)
	}
	engine := newStorefrontEngine(t, nil, marker)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tracking/stream", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, []string{"/api/v1/cart"}, seen)
}

func TestStorefrontGroups_Ping(t *testing.T) {
	engine := newStorefrontEngine(t, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestSwaggerHandler_ServesSpec(t *testing.T) {
	specPath := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte("openapi: 3.0.3\n"), 0o600))

	engine := gin.New()
	engine.GET("/swagger/*any", SwaggerHandler(specPath))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
