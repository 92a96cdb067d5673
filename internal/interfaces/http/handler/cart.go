package handler

import (
	"github.com/gin-gonic/gin"
	cartapp "github.com/storefront/backend/internal/application/cart"
)

// CartHandler handles the shopper's cart
type CartHandler struct {
	BaseHandler
	cartService *cartapp.CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService *cartapp.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// Get godoc
// @ID           getCart
// @Summary      Get the current cart
// @Tags         cart
// @Produce      json
// @Success      200 {object} dto.Response{data=cartapp.CartResponse}
// @Failure      401 {object} dto.Response
// @Security     BearerAuth
// @Router       /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	resp, err := h.cartService.Get(c.Request.Context(), h.actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpsertItem godoc
// @ID           upsertCartItem
// @Summary      Add a line to the cart
// @Description  Increments the quantity of an existing line, or sets it when replace is true
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        request body cartapp.UpsertItemRequest true "Cart line"
// @Success      200 {object} dto.Response{data=cartapp.CartResponse}
// @Failure      400 {object} dto.Response
// @Security     BearerAuth
// @Router       /cart/items [put]
func (h *CartHandler) UpsertItem(c *gin.Context) {
	var req cartapp.UpsertItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.cartService.UpsertItem(c.Request.Context(), h.actor(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveItem godoc
// @ID           removeCartItem
// @Summary      Remove a line from the cart
// @Tags         cart
// @Produce      json
// @Param        variant_id path string true "Variant ID" format(uuid)
// @Success      200 {object} dto.Response{data=cartapp.CartResponse}
// @Security     BearerAuth
// @Router       /cart/items/{variant_id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	variantID, ok := h.ParseUUIDParam(c, "variant_id")
	if !ok {
		return
	}

	resp, err := h.cartService.RemoveItem(c.Request.Context(), h.actor(c), variantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
