package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	checkoutapp "github.com/storefront/backend/internal/application/checkout"
	orderapp "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// CheckoutHandler handles hosted checkout sessions
type CheckoutHandler struct {
	BaseHandler
	checkoutService *checkoutapp.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService *checkoutapp.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// CreateCheckout godoc
// @ID           createCheckout
// @Summary      Start a hosted checkout
// @Description  Creates a payment session from the submitted lines or, when none are sent, the stored cart
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        request body checkoutapp.CreateCheckoutRequest false "Lines to purchase"
// @Success      201 {object} dto.Response{data=checkoutapp.CreateCheckoutResponse}
// @Failure      400 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Security     BearerAuth
// @Router       /checkout [post]
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	var req checkoutapp.CreateCheckoutRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.checkoutService.CreateCheckout(c.Request.Context(), h.actor(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// sessionQuery is the redirect target's query string
type sessionQuery struct {
	SessionID string `form:"session_id" binding:"required,max=255"`
}

// CompleteCheckout godoc
// @ID           completeCheckout
// @Summary      Complete a checkout after payment
// @Description  Records the order for a paid session. Repeated calls return the same order.
// @Tags         checkout
// @Produce      json
// @Param        session_id query string true "Payment session reference"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Security     BearerAuth
// @Router       /checkout/success [get]
func (h *CheckoutHandler) CompleteCheckout(c *gin.Context) {
	var q sessionQuery
	if !h.BindQuery(c, &q) {
		return
	}

	var (
		resp *orderapp.OrderResponse
		err  error
	)
	telemetry.WithProfilingLabels(c.Request.Context(),
		telemetry.OperationLabels(telemetry.OperationCheckoutComplete),
		func(ctx context.Context) {
			resp, err = h.checkoutService.CompleteCheckout(ctx, h.actor(c), q.SessionID)
		})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// CancelCheckout godoc
// @ID           cancelCheckout
// @Summary      Record an abandoned checkout
// @Description  Expires the open session so it can no longer be paid. Paid sessions are rejected.
// @Tags         checkout
// @Produce      json
// @Param        session_id query string true "Payment session reference"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      422 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Security     BearerAuth
// @Router       /checkout/cancel [get]
func (h *CheckoutHandler) CancelCheckout(c *gin.Context) {
	var q sessionQuery
	if !h.BindQuery(c, &q) {
		return
	}

	resp, err := h.checkoutService.CancelCheckout(c.Request.Context(), h.actor(c), q.SessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
