package handler

import (
	"github.com/gin-gonic/gin"
	orderapp "github.com/storefront/backend/internal/application/order"
)

// OrderHandler handles order ledger and shipment tracking endpoints
type OrderHandler struct {
	BaseHandler
	orderService    *orderapp.OrderService
	trackingService *orderapp.TrackingService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService *orderapp.OrderService, trackingService *orderapp.TrackingService) *OrderHandler {
	return &OrderHandler{
		orderService:    orderService,
		trackingService: trackingService,
	}
}

// List godoc
// @ID           listOrders
// @Summary      List all orders
// @Description  Admin only. Newest first.
// @Tags         orders
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]orderapp.OrderResponse}
// @Failure      403 {object} dto.Response
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	filter, ok := h.ListFilter(c)
	if !ok {
		return
	}
	page, err := h.orderService.ListAll(c.Request.Context(), h.actor(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListMine godoc
// @ID           listMyOrders
// @Summary      List the caller's orders
// @Tags         orders
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]orderapp.OrderResponse}
// @Security     BearerAuth
// @Router       /orders/mine [get]
func (h *OrderHandler) ListMine(c *gin.Context) {
	filter, ok := h.ListFilter(c)
	if !ok {
		return
	}
	page, err := h.orderService.ListForUser(c.Request.Context(), h.actor(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @ID           getOrder
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.orderService.Get(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateStatus godoc
// @ID           updateOrderStatus
// @Summary      Change an order's status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.UpdateOrderStatusRequest true "New status"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Security     BearerAuth
// @Router       /orders/{id} [put]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req orderapp.UpdateOrderStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.orderService.UpdateStatus(c.Request.Context(), h.actor(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete godoc
// @ID           deleteOrder
// @Summary      Delete an order
// @Tags         orders
// @Param        id path string true "Order ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /orders/{id} [delete]
func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.orderService.Delete(c.Request.Context(), h.actor(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GetTracking godoc
// @ID           getOrderTracking
// @Summary      Get shipment tracking for an order
// @Tags         tracking
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=orderapp.TrackingResponse}
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /orders/{id}/tracking [get]
func (h *OrderHandler) GetTracking(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.trackingService.GetTracking(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateLocation godoc
// @ID           updateOrderLocation
// @Summary      Record a location fix
// @Description  Appends to the tracking history and broadcasts to live subscribers
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.UpdateLocationRequest true "Location"
// @Success      200 {object} dto.Response{data=orderapp.TrackingResponse}
// @Failure      400 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Security     BearerAuth
// @Router       /orders/{id}/tracking [put]
func (h *OrderHandler) UpdateLocation(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req orderapp.UpdateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.trackingService.UpdateLocation(c.Request.Context(), h.actor(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SetDestination godoc
// @ID           setOrderDestination
// @Summary      Set the delivery destination
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.SetDestinationRequest true "Destination"
// @Success      200 {object} dto.Response{data=orderapp.TrackingResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/tracking/destination [put]
func (h *OrderHandler) SetDestination(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req orderapp.SetDestinationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.trackingService.SetDestination(c.Request.Context(), h.actor(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
