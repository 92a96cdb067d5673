package handler

import (
	"github.com/gin-gonic/gin"
	orderapp "github.com/storefront/backend/internal/application/order"
)

// ReturnHandler handles the return workflow
type ReturnHandler struct {
	BaseHandler
	returnService *orderapp.ReturnService
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(returnService *orderapp.ReturnService) *ReturnHandler {
	return &ReturnHandler{returnService: returnService}
}

// RequestReturn godoc
// @ID           requestReturn
// @Summary      Request a return
// @Description  A repeated request for the same order returns success=false in the payload with HTTP 200
// @Tags         returns
// @Accept       json
// @Produce      json
// @Param        request body orderapp.RequestReturnRequest true "Return request"
// @Success      200 {object} dto.Response{data=orderapp.RequestReturnResult}
// @Success      201 {object} dto.Response{data=orderapp.RequestReturnResult}
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Security     BearerAuth
// @Router       /returns [post]
func (h *ReturnHandler) RequestReturn(c *gin.Context) {
	var req orderapp.RequestReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.returnService.RequestReturn(c.Request.Context(), h.actor(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !result.Success {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// List godoc
// @ID           listReturns
// @Summary      List all returns
// @Tags         returns
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]orderapp.ReturnResponse}
// @Failure      403 {object} dto.Response
// @Security     BearerAuth
// @Router       /returns [get]
func (h *ReturnHandler) List(c *gin.Context) {
	filter, ok := h.ListFilter(c)
	if !ok {
		return
	}
	page, err := h.returnService.ListReturns(c.Request.Context(), h.actor(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListMine godoc
// @ID           listMyReturns
// @Summary      List the caller's returns
// @Tags         returns
// @Produce      json
// @Success      200 {object} dto.Response{data=[]orderapp.ReturnResponse}
// @Security     BearerAuth
// @Router       /returns/mine [get]
func (h *ReturnHandler) ListMine(c *gin.Context) {
	filter, ok := h.ListFilter(c)
	if !ok {
		return
	}
	page, err := h.returnService.ListUserReturns(c.Request.Context(), h.actor(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @ID           getReturn
// @Summary      Get a return
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Success      200 {object} dto.Response{data=orderapp.ReturnResponse}
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /returns/{id} [get]
func (h *ReturnHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.returnService.GetReturn(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateStatus godoc
// @ID           updateReturnStatus
// @Summary      Move a return to a new status
// @Tags         returns
// @Accept       json
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Param        request body orderapp.UpdateReturnStatusRequest true "New status"
// @Success      200 {object} dto.Response{data=orderapp.ReturnResponse}
// @Failure      422 {object} dto.Response
// @Security     BearerAuth
// @Router       /returns/{id} [put]
func (h *ReturnHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req orderapp.UpdateReturnStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.returnService.UpdateReturnStatus(c.Request.Context(), h.actor(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete godoc
// @ID           deleteReturn
// @Summary      Remove a return
// @Description  Clears the order's return summary as well
// @Tags         returns
// @Param        id path string true "Return ID" format(uuid)
// @Success      204
// @Security     BearerAuth
// @Router       /returns/{id} [delete]
func (h *ReturnHandler) Delete(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.returnService.RemoveReturn(c.Request.Context(), h.actor(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
