package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appsync "github.com/subsync/backend/internal/application/sync"
	"github.com/subsync/backend/internal/domain/order"
	"github.com/subsync/backend/internal/interfaces/http/dto"
	"github.com/subsync/backend/internal/jobs"
)

// AdminHandler exposes CSR tooling: manual job runs and provider response
// forensics for failed or orphaned orders.
type AdminHandler struct {
	runner *jobs.Runner
	orders order.Repository
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(runner *jobs.Runner, orders order.Repository) *AdminHandler {
	return &AdminHandler{runner: runner, orders: orders}
}

// JobRequest carries the optional parameter bag of a manual job run.
type JobRequest struct {
	Params map[string]string `json:"params"`
}

// JobResponse reports one job run.
type JobResponse struct {
	Job    string           `json:"job"`
	Status string           `json:"status"`
	Error  string           `json:"error,omitempty"`
	Report map[string][]any `json:"report"`
}

// RunJob handles POST /api/v1/admin/jobs/:job.
func (h *AdminHandler) RunJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeInvalidJSON, err.Error()))
		return
	}

	result := h.runner.Run(c.Request.Context(), c.Param("job"), appsync.Params(req.Params))
	resp := JobResponse{
		Job:    result.Job,
		Status: result.Status,
		Report: result.Report,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if result.Status != jobs.StatusOK {
		c.JSON(http.StatusInternalServerError, dto.Response{Success: false, Data: resp})
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// ProviderResponseView pairs an order with the raw provider response stored
// on its shipment.
type ProviderResponseView struct {
	OrderNo             string `json:"order_no"`
	Status              string `json:"status"`
	ProviderOrderNumber string `json:"provider_order_number,omitempty"`
	RawProviderResponse string `json:"raw_provider_response"`
}

// ProviderResponse handles GET /api/v1/admin/orders/:order_no/provider-response.
// It is the CSR entry point for reconciling declined and orphaned orders.
func (h *AdminHandler) ProviderResponse(c *gin.Context) {
	ord, err := h.orders.FindByOrderNo(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(ProviderResponseView{
		OrderNo:             ord.OrderNo,
		Status:              string(ord.Status),
		ProviderOrderNumber: ord.Shipment.ProviderOrderNumber,
		RawProviderResponse: ord.Shipment.RawProviderResponse,
	}))
}
