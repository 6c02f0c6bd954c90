package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/subsync/backend/internal/application/subscription"
	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/infrastructure/auth"
	"github.com/subsync/backend/internal/interfaces/http/dto"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
)

// SubscriptionHandler exposes customer subscription views and actions.
type SubscriptionHandler struct {
	service *subscription.Service
}

// NewSubscriptionHandler creates the subscription handler.
func NewSubscriptionHandler(service *subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// SubscriptionResponse is one subscription view entry.
type SubscriptionResponse struct {
	ID               string     `json:"id"`
	LocalOrderNo     string     `json:"order_no"`
	ProviderOrderID  string     `json:"provider_order_id"`
	SKU              string     `json:"sku"`
	ProductName      string     `json:"product_name"`
	BillingModelName string     `json:"billing_model_name"`
	Status           string     `json:"status"`
	CurrentCycle     int        `json:"current_cycle"`
	NextBillDate     *time.Time `json:"next_bill_date,omitempty"`
	NextDelivery     *time.Time `json:"next_delivery,omitempty"`
}

// List handles GET /api/v1/subscriptions.
func (h *SubscriptionHandler) List(c *gin.Context) {
	customerID, ok := middleware.CustomerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "missing principal"))
		return
	}

	subs, err := h.service.ListForCustomer(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, SubscriptionResponse{
			ID:               sub.ID,
			LocalOrderNo:     sub.LocalOrderNo,
			ProviderOrderID:  sub.ProviderOrderID,
			SKU:              sub.SKU,
			ProductName:      sub.ProductName,
			BillingModelName: sub.BillingModelName,
			Status:           sub.Status.String(),
			CurrentCycle:     sub.CurrentCycle,
			NextBillDate:     sub.NextBillDate,
			NextDelivery:     sub.NextDelivery,
		})
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(out))
}

// ActionRequest carries a subscription action's parameters.
type ActionRequest struct {
	Params map[string]string `json:"params"`
}

// ActionResponse reports the provider's answer to an action.
type ActionResponse struct {
	NewOrderID string `json:"new_order_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Apply handles POST /api/v1/subscriptions/:id/actions/:action. CSR tokens
// skip the ownership and policy gates.
func (h *SubscriptionHandler) Apply(c *gin.Context) {
	subscriptionID := c.Param("id")
	action := billing.SubscriptionAction(c.Param("action"))

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeInvalidJSON, err.Error()))
		return
	}

	customerID, ok := middleware.CustomerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "missing principal"))
		return
	}
	if middleware.RoleOf(c) == auth.RoleCSR {
		customerID = uuid.Nil
	}

	result, err := h.service.ApplyAction(c.Request.Context(), customerID, subscriptionID, action, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(ActionResponse{
		NewOrderID: result.NewOrderID,
		Message:    result.Message,
	}))
}

// NextDeliveryResponse is the projected next delivery of a subscription.
type NextDeliveryResponse struct {
	NextDelivery *time.Time `json:"next_delivery"`
}

// NextDelivery handles GET /api/v1/subscriptions/:id/next-delivery.
func (h *SubscriptionHandler) NextDelivery(c *gin.Context) {
	customerID, ok := middleware.CustomerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "missing principal"))
		return
	}
	if middleware.RoleOf(c) == auth.RoleCSR {
		customerID = uuid.Nil
	}

	next, err := h.service.NextDelivery(c.Request.Context(), customerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(NextDeliveryResponse{NextDelivery: next}))
}
