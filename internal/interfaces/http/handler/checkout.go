package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/subsync/backend/internal/application/checkout"
	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/interfaces/http/dto"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
)

// CheckoutHandler exposes order submission.
type CheckoutHandler struct {
	service *checkout.Service
}

// NewCheckoutHandler creates the checkout handler.
func NewCheckoutHandler(service *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// CardRequest is the raw card block of a submission. It is forwarded to the
// provider's tokenize call and never persisted.
type CardRequest struct {
	Number      string `json:"number" binding:"required,numeric,min=12,max=19"`
	ExpiryMonth int    `json:"expiry_month" binding:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" binding:"required,min=2000"`
	CVV         string `json:"cvv" binding:"required,numeric,min=3,max=4"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
}

// AddressRequest is a postal address block.
type AddressRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Street1   string `json:"street1" binding:"required"`
	Street2   string `json:"street2"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state" binding:"required"`
	Zip       string `json:"zip" binding:"required"`
	Country   string `json:"country" binding:"required,len=2"`
	Phone     string `json:"phone"`
}

// LineRequest is one cart line of a submission.
type LineRequest struct {
	SKU            string          `json:"sku" binding:"required"`
	Quantity       int             `json:"quantity" binding:"required,min=1"`
	NetPrice       decimal.Decimal `json:"net_price" binding:"required"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	OfferID        string          `json:"offer_id"`
	BillingModelID string          `json:"billing_model_id"`
	PrepaidCycles  int             `json:"prepaid_cycles" binding:"min=0"`
}

// SubmitRequest is the checkout submission payload.
type SubmitRequest struct {
	CartID          string         `json:"cart_id" binding:"required"`
	OrderNo         string         `json:"order_no" binding:"required"`
	Email           string         `json:"email" binding:"required,email"`
	Card            *CardRequest   `json:"card"`
	BillingAddress  AddressRequest `json:"billing_address" binding:"required"`
	ShippingAddress AddressRequest `json:"shipping_address" binding:"required"`
	Lines           []LineRequest  `json:"lines" binding:"required,min=1,dive"`
}

// SubmitResponse reports the submission outcome.
type SubmitResponse struct {
	OrderNo             string `json:"order_no"`
	Status              string `json:"status"`
	Outcome             string `json:"outcome"`
	ProviderOrderNumber string `json:"provider_order_number,omitempty"`
}

// Submit handles POST /api/v1/checkout.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	customerID, ok := middleware.CustomerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "missing principal"))
		return
	}

	in := checkout.SubmitInput{
		CartID:          req.CartID,
		OrderNo:         req.OrderNo,
		CustomerID:      customerID,
		Email:           req.Email,
		IP:              c.ClientIP(),
		BillingAddress:  toAddress(req.BillingAddress),
		ShippingAddress: toAddress(req.ShippingAddress),
		FraudApproved:   true,
	}
	if req.Card != nil {
		in.Card = &billing.CardInput{
			Number:      req.Card.Number,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			CVV:         req.Card.CVV,
			FirstName:   req.Card.FirstName,
			LastName:    req.Card.LastName,
		}
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, checkout.LineInput{
			SKU:            line.SKU,
			Quantity:       line.Quantity,
			NetPrice:       line.NetPrice,
			TaxRate:        line.TaxRate,
			OfferID:        billing.OfferID(line.OfferID),
			BillingModelID: billing.BillingModelID(line.BillingModelID),
			PrepaidCycles:  line.PrepaidCycles,
		})
	}

	result, err := h.service.Submit(c.Request.Context(), in)
	if err != nil {
		if result != nil {
			// The order was persisted in a failed state; surface both the
			// provider error and the order reference.
			c.JSON(dto.GetHTTPStatus(errorCode(err)), dto.Response{
				Success: false,
				Data: SubmitResponse{
					OrderNo: result.Order.OrderNo,
					Status:  string(result.Order.Status),
					Outcome: string(result.Outcome),
				},
				Error: &dto.ErrorInfo{Code: errorCode(err), Message: err.Error()},
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(SubmitResponse{
		OrderNo:             result.Order.OrderNo,
		Status:              string(result.Order.Status),
		Outcome:             string(result.Outcome),
		ProviderOrderNumber: result.Order.Shipment.ProviderOrderNumber,
	}))
}

func toAddress(a AddressRequest) billing.Address {
	return billing.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Street1:   a.Street1,
		Street2:   a.Street2,
		City:      a.City,
		State:     a.State,
		Zip:       a.Zip,
		Country:   a.Country,
		Phone:     a.Phone,
	}
}
