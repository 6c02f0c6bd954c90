package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/application/checkout"
	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/catalog"
	"github.com/subsync/backend/internal/domain/order"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/interfaces/http/dto"
)

// errorCode maps domain and application errors onto API error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound):
		return dto.ErrCodeNotFound
	case errors.Is(err, billing.ErrSubscriptionNotOwned):
		return dto.ErrCodeForbidden
	case errors.Is(err, billing.ErrActionNotEnabled):
		return dto.ErrCodeActionNotEnabled
	case errors.Is(err, billing.ErrMissingActionParam),
		errors.Is(err, billing.ErrUnknownAction):
		return dto.ErrCodeMissingActionParam
	case errors.Is(err, billing.ErrPaymentTokenExpired),
		errors.Is(err, checkout.ErrCardRequired):
		return dto.ErrCodePaymentExpired
	case errors.Is(err, checkout.ErrProductNotReady):
		return dto.ErrCodeProductNotReady
	case errors.Is(err, checkout.ErrEmptyOrder),
		errors.Is(err, checkout.ErrUnknownTerm),
		errors.Is(err, order.ErrUnpairedSubscription):
		return dto.ErrCodeValidation
	case errors.Is(err, billing.ErrProviderDeclined):
		return dto.ErrCodeProviderDeclined
	case errors.Is(err, billing.ErrProviderUnavailable),
		errors.Is(err, billing.ErrProviderRequestFailed),
		errors.Is(err, billing.ErrProviderInvalidResponse):
		return dto.ErrCodeProviderFailure
	default:
		return dto.ErrCodeInternal
	}
}

// respondError writes the error envelope, hiding internals behind a generic
// message for unexpected errors.
func respondError(c *gin.Context, err error) {
	code := errorCode(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		logger.FromGin(c).Error("request failed", zap.Error(err))
		message = "internal error"
	}
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message))
}
