package dto

import "net/http"

// Error code constants.
// Format: ERR_<CATEGORY>_<DESCRIPTION>

const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

const (
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
)

const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	ErrCodeConflict = "ERR_CONFLICT"
)

// Business rule error codes for checkout and subscription flows.
const (
	ErrCodeInvalidState       = "ERR_INVALID_STATE"
	ErrCodeProviderDeclined   = "ERR_PROVIDER_DECLINED"
	ErrCodeProviderFailure    = "ERR_PROVIDER_FAILURE"
	ErrCodePaymentExpired     = "ERR_PAYMENT_EXPIRED"
	ErrCodeProductNotReady    = "ERR_PRODUCT_NOT_READY"
	ErrCodeActionNotEnabled   = "ERR_ACTION_NOT_ENABLED"
	ErrCodeMissingActionParam = "ERR_MISSING_ACTION_PARAM"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeProviderDeclined:   http.StatusPaymentRequired,
	ErrCodeProviderFailure:    http.StatusBadGateway,
	ErrCodePaymentExpired:     http.StatusUnprocessableEntity,
	ErrCodeProductNotReady:    http.StatusUnprocessableEntity,
	ErrCodeActionNotEnabled:   http.StatusForbidden,
	ErrCodeMissingActionParam: http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting to
// 500 when the code is unknown.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
