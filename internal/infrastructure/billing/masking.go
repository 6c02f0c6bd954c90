package billing

import (
	"encoding/json"
	"strings"
)

// maskedValue replaces redacted field values in logged payloads.
const maskedValue = "****"

// maskedFields is the fixed set of PII/financial field names redacted from
// every logged request and response body, matched case-insensitively. This
// is the only privacy control in the system; every payload that reaches a
// log sink must pass through Mask first.
var maskedFields = map[string]bool{
	"credit_card_number": true,
	"card_number":        true,
	"cvv":                true,
	"security_code":      true,
	"expiry":             true,
	"cc_expires":         true,
	"payment_token":      true,
	"token":              true,
	"password":           true,
	"email":              true,
	"email_address":      true,
	"phone":              true,
	"first_name":         true,
	"last_name":          true,
	"address1":           true,
	"address2":           true,
	"billing_address1":   true,
	"billing_address2":   true,
	"shipping_address1":  true,
	"shipping_address2":  true,
}

// Mask redacts sensitive fields from a JSON payload for logging. Nested
// objects and arrays are walked recursively. Payloads that fail to parse
// are replaced wholesale rather than logged raw.
func Mask(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return maskedValue
	}
	masked := maskValue(decoded)
	out, err := json.Marshal(masked)
	if err != nil {
		return maskedValue
	}
	return string(out)
}

func maskValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if maskedFields[strings.ToLower(k)] {
				out[k] = maskedValue
				continue
			}
			out[k] = maskValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = maskValue(child)
		}
		return out
	default:
		return v
	}
}
