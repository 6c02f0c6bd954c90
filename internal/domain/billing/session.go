package billing

import (
	"context"
	"time"
)

// CheckoutSession holds the provider payment artifacts captured during one
// checkout attempt. Both expire with the payment token; the session is
// cached under the cart id for the token's lifetime and discarded after
// submission.
type CheckoutSession struct {
	Token          string    `json:"token"`
	TempCustomerID string    `json:"temp_customer_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Expired reports whether the session's payment token has aged out.
func (s *CheckoutSession) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) >= PaymentTokenTTL
}

// SessionStore caches checkout sessions for the payment token lifetime.
type SessionStore interface {
	// SaveSession stores the session under the cart id; it vanishes when
	// the payment token expires.
	SaveSession(ctx context.Context, cartID string, session *CheckoutSession) error

	// GetSession returns the cached session, or (nil, nil) when absent or
	// expired.
	GetSession(ctx context.Context, cartID string) (*CheckoutSession, error)

	// DeleteSession drops the session after the order is submitted.
	DeleteSession(ctx context.Context, cartID string) error
}
