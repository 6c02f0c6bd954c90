package billing

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the derived state of a provider subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusComplete SubscriptionStatus = "complete"
)

// String returns the string representation of SubscriptionStatus.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// HoldTypeUser is the provider's hold-type marker for a customer pause.
const HoldTypeUser = "user"

// DeriveSubscriptionStatus computes the customer-facing status from the
// provider's raw subscription fields. A non-recurring subscription that is
// not on hold has run its course.
func DeriveSubscriptionStatus(onHold bool, holdType string, isRecurring bool) SubscriptionStatus {
	switch {
	case onHold && holdType == HoldTypeUser:
		return SubscriptionStatusPaused
	case onHold:
		return SubscriptionStatusCanceled
	case isRecurring:
		return SubscriptionStatusActive
	default:
		return SubscriptionStatusComplete
	}
}

// Subscription is a virtual entity: it is never persisted locally but
// reconstructed at read time by joining local orders carrying a provider
// order number with the provider's live subscription data.
type Subscription struct {
	// ID is the provider subscription id.
	ID string

	// CustomerID is the local customer owning every order that references
	// this subscription's provider order number.
	CustomerID uuid.UUID

	// ProviderOrderID is the provider order the subscription bills against.
	ProviderOrderID string

	// LocalOrderNo is the local order the subscription originated from.
	LocalOrderNo string

	SKU              string
	ProductName      string
	OfferID          OfferID
	BillingModelID   BillingModelID
	BillingModelName string
	Status           SubscriptionStatus
	CurrentCycle     int
	NextBillDate     *time.Time
	NextDelivery     *time.Time
}

// BillingModelTypeByCycle is the only billing-model type with a computable
// delivery frequency. All other types yield zero, meaning "not estimable".
const BillingModelTypeByCycle = "billing_by_cycle"

// DeliveryFrequencyDays derives the delivery cadence in days for a billing
// model. Only by-cycle models carry one.
func DeliveryFrequencyDays(modelType string, daysPerCycle int) int {
	if modelType != BillingModelTypeByCycle {
		return 0
	}
	return daysPerCycle
}

// NextDeliveryDate projects the next delivery from the customer's anchor
// date, the current cycle and a per-model frequency: anchor plus
// (cycle-1)*frequency days. A zero frequency means the estimate is unknown
// and the anchor is returned unchanged.
func NextDeliveryDate(anchor time.Time, cycle int, frequencyDays int) time.Time {
	if cycle < 1 {
		cycle = 1
	}
	return anchor.AddDate(0, 0, (cycle-1)*frequencyDays)
}
