package order

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subsync/backend/internal/domain/billing"
)

var (
	ErrOrderNotFound        = errors.New("order: order not found")
	ErrUnpairedSubscription = errors.New("order: offer and billing model must both be set or both be empty")
	ErrNoLineItems          = errors.New("order: order has no line items")
	ErrAlreadyPlaced        = errors.New("order: order already placed")
)

// Status is the lifecycle state of a local order.
type Status string

const (
	StatusCreated Status = "created"
	StatusFailed  Status = "failed"
	StatusPlaced  Status = "placed"
)

// ConfirmationStatus mirrors the host's order confirmation outcome.
type ConfirmationStatus string

const (
	ConfirmationNotConfirmed ConfirmationStatus = "not_confirmed"
	ConfirmationConfirmed    ConfirmationStatus = "confirmed"
)

// ShippingStatus is the order-level shipping state recomputed from line
// items.
type ShippingStatus string

const (
	ShippingNotShipped  ShippingStatus = "not_shipped"
	ShippingPartShipped ShippingStatus = "part_shipped"
	ShippingShipped     ShippingStatus = "shipped"
)

// SubscriptionAttributes is the subscription correlation block on a line
// item. OfferID and BillingModelID are both present or both absent; a
// partial selection is invalid and blocks add-to-cart.
type SubscriptionAttributes struct {
	ProviderProductID string
	ProviderVariantID string
	CampaignID        int
	OfferID           billing.OfferID
	TermKey           *billing.TermKey
	BillingModelID    billing.BillingModelID
	BillingModelText  string
	// SubscriptionID is assigned only after successful provider order
	// submission.
	SubscriptionID string
}

// Validate enforces the offer/billing-model pairing invariant.
func (a *SubscriptionAttributes) Validate() error {
	if (a.OfferID == "") != (a.BillingModelID == "") {
		return ErrUnpairedSubscription
	}
	return nil
}

// IsSubscription reports whether the block selects a recurring offer.
func (a *SubscriptionAttributes) IsSubscription() bool {
	return a != nil && a.OfferID != "" && a.BillingModelID != ""
}

// LineItem is one product line of an order.
type LineItem struct {
	ID       uuid.UUID
	SKU      string
	Name     string
	Quantity int
	// NetPrice is the pre-tax price for the full quantity.
	NetPrice decimal.Decimal
	TaxRate  decimal.Decimal
	Shipped  bool
	Sub      *SubscriptionAttributes
}

// NewLineItem creates a line item, rejecting partial subscription
// selections.
func NewLineItem(sku, name string, quantity int, netPrice decimal.Decimal, sub *SubscriptionAttributes) (*LineItem, error) {
	if sub != nil {
		if err := sub.Validate(); err != nil {
			return nil, err
		}
	}
	return &LineItem{
		ID:       uuid.New(),
		SKU:      sku,
		Name:     name,
		Quantity: quantity,
		NetPrice: netPrice,
		Sub:      sub,
	}, nil
}

// Shipment carries the provider correlation for an order's shipment.
type Shipment struct {
	ID uuid.UUID
	// ProviderOrderNumber is the provider order id stamped after a
	// successful order-creation call (or re-stamped by bill_now).
	ProviderOrderNumber string
	// RawProviderResponse is the serialized provider order response, kept
	// for CSR forensics even when the order fails.
	RawProviderResponse string
	// ProviderUpdateApplied guards the local-to-provider tracking push so
	// repeated reconciliation runs never push twice.
	ProviderUpdateApplied bool
	TrackingNumber        string
	ShippingStatus        ShippingStatus
}

// Order is the local order aggregate.
type Order struct {
	ID           uuid.UUID
	OrderNo      string
	CustomerID   uuid.UUID
	Email        string
	IP           string
	Status       Status
	Confirmation ConfirmationStatus
	ExportReady  bool
	Shipment     Shipment
	LineItems    []LineItem
	BillingAddr  billing.Address
	ShippingAddr billing.Address
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrder creates an order in the created state.
func NewOrder(orderNo string, customerID uuid.UUID, email, ip string) (*Order, error) {
	if strings.TrimSpace(orderNo) == "" {
		return nil, errors.New("order: order number required")
	}
	now := time.Now()
	return &Order{
		ID:           uuid.New(),
		OrderNo:      orderNo,
		CustomerID:   customerID,
		Email:        email,
		IP:           ip,
		Status:       StatusCreated,
		Confirmation: ConfirmationNotConfirmed,
		Shipment: Shipment{
			ID:             uuid.New(),
			ShippingStatus: ShippingNotShipped,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AddLineItem appends a line item.
func (o *Order) AddLineItem(item LineItem) {
	o.LineItems = append(o.LineItems, item)
	o.UpdatedAt = time.Now()
}

// SubscriptionLines returns the line items selecting a recurring offer.
func (o *Order) SubscriptionLines() []*LineItem {
	var out []*LineItem
	for i := range o.LineItems {
		if o.LineItems[i].Sub.IsSubscription() {
			out = append(out, &o.LineItems[i])
		}
	}
	return out
}

// NonSubscriptionLines returns the straight-sale line items.
func (o *Order) NonSubscriptionLines() []*LineItem {
	var out []*LineItem
	for i := range o.LineItems {
		if !o.LineItems[i].Sub.IsSubscription() {
			out = append(out, &o.LineItems[i])
		}
	}
	return out
}

// FirstNonzeroTaxRate returns the first nonzero line-item tax rate, applied
// order-wide. Known approximation: lines with genuinely different rates are
// misstated; kept for parity with the billing provider's order call shape.
func (o *Order) FirstNonzeroTaxRate() decimal.Decimal {
	for _, item := range o.LineItems {
		if item.TaxRate.IsPositive() {
			return item.TaxRate
		}
	}
	return decimal.Zero
}

// NetTotal sums the pre-tax price of every line item.
func (o *Order) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.LineItems {
		total = total.Add(item.NetPrice)
	}
	return total
}

// StampProviderOrder records the provider order id and raw response on the
// shipment.
func (o *Order) StampProviderOrder(providerOrderID, raw string) {
	o.Shipment.ProviderOrderNumber = providerOrderID
	o.Shipment.RawProviderResponse = raw
	o.UpdatedAt = time.Now()
}

// StampSubscriptionIDs matches provider order lines onto local line items by
// provider product id (and variant id when present) and stamps the returned
// subscription ids. Returns the number of stamped lines.
func (o *Order) StampSubscriptionIDs(lines []billing.NewOrderLine) int {
	stamped := 0
	for _, line := range lines {
		for i := range o.LineItems {
			sub := o.LineItems[i].Sub
			if sub == nil || sub.SubscriptionID != "" {
				continue
			}
			if sub.ProviderProductID != line.ProviderProductID {
				continue
			}
			if line.ProviderVariantID != "" && sub.ProviderVariantID != line.ProviderVariantID {
				continue
			}
			sub.SubscriptionID = line.SubscriptionID
			stamped++
			break
		}
	}
	if stamped > 0 {
		o.UpdatedAt = time.Now()
	}
	return stamped
}

// MarkFailed transitions the order to failed.
func (o *Order) MarkFailed() {
	o.Status = StatusFailed
	o.UpdatedAt = time.Now()
}

// Place runs the host's order-placement sequence: confirmation from the
// fraud-check outcome, then export readiness.
func (o *Order) Place(fraudApproved bool) error {
	if o.Status == StatusPlaced {
		return ErrAlreadyPlaced
	}
	if len(o.LineItems) == 0 {
		return ErrNoLineItems
	}
	if fraudApproved {
		o.Confirmation = ConfirmationConfirmed
	} else {
		o.Confirmation = ConfirmationNotConfirmed
	}
	o.Status = StatusPlaced
	o.ExportReady = true
	o.UpdatedAt = time.Now()
	return nil
}

// RecordTracking stamps a tracking number pulled from the provider onto the
// shipment and marks the matching line shipped.
func (o *Order) RecordTracking(sku, trackingNumber string) bool {
	if trackingNumber == "" {
		return false
	}
	changed := false
	for i := range o.LineItems {
		if o.LineItems[i].SKU == sku && !o.LineItems[i].Shipped {
			o.LineItems[i].Shipped = true
			changed = true
		}
	}
	if changed || o.Shipment.TrackingNumber == "" {
		o.Shipment.TrackingNumber = trackingNumber
		changed = true
	}
	if changed {
		o.RecomputeShippingStatus()
		o.UpdatedAt = time.Now()
	}
	return changed
}

// RecomputeShippingStatus derives the order-level shipping status from its
// line items: all shipped, some shipped, or none.
func (o *Order) RecomputeShippingStatus() {
	shipped := 0
	for _, item := range o.LineItems {
		if item.Shipped {
			shipped++
		}
	}
	switch {
	case shipped == 0:
		o.Shipment.ShippingStatus = ShippingNotShipped
	case shipped == len(o.LineItems):
		o.Shipment.ShippingStatus = ShippingShipped
	default:
		o.Shipment.ShippingStatus = ShippingPartShipped
	}
}

// MarkProviderUpdateApplied sets the idempotence guard after a confirmed
// local-to-provider tracking push.
func (o *Order) MarkProviderUpdateApplied() {
	o.Shipment.ProviderUpdateApplied = true
	o.UpdatedAt = time.Now()
}
