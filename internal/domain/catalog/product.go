package catalog

import (
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subsync/backend/internal/domain/billing"
)

var (
	ErrInvalidSKU          = errors.New("catalog: invalid SKU")
	ErrProductNotFound     = errors.New("catalog: product not found")
	ErrTooManyOfferSlots   = errors.New("catalog: offer slots exceed maximum")
	ErrIncompleteOfferSlot = errors.New("catalog: offer slot missing billing models")
)

// MaxOfferSlots bounds the ordered offer/billing-model sequence a product
// may carry.
const MaxOfferSlots = 3

// ProductType classifies a product for sync purposes.
type ProductType string

const (
	ProductTypeStandalone ProductType = "standalone"
	ProductTypeMaster     ProductType = "master"
	ProductTypeVariant    ProductType = "variant"
	ProductTypeSet        ProductType = "set"
)

// OfferSlot pairs one offer with the billing models a shopper may select
// for it.
type OfferSlot struct {
	OfferID         billing.OfferID
	BillingModelIDs []billing.BillingModelID
}

// Product is a catalog product carrying the subscription attributes the
// sync pipeline operates on. Identity is the SKU.
type Product struct {
	SKU         string
	Name        string
	Description string
	Type        ProductType
	Online      bool
	Price       decimal.Decimal

	SubscriptionEnabled    bool
	OneTimePurchaseEnabled bool
	// ConsumerSelectableModel lets the shopper pick the billing model at
	// add-to-cart time instead of the slot default.
	ConsumerSelectableModel   bool
	ConsumerSelectablePrepaid bool
	OfferSlots                []OfferSlot

	// Ready gates storefront purchasability. Validation flips it false
	// whenever the product's offers or billing models have drifted out of
	// the campaign snapshot.
	Ready bool

	// MasterSKU links a variant to its master. Empty for non-variants.
	MasterSKU string
	// VariationValues is a variant's attribute-value combination, e.g.
	// {"color": "red", "size": "M"}.
	VariationValues map[string]string
	// VariationAxes is a master's attribute definitions, e.g.
	// {"color": ["red", "blue"], "size": ["S", "M"]}.
	VariationAxes map[string][]string
	// MemberSKUs lists a product set's members.
	MemberSKUs []string

	ProviderProductID string
	ProviderVariantID string

	LastModifiedAt time.Time
	LastSyncAt     *time.Time
}

// NewProduct creates a product with the given SKU and name.
func NewProduct(sku, name string, productType ProductType) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	return &Product{
		SKU:            sku,
		Name:           name,
		Type:           productType,
		Online:         true,
		Price:          decimal.Zero,
		LastModifiedAt: time.Now(),
	}, nil
}

// Validate checks the structural invariants of the product's subscription
// configuration.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return ErrInvalidSKU
	}
	if len(p.OfferSlots) > MaxOfferSlots {
		return ErrTooManyOfferSlots
	}
	for _, slot := range p.OfferSlots {
		if slot.OfferID != "" && len(slot.BillingModelIDs) == 0 {
			return ErrIncompleteOfferSlot
		}
	}
	return nil
}

// SetOfferSlots replaces the product's offer slots, enforcing the bound.
func (p *Product) SetOfferSlots(slots []OfferSlot) error {
	if len(slots) > MaxOfferSlots {
		return ErrTooManyOfferSlots
	}
	for _, slot := range slots {
		if slot.OfferID != "" && len(slot.BillingModelIDs) == 0 {
			return ErrIncompleteOfferSlot
		}
	}
	p.OfferSlots = slots
	p.Touch()
	return nil
}

// ActiveBillingModels returns the union of billing models across every
// configured offer slot.
func (p *Product) ActiveBillingModels() []billing.BillingModelID {
	seen := make(map[billing.BillingModelID]bool)
	var out []billing.BillingModelID
	for _, slot := range p.OfferSlots {
		if slot.OfferID == "" {
			continue
		}
		for _, id := range slot.BillingModelIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// NeedsSync reports whether the product changed since its last push to the
// provider. Products never synced always need one.
func (p *Product) NeedsSync() bool {
	if p.ProviderProductID == "" || p.LastSyncAt == nil {
		return true
	}
	return p.LastModifiedAt.After(*p.LastSyncAt)
}

// RecordSync stores the provider correspondence and advances the sync
// watermark.
func (p *Product) RecordSync(providerProductID, providerVariantID string) {
	if providerProductID != "" {
		p.ProviderProductID = providerProductID
	}
	if providerVariantID != "" {
		p.ProviderVariantID = providerVariantID
	}
	now := time.Now()
	p.LastSyncAt = &now
}

// MarkReady flips the purchasability gate.
func (p *Product) MarkReady(ready bool) {
	p.Ready = ready
}

// DisableSubscription unsets the subscription flag. Used to auto-correct a
// variant of a multi-variant subscription master that was flagged
// independently.
func (p *Product) DisableSubscription() {
	p.SubscriptionEnabled = false
	p.Touch()
}

// InheritSubscriptionDefaults backfills subscription fields from a product
// set onto a member that does not define its own. Explicit member settings
// are never overwritten.
func (p *Product) InheritSubscriptionDefaults(set *Product) {
	if p.SubscriptionEnabled || !set.SubscriptionEnabled {
		return
	}
	p.SubscriptionEnabled = true
	if len(p.OfferSlots) == 0 {
		p.OfferSlots = set.OfferSlots
	}
	if !p.OneTimePurchaseEnabled {
		p.OneTimePurchaseEnabled = set.OneTimePurchaseEnabled
	}
	p.ConsumerSelectableModel = p.ConsumerSelectableModel || set.ConsumerSelectableModel
	p.ConsumerSelectablePrepaid = p.ConsumerSelectablePrepaid || set.ConsumerSelectablePrepaid
	p.Touch()
}

// MatchesVariant reports whether a provider variant's attribute-value
// combination matches this variant exactly. Every attribute must match on
// both sides; a subset match is not a match.
func (p *Product) MatchesVariant(attributes map[string]string) bool {
	if len(p.VariationValues) == 0 || len(attributes) != len(p.VariationValues) {
		return false
	}
	return maps.Equal(p.VariationValues, attributes)
}

// Touch advances the last-modified watermark.
func (p *Product) Touch() {
	p.LastModifiedAt = time.Now()
}
