package billing

import (
	"context"
	"fmt"
	"maps"
	"time"
)

// DefaultCampaignID is the single provider campaign this system operates on.
// The provider groups offers and billing models under campaigns; we use
// exactly one.
const DefaultCampaignID = 1

// StraightSaleBillingModelID is the provider's one-time-purchase billing model.
// Non-subscription items are routed through it so every order flows through
// the same provider order-creation call.
const StraightSaleBillingModelID BillingModelID = "2"

// OfferID identifies a provider-side offer.
type OfferID string

// BillingModelID identifies a provider-side billing model.
type BillingModelID string

// TermKey identifies a prepaid term as "{offerID}-{cycles}".
type TermKey string

// NewTermKey builds the lookup key for a prepaid term.
func NewTermKey(offerID OfferID, cycles int) TermKey {
	return TermKey(fmt.Sprintf("%s-%d", offerID, cycles))
}

// Offer is a provider-side sellable subscription proposition.
// Prepaid terms are kept separately in the snapshot's Terms section.
type Offer struct {
	ID        OfferID
	Name      string
	IsPrepaid bool
}

// Term is a prepaid offer's cycle-count/discount combination.
// Cycle counts and discount values are rounded to integers when the
// snapshot is built.
type Term struct {
	OfferID      OfferID
	Cycles       int
	Value        int
	DiscountType string
}

// BillingModel is a provider-side recurrence definition.
type BillingModel struct {
	ID   BillingModelID
	Name string
}

// SnapshotProduct is the SKU to provider-id correspondence entry.
type SnapshotProduct struct {
	SKU             string
	ProviderID      string
	ProviderVariant string
	Name            string
}

// SectionDrift marks snapshot sections that changed since the last
// reconciliation with locally-derived attribute metadata. A set flag tells
// the metadata-regeneration step that its definitions are stale.
type SectionDrift struct {
	Offers        bool
	Terms         bool
	BillingModels bool
	Products      bool
}

// CampaignSnapshot is the cached mirror of the provider's campaign graph.
// It is persisted as one serialized blob keyed by the campaign id and fully
// replaced on every refresh, never patched.
type CampaignSnapshot struct {
	CampaignID    int
	Offers        map[OfferID]Offer
	Terms         map[TermKey]Term
	BillingModels map[BillingModelID]BillingModel
	Products      map[string]SnapshotProduct
	Drift         SectionDrift
	RefreshedAt   time.Time
}

// NewCampaignSnapshot returns an empty snapshot for the default campaign.
func NewCampaignSnapshot() *CampaignSnapshot {
	return &CampaignSnapshot{
		CampaignID:    DefaultCampaignID,
		Offers:        make(map[OfferID]Offer),
		Terms:         make(map[TermKey]Term),
		BillingModels: make(map[BillingModelID]BillingModel),
		Products:      make(map[string]SnapshotProduct),
		RefreshedAt:   time.Now(),
	}
}

// HasOffer reports whether the snapshot knows the given offer.
func (s *CampaignSnapshot) HasOffer(id OfferID) bool {
	_, ok := s.Offers[id]
	return ok
}

// HasBillingModel reports whether the snapshot knows the given billing model.
func (s *CampaignSnapshot) HasBillingModel(id BillingModelID) bool {
	_, ok := s.BillingModels[id]
	return ok
}

// HasProduct reports whether the snapshot has a correspondence entry for
// the given SKU.
func (s *CampaignSnapshot) HasProduct(sku string) bool {
	_, ok := s.Products[sku]
	return ok
}

// DiffAgainst compares each section of s against a previous snapshot and
// returns the union with any externally-detected metadata gaps. A nil
// previous snapshot drifts every section.
func (s *CampaignSnapshot) DiffAgainst(prev *CampaignSnapshot) SectionDrift {
	if prev == nil {
		return SectionDrift{Offers: true, Terms: true, BillingModels: true, Products: true}
	}
	return SectionDrift{
		Offers:        !maps.Equal(s.Offers, prev.Offers),
		Terms:         !maps.Equal(s.Terms, prev.Terms),
		BillingModels: !maps.Equal(s.BillingModels, prev.BillingModels),
		Products:      !maps.Equal(s.Products, prev.Products),
	}
}

// Merge ORs another drift computation into d.
func (d *SectionDrift) Merge(other SectionDrift) {
	d.Offers = d.Offers || other.Offers
	d.Terms = d.Terms || other.Terms
	d.BillingModels = d.BillingModels || other.BillingModels
	d.Products = d.Products || other.Products
}

// Any reports whether any section drifted.
func (d SectionDrift) Any() bool {
	return d.Offers || d.Terms || d.BillingModels || d.Products
}

// SnapshotRepository persists the campaign snapshot blob.
type SnapshotRepository interface {
	// Load returns the current snapshot, or (nil, nil) when none has been
	// persisted yet.
	Load(ctx context.Context) (*CampaignSnapshot, error)

	// Replace atomically swaps the stored snapshot for the given one.
	Replace(ctx context.Context, snapshot *CampaignSnapshot) error
}
