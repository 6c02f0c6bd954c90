package sync

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
)

// CampaignMirror refreshes the cached mirror of the provider's campaign
// graph: offers, prepaid terms, billing models and the SKU to provider-id
// correspondence.
type CampaignMirror struct {
	gateway    billing.ProviderGateway
	snapshots  billing.SnapshotRepository
	logger     *zap.Logger
	campaignID int
}

// NewCampaignMirror creates the campaign mirror service.
func NewCampaignMirror(gateway billing.ProviderGateway, snapshots billing.SnapshotRepository, campaignID int, logger *zap.Logger) *CampaignMirror {
	return &CampaignMirror{
		gateway:    gateway,
		snapshots:  snapshots,
		logger:     logger,
		campaignID: campaignID,
	}
}

// Refresh rebuilds the campaign snapshot from the provider and fully
// replaces the persisted one. A paging failure stops pagination at the last
// successful page; partial data is accepted because the job reruns on a
// schedule and the refresh is idempotent.
func (m *CampaignMirror) Refresh(ctx context.Context, run *SyncRun) (*billing.CampaignSnapshot, error) {
	snapshot := billing.NewCampaignSnapshot()
	snapshot.CampaignID = m.campaignID

	m.collectOffers(ctx, snapshot)
	m.collectBillingModels(ctx, snapshot)
	m.collectProducts(ctx, snapshot)

	prev, err := m.snapshots.Load(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Drift = snapshot.DiffAgainst(prev)
	if prev != nil {
		// Drift the catalog re-validation has not cleared yet carries
		// forward, otherwise a failed downstream step would lose it.
		snapshot.Drift.Merge(prev.Drift)
	}

	if err := m.snapshots.Replace(ctx, snapshot); err != nil {
		return nil, err
	}

	run.Snapshot = snapshot
	run.AddReport("snapshot", map[string]any{
		"offers":         len(snapshot.Offers),
		"terms":          len(snapshot.Terms),
		"billing_models": len(snapshot.BillingModels),
		"products":       len(snapshot.Products),
		"drift":          snapshot.Drift,
	})
	m.logger.Info("campaign snapshot refreshed",
		zap.Int("campaign_id", m.campaignID),
		zap.Int("offers", len(snapshot.Offers)),
		zap.Int("billing_models", len(snapshot.BillingModels)),
		zap.Int("products", len(snapshot.Products)),
		zap.Bool("drift", snapshot.Drift.Any()),
	)
	return snapshot, nil
}

// collectOffers pages through the campaign offer listing, flattening prepaid
// terms into the "{offerID}-{cycles}" lookup with integer rounding.
func (m *CampaignMirror) collectOffers(ctx context.Context, snapshot *billing.CampaignSnapshot) {
	for page := 1; ; page++ {
		result, err := m.gateway.ListCampaignOffers(ctx, m.campaignID, page)
		if err != nil {
			m.logger.Warn("offer paging stopped", zap.Int("page", page), zap.Error(err))
			return
		}
		for _, offer := range result.Offers {
			snapshot.Offers[offer.ID] = billing.Offer{
				ID:        offer.ID,
				Name:      offer.Name,
				IsPrepaid: offer.IsPrepaid,
			}
			if !offer.IsPrepaid {
				continue
			}
			for _, term := range offer.Terms {
				cycles := int(math.Round(term.Cycles))
				snapshot.Terms[billing.NewTermKey(offer.ID, cycles)] = billing.Term{
					OfferID:      offer.ID,
					Cycles:       cycles,
					Value:        int(math.Round(term.Value)),
					DiscountType: term.DiscountType,
				}
			}
		}
		if !result.HasMore {
			return
		}
	}
}

// collectBillingModels pages through billing models, discarding archived ones.
func (m *CampaignMirror) collectBillingModels(ctx context.Context, snapshot *billing.CampaignSnapshot) {
	for page := 1; ; page++ {
		result, err := m.gateway.ListBillingModels(ctx, page)
		if err != nil {
			m.logger.Warn("billing model paging stopped", zap.Int("page", page), zap.Error(err))
			return
		}
		for _, model := range result.Models {
			if model.Archived {
				continue
			}
			snapshot.BillingModels[model.ID] = billing.BillingModel{
				ID:   model.ID,
				Name: model.Name,
			}
		}
		if !result.HasMore {
			return
		}
	}
}

// collectProducts enumerates provider master products and their variants into
// the SKU to provider-id correspondence.
func (m *CampaignMirror) collectProducts(ctx context.Context, snapshot *billing.CampaignSnapshot) {
	for page := 1; ; page++ {
		result, err := m.gateway.ListProducts(ctx, page)
		if err != nil {
			m.logger.Warn("product paging stopped", zap.Int("page", page), zap.Error(err))
			return
		}
		for _, product := range result.Products {
			if product.SKU != "" {
				snapshot.Products[product.SKU] = billing.SnapshotProduct{
					SKU:        product.SKU,
					ProviderID: product.ID,
					Name:       product.Name,
				}
			}
			variants, err := m.gateway.ListVariants(ctx, product.ID)
			if err != nil {
				m.logger.Warn("variant listing failed",
					zap.String("provider_product_id", product.ID), zap.Error(err))
				continue
			}
			for _, variant := range variants {
				if variant.SKU == "" {
					continue
				}
				snapshot.Products[variant.SKU] = billing.SnapshotProduct{
					SKU:             variant.SKU,
					ProviderID:      product.ID,
					ProviderVariant: variant.ID,
					Name:            product.Name,
				}
			}
		}
		if !result.HasMore {
			return
		}
	}
}
