package sync

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
)

// OfferBinding pushes the product and billing-model membership of every
// offer touched during a sync run. One provider call per offer, carrying the
// complete membership.
type OfferBinding struct {
	gateway billing.ProviderGateway
	logger  *zap.Logger
}

// NewOfferBinding creates the offer binding service.
func NewOfferBinding(gateway billing.ProviderGateway, logger *zap.Logger) *OfferBinding {
	return &OfferBinding{gateway: gateway, logger: logger}
}

// SyncOffers binds each offer logged during the run to its product set and
// to the full catalog of billing models. The straight-sale model is withheld
// from prepaid offers, which cannot be purchased one-time.
func (b *OfferBinding) SyncOffers(ctx context.Context, run *SyncRun) error {
	if run.Snapshot == nil {
		return nil
	}

	modelIDs := make([]billing.BillingModelID, 0, len(run.Snapshot.BillingModels))
	for id := range run.Snapshot.BillingModels {
		modelIDs = append(modelIDs, id)
	}
	sort.Slice(modelIDs, func(i, j int) bool { return modelIDs[i] < modelIDs[j] })

	for offerID, productIDs := range run.OfferProducts() {
		offer, known := run.Snapshot.Offers[offerID]
		if !known {
			b.logger.Warn("skipping offer absent from snapshot",
				zap.String("offer_id", string(offerID)))
			continue
		}

		models := modelIDs
		if offer.IsPrepaid {
			models = make([]billing.BillingModelID, 0, len(modelIDs))
			for _, id := range modelIDs {
				if id == billing.StraightSaleBillingModelID {
					continue
				}
				models = append(models, id)
			}
		}

		push := billing.OfferPush{ProductIDs: productIDs, BillingModelIDs: models}
		if err := b.gateway.UpdateOffer(ctx, offerID, push); err != nil {
			b.logger.Error("offer update failed",
				zap.String("offer_id", string(offerID)), zap.Error(err))
			run.AddReport("errors", map[string]string{
				"offer_id": string(offerID),
				"error":    err.Error(),
			})
			continue
		}
		run.AddReport("offers_bound", map[string]any{
			"offer_id":       string(offerID),
			"products":       len(productIDs),
			"billing_models": len(models),
		})
	}
	return nil
}
