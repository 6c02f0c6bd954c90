package sync

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/catalog"
)

// ProductSync pushes the local catalog to the provider: product and variant
// creation, drift repair, orphan variant deletion, validation against the
// campaign snapshot, and the straight-sale placeholder.
type ProductSync struct {
	gateway         billing.ProviderGateway
	products        catalog.ProductRepository
	snapshots       billing.SnapshotRepository
	logger          *zap.Logger
	straightSaleSKU string
}

// NewProductSync creates the product sync service.
func NewProductSync(gateway billing.ProviderGateway, products catalog.ProductRepository, snapshots billing.SnapshotRepository, straightSaleSKU string, logger *zap.Logger) *ProductSync {
	return &ProductSync{
		gateway:         gateway,
		products:        products,
		snapshots:       snapshots,
		logger:          logger,
		straightSaleSKU: straightSaleSKU,
	}
}

// SyncAll walks every online product through SyncProduct. One bad record
// never aborts the batch; failures land in the run report.
func (s *ProductSync) SyncAll(ctx context.Context, run *SyncRun) error {
	if err := s.ensureSnapshot(ctx, run); err != nil {
		return err
	}
	if err := s.EnsureStraightSale(ctx, run); err != nil {
		s.logger.Error("straight sale placeholder failed", zap.Error(err))
		run.AddReport("errors", map[string]string{"sku": s.straightSaleSKU, "error": err.Error()})
	}

	products, err := s.products.FindOnline(ctx)
	if err != nil {
		return err
	}
	for i := range products {
		if err := s.SyncProduct(ctx, run, &products[i]); err != nil {
			s.logger.Error("product sync failed",
				zap.String("sku", products[i].SKU), zap.Error(err))
			run.AddReport("errors", map[string]string{
				"sku":   products[i].SKU,
				"error": err.Error(),
			})
		}
	}
	return nil
}

// SyncProduct reconciles one product with the provider.
func (s *ProductSync) SyncProduct(ctx context.Context, run *SyncRun, product *catalog.Product) error {
	if run.Seen(product.SKU) {
		return nil
	}
	run.MarkSeen(product.SKU)

	if !product.Online {
		return nil
	}

	switch product.Type {
	case catalog.ProductTypeVariant:
		return s.correctVariantFlag(ctx, run, product)
	case catalog.ProductTypeSet:
		return s.syncSet(ctx, run, product)
	}

	if !product.SubscriptionEnabled {
		return nil
	}
	return s.syncStandaloneOrMaster(ctx, run, product)
}

// correctVariantFlag handles a variant reached directly. Variants of a
// multi-variant subscription master are never independently synced; an
// independently-set subscription flag is an inconsistent catalog edit and is
// unset here.
func (s *ProductSync) correctVariantFlag(ctx context.Context, run *SyncRun, variant *catalog.Product) error {
	if variant.MasterSKU == "" || !variant.SubscriptionEnabled {
		return nil
	}
	master, err := s.products.FindBySKU(ctx, variant.MasterSKU)
	if err != nil {
		return err
	}
	if !master.SubscriptionEnabled {
		return nil
	}
	siblings, err := s.products.FindVariantsOf(ctx, master.SKU)
	if err != nil {
		return err
	}
	if len(siblings) <= 1 {
		return nil
	}
	variant.DisableSubscription()
	if err := s.products.Save(ctx, variant); err != nil {
		return err
	}
	run.AddReport("corrected_variants", map[string]string{"sku": variant.SKU})
	s.logger.Warn("unset independent subscription flag on variant",
		zap.String("sku", variant.SKU), zap.String("master", master.SKU))
	return nil
}

// syncSet recurses into a product set's members, backfilling subscription
// defaults onto members that do not define their own.
func (s *ProductSync) syncSet(ctx context.Context, run *SyncRun, set *catalog.Product) error {
	for _, memberSKU := range set.MemberSKUs {
		member, err := s.products.FindBySKU(ctx, memberSKU)
		if err != nil {
			s.logger.Warn("set member missing",
				zap.String("set", set.SKU), zap.String("member", memberSKU), zap.Error(err))
			continue
		}
		before := member.SubscriptionEnabled
		member.InheritSubscriptionDefaults(set)
		if member.SubscriptionEnabled != before {
			if err := s.products.Save(ctx, member); err != nil {
				return err
			}
		}
		if err := s.SyncProduct(ctx, run, member); err != nil {
			run.AddReport("errors", map[string]string{"sku": member.SKU, "error": err.Error()})
		}
	}
	return nil
}

func (s *ProductSync) syncStandaloneOrMaster(ctx context.Context, run *SyncRun, product *catalog.Product) error {
	reset := run.Params.Bool(ParamResetAll)
	if reset && !run.Params.Bool(ParamPersistIDs) {
		product.ProviderProductID = ""
		product.ProviderVariantID = ""
	}

	isNew := product.ProviderProductID == ""
	push := billing.ProductPush{
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
	}

	switch {
	case isNew:
		providerID, err := s.gateway.CreateProduct(ctx, push)
		if err != nil {
			return err
		}
		product.RecordSync(providerID, "")
		run.AddReport("created", map[string]string{
			"sku":                 product.SKU,
			"provider_product_id": providerID,
		})
	case product.NeedsSync() || reset:
		if err := s.gateway.UpdateProduct(ctx, product.ProviderProductID, push); err != nil {
			return err
		}
		product.RecordSync("", "")
		run.AddReport("updated", map[string]string{
			"sku":                 product.SKU,
			"provider_product_id": product.ProviderProductID,
		})
	}

	if product.Type == catalog.ProductTypeMaster {
		if err := s.syncVariants(ctx, run, product, isNew); err != nil {
			return err
		}
	}

	s.validateAgainstSnapshot(run, product)
	if product.Ready {
		for _, slot := range product.OfferSlots {
			run.LogOfferProduct(slot.OfferID, product.ProviderProductID)
		}
	}

	return s.products.Save(ctx, product)
}

// syncVariants reconciles a master's local variants with the provider's.
// Matching is exact-set on the attribute-value combination; provider
// variants that match no local variant are orphans and are deleted.
func (s *ProductSync) syncVariants(ctx context.Context, run *SyncRun, master *catalog.Product, isNew bool) error {
	if isNew && len(master.VariationAxes) > 0 {
		defs := make([]billing.VariantAttributeDefinition, 0, len(master.VariationAxes))
		names := make([]string, 0, len(master.VariationAxes))
		for name := range master.VariationAxes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			defs = append(defs, billing.VariantAttributeDefinition{
				Name:   name,
				Values: master.VariationAxes[name],
			})
		}
		if err := s.gateway.PushVariantAttributes(ctx, master.ProviderProductID, defs); err != nil {
			return err
		}
	}

	localVariants, err := s.products.FindVariantsOf(ctx, master.SKU)
	if err != nil {
		return err
	}
	providerVariants, err := s.gateway.ListVariants(ctx, master.ProviderProductID)
	if err != nil {
		return err
	}

	matched := make(map[string]bool, len(providerVariants))
	for i := range localVariants {
		local := &localVariants[i]
		run.MarkSeen(local.SKU)
		for _, remote := range providerVariants {
			if !local.MatchesVariant(remote.Attributes) {
				continue
			}
			matched[remote.ID] = true
			drifted := remote.SKU != local.SKU || !remote.Price.Equal(local.Price)
			if drifted {
				err := s.gateway.UpdateVariant(ctx, master.ProviderProductID, remote.ID, billing.VariantPush{
					SKU:   local.SKU,
					Price: local.Price,
				})
				if err != nil {
					return err
				}
				run.AddReport("variant_updated", map[string]string{
					"sku":                 local.SKU,
					"provider_variant_id": remote.ID,
				})
			}
			if drifted || local.ProviderVariantID != remote.ID || local.ProviderProductID != master.ProviderProductID {
				local.RecordSync(master.ProviderProductID, remote.ID)
				if err := s.products.Save(ctx, local); err != nil {
					return err
				}
			}
			break
		}
	}

	for _, remote := range providerVariants {
		if matched[remote.ID] {
			continue
		}
		if err := s.gateway.DeleteVariant(ctx, master.ProviderProductID, remote.ID); err != nil {
			return err
		}
		run.AddReport("orphan_variants_deleted", map[string]string{
			"provider_variant_id": remote.ID,
			"provider_sku":        remote.SKU,
		})
		s.logger.Info("deleted orphan provider variant",
			zap.String("master", master.SKU), zap.String("provider_variant_id", remote.ID))
	}
	return nil
}

// validateAgainstSnapshot flips the purchasability gate. A product is ready
// only when its SKU correspondence is known and every selected offer and
// billing model is still present in the campaign snapshot.
func (s *ProductSync) validateAgainstSnapshot(run *SyncRun, product *catalog.Product) {
	snapshot := run.Snapshot
	if snapshot == nil {
		product.MarkReady(false)
		return
	}

	known := product.ProviderProductID != "" || snapshot.HasProduct(product.SKU)
	if !known {
		product.MarkReady(false)
		return
	}
	for _, slot := range product.OfferSlots {
		if slot.OfferID == "" {
			continue
		}
		if !snapshot.HasOffer(slot.OfferID) {
			product.MarkReady(false)
			return
		}
		for _, modelID := range slot.BillingModelIDs {
			if !snapshot.HasBillingModel(modelID) {
				product.MarkReady(false)
				return
			}
		}
	}
	product.MarkReady(true)
}

// ValidateAll re-runs snapshot validation over the whole catalog. Invoked
// right after a campaign snapshot refresh.
func (s *ProductSync) ValidateAll(ctx context.Context, run *SyncRun) error {
	if err := s.ensureSnapshot(ctx, run); err != nil {
		return err
	}
	products, err := s.products.FindOnline(ctx)
	if err != nil {
		return err
	}
	for i := range products {
		product := &products[i]
		if !product.SubscriptionEnabled {
			continue
		}
		before := product.Ready
		s.validateAgainstSnapshot(run, product)
		if product.Ready == before {
			continue
		}
		if err := s.products.Save(ctx, product); err != nil {
			return err
		}
		run.AddReport("readiness_changed", map[string]any{
			"sku":   product.SKU,
			"ready": product.Ready,
		})
	}

	// Validation consumed the accumulated drift; clear it so the next
	// refresh does not carry it forward.
	if run.Snapshot.Drift.Any() {
		run.Snapshot.Drift = billing.SectionDrift{}
		if err := s.snapshots.Replace(ctx, run.Snapshot); err != nil {
			return err
		}
	}
	return nil
}

// EnsureStraightSale creates the straight-sale placeholder product once at a
// fixed SKU, reusing the recorded provider id while the provider-side SKU
// still matches and recreating it when it does not.
func (s *ProductSync) EnsureStraightSale(ctx context.Context, run *SyncRun) error {
	placeholder, err := s.products.FindBySKU(ctx, s.straightSaleSKU)
	if err != nil {
		if !errors.Is(err, catalog.ErrProductNotFound) {
			return err
		}
		placeholder, err = catalog.NewProduct(s.straightSaleSKU, "Straight Sale", catalog.ProductTypeStandalone)
		if err != nil {
			return err
		}
	}

	if placeholder.ProviderProductID != "" {
		remote, err := s.gateway.GetProduct(ctx, placeholder.ProviderProductID)
		switch {
		case err == nil && remote.SKU == s.straightSaleSKU:
			run.StraightSaleProviderID = placeholder.ProviderProductID
			return s.products.Save(ctx, placeholder)
		case err == nil:
			s.logger.Warn("straight sale placeholder drifted, recreating",
				zap.String("provider_product_id", placeholder.ProviderProductID),
				zap.String("remote_sku", remote.SKU))
		case errors.Is(err, billing.ErrProviderNotFound):
			s.logger.Warn("straight sale placeholder missing at provider, recreating",
				zap.String("provider_product_id", placeholder.ProviderProductID))
		default:
			// Recreating on a transient lookup failure would mint a
			// duplicate product and orphan the id on existing order lines.
			return err
		}
	}

	providerID, err := s.gateway.CreateProduct(ctx, billing.ProductPush{
		SKU:   s.straightSaleSKU,
		Name:  "Straight Sale",
		Price: placeholder.Price,
	})
	if err != nil {
		return err
	}
	placeholder.RecordSync(providerID, "")
	run.StraightSaleProviderID = providerID
	run.AddReport("straight_sale", map[string]string{"provider_product_id": providerID})
	return s.products.Save(ctx, placeholder)
}

func (s *ProductSync) ensureSnapshot(ctx context.Context, run *SyncRun) error {
	if run.Snapshot != nil {
		return nil
	}
	snapshot, err := s.snapshots.Load(ctx)
	if err != nil {
		return err
	}
	if snapshot == nil {
		snapshot = billing.NewCampaignSnapshot()
	}
	run.Snapshot = snapshot
	return nil
}
