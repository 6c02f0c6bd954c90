package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsync/backend/internal/domain/billing"
)

func TestGormSnapshotRepository_LoadEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)

	snapshot, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestGormSnapshotRepository_ReplaceAndLoad(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)
	ctx := context.Background()

	snapshot := billing.NewCampaignSnapshot()
	snapshot.Offers["10"] = billing.Offer{ID: "10", Name: "Monthly Coffee"}
	snapshot.BillingModels["4"] = billing.BillingModel{ID: "4", Name: "Every 30 Days"}
	snapshot.Terms[billing.NewTermKey("10", 3)] = billing.Term{OfferID: "10", Cycles: 3, Value: 10, DiscountType: "percent"}
	snapshot.Products["SKU-001"] = billing.SnapshotProduct{SKU: "SKU-001", ProviderID: "prov-1"}
	require.NoError(t, repo.Replace(ctx, snapshot))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, billing.DefaultCampaignID, loaded.CampaignID)
	assert.True(t, loaded.HasOffer("10"))
	assert.True(t, loaded.HasBillingModel("4"))
	assert.True(t, loaded.HasProduct("SKU-001"))
	assert.Equal(t, 3, loaded.Terms[billing.NewTermKey("10", 3)].Cycles)
}

func TestGormSnapshotRepository_ReplaceIsFullSwap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)
	ctx := context.Background()

	first := billing.NewCampaignSnapshot()
	first.Offers["10"] = billing.Offer{ID: "10", Name: "Monthly"}
	first.Offers["11"] = billing.Offer{ID: "11", Name: "Quarterly"}
	require.NoError(t, repo.Replace(ctx, first))

	// A refresh that no longer sees offer 11 must drop it, not merge.
	second := billing.NewCampaignSnapshot()
	second.Offers["10"] = billing.Offer{ID: "10", Name: "Monthly"}
	require.NoError(t, repo.Replace(ctx, second))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.HasOffer("10"))
	assert.False(t, loaded.HasOffer("11"))
}
