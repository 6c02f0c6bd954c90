package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
)

func mirrorFixtureGateway() *mockGateway {
	gw := &mockGateway{}
	gw.On("ListCampaignOffers", mock.Anything, 1, 1).Return(&billing.OfferPage{
		Offers: []billing.CampaignOffer{
			{ID: "10", Name: "Monthly Box", IsPrepaid: false},
			{ID: "11", Name: "Prepaid Box", IsPrepaid: true, Terms: []billing.OfferTerm{
				{Cycles: 3.0, Value: 10.0, DiscountType: "percent"},
				{Cycles: 6.0, Value: 15.0, DiscountType: "percent"},
			}},
		},
		HasMore: false,
	}, nil)
	gw.On("ListBillingModels", mock.Anything, 1).Return(&billing.BillingModelPage{
		Models: []billing.CampaignBillingModel{
			{ID: "2", Name: "Straight Sale"},
			{ID: "5", Name: "Every 30 Days"},
			{ID: "9", Name: "Old Plan", Archived: true},
		},
		HasMore: false,
	}, nil)
	gw.On("ListProducts", mock.Anything, 1).Return(&billing.ProductPage{
		Products: []billing.ProviderProduct{
			{ID: "100", SKU: "MUG", Name: "Mug"},
			{ID: "200", SKU: "SHIRT", Name: "Shirt"},
		},
		HasMore: false,
	}, nil)
	gw.On("ListVariants", mock.Anything, "100").Return([]billing.ProviderVariant{}, nil)
	gw.On("ListVariants", mock.Anything, "200").Return([]billing.ProviderVariant{
		{ID: "201", SKU: "SHIRT-RED", Attributes: map[string]string{"color": "red"}},
	}, nil)
	return gw
}

func TestCampaignMirrorRefresh(t *testing.T) {
	gw := mirrorFixtureGateway()
	snapshots := &memSnapshotRepo{}
	mirror := NewCampaignMirror(gw, snapshots, 1, zap.NewNop())
	run := NewSyncRun(nil)

	snapshot, err := mirror.Refresh(context.Background(), run)
	require.NoError(t, err)

	assert.True(t, snapshot.HasOffer("10"))
	assert.True(t, snapshot.HasOffer("11"))
	assert.Len(t, snapshot.Terms, 2)
	term, ok := snapshot.Terms[billing.NewTermKey("11", 3)]
	require.True(t, ok)
	assert.Equal(t, 3, term.Cycles)
	assert.Equal(t, 10, term.Value)

	assert.True(t, snapshot.HasBillingModel("2"))
	assert.True(t, snapshot.HasBillingModel("5"))
	assert.False(t, snapshot.HasBillingModel("9"), "archived models are discarded")

	assert.True(t, snapshot.HasProduct("MUG"))
	assert.True(t, snapshot.HasProduct("SHIRT"))
	variantEntry := snapshot.Products["SHIRT-RED"]
	assert.Equal(t, "200", variantEntry.ProviderID)
	assert.Equal(t, "201", variantEntry.ProviderVariant)

	assert.Same(t, snapshot, run.Snapshot)

	stored, err := snapshots.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, snapshot, stored)
}

func TestCampaignMirrorRefreshFirstRunDriftsEverySection(t *testing.T) {
	gw := mirrorFixtureGateway()
	mirror := NewCampaignMirror(gw, &memSnapshotRepo{}, 1, zap.NewNop())

	snapshot, err := mirror.Refresh(context.Background(), NewSyncRun(nil))
	require.NoError(t, err)
	assert.True(t, snapshot.Drift.Offers)
	assert.True(t, snapshot.Drift.Terms)
	assert.True(t, snapshot.Drift.BillingModels)
	assert.True(t, snapshot.Drift.Products)
}

func TestCampaignMirrorRefreshStableSecondRunHasNoDrift(t *testing.T) {
	snapshots := &memSnapshotRepo{}
	mirror := NewCampaignMirror(mirrorFixtureGateway(), snapshots, 1, zap.NewNop())

	_, err := mirror.Refresh(context.Background(), NewSyncRun(nil))
	require.NoError(t, err)
	markDriftConsumed(t, snapshots)

	mirror = NewCampaignMirror(mirrorFixtureGateway(), snapshots, 1, zap.NewNop())
	snapshot, err := mirror.Refresh(context.Background(), NewSyncRun(nil))
	require.NoError(t, err)
	assert.False(t, snapshot.Drift.Any())
}

func TestCampaignMirrorRefreshCarriesUnconsumedDriftForward(t *testing.T) {
	snapshots := &memSnapshotRepo{}
	mirror := NewCampaignMirror(mirrorFixtureGateway(), snapshots, 1, zap.NewNop())

	first, err := mirror.Refresh(context.Background(), NewSyncRun(nil))
	require.NoError(t, err)
	require.True(t, first.Drift.Any())

	// Nothing cleared the drift, so an otherwise identical refresh keeps
	// flagging the same sections.
	mirror = NewCampaignMirror(mirrorFixtureGateway(), snapshots, 1, zap.NewNop())
	second, err := mirror.Refresh(context.Background(), NewSyncRun(nil))
	require.NoError(t, err)
	assert.True(t, second.Drift.Offers)
	assert.True(t, second.Drift.Products)
}

func markDriftConsumed(t *testing.T, snapshots billing.SnapshotRepository) {
	t.Helper()
	stored, err := snapshots.Load(context.Background())
	require.NoError(t, err)
	stored.Drift = billing.SectionDrift{}
	require.NoError(t, snapshots.Replace(context.Background(), stored))
}

func TestCampaignMirrorRefreshToleratesPagingFailure(t *testing.T) {
	gw := &mockGateway{}
	gw.On("ListCampaignOffers", mock.Anything, 1, 1).Return(&billing.OfferPage{
		Offers:  []billing.CampaignOffer{{ID: "10", Name: "Monthly Box"}},
		HasMore: true,
	}, nil)
	gw.On("ListCampaignOffers", mock.Anything, 1, 2).Return(nil, errors.New("boom"))
	gw.On("ListBillingModels", mock.Anything, 1).Return(nil, errors.New("boom"))
	gw.On("ListProducts", mock.Anything, 1).Return(nil, errors.New("boom"))

	mirror := NewCampaignMirror(gw, &memSnapshotRepo{}, 1, zap.NewNop())
	snapshot, err := mirror.Refresh(context.Background(), NewSyncRun(nil))
	require.NoError(t, err)

	assert.True(t, snapshot.HasOffer("10"), "pages before the failure are kept")
	assert.Empty(t, snapshot.BillingModels)
	assert.Empty(t, snapshot.Products)
}
