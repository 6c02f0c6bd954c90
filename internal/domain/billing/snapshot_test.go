package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedSnapshot() *CampaignSnapshot {
	s := NewCampaignSnapshot()
	s.Offers["10"] = Offer{ID: "10", Name: "Monthly Box"}
	s.Terms[NewTermKey("10", 3)] = Term{OfferID: "10", Cycles: 3, Value: 10, DiscountType: "percent"}
	s.BillingModels["5"] = BillingModel{ID: "5", Name: "Every 30 Days"}
	s.Products["MUG"] = SnapshotProduct{SKU: "MUG", ProviderID: "100", Name: "Mug"}
	return s
}

func TestNewTermKey(t *testing.T) {
	assert.Equal(t, TermKey("10-3"), NewTermKey("10", 3))
}

func TestSnapshotLookups(t *testing.T) {
	s := populatedSnapshot()
	assert.True(t, s.HasOffer("10"))
	assert.False(t, s.HasOffer("99"))
	assert.True(t, s.HasBillingModel("5"))
	assert.False(t, s.HasBillingModel("9"))
	assert.True(t, s.HasProduct("MUG"))
	assert.False(t, s.HasProduct("SPOON"))
}

func TestDiffAgainst(t *testing.T) {
	t.Run("nil previous drifts every section", func(t *testing.T) {
		drift := populatedSnapshot().DiffAgainst(nil)
		assert.Equal(t, SectionDrift{Offers: true, Terms: true, BillingModels: true, Products: true}, drift)
	})

	t.Run("identical snapshots carry no drift", func(t *testing.T) {
		drift := populatedSnapshot().DiffAgainst(populatedSnapshot())
		assert.False(t, drift.Any())
	})

	t.Run("only the changed section drifts", func(t *testing.T) {
		prev := populatedSnapshot()
		next := populatedSnapshot()
		next.Offers["11"] = Offer{ID: "11", Name: "Prepaid Box", IsPrepaid: true}

		drift := next.DiffAgainst(prev)
		require.True(t, drift.Offers)
		assert.False(t, drift.Terms)
		assert.False(t, drift.BillingModels)
		assert.False(t, drift.Products)
	})
}

func TestSectionDriftMerge(t *testing.T) {
	d := SectionDrift{Offers: true}
	d.Merge(SectionDrift{Products: true})
	assert.Equal(t, SectionDrift{Offers: true, Products: true}, d)

	d.Merge(SectionDrift{})
	assert.Equal(t, SectionDrift{Offers: true, Products: true}, d, "merging nothing clears nothing")
}
