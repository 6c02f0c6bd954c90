package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsync/backend/internal/domain/order"
)

func buildTestOrder(t *testing.T, orderNo string, customerID uuid.UUID) *order.Order {
	t.Helper()
	o, err := order.NewOrder(orderNo, customerID, "shopper@example.com", "203.0.113.9")
	require.NoError(t, err)

	subLine, err := order.NewLineItem("SKU-SUB", "Coffee Sub", 1, decimal.NewFromInt(25), &order.SubscriptionAttributes{
		ProviderProductID: "prov-1",
		CampaignID:        1,
		OfferID:           "10",
		BillingModelID:    "4",
	})
	require.NoError(t, err)
	o.AddLineItem(*subLine)

	plainLine, err := order.NewLineItem("SKU-MUG", "Mug", 2, decimal.NewFromInt(12), nil)
	require.NoError(t, err)
	o.AddLineItem(*plainLine)
	return o
}

func TestGormOrderRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	o := buildTestOrder(t, "ORD-1001", customerID)
	require.NoError(t, repo.Save(ctx, o))

	found, err := repo.FindByOrderNo(ctx, "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, o.ID, found.ID)
	assert.Equal(t, customerID, found.CustomerID)
	require.Len(t, found.LineItems, 2)

	subs := found.SubscriptionLines()
	require.Len(t, subs, 1)
	assert.Equal(t, "SKU-SUB", subs[0].SKU)
	assert.Equal(t, "prov-1", subs[0].Sub.ProviderProductID)
}

func TestGormOrderRepository_FindByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestGormOrderRepository_FindOpenWithProviderOrders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	open := buildTestOrder(t, "ORD-OPEN", uuid.New())
	open.StampProviderOrder("prov-ord-1", `{"order_id":"prov-ord-1"}`)
	require.NoError(t, open.Place(true))
	require.NoError(t, repo.Save(ctx, open))

	// Placed but never submitted to the provider; must not appear.
	local := buildTestOrder(t, "ORD-LOCAL", uuid.New())
	require.NoError(t, local.Place(true))
	require.NoError(t, repo.Save(ctx, local))

	// Fully shipped; must not appear.
	shipped := buildTestOrder(t, "ORD-SHIPPED", uuid.New())
	shipped.StampProviderOrder("prov-ord-2", "{}")
	require.NoError(t, shipped.Place(true))
	shipped.RecordTracking("SKU-SUB", "TRK-1")
	shipped.RecordTracking("SKU-MUG", "TRK-1")
	require.NoError(t, repo.Save(ctx, shipped))

	orders, err := repo.FindOpenWithProviderOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-OPEN", orders[0].OrderNo)
}

func TestGormOrderRepository_FindPendingTrackingPush(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	pending := buildTestOrder(t, "ORD-PEND", uuid.New())
	pending.StampProviderOrder("prov-ord-3", "{}")
	require.NoError(t, pending.Place(true))
	pending.RecordTracking("SKU-SUB", "TRK-9")
	require.NoError(t, repo.Save(ctx, pending))

	applied := buildTestOrder(t, "ORD-DONE", uuid.New())
	applied.StampProviderOrder("prov-ord-4", "{}")
	require.NoError(t, applied.Place(true))
	applied.RecordTracking("SKU-SUB", "TRK-10")
	applied.MarkProviderUpdateApplied()
	require.NoError(t, repo.Save(ctx, applied))

	orders, err := repo.FindPendingTrackingPush(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-PEND", orders[0].OrderNo)
}

func TestGormOrderRepository_FindPlacedForCustomer(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	mine := uuid.New()
	other := uuid.New()

	o1 := buildTestOrder(t, "ORD-MINE", mine)
	o1.StampProviderOrder("prov-ord-5", "{}")
	require.NoError(t, o1.Place(true))
	require.NoError(t, repo.Save(ctx, o1))

	o2 := buildTestOrder(t, "ORD-OTHER", other)
	o2.StampProviderOrder("prov-ord-6", "{}")
	require.NoError(t, o2.Place(true))
	require.NoError(t, repo.Save(ctx, o2))

	orders, err := repo.FindPlacedForCustomer(ctx, mine)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-MINE", orders[0].OrderNo)
}

func TestGormTransactionManager_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	tm := NewGormTransactionManager(db)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := tm.Transaction(ctx, func(ctx context.Context) error {
		o := buildTestOrder(t, "ORD-TX", uuid.New())
		if err := repo.Save(ctx, o); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = repo.FindByOrderNo(ctx, "ORD-TX")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestGormTransactionManager_Commits(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	tm := NewGormTransactionManager(db)
	ctx := context.Background()

	err := tm.Transaction(ctx, func(ctx context.Context) error {
		return repo.Save(ctx, buildTestOrder(t, "ORD-COMMIT", uuid.New()))
	})
	require.NoError(t, err)

	found, err := repo.FindByOrderNo(ctx, "ORD-COMMIT")
	require.NoError(t, err)
	assert.Equal(t, "ORD-COMMIT", found.OrderNo)
}
