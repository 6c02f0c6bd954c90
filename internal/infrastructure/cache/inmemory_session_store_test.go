package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsync/backend/internal/domain/billing"
)

func TestInMemorySessionStore_SaveAndGet(t *testing.T) {
	store := NewInMemorySessionStore()
	ctx := context.Background()

	session := &billing.CheckoutSession{
		Token:          "tok-1",
		TempCustomerID: "tmp-9",
		CreatedAt:      time.Now(),
	}
	require.NoError(t, store.SaveSession(ctx, "cart-1", session))

	got, err := store.GetSession(ctx, "cart-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, "tmp-9", got.TempCustomerID)
}

func TestInMemorySessionStore_GetMissingReturnsNil(t *testing.T) {
	store := NewInMemorySessionStore()

	got, err := store.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemorySessionStore_ExpiredSessionDropped(t *testing.T) {
	store := NewInMemorySessionStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.SaveSession(ctx, "cart-2", &billing.CheckoutSession{Token: "tok-2", CreatedAt: now}))

	store.now = func() time.Time { return now.Add(billing.PaymentTokenTTL + time.Second) }
	got, err := store.GetSession(ctx, "cart-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemorySessionStore_Delete(t *testing.T) {
	store := NewInMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "cart-3", &billing.CheckoutSession{Token: "tok-3", CreatedAt: time.Now()}))
	require.NoError(t, store.DeleteSession(ctx, "cart-3"))

	got, err := store.GetSession(ctx, "cart-3")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCheckoutSessionExpired(t *testing.T) {
	created := time.Now()
	session := &billing.CheckoutSession{Token: "tok", CreatedAt: created}

	assert.False(t, session.Expired(created.Add(14*time.Minute)))
	assert.True(t, session.Expired(created.Add(15*time.Minute)))
}
