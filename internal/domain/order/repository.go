package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the order/shipment persistence interface.
type Repository interface {
	// FindByID returns the order with the given id or ErrOrderNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNo returns the order with the given order number.
	FindByOrderNo(ctx context.Context, orderNo string) (*Order, error)

	// FindByProviderOrderNumber returns every local order referencing the
	// given provider order number. More than one result indicates reuse of
	// provider order numbers across environments; callers must apply the
	// ownership check.
	FindByProviderOrderNumber(ctx context.Context, providerOrderNumber string) ([]Order, error)

	// FindOpenWithProviderOrders returns placed orders carrying a provider
	// order number whose shipping status is not yet fully shipped.
	FindOpenWithProviderOrders(ctx context.Context) ([]Order, error)

	// FindPendingTrackingPush returns orders with a locally-captured
	// tracking number not yet forwarded to the provider.
	FindPendingTrackingPush(ctx context.Context) ([]Order, error)

	// FindPlacedForCustomer returns the customer's placed orders that carry
	// a provider order number.
	FindPlacedForCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error)

	// FindBySubscriptionID returns every order with a line item stamped with
	// the given provider subscription id.
	FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]Order, error)

	// Save creates or updates an order with its shipment and line items.
	Save(ctx context.Context, o *Order) error
}

// TransactionManager wraps a logical unit of local mutations in one atomic
// host transaction.
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
