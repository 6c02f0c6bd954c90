package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/order"
)

// Mock implementations

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ListCampaignOffers(ctx context.Context, campaignID, page int) (*billing.OfferPage, error) {
	args := m.Called(ctx, campaignID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.OfferPage), args.Error(1)
}

func (m *mockGateway) ListBillingModels(ctx context.Context, page int) (*billing.BillingModelPage, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingModelPage), args.Error(1)
}

func (m *mockGateway) ListProducts(ctx context.Context, page int) (*billing.ProductPage, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProductPage), args.Error(1)
}

func (m *mockGateway) ListVariants(ctx context.Context, providerProductID string) ([]billing.ProviderVariant, error) {
	args := m.Called(ctx, providerProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.ProviderVariant), args.Error(1)
}

func (m *mockGateway) CreateProduct(ctx context.Context, push billing.ProductPush) (string, error) {
	args := m.Called(ctx, push)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) UpdateProduct(ctx context.Context, providerProductID string, push billing.ProductPush) error {
	args := m.Called(ctx, providerProductID, push)
	return args.Error(0)
}

func (m *mockGateway) GetProduct(ctx context.Context, providerProductID string) (*billing.ProviderProduct, error) {
	args := m.Called(ctx, providerProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProviderProduct), args.Error(1)
}

func (m *mockGateway) PushVariantAttributes(ctx context.Context, providerProductID string, defs []billing.VariantAttributeDefinition) error {
	args := m.Called(ctx, providerProductID, defs)
	return args.Error(0)
}

func (m *mockGateway) UpdateVariant(ctx context.Context, providerProductID, variantID string, push billing.VariantPush) error {
	args := m.Called(ctx, providerProductID, variantID, push)
	return args.Error(0)
}

func (m *mockGateway) DeleteVariant(ctx context.Context, providerProductID, variantID string) error {
	args := m.Called(ctx, providerProductID, variantID)
	return args.Error(0)
}

func (m *mockGateway) UpdateOffer(ctx context.Context, offerID billing.OfferID, push billing.OfferPush) error {
	args := m.Called(ctx, offerID, push)
	return args.Error(0)
}

func (m *mockGateway) TokenizeCard(ctx context.Context, card billing.CardInput) (*billing.PaymentToken, error) {
	args := m.Called(ctx, card)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentToken), args.Error(1)
}

func (m *mockGateway) Authorize(ctx context.Context, in billing.AuthorizeInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateOrder(ctx context.Context, in billing.NewOrderInput) (*billing.NewOrderResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.NewOrderResult), args.Error(1)
}

func (m *mockGateway) GetOrder(ctx context.Context, providerOrderID string) (*billing.ProviderOrder, error) {
	args := m.Called(ctx, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProviderOrder), args.Error(1)
}

func (m *mockGateway) UpdateOrderTracking(ctx context.Context, providerOrderID, trackingNumber string) error {
	args := m.Called(ctx, providerOrderID, trackingNumber)
	return args.Error(0)
}

func (m *mockGateway) SubscriptionAction(ctx context.Context, subscriptionID string, action billing.SubscriptionAction, params billing.ActionParams) (*billing.ActionResult, error) {
	args := m.Called(ctx, subscriptionID, action, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ActionResult), args.Error(1)
}

var _ billing.ProviderGateway = (*mockGateway)(nil)

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func newMemOrderRepo(orders ...*order.Order) *memOrderRepo {
	r := &memOrderRepo{orders: make(map[string]order.Order)}
	for _, o := range orders {
		r.orders[o.OrderNo] = *o
	}
	return r
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			copied := o
			return &copied, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r *memOrderRepo) FindByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	copied := o
	return &copied, nil
}

func (r *memOrderRepo) FindByProviderOrderNumber(ctx context.Context, providerOrderNumber string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.Shipment.ProviderOrderNumber == providerOrderNumber {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) FindOpenWithProviderOrders(ctx context.Context) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.Status == order.StatusPlaced && o.Shipment.ProviderOrderNumber != "" &&
			o.Shipment.ShippingStatus != order.ShippingShipped {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) FindPendingTrackingPush(ctx context.Context) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.Shipment.ProviderOrderNumber != "" && o.Shipment.TrackingNumber != "" &&
			!o.Shipment.ProviderUpdateApplied {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) FindPlacedForCustomer(ctx context.Context, customerID uuid.UUID) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID && o.Status == order.StatusPlaced &&
			o.Shipment.ProviderOrderNumber != "" {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		for _, item := range o.LineItems {
			if item.Sub != nil && item.Sub.SubscriptionID == subscriptionID {
				out = append(out, o)
				break
			}
		}
	}
	return out, nil
}

func (r *memOrderRepo) Save(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.OrderNo] = *o
	return nil
}

var _ order.Repository = (*memOrderRepo)(nil)
