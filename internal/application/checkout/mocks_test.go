package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/catalog"
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

// In-memory fakes for the stateful ports.

type memOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]order.Order
	saveErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]order.Order)}
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
	if r.saveErr != nil {
		return r.saveErr
	}
	r.orders[o.OrderNo] = *o
	return nil
}

var _ order.Repository = (*memOrderRepo)(nil)

type memProductReader struct {
	products map[string]catalog.Product
}

func (r *memProductReader) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	p, ok := r.products[sku]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	copied := p
	return &copied, nil
}

func (r *memProductReader) FindOnline(ctx context.Context) ([]catalog.Product, error) {
	return nil, nil
}

func (r *memProductReader) FindVariantsOf(ctx context.Context, masterSKU string) ([]catalog.Product, error) {
	return nil, nil
}

var _ catalog.ProductReader = (*memProductReader)(nil)

type memSnapshotRepo struct {
	snapshot *billing.CampaignSnapshot
}

func (r *memSnapshotRepo) Load(ctx context.Context) (*billing.CampaignSnapshot, error) {
	return r.snapshot, nil
}

func (r *memSnapshotRepo) Replace(ctx context.Context, snapshot *billing.CampaignSnapshot) error {
	r.snapshot = snapshot
	return nil
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*billing.CheckoutSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*billing.CheckoutSession)}
}

func (s *memSessionStore) SaveSession(ctx context.Context, cartID string, session *billing.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[cartID] = session
	return nil
}

func (s *memSessionStore) GetSession(ctx context.Context, cartID string) (*billing.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[cartID], nil
}

func (s *memSessionStore) DeleteSession(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, cartID)
	return nil
}

var _ billing.SessionStore = (*memSessionStore)(nil)

// passthroughTxm runs the function with the same context; failTxm simulates
// a host transaction that cannot commit.

type passthroughTxm struct{}

func (passthroughTxm) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type failTxm struct{}

func (failTxm) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return errors.New("tx: commit failed")
}

type captureNotifier struct {
	subjects []string
	bodies   []string
}

func (n *captureNotifier) Notify(subject, body string, to ...string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}
