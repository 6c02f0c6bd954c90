package sync

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/catalog"
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

// In-memory fakes for the stateful ports. The sync pipeline reads back what
// it wrote mid-run, which a stateless mock cannot express.

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]catalog.Product
}

func newMemProductRepo(products ...*catalog.Product) *memProductRepo {
	r := &memProductRepo{products: make(map[string]catalog.Product)}
	for _, p := range products {
		r.products[p.SKU] = *p
	}
	return r
}

func (r *memProductRepo) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[sku]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	copied := p
	return &copied, nil
}

func (r *memProductRepo) FindOnline(ctx context.Context) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Product
	for _, p := range r.products {
		if p.Online {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductRepo) FindVariantsOf(ctx context.Context, masterSKU string) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Product
	for _, p := range r.products {
		if p.Type == catalog.ProductTypeVariant && p.MasterSKU == masterSKU {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductRepo) Save(ctx context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.SKU] = *product
	return nil
}

var _ catalog.ProductRepository = (*memProductRepo)(nil)

type memSnapshotRepo struct {
	mu       sync.Mutex
	snapshot *billing.CampaignSnapshot
}

func (r *memSnapshotRepo) Load(ctx context.Context) (*billing.CampaignSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot, nil
}

func (r *memSnapshotRepo) Replace(ctx context.Context, snapshot *billing.CampaignSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = snapshot
	return nil
}

var _ billing.SnapshotRepository = (*memSnapshotRepo)(nil)
