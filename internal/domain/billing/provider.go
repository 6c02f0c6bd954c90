package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Provider Errors
// ---------------------------------------------------------------------------

var (
	ErrProviderNotConfigured   = errors.New("billing: provider not configured")
	ErrProviderUnavailable     = errors.New("billing: provider temporarily unavailable")
	ErrProviderRequestFailed   = errors.New("billing: provider request failed")
	ErrProviderInvalidResponse = errors.New("billing: invalid provider response")
	ErrProviderDeclined        = errors.New("billing: provider declined the request")
	ErrProviderNotFound        = errors.New("billing: resource not found at provider")

	ErrPaymentTokenExpired = errors.New("billing: payment token expired")

	ErrSubscriptionNotFound = errors.New("billing: subscription not found")
	ErrSubscriptionNotOwned = errors.New("billing: subscription does not belong to customer")

	ErrUnknownAction      = errors.New("billing: unknown subscription action")
	ErrMissingActionParam = errors.New("billing: required action parameter missing")
	ErrActionNotEnabled   = errors.New("billing: subscription action disabled for this site")
)

// ---------------------------------------------------------------------------
// Campaign Graph Wire Shapes
// ---------------------------------------------------------------------------

// OfferTerm is a prepaid term as the provider reports it, before the
// snapshot rounds cycles and values to integers.
type OfferTerm struct {
	Cycles       float64
	Value        float64
	DiscountType string
}

// CampaignOffer is an offer as returned by the campaign listing.
type CampaignOffer struct {
	ID        OfferID
	Name      string
	IsPrepaid bool
	Terms     []OfferTerm
}

// CampaignBillingModel is a billing model as returned by the provider.
type CampaignBillingModel struct {
	ID           BillingModelID
	Name         string
	Archived     bool
	Type         string
	DaysPerCycle int
}

// OfferPage is one page of the campaign offer listing.
type OfferPage struct {
	Offers  []CampaignOffer
	HasMore bool
}

// BillingModelPage is one page of the billing model listing.
type BillingModelPage struct {
	Models  []CampaignBillingModel
	HasMore bool
}

// ProviderProduct is a product as the provider stores it.
type ProviderProduct struct {
	ID    string
	SKU   string
	Name  string
	Price decimal.Decimal
}

// ProductPage is one page of the provider product listing.
type ProductPage struct {
	Products []ProviderProduct
	HasMore  bool
}

// ProviderVariant is a provider-side variant with its attribute-value
// combination.
type ProviderVariant struct {
	ID         string
	SKU        string
	Price      decimal.Decimal
	Attributes map[string]string
}

// ---------------------------------------------------------------------------
// Sync Push Shapes
// ---------------------------------------------------------------------------

// ProductPush is the payload for creating or updating a provider product.
type ProductPush struct {
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
}

// VariantAttributeDefinition declares one variation axis and its values.
type VariantAttributeDefinition struct {
	Name   string
	Values []string
}

// VariantPush is the payload for updating a provider variant.
type VariantPush struct {
	SKU   string
	Price decimal.Decimal
}

// OfferPush is the payload binding an offer to its products and billing
// models.
type OfferPush struct {
	ProductIDs      []string
	BillingModelIDs []BillingModelID
}

// ---------------------------------------------------------------------------
// Checkout Shapes
// ---------------------------------------------------------------------------

// PaymentTokenTTL is how long a provider payment token stays usable.
// Expiry is checked explicitly before every authorize attempt.
const PaymentTokenTTL = 15 * time.Minute

// CardInput carries raw card data into tokenization. It must never be
// persisted or logged unmasked.
type CardInput struct {
	Number      string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
	FirstName   string
	LastName    string
}

// PaymentToken is the short-lived opaque token the provider exchanges for
// card data.
type PaymentToken struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at the given time.
func (t PaymentToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Address is a postal address as the provider expects it.
type Address struct {
	FirstName string
	LastName  string
	Street1   string
	Street2   string
	City      string
	State     string
	Zip       string
	Country   string
	Phone     string
}

// AuthorizeInput is the payload for the pre-order authorization call. The
// reference product and campaign ids come from any one subscription line
// item present; they all share a campaign.
type AuthorizeInput struct {
	Token              string
	Email              string
	IP                 string
	BillingAddress     Address
	ReferenceProductID string
	CampaignID         int
}

// OrderOfferLine is one offer entry of the provider order-creation call.
type OrderOfferLine struct {
	ProviderProductID string
	ProviderVariantID string
	OfferID           OfferID
	BillingModelID    BillingModelID
	TermKey           *TermKey
	Quantity          int
	Price             decimal.Decimal
}

// NewOrderInput is the payload for the provider order-creation call.
type NewOrderInput struct {
	TempCustomerID  string
	Token           string
	Email           string
	IP              string
	CampaignID      int
	ShippingAddress Address
	BillingAddress  Address
	TaxRate         decimal.Decimal
	TaxAmount       decimal.Decimal
	Offers          []OrderOfferLine
}

// NewOrderLine is the per-line outcome of a created provider order.
type NewOrderLine struct {
	ProviderProductID string
	ProviderVariantID string
	SubscriptionID    string
}

// NewOrderResult is the outcome of the provider order-creation call. Raw is
// preserved for CSR forensics even when the call is declined.
type NewOrderResult struct {
	OrderID string
	Lines   []NewOrderLine
	Raw     string
}

// ---------------------------------------------------------------------------
// Order / Subscription Read Shapes
// ---------------------------------------------------------------------------

// ProviderOrderLine is one line of a provider order as read back for
// reconciliation.
type ProviderOrderLine struct {
	SKU               string
	ProviderProductID string
	SubscriptionID    string
	TrackingNumber    string
	Price             decimal.Decimal
	OnHold            bool
	HoldType          string
	IsRecurring       bool
	NextBillDate      *time.Time
	CurrentCycle      int
	BillingModel      CampaignBillingModel
}

// ProviderOrder is a provider order as read back for reconciliation and
// subscription display.
type ProviderOrder struct {
	OrderID string
	Email   string
	Lines   []ProviderOrderLine

	// CustomerDeliveryDate is the stored anchor date used to estimate the
	// next delivery; nil when the custom field is absent.
	CustomerDeliveryDate *time.Time
}

// ---------------------------------------------------------------------------
// Subscription Actions
// ---------------------------------------------------------------------------

// SubscriptionAction names a customer/CSR-initiated subscription mutation.
// Every action maps 1:1 to one provider call.
type SubscriptionAction string

const (
	ActionBillingModel  SubscriptionAction = "billing_model"
	ActionRecurAt       SubscriptionAction = "recur_at"
	ActionPause         SubscriptionAction = "pause"
	ActionTerminateNext SubscriptionAction = "terminate_next"
	ActionReset         SubscriptionAction = "reset"
	ActionBillNow       SubscriptionAction = "bill_now"
)

// IsValid returns true if the action is one the dispatch table knows.
func (a SubscriptionAction) IsValid() bool {
	switch a {
	case ActionBillingModel, ActionRecurAt, ActionPause,
		ActionTerminateNext, ActionReset, ActionBillNow:
		return true
	default:
		return false
	}
}

// ActionParams is the flat parameter bag accompanying an action.
type ActionParams map[string]string

// ActionResult is the provider's answer to a subscription action.
// NewOrderID is set only for bill_now, which generates a fresh provider
// order.
type ActionResult struct {
	NewOrderID string
	Message    string
}

// ---------------------------------------------------------------------------
// ProviderGateway Port
// ---------------------------------------------------------------------------

// ProviderGateway is the port to the subscription-billing provider's HTTP
// API. Implementations classify provider error payloads and return typed
// errors; raw bodies are surfaced only where forensics require them.
type ProviderGateway interface {
	// Campaign mirror reads. Pages are 1-indexed.
	ListCampaignOffers(ctx context.Context, campaignID, page int) (*OfferPage, error)
	ListBillingModels(ctx context.Context, page int) (*BillingModelPage, error)
	ListProducts(ctx context.Context, page int) (*ProductPage, error)
	ListVariants(ctx context.Context, providerProductID string) ([]ProviderVariant, error)

	// Product sync writes.
	CreateProduct(ctx context.Context, push ProductPush) (string, error)
	UpdateProduct(ctx context.Context, providerProductID string, push ProductPush) error
	GetProduct(ctx context.Context, providerProductID string) (*ProviderProduct, error)
	PushVariantAttributes(ctx context.Context, providerProductID string, defs []VariantAttributeDefinition) error
	UpdateVariant(ctx context.Context, providerProductID, variantID string, push VariantPush) error
	DeleteVariant(ctx context.Context, providerProductID, variantID string) error

	// Offer binding.
	UpdateOffer(ctx context.Context, offerID OfferID, push OfferPush) error

	// Checkout.
	TokenizeCard(ctx context.Context, card CardInput) (*PaymentToken, error)
	Authorize(ctx context.Context, in AuthorizeInput) (string, error)
	// CreateOrder returns a non-nil result carrying the raw response even
	// when the call errors, so callers can persist it for forensics.
	CreateOrder(ctx context.Context, in NewOrderInput) (*NewOrderResult, error)

	// Order reads and shipment pushes.
	GetOrder(ctx context.Context, providerOrderID string) (*ProviderOrder, error)
	UpdateOrderTracking(ctx context.Context, providerOrderID, trackingNumber string) error

	// Subscription mutations.
	SubscriptionAction(ctx context.Context, subscriptionID string, action SubscriptionAction, params ActionParams) (*ActionResult, error)
}
