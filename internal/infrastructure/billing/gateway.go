package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
)

// Gateway implements the billing.ProviderGateway port on top of the
// single-entry Client wrapper.
type Gateway struct {
	client *Client
	cfg    *ProviderConfig
	logger *zap.Logger
}

// NewGateway creates a provider gateway.
func NewGateway(cfg *ProviderConfig, logger *zap.Logger) (*Gateway, error) {
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Gateway{client: client, cfg: cfg, logger: logger}, nil
}

// NewGatewayWithClient creates a gateway with an existing client. Useful
// for tests.
func NewGatewayWithClient(client *Client, cfg *ProviderConfig, logger *zap.Logger) *Gateway {
	return &Gateway{client: client, cfg: cfg, logger: logger}
}

// call runs an operation and converts error classifications to typed
// errors.
func (g *Gateway) call(ctx context.Context, op string, params CallParams, out any) error {
	res := g.client.Call(ctx, op, params)
	if res.Error {
		if res.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", billing.ErrProviderNotFound, res.Message)
		}
		return fmt.Errorf("%w: %s", billing.ErrProviderRequestFailed, res.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Result, out); err != nil {
		return fmt.Errorf("%w: %v", billing.ErrProviderInvalidResponse, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Campaign Mirror Reads
// ---------------------------------------------------------------------------

func (g *Gateway) ListCampaignOffers(ctx context.Context, campaignID, page int) (*billing.OfferPage, error) {
	var resp campaignPageJSON
	err := g.call(ctx, "provider.get.campaigns", CallParams{
		ID:          fmt.Sprintf("%d", campaignID),
		QueryString: fmt.Sprintf("page=%d&page_size=%d", page, g.cfg.PageSize),
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := &billing.OfferPage{HasMore: resp.CurrentPage < resp.LastPage}
	for _, o := range resp.Data.Offers {
		out.Offers = append(out.Offers, o.toDomain())
	}
	return out, nil
}

func (g *Gateway) ListBillingModels(ctx context.Context, page int) (*billing.BillingModelPage, error) {
	var resp billingModelPageJSON
	err := g.call(ctx, "provider.get.billing_models", CallParams{
		QueryString: fmt.Sprintf("page=%d&page_size=%d", page, g.cfg.PageSize),
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := &billing.BillingModelPage{HasMore: resp.CurrentPage < resp.LastPage}
	for _, m := range resp.Data {
		out.Models = append(out.Models, m.toDomain())
	}
	return out, nil
}

func (g *Gateway) ListProducts(ctx context.Context, page int) (*billing.ProductPage, error) {
	var resp productPageJSON
	err := g.call(ctx, "provider.get.products", CallParams{
		QueryString: fmt.Sprintf("page=%d&page_size=%d", page, g.cfg.PageSize),
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := &billing.ProductPage{HasMore: resp.CurrentPage < resp.LastPage}
	for _, p := range resp.Products {
		out.Products = append(out.Products, p.toDomain())
	}
	return out, nil
}

func (g *Gateway) ListVariants(ctx context.Context, providerProductID string) ([]billing.ProviderVariant, error) {
	var resp variantListJSON
	err := g.call(ctx, "provider.get.products.variants", CallParams{ID: providerProductID}, &resp)
	if err != nil {
		return nil, err
	}
	variants := make([]billing.ProviderVariant, 0, len(resp.Data))
	for _, v := range resp.Data {
		variants = append(variants, v.toDomain())
	}
	return variants, nil
}

// ---------------------------------------------------------------------------
// Product Sync Writes
// ---------------------------------------------------------------------------

// productBody is the request shape for product create/update.
type productBody struct {
	SKU         string `json:"product_sku"`
	Name        string `json:"product_name"`
	Description string `json:"product_description,omitempty"`
	Price       string `json:"product_price"`
	CategoryID  int    `json:"category_id"`
}

func pushToBody(push billing.ProductPush) productBody {
	return productBody{
		SKU:         push.SKU,
		Name:        push.Name,
		Description: push.Description,
		Price:       push.Price.StringFixed(2),
		CategoryID:  1,
	}
}

func (g *Gateway) CreateProduct(ctx context.Context, push billing.ProductPush) (string, error) {
	var resp createProductResponseJSON
	err := g.call(ctx, "provider.post.products", CallParams{Body: pushToBody(push)}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ProductID == "" {
		return "", fmt.Errorf("%w: missing product id", billing.ErrProviderInvalidResponse)
	}
	return string(resp.ProductID), nil
}

func (g *Gateway) UpdateProduct(ctx context.Context, providerProductID string, push billing.ProductPush) error {
	return g.call(ctx, "provider.put.products", CallParams{
		ID:   providerProductID,
		Body: pushToBody(push),
	}, nil)
}

func (g *Gateway) GetProduct(ctx context.Context, providerProductID string) (*billing.ProviderProduct, error) {
	var resp struct {
		Data productJSON `json:"data"`
	}
	err := g.call(ctx, "provider.get.products", CallParams{ID: providerProductID}, &resp)
	if err != nil {
		return nil, err
	}
	product := resp.Data.toDomain()
	if product.ID == "" {
		product.ID = providerProductID
	}
	return &product, nil
}

func (g *Gateway) PushVariantAttributes(ctx context.Context, providerProductID string, defs []billing.VariantAttributeDefinition) error {
	type attributeBody struct {
		Name    string   `json:"name"`
		Options []string `json:"options"`
	}
	body := struct {
		Attributes []attributeBody `json:"attributes"`
	}{}
	for _, def := range defs {
		body.Attributes = append(body.Attributes, attributeBody{Name: def.Name, Options: def.Values})
	}
	return g.call(ctx, "provider.post.products.attributes", CallParams{
		ID:   providerProductID,
		Body: body,
	}, nil)
}

func (g *Gateway) UpdateVariant(ctx context.Context, providerProductID, variantID string, push billing.VariantPush) error {
	body := struct {
		SKU   string `json:"sku_num"`
		Price string `json:"price"`
	}{SKU: push.SKU, Price: push.Price.StringFixed(2)}
	return g.call(ctx, "provider.put.products.variants", CallParams{
		ID:   providerProductID,
		ID2:  variantID,
		Body: body,
	}, nil)
}

func (g *Gateway) DeleteVariant(ctx context.Context, providerProductID, variantID string) error {
	return g.call(ctx, "provider.delete.products.variants", CallParams{
		ID:  providerProductID,
		ID2: variantID,
	}, nil)
}

// ---------------------------------------------------------------------------
// Offer Binding
// ---------------------------------------------------------------------------

func (g *Gateway) UpdateOffer(ctx context.Context, offerID billing.OfferID, push billing.OfferPush) error {
	models := make([]string, 0, len(push.BillingModelIDs))
	for _, id := range push.BillingModelIDs {
		models = append(models, string(id))
	}
	body := struct {
		Products      []string `json:"products"`
		BillingModels []string `json:"billing_models"`
	}{Products: push.ProductIDs, BillingModels: models}
	return g.call(ctx, "provider.put.offers", CallParams{
		ID:   string(offerID),
		Body: body,
	}, nil)
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

func (g *Gateway) TokenizeCard(ctx context.Context, card billing.CardInput) (*billing.PaymentToken, error) {
	body := struct {
		CardNumber   string `json:"card_number"`
		ExpiryMonth  int    `json:"expiry_month"`
		ExpiryYear   int    `json:"expiry_year"`
		SecurityCode string `json:"security_code"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
	}{
		CardNumber:   card.Number,
		ExpiryMonth:  card.ExpiryMonth,
		ExpiryYear:   card.ExpiryYear,
		SecurityCode: card.CVV,
		FirstName:    card.FirstName,
		LastName:     card.LastName,
	}
	var resp tokenizeResponseJSON
	if err := g.call(ctx, "provider.post.tokenize_payment", CallParams{Body: body}, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Token == "" {
		return nil, fmt.Errorf("%w: missing payment token", billing.ErrProviderInvalidResponse)
	}
	return &billing.PaymentToken{
		Token:     resp.Data.Token,
		ExpiresAt: time.Now().Add(billing.PaymentTokenTTL),
	}, nil
}

type addressBody struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

func toAddressBody(a billing.Address) addressBody {
	return addressBody{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address1:  a.Street1,
		Address2:  a.Street2,
		City:      a.City,
		State:     a.State,
		Zip:       a.Zip,
		Country:   a.Country,
		Phone:     a.Phone,
	}
}

func (g *Gateway) Authorize(ctx context.Context, in billing.AuthorizeInput) (string, error) {
	body := struct {
		PaymentToken string      `json:"payment_token"`
		Email        string      `json:"email_address"`
		IP           string      `json:"ip_address"`
		Billing      addressBody `json:"billing_address"`
		ProductID    string      `json:"product_id"`
		CampaignID   int         `json:"campaign_id"`
	}{
		PaymentToken: in.Token,
		Email:        in.Email,
		IP:           in.IP,
		Billing:      toAddressBody(in.BillingAddress),
		ProductID:    in.ReferenceProductID,
		CampaignID:   in.CampaignID,
	}
	var resp authorizeResponseJSON
	if err := g.call(ctx, "provider.post.authorize_payment", CallParams{Body: body}, &resp); err != nil {
		return "", err
	}
	if resp.TempCustomerID == "" {
		return "", fmt.Errorf("%w: missing temp customer id", billing.ErrProviderInvalidResponse)
	}
	return string(resp.TempCustomerID), nil
}

// orderOfferBody is one offers[] entry of the new-order call.
type orderOfferBody struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	OfferID        string `json:"offer_id"`
	BillingModelID string `json:"billing_model_id"`
	TermID         string `json:"trial_id,omitempty"`
	Quantity       int    `json:"quantity"`
	Price          string `json:"price"`
}

// newOrderSuccessCode is the provider's order-accepted response code.
const newOrderSuccessCode = "100"

func (g *Gateway) CreateOrder(ctx context.Context, in billing.NewOrderInput) (*billing.NewOrderResult, error) {
	offers := make([]orderOfferBody, 0, len(in.Offers))
	for _, line := range in.Offers {
		entry := orderOfferBody{
			ProductID:      line.ProviderProductID,
			VariantID:      line.ProviderVariantID,
			OfferID:        string(line.OfferID),
			BillingModelID: string(line.BillingModelID),
			Quantity:       line.Quantity,
			Price:          line.Price.StringFixed(2),
		}
		if line.TermKey != nil {
			entry.TermID = string(*line.TermKey)
		}
		offers = append(offers, entry)
	}
	body := struct {
		TempCustomerID string           `json:"temp_customer_id"`
		PaymentToken   string           `json:"payment_token"`
		Email          string           `json:"email_address"`
		IP             string           `json:"ip_address"`
		CampaignID     int              `json:"campaign_id"`
		Shipping       addressBody      `json:"shipping_address"`
		Billing        addressBody      `json:"billing_address"`
		TaxRate        string           `json:"tax_rate"`
		TaxAmount      string           `json:"tax_amount"`
		Offers         []orderOfferBody `json:"offers"`
	}{
		TempCustomerID: in.TempCustomerID,
		PaymentToken:   in.Token,
		Email:          in.Email,
		IP:             in.IP,
		CampaignID:     in.CampaignID,
		Shipping:       toAddressBody(in.ShippingAddress),
		Billing:        toAddressBody(in.BillingAddress),
		TaxRate:        in.TaxRate.StringFixed(4),
		TaxAmount:      in.TaxAmount.StringFixed(2),
		Offers:         offers,
	}

	res := g.client.Call(ctx, "provider.post.new_order", CallParams{Body: body})
	raw := string(res.Result)
	if raw == "" {
		raw = res.Text
	}
	result := &billing.NewOrderResult{Raw: raw}
	if res.Error {
		return result, fmt.Errorf("%w: %s", billing.ErrProviderRequestFailed, res.Message)
	}

	var resp newOrderResponseJSON
	if err := json.Unmarshal(res.Result, &resp); err != nil {
		return result, fmt.Errorf("%w: %v", billing.ErrProviderInvalidResponse, err)
	}
	if resp.ResponseCode != newOrderSuccessCode {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("response code %s", resp.ResponseCode)
		}
		return result, fmt.Errorf("%w: %s", billing.ErrProviderDeclined, msg)
	}

	result.OrderID = string(resp.OrderID)
	for _, line := range resp.LineItems {
		result.Lines = append(result.Lines, billing.NewOrderLine{
			ProviderProductID: string(line.ProductID),
			ProviderVariantID: string(line.VariantID),
			SubscriptionID:    line.SubscriptionID,
		})
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Order Reads / Shipment Pushes
// ---------------------------------------------------------------------------

func (g *Gateway) GetOrder(ctx context.Context, providerOrderID string) (*billing.ProviderOrder, error) {
	var resp orderViewJSON
	if err := g.call(ctx, "provider.get.orders", CallParams{ID: providerOrderID}, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (g *Gateway) UpdateOrderTracking(ctx context.Context, providerOrderID, trackingNumber string) error {
	body := struct {
		TrackingNumber string `json:"tracking_number"`
	}{TrackingNumber: trackingNumber}
	return g.call(ctx, "provider.post.orders.update_tracking", CallParams{
		ID:   providerOrderID,
		Body: body,
	}, nil)
}

// ---------------------------------------------------------------------------
// Subscription Actions
// ---------------------------------------------------------------------------

// actionPaths maps each subscription action to its provider sub-resource.
var actionPaths = map[billing.SubscriptionAction]string{
	billing.ActionBillingModel:  "billing_model",
	billing.ActionRecurAt:       "recur_at",
	billing.ActionPause:         "hold",
	billing.ActionTerminateNext: "cancel",
	billing.ActionReset:         "reset",
	billing.ActionBillNow:       "bill_now",
}

func (g *Gateway) SubscriptionAction(ctx context.Context, subscriptionID string, action billing.SubscriptionAction, params billing.ActionParams) (*billing.ActionResult, error) {
	helper, ok := actionPaths[action]
	if !ok {
		return nil, billing.ErrUnknownAction
	}
	var body any
	if len(params) > 0 {
		body = params
	}
	var resp actionResponseJSON
	err := g.call(ctx, "provider.post.subscriptions", CallParams{
		ID:     subscriptionID,
		Helper: helper,
		Body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &billing.ActionResult{
		NewOrderID: string(resp.OrderID),
		Message:    resp.Message,
	}, nil
}

// Ensure Gateway implements the provider port.
var _ billing.ProviderGateway = (*Gateway)(nil)
