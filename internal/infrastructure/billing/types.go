package billing

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subsync/backend/internal/domain/billing"
)

// The provider API is loosely typed: numeric ids arrive as numbers or
// strings, booleans as "0"/"1" strings. flexID and flag absorb both.

// flexID is a provider id that may arrive as a JSON number or string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexID(s)
	return nil
}

// flag is a provider boolean that may arrive as bool, number or "0"/"1".
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*f = flag(s == "1" || strings.EqualFold(s, "true"))
	return nil
}

// ---------------------------------------------------------------------------
// Campaign Graph
// ---------------------------------------------------------------------------

type termJSON struct {
	Cycles        float64 `json:"cycles"`
	DiscountValue float64 `json:"discount_value"`
	DiscountType  string  `json:"discount_type"`
}

type offerJSON struct {
	ID             flexID `json:"id"`
	Name           string `json:"name"`
	IsPrepaid      flag   `json:"is_prepaid"`
	PrepaidProfile *struct {
		Terms []termJSON `json:"terms"`
	} `json:"prepaid_profile"`
	// The nested billing_models and products sub-objects are deliberately
	// not decoded; those sections are fetched and kept separately.
}

func (o offerJSON) toDomain() billing.CampaignOffer {
	offer := billing.CampaignOffer{
		ID:        billing.OfferID(o.ID),
		Name:      o.Name,
		IsPrepaid: bool(o.IsPrepaid),
	}
	if o.PrepaidProfile != nil {
		for _, t := range o.PrepaidProfile.Terms {
			offer.Terms = append(offer.Terms, billing.OfferTerm{
				Cycles:       t.Cycles,
				Value:        t.DiscountValue,
				DiscountType: t.DiscountType,
			})
		}
	}
	return offer
}

type campaignPageJSON struct {
	Data struct {
		Offers []offerJSON `json:"offers"`
	} `json:"data"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type billingModelJSON struct {
	ID           flexID `json:"id"`
	Name         string `json:"name"`
	Archived     flag   `json:"archived"`
	Type         string `json:"type"`
	DaysPerCycle int    `json:"days_per_cycle"`
}

func (m billingModelJSON) toDomain() billing.CampaignBillingModel {
	return billing.CampaignBillingModel{
		ID:           billing.BillingModelID(m.ID),
		Name:         m.Name,
		Archived:     bool(m.Archived),
		Type:         m.Type,
		DaysPerCycle: m.DaysPerCycle,
	}
}

type billingModelPageJSON struct {
	Data        []billingModelJSON `json:"data"`
	CurrentPage int                `json:"current_page"`
	LastPage    int                `json:"last_page"`
}

// ---------------------------------------------------------------------------
// Products / Variants
// ---------------------------------------------------------------------------

type productJSON struct {
	ID    flexID `json:"id"`
	SKU   string `json:"product_sku"`
	Name  string `json:"product_name"`
	Price string `json:"product_price"`
}

func (p productJSON) toDomain() billing.ProviderProduct {
	return billing.ProviderProduct{
		ID:    string(p.ID),
		SKU:   p.SKU,
		Name:  p.Name,
		Price: parseDecimal(p.Price),
	}
}

type productPageJSON struct {
	Products    []productJSON `json:"products"`
	CurrentPage int           `json:"current_page"`
	LastPage    int           `json:"last_page"`
}

type variantAttributeJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type variantJSON struct {
	ID         flexID                 `json:"id"`
	SKU        string                 `json:"sku_num"`
	Price      string                 `json:"price"`
	Attributes []variantAttributeJSON `json:"attributes"`
}

func (v variantJSON) toDomain() billing.ProviderVariant {
	attrs := make(map[string]string, len(v.Attributes))
	for _, a := range v.Attributes {
		attrs[a.Name] = a.Value
	}
	return billing.ProviderVariant{
		ID:         string(v.ID),
		SKU:        v.SKU,
		Price:      parseDecimal(v.Price),
		Attributes: attrs,
	}
}

type variantListJSON struct {
	Data []variantJSON `json:"data"`
}

type createProductResponseJSON struct {
	ProductID flexID `json:"product_id"`
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

type tokenizeResponseJSON struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type authorizeResponseJSON struct {
	TempCustomerID flexID `json:"temp_customer_id"`
}

type newOrderLineJSON struct {
	ProductID      flexID `json:"product_id"`
	VariantID      flexID `json:"variant_id"`
	SubscriptionID string `json:"subscription_id"`
}

type newOrderResponseJSON struct {
	ResponseCode string             `json:"response_code"`
	OrderID      flexID             `json:"order_id"`
	ErrorMessage string             `json:"error_message"`
	LineItems    []newOrderLineJSON `json:"line_items"`
}

// ---------------------------------------------------------------------------
// Order Reads
// ---------------------------------------------------------------------------

type orderLineJSON struct {
	SKU            string           `json:"sku"`
	ProductID      flexID           `json:"product_id"`
	SubscriptionID string           `json:"subscription_id"`
	TrackingNumber string           `json:"tracking_number"`
	Price          string           `json:"price"`
	OnHold         flag             `json:"on_hold"`
	HoldType       string           `json:"hold_type"`
	IsRecurring    flag             `json:"is_recurring"`
	RecurringDate  string           `json:"recurring_date"`
	CurrentCycle   int              `json:"current_cycle"`
	BillingModel   billingModelJSON `json:"billing_model"`
}

type orderViewJSON struct {
	OrderID              flexID          `json:"order_id"`
	Email                string          `json:"email_address"`
	CustomerDeliveryDate string          `json:"customer_delivery_date"`
	Products             []orderLineJSON `json:"products"`
}

// providerDateLayout is the provider's date format for recurring and
// delivery dates.
const providerDateLayout = "2006-01-02"

func (o orderViewJSON) toDomain() *billing.ProviderOrder {
	out := &billing.ProviderOrder{
		OrderID: string(o.OrderID),
		Email:   o.Email,
	}
	if t, err := time.Parse(providerDateLayout, o.CustomerDeliveryDate); err == nil {
		out.CustomerDeliveryDate = &t
	}
	for _, line := range o.Products {
		domainLine := billing.ProviderOrderLine{
			SKU:               line.SKU,
			ProviderProductID: string(line.ProductID),
			SubscriptionID:    line.SubscriptionID,
			TrackingNumber:    line.TrackingNumber,
			Price:             parseDecimal(line.Price),
			OnHold:            bool(line.OnHold),
			HoldType:          line.HoldType,
			IsRecurring:       bool(line.IsRecurring),
			CurrentCycle:      line.CurrentCycle,
			BillingModel:      line.BillingModel.toDomain(),
		}
		if t, err := time.Parse(providerDateLayout, line.RecurringDate); err == nil {
			domainLine.NextBillDate = &t
		}
		out.Lines = append(out.Lines, domainLine)
	}
	return out
}

type actionResponseJSON struct {
	OrderID flexID `json:"order_id"`
	Message string `json:"message"`
}

// parseDecimal parses a provider price string, treating malformed values as
// zero.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
