package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subsync/backend/internal/domain/catalog"
)

// ProductModel is the persistence model for the catalog Product entity.
type ProductModel struct {
	SKU         string              `gorm:"type:varchar(100);primary_key"`
	Name        string              `gorm:"type:varchar(255);not null"`
	Description string              `gorm:"type:text"`
	Type        catalog.ProductType `gorm:"type:varchar(20);not null;default:'standalone'"`
	// No column default: gorm skips zero-valued fields that carry one,
	// which would turn a saved Online=false back into true.
	Online bool            `gorm:"not null;index"`
	Price  decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	SubscriptionEnabled       bool   `gorm:"not null;default:false"`
	OneTimePurchaseEnabled    bool   `gorm:"not null;default:false"`
	ConsumerSelectableModel   bool   `gorm:"not null;default:false"`
	ConsumerSelectablePrepaid bool   `gorm:"not null;default:false"`
	OfferSlotsJSON            string `gorm:"type:jsonb;column:offer_slots"`
	Ready                     bool   `gorm:"not null;default:false"`

	MasterSKU           string `gorm:"type:varchar(100);index"`
	VariationValuesJSON string `gorm:"type:jsonb;column:variation_values"`
	VariationAxesJSON   string `gorm:"type:jsonb;column:variation_axes"`
	MemberSKUsJSON      string `gorm:"type:jsonb;column:member_skus"`

	ProviderProductID string `gorm:"type:varchar(100);index"`
	ProviderVariantID string `gorm:"type:varchar(100)"`

	LastModifiedAt time.Time  `gorm:"not null"`
	LastSyncAt     *time.Time `gorm:""`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		SKU:                       m.SKU,
		Name:                      m.Name,
		Description:               m.Description,
		Type:                      m.Type,
		Online:                    m.Online,
		Price:                     m.Price,
		SubscriptionEnabled:       m.SubscriptionEnabled,
		OneTimePurchaseEnabled:    m.OneTimePurchaseEnabled,
		ConsumerSelectableModel:   m.ConsumerSelectableModel,
		ConsumerSelectablePrepaid: m.ConsumerSelectablePrepaid,
		Ready:                     m.Ready,
		MasterSKU:                 m.MasterSKU,
		ProviderProductID:         m.ProviderProductID,
		ProviderVariantID:         m.ProviderVariantID,
		LastModifiedAt:            m.LastModifiedAt,
		LastSyncAt:                m.LastSyncAt,
	}

	if m.OfferSlotsJSON != "" {
		var slots []catalog.OfferSlot
		if err := json.Unmarshal([]byte(m.OfferSlotsJSON), &slots); err == nil {
			p.OfferSlots = slots
		}
	}
	if m.VariationValuesJSON != "" {
		var values map[string]string
		if err := json.Unmarshal([]byte(m.VariationValuesJSON), &values); err == nil {
			p.VariationValues = values
		}
	}
	if m.VariationAxesJSON != "" {
		var axes map[string][]string
		if err := json.Unmarshal([]byte(m.VariationAxesJSON), &axes); err == nil {
			p.VariationAxes = axes
		}
	}
	if m.MemberSKUsJSON != "" {
		var members []string
		if err := json.Unmarshal([]byte(m.MemberSKUsJSON), &members); err == nil {
			p.MemberSKUs = members
		}
	}

	return p
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.SKU = p.SKU
	m.Name = p.Name
	m.Description = p.Description
	m.Type = p.Type
	m.Online = p.Online
	m.Price = p.Price
	m.SubscriptionEnabled = p.SubscriptionEnabled
	m.OneTimePurchaseEnabled = p.OneTimePurchaseEnabled
	m.ConsumerSelectableModel = p.ConsumerSelectableModel
	m.ConsumerSelectablePrepaid = p.ConsumerSelectablePrepaid
	m.Ready = p.Ready
	m.MasterSKU = p.MasterSKU
	m.ProviderProductID = p.ProviderProductID
	m.ProviderVariantID = p.ProviderVariantID
	m.LastModifiedAt = p.LastModifiedAt
	m.LastSyncAt = p.LastSyncAt

	m.OfferSlotsJSON = marshalOrEmpty(p.OfferSlots, "[]")
	m.VariationValuesJSON = marshalOrEmpty(p.VariationValues, "{}")
	m.VariationAxesJSON = marshalOrEmpty(p.VariationAxes, "{}")
	m.MemberSKUsJSON = marshalOrEmpty(p.MemberSKUs, "[]")
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

func marshalOrEmpty(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}
