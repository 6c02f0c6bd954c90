package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order aggregate. The shipment
// is flattened onto the order row; one shipment per order.
type OrderModel struct {
	ID           uuid.UUID                `gorm:"type:uuid;primary_key"`
	OrderNo      string                   `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID   uuid.UUID                `gorm:"type:uuid;not null;index"`
	Email        string                   `gorm:"type:varchar(255)"`
	IP           string                   `gorm:"type:varchar(45)"`
	Status       order.Status             `gorm:"type:varchar(20);not null;index"`
	Confirmation order.ConfirmationStatus `gorm:"type:varchar(20);not null"`
	ExportReady  bool                     `gorm:"not null;default:false"`

	ShipmentID            uuid.UUID            `gorm:"type:uuid;not null"`
	ProviderOrderNumber   string               `gorm:"type:varchar(100);index"`
	RawProviderResponse   string               `gorm:"type:text"`
	ProviderUpdateApplied bool                 `gorm:"not null;default:false"`
	TrackingNumber        string               `gorm:"type:varchar(100)"`
	ShippingStatus        order.ShippingStatus `gorm:"type:varchar(20);not null;index"`

	BillingAddressJSON  string `gorm:"type:jsonb;column:billing_address"`
	ShippingAddressJSON string `gorm:"type:jsonb;column:shipping_address"`

	LineItems []OrderLineItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineItemModel is the persistence model for one order line.
type OrderLineItemModel struct {
	ID       uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU      string          `gorm:"type:varchar(100);not null;index"`
	Name     string          `gorm:"type:varchar(255)"`
	Quantity int             `gorm:"not null"`
	NetPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxRate  decimal.Decimal `gorm:"type:decimal(6,4);not null"`
	Shipped  bool            `gorm:"not null;default:false"`

	SubscriptionJSON string `gorm:"type:jsonb;column:subscription_attributes"`
	SubscriptionID   string `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (OrderLineItemModel) TableName() string {
	return "order_line_items"
}

// ToDomain converts the persistence model to a domain Order aggregate.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:           m.ID,
		OrderNo:      m.OrderNo,
		CustomerID:   m.CustomerID,
		Email:        m.Email,
		IP:           m.IP,
		Status:       m.Status,
		Confirmation: m.Confirmation,
		ExportReady:  m.ExportReady,
		Shipment: order.Shipment{
			ID:                    m.ShipmentID,
			ProviderOrderNumber:   m.ProviderOrderNumber,
			RawProviderResponse:   m.RawProviderResponse,
			ProviderUpdateApplied: m.ProviderUpdateApplied,
			TrackingNumber:        m.TrackingNumber,
			ShippingStatus:        m.ShippingStatus,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if m.BillingAddressJSON != "" {
		_ = json.Unmarshal([]byte(m.BillingAddressJSON), &o.BillingAddr)
	}
	if m.ShippingAddressJSON != "" {
		_ = json.Unmarshal([]byte(m.ShippingAddressJSON), &o.ShippingAddr)
	}

	for i := range m.LineItems {
		o.LineItems = append(o.LineItems, *m.LineItems[i].ToDomain())
	}
	return o
}

// ToDomain converts one line item row.
func (m *OrderLineItemModel) ToDomain() *order.LineItem {
	item := &order.LineItem{
		ID:       m.ID,
		SKU:      m.SKU,
		Name:     m.Name,
		Quantity: m.Quantity,
		NetPrice: m.NetPrice,
		TaxRate:  m.TaxRate,
		Shipped:  m.Shipped,
	}
	if m.SubscriptionJSON != "" {
		var sub order.SubscriptionAttributes
		if err := json.Unmarshal([]byte(m.SubscriptionJSON), &sub); err == nil {
			item.Sub = &sub
		}
	}
	return item
}

// FromDomain populates the persistence model from a domain Order aggregate.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.ID = o.ID
	m.OrderNo = o.OrderNo
	m.CustomerID = o.CustomerID
	m.Email = o.Email
	m.IP = o.IP
	m.Status = o.Status
	m.Confirmation = o.Confirmation
	m.ExportReady = o.ExportReady
	m.ShipmentID = o.Shipment.ID
	m.ProviderOrderNumber = o.Shipment.ProviderOrderNumber
	m.RawProviderResponse = o.Shipment.RawProviderResponse
	m.ProviderUpdateApplied = o.Shipment.ProviderUpdateApplied
	m.TrackingNumber = o.Shipment.TrackingNumber
	m.ShippingStatus = o.Shipment.ShippingStatus
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	m.BillingAddressJSON = marshalAddress(o.BillingAddr)
	m.ShippingAddressJSON = marshalAddress(o.ShippingAddr)

	m.LineItems = m.LineItems[:0]
	for i := range o.LineItems {
		item := &o.LineItems[i]
		row := OrderLineItemModel{
			ID:       item.ID,
			OrderID:  o.ID,
			SKU:      item.SKU,
			Name:     item.Name,
			Quantity: item.Quantity,
			NetPrice: item.NetPrice,
			TaxRate:  item.TaxRate,
			Shipped:  item.Shipped,
		}
		if item.Sub != nil {
			if data, err := json.Marshal(item.Sub); err == nil {
				row.SubscriptionJSON = string(data)
			}
			row.SubscriptionID = item.Sub.SubscriptionID
		}
		m.LineItems = append(m.LineItems, row)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order aggregate.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

func marshalAddress(a billing.Address) string {
	data, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(data)
}
