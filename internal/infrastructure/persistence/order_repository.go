package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subsync/backend/internal/domain/order"
	"github.com/subsync/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := dbFor(ctx, r.db).
		Preload("LineItems").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderNo finds an order by its order number
func (r *GormOrderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	var model models.OrderModel
	if err := dbFor(ctx, r.db).
		Preload("LineItems").
		First(&model, "order_no = ?", orderNo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProviderOrderNumber returns every local order referencing the given
// provider order number
func (r *GormOrderRepository) FindByProviderOrderNumber(ctx context.Context, providerOrderNumber string) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := dbFor(ctx, r.db).
		Preload("LineItems").
		Where("provider_order_number = ?", providerOrderNumber).
		Order("created_at ASC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// FindOpenWithProviderOrders returns placed orders carrying a provider order
// number that are not yet fully shipped
func (r *GormOrderRepository) FindOpenWithProviderOrders(ctx context.Context) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := dbFor(ctx, r.db).
		Preload("LineItems").
		Where("status = ? AND provider_order_number <> '' AND shipping_status <> ?",
			order.StatusPlaced, order.ShippingShipped).
		Order("created_at ASC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// FindPendingTrackingPush returns orders with a locally-captured tracking
// number not yet forwarded to the provider
func (r *GormOrderRepository) FindPendingTrackingPush(ctx context.Context) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := dbFor(ctx, r.db).
		Preload("LineItems").
		Where("provider_order_number <> '' AND tracking_number <> '' AND provider_update_applied = ?", false).
		Order("created_at ASC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// FindPlacedForCustomer returns the customer's placed orders carrying a
// provider order number
func (r *GormOrderRepository) FindPlacedForCustomer(ctx context.Context, customerID uuid.UUID) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := dbFor(ctx, r.db).
		Preload("LineItems").
		Where("customer_id = ? AND status = ? AND provider_order_number <> ''",
			customerID, order.StatusPlaced).
		Order("created_at DESC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// FindBySubscriptionID returns every order with a line item stamped with the
// given provider subscription id
func (r *GormOrderRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := dbFor(ctx, r.db).
		Preload("LineItems").
		Where("id IN (?)", dbFor(ctx, r.db).
			Model(&models.OrderLineItemModel{}).
			Select("order_id").
			Where("subscription_id = ?", subscriptionID)).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(orderModels), nil
}

// Save creates or updates an order with its line items
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	db := dbFor(ctx, r.db)

	if err := db.
		Session(&gorm.Session{FullSaveAssociations: false}).
		Omit("LineItems").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error; err != nil {
		return err
	}

	for i := range model.LineItems {
		if err := db.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).
			Create(&model.LineItems[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func toDomainOrders(orderModels []models.OrderModel) []order.Order {
	orders := make([]order.Order, len(orderModels))
	for i := range orderModels {
		orders[i] = *orderModels[i].ToDomain()
	}
	return orders
}

// Ensure interface compliance
var _ order.Repository = (*GormOrderRepository)(nil)
