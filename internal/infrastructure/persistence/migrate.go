package persistence

import (
	"gorm.io/gorm"

	"github.com/subsync/backend/internal/infrastructure/persistence/models"
)

// AutoMigrate creates or updates the schema for every persistence model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ProductModel{},
		&models.OrderModel{},
		&models.OrderLineItemModel{},
		&models.CampaignSnapshotModel{},
	)
}
