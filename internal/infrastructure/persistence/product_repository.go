package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subsync/backend/internal/domain/catalog"
	"github.com/subsync/backend/internal/infrastructure/persistence/models"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindBySKU finds a product by its SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := dbFor(ctx, r.db).First(&model, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOnline enumerates every online product
func (r *GormProductRepository) FindOnline(ctx context.Context) ([]catalog.Product, error) {
	var productModels []models.ProductModel
	if err := dbFor(ctx, r.db).
		Where("online = ?", true).
		Order("sku ASC").
		Find(&productModels).Error; err != nil {
		return nil, err
	}
	products := make([]catalog.Product, len(productModels))
	for i, model := range productModels {
		products[i] = *model.ToDomain()
	}
	return products, nil
}

// FindVariantsOf returns the variants of a master product
func (r *GormProductRepository) FindVariantsOf(ctx context.Context, masterSKU string) ([]catalog.Product, error) {
	var productModels []models.ProductModel
	if err := dbFor(ctx, r.db).
		Where("master_sku = ?", masterSKU).
		Order("sku ASC").
		Find(&productModels).Error; err != nil {
		return nil, err
	}
	products := make([]catalog.Product, len(productModels))
	for i, model := range productModels {
		products[i] = *model.ToDomain()
	}
	return products, nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	return dbFor(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// Ensure interface compliance
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
