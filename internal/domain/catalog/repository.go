package catalog

import "context"

// ProductReader defines the read surface the sync pipeline consumes.
type ProductReader interface {
	// FindBySKU returns the product with the given SKU or
	// ErrProductNotFound.
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// FindOnline enumerates every online product.
	FindOnline(ctx context.Context) ([]Product, error)

	// FindVariantsOf returns the variants of a master product.
	FindVariantsOf(ctx context.Context, masterSKU string) ([]Product, error)
}

// ProductWriter persists products and their sync bookkeeping.
type ProductWriter interface {
	// Save creates or updates a product.
	Save(ctx context.Context, product *Product) error
}

// ProductRepository is the full catalog persistence interface.
type ProductRepository interface {
	ProductReader
	ProductWriter
}
