package catalog

import (
	"context"
	"errors"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID       int64   `bson:"_id"`
	Name     string  `bson:"name"`
	Price    float64 `bson:"price"`
	ImageURL string  `bson:"image_url"`
}

// Catalog is the read-only product collaborator. The cart service uses it to
// snapshot price and name when an item is added and to repair stale
// denormalized fields on read.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (*Product, error)
}
