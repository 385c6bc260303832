package cart

import (
	"context"
	"errors"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// Repository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type Repository interface {
	GetCart(ctx context.Context, ownerKey string) (*Cart, error)
	// AddItem increments the quantity of an existing line or appends a new
	// one, creating the cart document on first add. Each call is a
	// read-modify-write on the single item, not an overwrite of the cart.
	AddItem(ctx context.Context, ownerKey string, item CartItem) error
	SetItemQuantity(ctx context.Context, ownerKey string, productID int64, quantity int) error
	// SetItemDetails writes back repaired denormalized fields for one line.
	SetItemDetails(ctx context.Context, ownerKey string, productID int64, name string, price float64, imageURL string) error
	RemoveItem(ctx context.Context, ownerKey string, productID int64) error
	DeleteCart(ctx context.Context, ownerKey string) error
}
