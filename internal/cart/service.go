package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Antone-2/supplies-core/internal/catalog"
	"github.com/Antone-2/supplies-core/internal/identity"
)

// ErrCartUnavailable wraps transient storage failures; callers may retry.
var ErrCartUnavailable = errors.New("cart storage unavailable")

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type Service struct {
	repo    Repository
	cache   Cache
	catalog catalog.Catalog
	sfg     singleflight.Group // Prevents cache stampede
}

func NewService(repo Repository, cache Cache, cat catalog.Catalog) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		catalog: cat,
	}
}

// Get returns the owner's cart with totals derived fresh. A missing cart is
// an empty cart, not an error. Items whose denormalized name or price went
// missing are repaired from the catalog on the way out.
func (s *Service) Get(ctx context.Context, owner identity.Identity) (*View, error) {
	ownerKey := owner.Key()

	v, err, _ := s.sfg.Do(ownerKey, func() (interface{}, error) {

		cached, err := s.cache.Get(ctx, ownerKey)
		if err == nil {
			return cached, nil // cart is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		stored, errGet := s.repo.GetCart(ctx, ownerKey)
		if errGet != nil && errors.Is(errGet, ErrCartNotFound) {
			return &Cart{
				OwnerKey:  ownerKey,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, errGet)
		}

		s.repairItems(ctx, stored)

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), ownerKey, stored)
			if errSet != nil {
				log.Printf("cache set error: %v \n", errSet)
			}
		}()

		return stored, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*Cart).AsView(), nil
}

// AddItem resolves the product from the catalog, snapshots its price and
// name onto the line, and accumulates quantity if the product is already in
// the cart.
func (s *Service) AddItem(ctx context.Context, owner identity.Identity, productID int64, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}

	item := CartItem{
		ProductID:   product.ID,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		ProductName: product.Name,
		ImageURL:    product.ImageURL,
	}

	if errAdd := s.repo.AddItem(ctx, owner.Key(), item); errAdd != nil {
		log.Printf("repo add item error: %v \n", errAdd)
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, errAdd)
	}

	s.invalidateCache(owner.Key())
	return s.Get(ctx, owner)
}

// UpdateQuantity sets an absolute quantity for a line. Zero or negative is
// a removal.
func (s *Service) UpdateQuantity(ctx context.Context, owner identity.Identity, productID int64, quantity int) (*View, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, owner, productID)
	}

	errUpdate := s.repo.SetItemQuantity(ctx, owner.Key(), productID, quantity)
	if errUpdate != nil {
		if errors.Is(errUpdate, ErrItemNotFound) || errors.Is(errUpdate, ErrCartNotFound) {
			return nil, errUpdate
		}
		log.Printf("repo update item quantity error: %v \n", errUpdate)
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, errUpdate)
	}

	s.invalidateCache(owner.Key())
	return s.Get(ctx, owner)
}

func (s *Service) RemoveItem(ctx context.Context, owner identity.Identity, productID int64) (*View, error) {
	errRemove := s.repo.RemoveItem(ctx, owner.Key(), productID)
	if errRemove != nil {
		if errors.Is(errRemove, ErrCartNotFound) {
			return nil, errRemove
		}
		log.Printf("repo remove item error: %v \n", errRemove)
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, errRemove)
	}

	s.invalidateCache(owner.Key())
	return s.Get(ctx, owner)
}

// Clear deletes the owner's cart. Clearing an absent cart is a no-op.
func (s *Service) Clear(ctx context.Context, owner identity.Identity) error {
	errDelete := s.repo.DeleteCart(ctx, owner.Key())
	if errDelete != nil && !errors.Is(errDelete, ErrCartNotFound) {
		log.Printf("repo delete cart error: %v \n", errDelete)
		return fmt.Errorf("%w: %v", ErrCartUnavailable, errDelete)
	}

	s.invalidateCache(owner.Key())
	return nil
}

// Merge folds a guest cart into the user's cart on login: union by product
// id with quantities summed. The guest cart is deleted afterwards.
func (s *Service) Merge(ctx context.Context, guest identity.Identity, user identity.Identity) (*View, error) {
	guestCart, err := s.repo.GetCart(ctx, guest.Key())
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return s.Get(ctx, user) // nothing to merge
		}
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}

	for _, item := range guestCart.Items {
		if errAdd := s.repo.AddItem(ctx, user.Key(), item); errAdd != nil {
			return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, errAdd)
		}
	}

	if errDel := s.repo.DeleteCart(ctx, guest.Key()); errDel != nil && !errors.Is(errDel, ErrCartNotFound) {
		log.Printf("failed to delete merged guest cart: %v \n", errDel)
	}

	s.invalidateCache(guest.Key())
	s.invalidateCache(user.Key())
	return s.Get(ctx, user)
}

// repairItems refreshes lines whose denormalized fields are missing. Repairs
// are written back best-effort; the read itself never fails over them.
func (s *Service) repairItems(ctx context.Context, cart *Cart) {
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ProductName != "" && item.UnitPrice > 0 {
			continue
		}

		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			log.Printf("read-repair lookup failed for product %d: %v \n", item.ProductID, err)
			continue
		}

		item.ProductName = product.Name
		item.UnitPrice = product.Price
		item.ImageURL = product.ImageURL

		if errSet := s.repo.SetItemDetails(ctx, cart.OwnerKey, item.ProductID, product.Name, product.Price, product.ImageURL); errSet != nil {
			log.Printf("read-repair write-back failed for product %d: %v \n", item.ProductID, errSet)
		}
	}
}

func (s *Service) invalidateCache(ownerKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, ownerKey)
	if errInvalidate != nil {
		log.Printf("cache invalidate error: %v \n", errInvalidate)
	}
}
