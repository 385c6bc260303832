package cart

import (
	"context"
	"errors"
)

type Cache interface {
	Get(ctx context.Context, ownerKey string) (*Cart, error)
	Set(ctx context.Context, ownerKey string, cart *Cart) error
	Delete(ctx context.Context, ownerKey string) error
}

var ErrCacheMiss = errors.New("cache miss")
