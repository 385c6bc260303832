// Package identity defines the owner key under which carts and orders are
// stored. A shopper is either a registered user or an anonymous guest holding
// an opaque token; both map onto the same Identity value so the rest of the
// system never branches on which one it is dealing with.
package identity

import "github.com/google/uuid"

type Kind string

const (
	KindGuest Kind = "guest"
	KindUser  Kind = "user"
)

type Identity struct {
	Kind Kind
	ID   string
}

func Guest(id string) Identity {
	return Identity{Kind: KindGuest, ID: id}
}

func User(id string) Identity {
	return Identity{Kind: KindUser, ID: id}
}

// NewGuestID mints the opaque token a client persists locally to identify
// its anonymous cart.
func NewGuestID() string {
	return uuid.NewString()
}

func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Key is the storage key for this identity. The kind prefix keeps guest and
// user keyspaces disjoint even if a raw id collides.
func (i Identity) Key() string {
	return string(i.Kind) + ":" + i.ID
}
