package storage

import (
	"mercato/internal/domain/carts"
	"mercato/internal/domain/checkout"
	"mercato/internal/domain/products"
	"mercato/internal/domain/users"
	"mercato/internal/domain/wishlist"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool     *pgxpool.Pool
	Users    users.Store
	Products products.Store
	Wishlist wishlist.Store
	Carts    carts.Store
	Checkout checkout.Store
}

// NewContainer wires every repository over a shared pool. The checkout
// repository keeps the pool itself because record creation runs its own
// transaction; settlement transitions are single conditional statements and
// need no transaction at all.
func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:     db,
		Users:    users.NewRepository(db),
		Products: products.NewRepository(db),
		Wishlist: wishlist.NewRepository(db),
		Carts:    carts.NewRepository(db),
		Checkout: checkout.NewRepository(db),
	}
}
