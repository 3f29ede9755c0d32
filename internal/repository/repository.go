package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cartsync/internal/domain"
)

// ErrDuplicateItem means a row for the same (cart, product) pair already
// exists. Callers retry the write as an update.
var ErrDuplicateItem = errors.New("cart item already exists")

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// CartRepository defines the interface for cart data operations
type CartRepository interface {
	GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error)
	GetItem(ctx context.Context, cartID, productID string) (*domain.CartItem, error)
	InsertItem(ctx context.Context, item *domain.CartItem) error
	UpdateItem(ctx context.Context, item *domain.CartItem) error
	DeleteItem(ctx context.Context, cartID, productID string) error
	DeleteItems(ctx context.Context, cartID string) (int64, error)

	UpdateProductSnapshot(ctx context.Context, productID string, patch domain.ProductPatch) (int64, error)
	DeleteItemsByProduct(ctx context.Context, productID string) (int64, error)

	RunMigrations(migrationsPath string) error
	Close() error
}
