package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises the behaviour every CartRepository driver
// must share. newRepo returns a freshly migrated, empty store.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) CartRepository) {
	t.Run("GetCartByUserID_NotFound", func(t *testing.T) {
		repo := newRepo(t)

		cart, err := repo.GetCartByUserID(context.Background(), "nobody")
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("GetOrCreateCart_CreatesOnce", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.GetOrCreateCart(ctx, "user-1")
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, "user-1", first.UserID)
		assert.Empty(t, first.Items)

		second, err := repo.GetOrCreateCart(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("GetOrCreateCart_Concurrent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const n = 10
		ids := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cart, err := repo.GetOrCreateCart(ctx, "user-race")
				if assert.NoError(t, err) {
					ids <- cart.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[string]struct{}{}
		for id := range ids {
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, 1, "exactly one cart per user")
	})

	t.Run("InsertItem_AndRead", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		cart := mustCart(t, repo, "user-1")

		item := newItem(cart.ID, "p-1", 2)
		require.NoError(t, repo.InsertItem(ctx, item))
		assert.NotEmpty(t, item.ID)

		got, err := repo.GetItem(ctx, cart.ID, "p-1")
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, 2, got.Quantity)
		assert.Equal(t, "Lamp", got.ProductName)
		assert.True(t, decimal.RequireFromString("19.99").Equal(got.ProductPrice))
		assert.Equal(t, "http://img/p-1.png", got.ProductImageURL)

		reloaded, err := repo.GetCartByUserID(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, reloaded.Items, 1)
		assert.Equal(t, "p-1", reloaded.Items[0].ProductID)
	})

	t.Run("InsertItem_DuplicateProduct", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		cart := mustCart(t, repo, "user-1")

		require.NoError(t, repo.InsertItem(ctx, newItem(cart.ID, "p-1", 1)))
		err := repo.InsertItem(ctx, newItem(cart.ID, "p-1", 3))
		assert.ErrorIs(t, err, ErrDuplicateItem)

		reloaded, err := repo.GetCartByUserID(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, reloaded.Items, 1)
		assert.Equal(t, 1, reloaded.Items[0].Quantity)
	})

	t.Run("InsertItem_ZeroQuantityRejected", func(t *testing.T) {
		repo := newRepo(t)
		cart := mustCart(t, repo, "user-1")

		err := repo.InsertItem(context.Background(), newItem(cart.ID, "p-1", 0))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrDuplicateItem))
	})

	t.Run("GetItem_NotFound", func(t *testing.T) {
		repo := newRepo(t)
		cart := mustCart(t, repo, "user-1")

		_, err := repo.GetItem(context.Background(), cart.ID, "p-404")
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("UpdateItem", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		cart := mustCart(t, repo, "user-1")
		item := newItem(cart.ID, "p-1", 2)
		require.NoError(t, repo.InsertItem(ctx, item))

		item.Quantity = 7
		item.ProductName = "Desk Lamp"
		item.ProductPrice = decimal.RequireFromString("24.50")
		require.NoError(t, repo.UpdateItem(ctx, item))

		got, err := repo.GetItem(ctx, cart.ID, "p-1")
		require.NoError(t, err)
		assert.Equal(t, 7, got.Quantity)
		assert.Equal(t, "Desk Lamp", got.ProductName)
		assert.True(t, decimal.RequireFromString("24.50").Equal(got.ProductPrice))
	})

	t.Run("UpdateItem_NotFound", func(t *testing.T) {
		repo := newRepo(t)
		cart := mustCart(t, repo, "user-1")

		err := repo.UpdateItem(context.Background(), newItem(cart.ID, "p-404", 1))
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("DeleteItem", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		cart := mustCart(t, repo, "user-1")
		require.NoError(t, repo.InsertItem(ctx, newItem(cart.ID, "p-1", 1)))
		require.NoError(t, repo.InsertItem(ctx, newItem(cart.ID, "p-2", 1)))

		require.NoError(t, repo.DeleteItem(ctx, cart.ID, "p-1"))
		assert.ErrorIs(t, repo.DeleteItem(ctx, cart.ID, "p-1"), domain.ErrItemNotFound)

		reloaded, err := repo.GetCartByUserID(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, reloaded.Items, 1)
		assert.Equal(t, "p-2", reloaded.Items[0].ProductID)
	})

	t.Run("DeleteItems_KeepsCart", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		cart := mustCart(t, repo, "user-1")
		require.NoError(t, repo.InsertItem(ctx, newItem(cart.ID, "p-1", 1)))
		require.NoError(t, repo.InsertItem(ctx, newItem(cart.ID, "p-2", 1)))

		n, err := repo.DeleteItems(ctx, cart.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.DeleteItems(ctx, cart.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		reloaded, err := repo.GetCartByUserID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, cart.ID, reloaded.ID)
		assert.Empty(t, reloaded.Items)
	})

	t.Run("UpdateProductSnapshot_AcrossCarts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		a := mustCart(t, repo, "user-a")
		b := mustCart(t, repo, "user-b")
		require.NoError(t, repo.InsertItem(ctx, newItem(a.ID, "p-1", 2)))
		require.NoError(t, repo.InsertItem(ctx, newItem(b.ID, "p-1", 5)))
		require.NoError(t, repo.InsertItem(ctx, newItem(b.ID, "p-2", 1)))

		name := "Lamp v2"
		price := decimal.RequireFromString("9.99")
		n, err := repo.UpdateProductSnapshot(ctx, "p-1", domain.ProductPatch{Name: &name, Price: &price})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		itemA, err := repo.GetItem(ctx, a.ID, "p-1")
		require.NoError(t, err)
		assert.Equal(t, "Lamp v2", itemA.ProductName)
		assert.True(t, price.Equal(itemA.ProductPrice))
		assert.Equal(t, "http://img/p-1.png", itemA.ProductImageURL, "absent fields are kept")
		assert.Equal(t, 2, itemA.Quantity)

		itemB, err := repo.GetItem(ctx, b.ID, "p-1")
		require.NoError(t, err)
		assert.Equal(t, 5, itemB.Quantity)

		other, err := repo.GetItem(ctx, b.ID, "p-2")
		require.NoError(t, err)
		assert.Equal(t, "Lamp", other.ProductName)
	})

	t.Run("UpdateProductSnapshot_EmptyPatch", func(t *testing.T) {
		repo := newRepo(t)

		n, err := repo.UpdateProductSnapshot(context.Background(), "p-1", domain.ProductPatch{})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("DeleteItemsByProduct_AcrossCarts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		a := mustCart(t, repo, "user-a")
		b := mustCart(t, repo, "user-b")
		require.NoError(t, repo.InsertItem(ctx, newItem(a.ID, "p-1", 2)))
		require.NoError(t, repo.InsertItem(ctx, newItem(b.ID, "p-1", 5)))
		require.NoError(t, repo.InsertItem(ctx, newItem(b.ID, "p-2", 1)))

		n, err := repo.DeleteItemsByProduct(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.DeleteItemsByProduct(ctx, "p-1")
		require.NoError(t, err)
		assert.Zero(t, n, "replayed delete is a no-op")

		cartB, err := repo.GetCartByUserID(ctx, "user-b")
		require.NoError(t, err)
		require.Len(t, cartB.Items, 1)
		assert.Equal(t, "p-2", cartB.Items[0].ProductID)
	})
}

func mustCart(t *testing.T, repo CartRepository, userID string) *domain.Cart {
	t.Helper()
	cart, err := repo.GetOrCreateCart(context.Background(), userID)
	require.NoError(t, err)
	return cart
}

func newItem(cartID, productID string, quantity int) *domain.CartItem {
	return &domain.CartItem{
		CartID:          cartID,
		ProductID:       productID,
		Quantity:        quantity,
		ProductName:     "Lamp",
		ProductPrice:    decimal.RequireFromString("19.99"),
		ProductImageURL: "http://img/" + productID + ".png",
	}
}
