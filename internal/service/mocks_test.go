package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"github.com/fjod/go_cart/cartsync/internal/repository"
	"github.com/google/uuid"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart // by user id
	err   error

	// beforeInsert runs under the lock; returning an error aborts the insert.
	beforeInsert func(cart *domain.Cart, item *domain.CartItem) error
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockRepository) withCart(userID string, items ...domain.CartItem) *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	cart := &domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	for _, it := range items {
		it.CartID = cart.ID
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		cart.Items = append(cart.Items, it)
	}
	m.carts[userID] = cart
	return copyCart(cart)
}

func (m *mockRepository) item(userID, productID string) (domain.CartItem, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	cart, ok := m.carts[userID]
	if !ok {
		return domain.CartItem{}, false
	}
	it, ok := cart.Item(productID)
	if !ok {
		return domain.CartItem{}, false
	}
	return *it, true
}

func (m *mockRepository) cartByID(cartID string) *domain.Cart {
	for _, c := range m.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem{}, c.Items...)
	return &cp
}

func (m *mockRepository) GetOrCreateCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{ID: uuid.NewString(), UserID: userID, Items: []domain.CartItem{}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		m.carts[userID] = cart
	}
	return copyCart(cart), nil
}

func (m *mockRepository) GetCartByUserID(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return copyCart(cart), nil
}

func (m *mockRepository) GetItem(_ context.Context, cartID, productID string) (*domain.CartItem, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	cart := m.cartByID(cartID)
	if cart == nil {
		return nil, domain.ErrItemNotFound
	}
	it, ok := cart.Item(productID)
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockRepository) InsertItem(_ context.Context, item *domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart := m.cartByID(item.CartID)
	if m.beforeInsert != nil {
		if err := m.beforeInsert(cart, item); err != nil {
			return err
		}
	}
	if _, ok := cart.Item(item.ProductID); ok {
		return repository.ErrDuplicateItem
	}
	item.ID = uuid.NewString()
	cart.Items = append(cart.Items, *item)
	return nil
}

func (m *mockRepository) UpdateItem(_ context.Context, item *domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart := m.cartByID(item.CartID)
	if cart == nil {
		return domain.ErrItemNotFound
	}
	it, ok := cart.Item(item.ProductID)
	if !ok {
		return domain.ErrItemNotFound
	}
	it.Quantity = item.Quantity
	it.ProductName = item.ProductName
	it.ProductPrice = item.ProductPrice
	it.ProductImageURL = item.ProductImageURL
	return nil
}

func (m *mockRepository) DeleteItem(_ context.Context, cartID, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart := m.cartByID(cartID)
	for i, it := range cart.Items {
		if it.ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return nil
		}
	}
	return domain.ErrItemNotFound
}

func (m *mockRepository) DeleteItems(_ context.Context, cartID string) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	cart := m.cartByID(cartID)
	n := int64(len(cart.Items))
	cart.Items = []domain.CartItem{}
	return n, nil
}

func (m *mockRepository) UpdateProductSnapshot(context.Context, string, domain.ProductPatch) (int64, error) {
	return 0, nil
}

func (m *mockRepository) DeleteItemsByProduct(context.Context, string) (int64, error) {
	return 0, nil
}

func (m *mockRepository) RunMigrations(string) error { return nil }

func (m *mockRepository) Close() error { return nil }

type mockResolver struct {
	m        sync.RWMutex
	products map[string]*domain.ProductSnapshot
	errs     map[string]error
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	// echoID rewrites the id in returned snapshots, like a catalog that
	// canonicalises ids.
	echoID func(string) string
}

func newMockResolver(products ...*domain.ProductSnapshot) *mockResolver {
	r := &mockResolver{
		products: make(map[string]*domain.ProductSnapshot),
		errs:     make(map[string]error),
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *mockResolver) setErr(productID string, err error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.errs[productID] = err
}

func (r *mockResolver) ResolveProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.m.RLock()
	defer r.m.RUnlock()
	if err, ok := r.errs[productID]; ok {
		return nil, err
	}
	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	if r.echoID != nil {
		cp.ID = r.echoID(cp.ID)
	}
	return &cp, nil
}
