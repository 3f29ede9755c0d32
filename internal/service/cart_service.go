package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"github.com/fjod/go_cart/cartsync/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultResolveConcurrency = 8
	DefaultMaxItemQuantity    = 99
)

type ProductResolver interface {
	ResolveProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
}

type Options struct {
	ResolveConcurrency int
	MaxItemQuantity    int
}

type CartService struct {
	repo        repository.CartRepository
	products    ProductResolver
	logger      *zap.Logger
	concurrency int
	maxQuantity int
}

func NewCartService(repo repository.CartRepository, products ProductResolver, logger *zap.Logger, opts Options) *CartService {
	if opts.ResolveConcurrency <= 0 {
		opts.ResolveConcurrency = DefaultResolveConcurrency
	}
	if opts.MaxItemQuantity <= 0 {
		opts.MaxItemQuantity = DefaultMaxItemQuantity
	}
	return &CartService{
		repo:        repo,
		products:    products,
		logger:      logger,
		concurrency: opts.ResolveConcurrency,
		maxQuantity: opts.MaxItemQuantity,
	}
}

// itemResolution is the outcome of looking up one line item's product.
type itemResolution struct {
	product *domain.ProductSnapshot
	err     error
}

// GetCart returns the user's cart with every item annotated against live
// catalog state. A missing cart is created. A failed lookup marks only that
// item as unavailable.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.AnnotatedCart, error) {
	cart, err := s.repo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]itemResolution, len(cart.Items))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i := range cart.Items {
		g.Go(func() error {
			p, err := s.products.ResolveProduct(ctx, cart.Items[i].ProductID)
			results[i] = itemResolution{product: p, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := &domain.AnnotatedCart{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     make([]domain.AnnotatedItem, 0, len(cart.Items)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for i, item := range cart.Items {
		annotated := domain.NewAnnotatedItem(item)
		res := results[i]
		if res.err != nil {
			s.logger.Warn("product unavailable for cart item",
				zap.String("user_id", userID),
				zap.String("product_id", item.ProductID),
				zap.Error(res.err))
			annotated.Availability = domain.Unavailable()
		} else {
			annotated.Overlay(res.product)
			annotated.Availability = domain.Classify(item.Quantity, res.product)
		}
		view.Items = append(view.Items, annotated)
	}
	view.Summarize()

	return view, nil
}

// AddItem adds quantity of productID to the cart, summing with any existing
// line for the same product.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidationFailed)
	}

	cart, err := s.repo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.ResolveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, domain.ErrProductInactive
	}

	existing, _ := cart.Item(productID)
	item, err := s.addOrMerge(ctx, cart.ID, productID, existing, product, quantity)
	if errors.Is(err, repository.ErrDuplicateItem) {
		// Lost an insert race for the same product; merge into the winner's row.
		existing, err = s.repo.GetItem(ctx, cart.ID, productID)
		if err != nil {
			return nil, err
		}
		item, err = s.addOrMerge(ctx, cart.ID, productID, existing, product, quantity)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("item added to cart",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// The line is keyed by the caller's productID, never by the id the catalog
// echoes back.
func (s *CartService) addOrMerge(ctx context.Context, cartID, productID string, existing *domain.CartItem, product *domain.ProductSnapshot, quantity int) (*domain.CartItem, error) {
	target := quantity
	if existing != nil {
		target += existing.Quantity
	}
	if err := s.checkQuantity(productID, product, target); err != nil {
		return nil, err
	}

	if existing != nil {
		item := *existing
		item.Quantity = target
		item.ApplySnapshot(product)
		if err := s.repo.UpdateItem(ctx, &item); err != nil {
			return nil, err
		}
		return &item, nil
	}

	item := &domain.CartItem{
		CartID:    cartID,
		ProductID: productID,
		Quantity:  target,
	}
	item.ApplySnapshot(product)
	if err := s.repo.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateQuantity sets the line quantity exactly. Zero removes the line and
// returns a nil item.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", domain.ErrValidationFailed)
	}

	cart, err := s.repo.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing, ok := cart.Item(productID)
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	if quantity == 0 {
		if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	product, err := s.products.ResolveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuantity(productID, product, quantity); err != nil {
		return nil, err
	}

	item := *existing
	item.Quantity = quantity
	item.ApplySnapshot(product)
	if err := s.repo.UpdateItem(ctx, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	cart, err := s.repo.GetCartByUserID(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, cart.ID, productID)
}

// ClearCart empties the cart but keeps it. Clearing a missing or empty cart
// succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.repo.GetCartByUserID(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	n, err := s.repo.DeleteItems(ctx, cart.ID)
	if err != nil {
		return err
	}
	s.logger.Debug("cart cleared", zap.String("user_id", userID), zap.Int64("items", n))
	return nil
}

func (s *CartService) checkQuantity(productID string, product *domain.ProductSnapshot, target int) error {
	if target > s.maxQuantity {
		return fmt.Errorf("%w: at most %d per item", domain.ErrQuantityLimitExceeded, s.maxQuantity)
	}
	if target > product.Quantity {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Requested: target,
			Available: product.Quantity,
		}
	}
	return nil
}
