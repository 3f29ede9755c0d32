package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// sqlRepository holds the queries shared by the PostgreSQL and SQLite
// drivers. Both accept $n placeholders and ON CONFLICT.
type sqlRepository struct {
	db                *sql.DB
	isUniqueViolation func(error) bool
	migrate           func(db *sql.DB, migrationsPath string) error
}

const itemColumns = `id, cart_id, product_id, quantity, product_name, product_price, product_image_url, created_at, updated_at`

func (r *sqlRepository) GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := r.GetCartByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	// A concurrent create for the same user loses on the unique user_id and
	// falls through to the re-read.
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID, now, now)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return r.GetCartByUserID(ctx, userID)
}

func (r *sqlRepository) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart by user id: %w", err)
	}

	items, err := r.listItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

func (r *sqlRepository) listItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *sqlRepository) GetItem(ctx context.Context, cartID, productID string) (*domain.CartItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	return item, err
}

func (r *sqlRepository) InsertItem(ctx context.Context, item *domain.CartItem) error {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cart_items (`+itemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.CartID, item.ProductID, item.Quantity,
		item.ProductName, item.ProductPrice, item.ProductImageURL,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if r.isUniqueViolation(err) {
			return ErrDuplicateItem
		}
		return fmt.Errorf("insert cart item: %w", err)
	}

	return r.touchCart(ctx, item.CartID, now)
}

func (r *sqlRepository) UpdateItem(ctx context.Context, item *domain.CartItem) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items
		 SET quantity = $1, product_name = $2, product_price = $3, product_image_url = $4, updated_at = $5
		 WHERE cart_id = $6 AND product_id = $7`,
		item.Quantity, item.ProductName, item.ProductPrice, item.ProductImageURL, now,
		item.CartID, item.ProductID)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if err := expectRows(res, domain.ErrItemNotFound); err != nil {
		return err
	}
	item.UpdatedAt = now

	return r.touchCart(ctx, item.CartID, now)
}

func (r *sqlRepository) DeleteItem(ctx context.Context, cartID, productID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if err := expectRows(res, domain.ErrItemNotFound); err != nil {
		return err
	}

	return r.touchCart(ctx, cartID, time.Now().UTC())
}

func (r *sqlRepository) DeleteItems(ctx context.Context, cartID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("clear cart items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cart items: %w", err)
	}
	if n > 0 {
		if err := r.touchCart(ctx, cartID, time.Now().UTC()); err != nil {
			return n, err
		}
	}
	return n, nil
}

// UpdateProductSnapshot rewrites the denormalized fields on every item that
// references productID. Quantities are never touched.
func (r *sqlRepository) UpdateProductSnapshot(ctx context.Context, productID string, patch domain.ProductPatch) (int64, error) {
	if patch.IsEmpty() {
		return 0, nil
	}

	var name, image sql.NullString
	var price decimal.NullDecimal
	if patch.Name != nil {
		name = sql.NullString{String: *patch.Name, Valid: true}
	}
	if patch.ImageURL != nil {
		image = sql.NullString{String: *patch.ImageURL, Valid: true}
	}
	if patch.Price != nil {
		price = decimal.NullDecimal{Decimal: *patch.Price, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items
		 SET product_name = COALESCE($1, product_name),
		     product_price = COALESCE($2, product_price),
		     product_image_url = COALESCE($3, product_image_url),
		     updated_at = $4
		 WHERE product_id = $5`,
		name, price, image, time.Now().UTC(), productID)
	if err != nil {
		return 0, fmt.Errorf("update product snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update product snapshot: %w", err)
	}
	return n, nil
}

func (r *sqlRepository) DeleteItemsByProduct(ctx context.Context, productID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("delete items by product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete items by product: %w", err)
	}
	return n, nil
}

func (r *sqlRepository) RunMigrations(migrationsPath string) error {
	return r.migrate(r.db, migrationsPath)
}

func (r *sqlRepository) Close() error {
	return r.db.Close()
}

func (r *sqlRepository) touchCart(ctx context.Context, cartID string, now time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, now, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*domain.CartItem, error) {
	var item domain.CartItem
	err := s.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.ProductName,
		&item.ProductPrice,
		&item.ProductImageURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan cart item: %w", err)
	}
	return &item, nil
}

func expectRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
