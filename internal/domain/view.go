package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MessageOutOfStock      = "Out of stock"
	MessageProductInactive = "Product inactive"
	MessageUnavailable     = "Product details unavailable or product deleted."
)

// AnnotatedCart is the read model returned by a cart read. It is built per
// request and never written back.
type AnnotatedCart struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Items     []AnnotatedItem `json:"items"`
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type AnnotatedItem struct {
	ItemID          string          `json:"id"`
	ProductID       string          `json:"productId"`
	Quantity        int             `json:"quantity"`
	ProductName     string          `json:"productName"`
	ProductPrice    decimal.Decimal `json:"productPrice"`
	ProductImageURL string          `json:"productImageUrl"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Availability
}

type Availability struct {
	AvailableQuantity    int    `json:"availableQuantity"`
	IsOutOfStock         bool   `json:"isOutOfStock"`
	IsPartiallyAvailable bool   `json:"isPartiallyAvailable"`
	IsUnavailable        bool   `json:"isUnavailable"`
	Message              string `json:"message"`
}

// Classify compares a requested quantity with live catalog state.
func Classify(requested int, p *ProductSnapshot) Availability {
	switch {
	case !p.IsActive:
		return Availability{AvailableQuantity: p.Quantity, IsOutOfStock: true, Message: MessageProductInactive}
	case p.Quantity <= 0:
		return Availability{AvailableQuantity: p.Quantity, IsOutOfStock: true, Message: MessageOutOfStock}
	case p.Quantity < requested:
		return Availability{
			AvailableQuantity:    p.Quantity,
			IsPartiallyAvailable: true,
			Message:              fmt.Sprintf("Only %d available. Please adjust your quantity.", p.Quantity),
		}
	default:
		return Availability{AvailableQuantity: p.Quantity}
	}
}

// Unavailable is the annotation used when live data could not be resolved.
func Unavailable() Availability {
	return Availability{IsUnavailable: true, Message: MessageUnavailable}
}

// NewAnnotatedItem starts a view item from the stored snapshot.
func NewAnnotatedItem(item CartItem) AnnotatedItem {
	return AnnotatedItem{
		ItemID:          item.ID,
		ProductID:       item.ProductID,
		Quantity:        item.Quantity,
		ProductName:     item.ProductName,
		ProductPrice:    item.ProductPrice,
		ProductImageURL: item.ProductImageURL,
	}
}

// Overlay replaces the displayed product fields with live values.
func (a *AnnotatedItem) Overlay(p *ProductSnapshot) {
	a.ProductName = p.Name
	a.ProductPrice = p.Price
	a.ProductImageURL = p.ImageURL
}

// Orderable reports whether the line can be bought now, possibly after the
// quantity is lowered to the available stock.
func (a AnnotatedItem) Orderable() bool {
	return !a.IsOutOfStock && !a.IsUnavailable
}

// Summarize fills subtotals, the cart total and the item count. Every line
// gets a subtotal; only orderable lines count toward the total and the item
// count. Partially available lines count at their stored quantity.
func (c *AnnotatedCart) Summarize() {
	total := decimal.Zero
	count := 0
	for i := range c.Items {
		it := &c.Items[i]
		it.Subtotal = it.ProductPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if !it.Orderable() {
			continue
		}
		total = total.Add(it.Subtotal)
		count += it.Quantity
	}
	c.Total = total
	c.ItemCount = count
}
