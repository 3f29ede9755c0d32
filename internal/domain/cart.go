package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the persisted cart aggregate. There is exactly one per user.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a stored line item. The product fields are the snapshot taken at
// the last write or catalog update, not live data.
type CartItem struct {
	ID              string
	CartID          string
	ProductID       string
	Quantity        int
	ProductName     string
	ProductPrice    decimal.Decimal
	ProductImageURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item returns the line item for productID, if the cart holds one.
func (c *Cart) Item(productID string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// ApplySnapshot copies the denormalized product fields onto the item.
func (i *CartItem) ApplySnapshot(p *ProductSnapshot) {
	i.ProductName = p.Name
	i.ProductPrice = p.Price
	i.ProductImageURL = p.ImageURL
}
