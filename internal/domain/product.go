package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is the catalog's view of a product as cached by this service.
type ProductSnapshot struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	ImageURL string          `json:"imageUrl"`
	IsActive bool            `json:"isActive"`
}

// ProductPatch holds the denormalized fields carried by a catalog update.
// Nil fields are left untouched in storage.
type ProductPatch struct {
	Name     *string
	Price    *decimal.Decimal
	ImageURL *string
}

func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.ImageURL == nil
}
