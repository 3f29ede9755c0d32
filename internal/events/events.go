package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	ProductCreated EventType = "PRODUCT_CREATED"
	ProductUpdated EventType = "PRODUCT_UPDATED"
	ProductDeleted EventType = "PRODUCT_DELETED"
)

var (
	ErrMalformedEvent = errors.New("malformed product event")
	ErrMissingProduct = errors.New("product event without product id")
)

// ProductEvent is a catalog change notification as published on the
// product-events topic.
type ProductEvent struct {
	Type      EventType
	ProductID string
	Data      ProductData
}

// ProductData carries the fields present in the payload. Absent fields stay nil.
type ProductData struct {
	ID       string           `json:"id"`
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
	ImageURL NullableString   `json:"imageUrl"`
}

// NullableString tells an explicit JSON null apart from an absent key.
type NullableString struct {
	Present bool
	Value   *string
}

func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Present = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type wireEvent struct {
	EventType string      `json:"eventType"`
	ProductID string      `json:"productId"`
	Data      ProductData `json:"data"`
}

// Decode parses a message value. The key wins as product id; the payload's
// productId and data.id are fallbacks.
func Decode(key, value []byte) (ProductEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(value, &w); err != nil {
		return ProductEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if w.EventType == "" {
		return ProductEvent{}, fmt.Errorf("%w: missing eventType", ErrMalformedEvent)
	}

	ev := ProductEvent{
		Type: normalizeType(w.EventType),
		Data: w.Data,
	}
	switch {
	case len(key) > 0:
		ev.ProductID = string(key)
	case w.ProductID != "":
		ev.ProductID = w.ProductID
	default:
		ev.ProductID = w.Data.ID
	}
	if ev.ProductID == "" {
		return ProductEvent{}, ErrMissingProduct
	}
	return ev, nil
}

func normalizeType(raw string) EventType {
	t := strings.ToUpper(strings.TrimSpace(raw))
	switch t {
	case "CREATED":
		return ProductCreated
	case "UPDATED":
		return ProductUpdated
	case "DELETED":
		return ProductDeleted
	}
	return EventType(t)
}

// Patch maps the payload onto the denormalized cart item fields. Quantity is
// live stock and never stored on cart items. An explicit null image clears
// the stored one.
func (e ProductEvent) Patch() domain.ProductPatch {
	patch := domain.ProductPatch{
		Name:  e.Data.Name,
		Price: e.Data.Price,
	}
	if img := e.Data.ImageURL; img.Present {
		patch.ImageURL = img.Value
		if patch.ImageURL == nil {
			cleared := ""
			patch.ImageURL = &cleared
		}
	}
	return patch
}
