package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"go.uber.org/zap"
)

const maxProductIDLength = 64

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.AnnotatedCart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	service CartService
	logger  *zap.Logger
}

func NewCartHandler(service CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{service: service, logger: logger}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (r AddItemRequestDTO) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required, validation.Length(1, maxProductIDLength), is.UUID),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
	)
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

func (r UpdateQuantityRequestDTO) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quantity, validation.NotNil, validation.Min(0)),
	)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondOK(w, http.StatusOK, "Cart fetched successfully", cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}

	item, err := h.service.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondOK(w, http.StatusCreated, "Item added to cart successfully", newItemResponse(item))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	productID := chi.URLParam(r, "productId")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}

	item, err := h.service.UpdateQuantity(r.Context(), userID, productID, *req.Quantity)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if item == nil {
		respondOK(w, http.StatusOK, "Product removed from cart successfully", nil)
		return
	}

	respondOK(w, http.StatusOK, "Cart item quantity updated successfully", newItemResponse(item))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	productID := chi.URLParam(r, "productId")

	if err := h.service.RemoveItem(r.Context(), userID, productID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondOK(w, http.StatusOK, "Product removed from cart successfully", nil)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondOK(w, http.StatusOK, "Cart cleared successfully", nil)
}
