package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Details *StockDetails     `json:"details,omitempty"`
}

type StockDetails struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type itemResponse struct {
	ID              string          `json:"id"`
	CartID          string          `json:"cartId"`
	ProductID       string          `json:"productId"`
	Quantity        int             `json:"quantity"`
	ProductName     string          `json:"productName"`
	ProductPrice    decimal.Decimal `json:"productPrice"`
	ProductImageURL string          `json:"productImageUrl"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func newItemResponse(item *domain.CartItem) itemResponse {
	return itemResponse{
		ID:              item.ID,
		CartID:          item.CartID,
		ProductID:       item.ProductID,
		Quantity:        item.Quantity,
		ProductName:     item.ProductName,
		ProductPrice:    item.ProductPrice,
		ProductImageURL: item.ProductImageURL,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Response{Success: false, Message: message})
}

func respondValidation(w http.ResponseWriter, err error) {
	resp := Response{Success: false, Message: "Validation failed"}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		resp.Errors = make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			resp.Errors[field] = ferr.Error()
		}
	}
	respondJSON(w, http.StatusBadRequest, resp)
}

// handleServiceError maps domain errors to statuses. Anything unknown is
// logged and reported as a bare 500.
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		respondJSON(w, http.StatusConflict, Response{
			Success: false,
			Message: stockErr.Error(),
			Details: &StockDetails{
				ProductID: stockErr.ProductID,
				Requested: stockErr.Requested,
				Available: stockErr.Available,
			},
		})
	case errors.Is(err, domain.ErrValidationFailed):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "Cart not found")
	case errors.Is(err, domain.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "Product not found in cart")
	case errors.Is(err, domain.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, domain.ErrProductInactive):
		respondError(w, http.StatusConflict, "Product is not active")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		logger.Warn("catalog unavailable", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "Product service unavailable, please retry")
	default:
		logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
