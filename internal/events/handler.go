package events

import (
	"context"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"go.uber.org/zap"
)

type Invalidator interface {
	Invalidate(ctx context.Context, productID string) error
}

// SnapshotStore is the slice of the cart repository the event path writes to.
type SnapshotStore interface {
	UpdateProductSnapshot(ctx context.Context, productID string, patch domain.ProductPatch) (int64, error)
	DeleteItemsByProduct(ctx context.Context, productID string) (int64, error)
}

// Handler applies catalog events to the product cache and to stored cart
// items. Both steps are attempted on every event; failures are logged only.
type Handler struct {
	cache  Invalidator
	store  SnapshotStore
	logger *zap.Logger
}

func NewHandler(cache Invalidator, store SnapshotStore, logger *zap.Logger) *Handler {
	return &Handler{cache: cache, store: store, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, ev ProductEvent) {
	log := h.logger.With(
		zap.String("event_type", string(ev.Type)),
		zap.String("product_id", ev.ProductID),
	)

	switch ev.Type {
	case ProductCreated:
		log.Debug("product created, nothing to reconcile")
	case ProductUpdated:
		h.invalidate(ctx, log, ev.ProductID)

		patch := ev.Patch()
		if patch.IsEmpty() {
			log.Debug("update carries no denormalized fields")
			return
		}
		n, err := h.store.UpdateProductSnapshot(ctx, ev.ProductID, patch)
		if err != nil {
			log.Error("failed to update cart item snapshots", zap.Error(err))
			return
		}
		log.Info("updated cart item snapshots", zap.Int64("rows", n))
	case ProductDeleted:
		h.invalidate(ctx, log, ev.ProductID)

		n, err := h.store.DeleteItemsByProduct(ctx, ev.ProductID)
		if err != nil {
			log.Error("failed to remove cart items for deleted product", zap.Error(err))
			return
		}
		log.Info("removed cart items for deleted product", zap.Int64("rows", n))
	default:
		log.Warn("skipping unknown event type")
	}
}

func (h *Handler) invalidate(ctx context.Context, log *zap.Logger, productID string) {
	if err := h.cache.Invalidate(ctx, productID); err != nil {
		log.Warn("failed to invalidate product cache", zap.Error(err))
		return
	}
	log.Debug("invalidated product cache")
}
