package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cartsync/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type ProductGetter interface {
	GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
}

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "catalog",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerClient fails fast while the catalog keeps failing. A missing
// product or a rejected id is a healthy answer and never trips the breaker.
type BreakerClient struct {
	next ProductGetter
	cb   *gobreaker.CircuitBreaker[*domain.ProductSnapshot]
}

func NewBreakerClient(next ProductGetter, s BreakerSettings, logger *zap.Logger) *BreakerClient {
	cb := gobreaker.NewCircuitBreaker[*domain.ProductSnapshot](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("catalog circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerClient{next: next, cb: cb}
}

func (b *BreakerClient) GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	p, err := b.cb.Execute(func() (*domain.ProductSnapshot, error) {
		return b.next.GetProduct(ctx, productID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("catalog circuit open: %w", err)
	}
	return p, err
}

func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}
