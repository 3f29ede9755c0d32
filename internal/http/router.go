package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxRequestBodySize = 1 << 20 // 1MB

func NewRouter(cart *CartHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(UserIDMiddleware)

		r.Get("/", cart.GetCart)
		r.Post("/add", cart.AddItem)
		r.Put("/update/{productId}", cart.UpdateQuantity)
		r.Delete("/remove/{productId}", cart.RemoveItem)
		r.Delete("/clear", cart.ClearCart)
	})

	return otelhttp.NewHandler(r, "cart-service")
}
