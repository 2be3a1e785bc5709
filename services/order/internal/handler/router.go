package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shopstream/services/order/internal/middleware"
	"shopstream/services/order/internal/observability"
	"shopstream/services/order/internal/outbox"
	"shopstream/services/order/internal/service"
)

// NewRouter builds the HTTP router with all order routes.
func NewRouter(svc *service.OrderService, store *outbox.Store) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(observability.MetricsMiddleware("order"))

	h := NewOrderHandler(svc, store)

	path := "/api/v1/orders"
	r.Post(path, h.Create)
	r.Get(path+"/{id}", h.Get)
	r.Post(path+"/{id}/confirm", h.Confirm)
	r.Post(path+"/{id}/cancel", h.Cancel)

	r.Get("/internal/outbox/failed", h.ListFailedOutbox)

	return r
}
