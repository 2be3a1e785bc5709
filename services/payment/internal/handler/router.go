package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shopstream/services/payment/internal/middleware"
	"shopstream/services/payment/internal/observability"
	"shopstream/services/payment/internal/outbox"
	"shopstream/services/payment/internal/service"
)

// NewRouter builds the HTTP router with all payment routes.
func NewRouter(svc *service.PaymentService, store *outbox.Store) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(observability.MetricsMiddleware("payment"))

	h := NewPaymentHandler(svc, store)

	path := "/api/v1/payments"
	r.Get(path+"/{id}", h.Get)
	r.Get(path+"/order/{orderId}", h.GetByOrder)
	r.Post(path+"/{id}/refund", h.Refund)

	r.Get("/internal/outbox/failed", h.ListFailedOutbox)

	return r
}
