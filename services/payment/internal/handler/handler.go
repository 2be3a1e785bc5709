package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopstream/services/payment/internal/domain"
	"shopstream/services/payment/internal/outbox"
	"shopstream/services/payment/internal/service"
)

// PaymentHandler exposes HTTP endpoints for payment lookups.
type PaymentHandler struct {
	svc   *service.PaymentService
	store *outbox.Store
}

func NewPaymentHandler(svc *service.PaymentService, store *outbox.Store) *PaymentHandler {
	return &PaymentHandler{svc: svc, store: store}
}

type paymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"orderId"`
	CustomerID    uuid.UUID       `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// Get returns one payment by id.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	p, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, toResponse(p))
}

// GetByOrder returns the latest payment for an order.
func (h *PaymentHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	p, err := h.svc.GetPaymentByOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, toResponse(p))
}

// Refund refunds a completed payment.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	p, err := h.svc.RefundPayment(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
		case errors.Is(err, domain.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toResponse(p))
}

// ListFailedOutbox exposes terminally failed outbox records for operators.
func (h *PaymentHandler) ListFailedOutbox(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListFailed(r.Context(), 100)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	type failedDTO struct {
		ID            uuid.UUID `json:"id"`
		AggregateID   uuid.UUID `json:"aggregateId"`
		AggregateType string    `json:"aggregateType"`
		EventType     string    `json:"eventType"`
		RetryCount    int       `json:"retryCount"`
		FailReason    string    `json:"failReason"`
		CreatedAt     time.Time `json:"createdAt"`
	}
	out := make([]failedDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, failedDTO{
			ID:            rec.ID,
			AggregateID:   rec.AggregateID,
			AggregateType: rec.AggregateType,
			EventType:     rec.EventType,
			RetryCount:    rec.RetryCount,
			FailReason:    rec.FailReason,
			CreatedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeJSON writes a JSON response with Content-Type header.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
