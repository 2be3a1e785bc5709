package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopstream/services/order/internal/domain"
	"shopstream/services/order/internal/outbox"
	"shopstream/services/order/internal/service"
)

// OrderHandler exposes HTTP endpoints for order operations.
type OrderHandler struct {
	svc   *service.OrderService
	store *outbox.Store
}

func NewOrderHandler(svc *service.OrderService, store *outbox.Store) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

type addressDTO struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (a addressDTO) toDomain() domain.Address {
	return domain.Address{
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type itemDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type orderResponse struct {
	ID           uuid.UUID       `json:"id"`
	CustomerID   uuid.UUID       `json:"customerId"`
	Status       string          `json:"status"`
	Items        []itemDTO       `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
	CancelReason string          `json:"cancelReason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func toResponse(o *domain.Order) orderResponse {
	items := make([]itemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return orderResponse{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		Status:       string(o.Status),
		Items:        items,
		Subtotal:     o.Subtotal(),
		Tax:          o.Tax(),
		ShippingCost: o.ShippingCost(),
		Total:        o.Total(),
		Currency:     o.Currency,
		CancelReason: o.CancelReason,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// Create places a new order.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID      uuid.UUID  `json:"customerId"`
		Items           []itemDTO  `json:"items"`
		ShippingAddress addressDTO `json:"shippingAddress"`
		BillingAddress  addressDTO `json:"billingAddress"`
		Currency        string     `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CustomerID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customerId required"})
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	order, err := h.svc.CreateOrder(r.Context(), req.CustomerID, items,
		req.ShippingAddress.toDomain(), req.BillingAddress.toDomain(), req.Currency)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(order))
}

// Get returns one order by id.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, toResponse(order))
}

// Confirm moves a pending order to CONFIRMED.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.svc.ConfirmOrder(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, domain.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toResponse(order))
}

// Cancel cancels an order on the customer's request.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
	}

	order, err := h.svc.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, domain.ErrNotCancellable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toResponse(order))
}

// ListFailedOutbox exposes terminally failed outbox records for operators.
func (h *OrderHandler) ListFailedOutbox(w http.ResponseWriter, r *http.Request) {
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
