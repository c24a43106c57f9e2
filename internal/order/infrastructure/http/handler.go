package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	cartdomain "marketplace-backend/internal/cart/domain"
	catalog "marketplace-backend/internal/catalog/domain"
	"marketplace-backend/internal/order/application"
	"marketplace-backend/internal/order/domain"
	walletdomain "marketplace-backend/internal/wallet/domain"
)

// IdempotencyStore marks placement requests as seen so duplicates are
// dropped; a key released after a failed attempt is retryable.
type IdempotencyStore interface {
	RequestKey(scope, userID, key string) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	idem    IdempotencyStore
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, idem IdempotencyStore) *Handler {
	return &Handler{
		log:     log,
		service: service,
		idem:    idem,
		tracer:  otel.Tracer("order-http"),
	}
}

type placeOrderReq struct {
	PaymentMethod     string `json:"payment_method"`
	AddressID         string `json:"address_id"`
	PGPaymentID       string `json:"pg_payment_id"`
	PGStatus          string `json:"pg_status"`
	PGResponseMessage string `json:"pg_response_message"`
	PGName            string `json:"pg_name"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.placeOrder)
	r.Get("/", h.myOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}/status", h.updateStatus)
	return r
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		http.Error(w, "invalid address id", http.StatusBadRequest)
		return
	}

	var idemKey string
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		idemKey = h.idem.RequestKey("place-order", userID, key)
		seen, err := h.idem.Seen(ctx, idemKey)
		if err != nil {
			h.log.Error("idempotency check failed", "err", err)
			idemKey = ""
		} else if seen {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "duplicate placement request"})
			return
		}
	}

	orders, err := h.service.PlaceOrder(ctx, userID, application.PlaceOrderRequest{
		PaymentMethod:     req.PaymentMethod,
		AddressID:         addressID,
		PGPaymentID:       req.PGPaymentID,
		PGStatus:          req.PGStatus,
		PGResponseMessage: req.PGResponseMessage,
		PGName:            req.PGName,
	})
	if err != nil {
		h.releaseKey(ctx, idemKey)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(orders)
}

// releaseKey frees an idempotency key after a failed placement; the attempt
// changed nothing, so the caller may retry with the same key.
func (h *Handler) releaseKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.idem.Release(ctx, key); err != nil {
		h.log.Error("idempotency release failed", "err", err)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	o, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(o)
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MyOrders")
	defer span.End()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}

	var (
		orders []domain.Order
		err    error
	)
	if r.URL.Query().Get("role") == "seller" {
		orders, err = h.service.SellerOrders(ctx, userID)
	} else {
		orders, err = h.service.BuyerOrders(ctx, userID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(orders)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	o, err := h.service.UpdateOrderStatus(ctx, orderID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(o)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, cartdomain.ErrCartNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrAddressNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyDelivered),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, cartdomain.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, catalog.ErrOutOfStock),
		errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, walletdomain.ErrInsufficientBalance),
		errors.Is(err, cartdomain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnresolvedSeller):
		status = http.StatusUnprocessableEntity
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
