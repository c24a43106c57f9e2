package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"marketplace-backend/internal/wallet/application"
	"marketplace-backend/internal/wallet/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("wallet-http"),
	}
}

type moveFundsReq struct {
	Amount      decimal.Decimal `json:"amount"`
	OrderID     *uuid.UUID      `json:"order_id,omitempty"`
	Description string          `json:"description"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/me", h.myWallet)
	r.Get("/{userID}", h.getWallet)
	r.Post("/{userID}/credit", h.credit)
	r.Post("/{userID}/debit", h.debit)
	r.Get("/{userID}/transactions", h.transactions)
	return r
}

func (h *Handler) myWallet(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetMyWallet")
	defer span.End()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}
	wallet, err := h.service.GetWallet(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(wallet)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetWallet")
	defer span.End()

	wallet, err := h.service.GetWallet(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(wallet)
}

func (h *Handler) credit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreditWallet")
	defer span.End()

	var req moveFundsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	wallet, err := h.service.Credit(ctx, chi.URLParam(r, "userID"), req.Amount, req.OrderID, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(wallet)
}

func (h *Handler) debit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DebitWallet")
	defer span.End()

	var req moveFundsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	wallet, err := h.service.Debit(ctx, chi.URLParam(r, "userID"), req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(wallet)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TransactionHistory")
	defer span.End()

	txns, err := h.service.TransactionHistory(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	_ = json.NewEncoder(w).Encode(txns)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
