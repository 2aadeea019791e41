package transport

import (
	"errors"
	"io"
	"net/http"

	"chocolata/internal/middleware"
	"chocolata/internal/payment"
	"chocolata/internal/repository"
	"chocolata/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBytes = 64 << 10

// UpdateOrderStatusRequest moves an order to a new status
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

// OrderHandler serves buyers' order history and the payment provider webhook
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// RegisterRoutes registers the buyer order routes behind the given guards, and the public webhook
func (h *OrderHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(guards...)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
	r.Post("/api/payments/webhook", h.Webhook)
}

// List returns the caller's orders, newest first
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListForBuyer(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// Get returns one of the caller's orders. Other buyers' orders are reported as missing.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetForBuyer(r.Context(), userID, orderID)
	if err != nil {
		respondWithOrderError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Webhook applies a signed payment event
func (h *OrderHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.orders.HandleWebhook(r.Context(), body, r.Header.Get(payment.SignatureHeader))
	switch {
	case err == nil:
		middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.Warn("Webhook signature rejected", zap.String("remote_addr", r.RemoteAddr))
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, payment.ErrMalformedEvent):
		middleware.RespondWithError(w, http.StatusBadRequest, "malformed event")
	case errors.Is(err, repository.ErrOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
	default:
		h.logger.Error("Webhook processing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process webhook")
	}
}

// respondWithOrderError maps order lookup and transition failures onto statuses
func respondWithOrderError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, "order does not contain your products")
	case errors.Is(err, service.ErrIllegalTransition):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrOrderNotPending):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("Order operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process order")
	}
}
