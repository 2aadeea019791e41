package transport

import (
	"errors"
	"net/http"

	"chocolata/internal/middleware"
	"chocolata/internal/payment"
	"chocolata/internal/repository"
	"chocolata/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CheckoutHandler prices carts and places orders
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkout service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// RegisterRoutes registers the checkout routes behind the given guards
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/checkout", func(r chi.Router) {
		r.Use(guards...)
		r.Get("/quote", h.Quote)
		r.Post("/", h.PlaceOrder)
	})
}

// Quote prices the cart for ?country= and reports its stock verdict
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	quote, err := h.checkout.Quote(r.Context(), userID, r.URL.Query().Get("country"))
	if err != nil {
		h.logger.Error("Failed to quote cart", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to price cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, quote)
}

// PlaceOrder turns the cart into an order and charges the buyer
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var form service.CheckoutForm
	if err := middleware.DecodeAndValidate(w, r, &form); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), userID, form)
	if err != nil {
		var stockErr *service.StockError
		switch {
		case errors.As(err, &stockErr):
			middleware.RespondWithErrorDetails(w, http.StatusConflict, "some items cannot be ordered", map[string]interface{}{
				"failures": stockErr.Result.Failures,
				"messages": stockErr.Result.Messages(),
			})
		case errors.Is(err, service.ErrPaymentFailed):
			middleware.RespondWithError(w, http.StatusPaymentRequired, payment.DeclinedMessage)
		case errors.Is(err, service.ErrInvalidCheckout):
			middleware.RespondWithDecodeError(w, err)
		case errors.Is(err, repository.ErrAddressNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "saved address not found")
		default:
			h.logger.Error("Checkout failed", zap.String("user_id", userID.String()), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	w.Header().Set("Location", "/api/orders/"+order.ID.String())
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}
