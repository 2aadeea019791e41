package transport

import (
	"errors"
	"net/http"

	"chocolata/internal/cart"
	"chocolata/internal/middleware"
	"chocolata/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddCartItemRequest adds a product to the cart
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=99"`
}

// UpdateCartItemRequest sets a line's quantity; zero removes the line
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

// CartHandler serves the buyer's cart
type CartHandler struct {
	carts  *cart.Service
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts *cart.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// RegisterRoutes registers the cart routes behind the given guards
func (h *CartHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(guards...)
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.UpdateItem)
		r.Delete("/items/{productID}", h.RemoveItem)
	})
}

// Get returns the cart with its subtotal and count
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	summary, err := h.carts.Summary(r.Context(), userID.String())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// AddItem adds a product, merging with an existing line
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req AddCartItemRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	summary, err := h.carts.AddItem(r.Context(), userID.String(), uuid.MustParse(req.ProductID), req.Quantity)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// UpdateItem changes a line's quantity
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	summary, err := h.carts.UpdateQuantity(r.Context(), userID.String(), productID, req.Quantity)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// RemoveItem drops a line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	summary, err := h.carts.RemoveItem(r.Context(), userID.String(), productID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// Clear empties the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), userID.String()); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) respondWithError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, cart.ErrItemNotInCart):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrProductUnavailable):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Cart operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update cart")
	}
}
