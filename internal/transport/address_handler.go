package transport

import (
	"errors"
	"net/http"

	"chocolata/internal/middleware"
	"chocolata/internal/repository"
	"chocolata/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddressRequest is a saved shipping address as sent by the client
type AddressRequest struct {
	FullName   string `json:"full_name" validate:"required,min=2,max=200"`
	Line1      string `json:"address_line1" validate:"required,min=5,max=255"`
	Line2      string `json:"address_line2" validate:"max=255"`
	City       string `json:"city" validate:"required,min=2,max=100"`
	PostalCode string `json:"postal_code" validate:"required,min=5,max=20"`
	Country    string `json:"country" validate:"required,min=2,max=100"`
	IsDefault  bool   `json:"is_default"`
}

func (req AddressRequest) input() service.AddressInput {
	return service.AddressInput{
		FullName:   req.FullName,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault,
	}
}

// AddressHandler serves a buyer's saved shipping addresses
type AddressHandler struct {
	addresses service.AddressService
	logger    *zap.Logger
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(addresses service.AddressService, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{addresses: addresses, logger: logger}
}

// RegisterRoutes registers the address book routes behind the given guards
func (h *AddressHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/addresses", func(r chi.Router) {
		r.Use(guards...)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/default", h.SetDefault)
	})
}

// List returns the caller's addresses, default first
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	addresses, err := h.addresses.List(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, addresses)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req AddressRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	address, err := h.addresses.Create(r.Context(), userID, req.input())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, address)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req AddressRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	address, err := h.addresses.Update(r.Context(), userID, id, req.input())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, address)
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.addresses.Delete(r.Context(), userID, id); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	address, err := h.addresses.SetDefault(r.Context(), userID, id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, address)
}

func (h *AddressHandler) respondWithError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrAddressNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "address not found")
	case errors.Is(err, service.ErrTooManyAddresses):
		middleware.RespondWithError(w, http.StatusConflict, "address book is full")
	case errors.Is(err, service.ErrInvalidAddress):
		middleware.RespondWithDecodeError(w, err)
	default:
		h.logger.Error("Address request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process address")
	}
}
