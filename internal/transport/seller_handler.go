package transport

import (
	"errors"
	"net/http"

	"chocolata/internal/domain"
	"chocolata/internal/middleware"
	"chocolata/internal/repository"
	"chocolata/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is a seller's create or update payload
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CategoryID  *uuid.UUID      `json:"category_id"`
	IsActive    *bool           `json:"is_active"`
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		IsActive:    req.IsActive,
	}
}

// SellerHandler serves the seller dashboard: listings, orders and verification
type SellerHandler struct {
	products service.ProductService
	orders   service.OrderService
	sellers  service.SellerService
	logger   *zap.Logger
}

// NewSellerHandler creates a new SellerHandler
func NewSellerHandler(
	products service.ProductService,
	orders service.OrderService,
	sellers service.SellerService,
	logger *zap.Logger,
) *SellerHandler {
	return &SellerHandler{
		products: products,
		orders:   orders,
		sellers:  sellers,
		logger:   logger,
	}
}

// RegisterRoutes registers the seller routes behind the given guards
func (h *SellerHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/seller", func(r chi.Router) {
		r.Use(guards...)

		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
		r.Post("/products/{id}/image", h.UploadImage)

		r.Get("/orders", h.ListOrders)
		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)

		r.Get("/verification", h.GetVerification)
		r.Post("/verification", h.SubmitVerification)
	})
}

func (h *SellerHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	products, err := h.products.ListOwn(r.Context(), sellerID)
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *SellerHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.products.Create(r.Context(), sellerID, req.input())
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("seller_id", sellerID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *SellerHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.products.Update(r.Context(), sellerID, productID, req.input())
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *SellerHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), sellerID, productID); err != nil {
		h.respondWithProductError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage takes a multipart "image" file and makes it the product's picture
func (h *SellerHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	product, err := h.products.UploadImage(r.Context(), sellerID, productID, file)
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListOrders returns orders that contain the seller's products, trimmed to their own lines
func (h *SellerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListForSeller(r.Context(), sellerID)
	if err != nil {
		respondWithOrderError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus lets a seller mark an order shipped or delivered
func (h *SellerHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orders.UpdateStatusAsSeller(r.Context(), sellerID, orderID, domain.OrderStatus(req.Status))
	if err != nil {
		respondWithOrderError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *SellerHandler) GetVerification(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	v, err := h.sellers.GetVerification(r.Context(), sellerID)
	if err != nil {
		h.respondWithVerificationError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, v)
}

// SubmitVerification takes a multipart form with business_name and a document file
func (h *SellerHandler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("document")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	v, err := h.sellers.SubmitVerification(r.Context(), sellerID, r.FormValue("business_name"), file)
	if err != nil {
		h.respondWithVerificationError(w, err)
		return
	}

	h.logger.Info("Seller verification submitted", zap.String("seller_id", sellerID.String()))
	middleware.RespondWithJSON(w, http.StatusAccepted, v)
}

func (h *SellerHandler) respondWithProductError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidProduct):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSellerNotApproved):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, "product belongs to another seller")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrCategoryNotFound):
		middleware.RespondWithError(w, http.StatusBadRequest, "category not found")
	case errors.Is(err, repository.ErrProductInUse):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Product operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process product")
	}
}

func (h *SellerHandler) respondWithVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrVerificationNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "no verification submitted")
	case errors.Is(err, service.ErrInvalidVerification):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Verification operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process verification")
	}
}
