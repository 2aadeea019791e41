package transport

import (
	"errors"
	"net/http"
	"strconv"

	"chocolata/internal/domain"
	"chocolata/internal/middleware"
	"chocolata/internal/repository"
	"chocolata/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReviewRequest approves or rejects a seller verification
type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// CategoryRequest creates a category
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// ProductActivationRequest shows or hides a product in the catalog
type ProductActivationRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// AdminHandler serves the admin dashboard
type AdminHandler struct {
	admin    service.AdminService
	catalog  service.CatalogService
	products service.ProductService
	orders   service.OrderService
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	admin service.AdminService,
	catalog service.CatalogService,
	products service.ProductService,
	orders service.OrderService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		catalog:  catalog,
		products: products,
		orders:   orders,
		logger:   logger,
	}
}

// RegisterRoutes registers the admin routes behind the given guards
func (h *AdminHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(guards...)

		r.Get("/dashboard", h.Dashboard)
		r.Get("/activity", h.ListActivity)

		r.Get("/verifications", h.ListVerifications)
		r.Post("/verifications/{id}/review", h.ReviewVerification)

		r.Post("/categories", h.CreateCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)

		r.Get("/products", h.ListProducts)
		r.Patch("/products/{id}/active", h.SetProductActive)

		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
	})
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("Failed to build dashboard", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// ListActivity returns the audit trail filtered by ?action=, ?table= and ?limit=
func (h *AdminHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ActivityFilter{
		Action: domain.ActivityAction(q.Get("action")),
		Table:  q.Get("table"),
	}
	// the admin page sends "all" for an unset filter
	if filter.Action == "all" {
		filter.Action = ""
	}
	if filter.Table == "all" {
		filter.Table = ""
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.admin.Activity(r.Context(), filter)
	if err != nil {
		if errors.Is(err, service.ErrInvalidActivityFilter) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to list activity", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, entries)
}

// ListVerifications filters by ?status=, pending by default
func (h *AdminHandler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	status := domain.VerificationStatus(r.URL.Query().Get("status"))

	list, err := h.admin.ListVerifications(r.Context(), status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidVerification) {
			middleware.RespondWithError(w, http.StatusBadRequest, "unknown verification status")
			return
		}
		h.logger.Error("Failed to list verifications", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list verifications")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) ReviewVerification(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	v, err := h.admin.ReviewVerification(r.Context(), adminID, id, req.Decision == "approve")
	if err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "verification not found")
			return
		}
		h.logger.Error("Failed to review verification", zap.String("verification_id", id.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to review verification")
		return
	}

	h.logger.Info("Seller verification reviewed",
		zap.String("verification_id", id.String()),
		zap.String("status", string(v.Status)),
		zap.String("admin_id", adminID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, v)
}

func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("Failed to create category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "category not found")
			return
		}
		h.logger.Error("Failed to delete category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts returns every product, hidden ones included
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *AdminHandler) SetProductActive(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ProductActivationRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.products.SetActive(r.Context(), id, *req.Active); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to change product visibility", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		respondWithOrderError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		respondWithOrderError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus moves an order along its lifecycle; cancelling restocks and refunds
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		respondWithOrderError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
