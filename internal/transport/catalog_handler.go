package transport

import (
	"errors"
	"net/http"

	"chocolata/internal/catalog"
	"chocolata/internal/middleware"
	"chocolata/internal/repository"
	"chocolata/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogQueryRequest applies one parameter change to a canonical catalog query
type CatalogQueryRequest struct {
	Query string `json:"query"`
	Param string `json:"param" validate:"required,oneof=search category minPrice maxPrice sort page clear"`
	Value string `json:"value"`
}

// CatalogHandler serves the public storefront catalog
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers the catalog routes. They are public.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/", h.Browse)
		r.Post("/query", h.ApplyChange)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/sellers/{id}", h.GetSeller)
	})
	r.Get("/api/categories", h.ListCategories)
}

// Browse evaluates the URL query against the active catalog. Content-Location
// carries the canonical form of the query.
func (h *CatalogHandler) Browse(w http.ResponseWriter, r *http.Request) {
	h.respondWithPage(w, r, catalog.ParseQuery(r.URL.Query()))
}

// ApplyChange takes the current canonical query and one changed parameter, and returns the resulting page
func (h *CatalogHandler) ApplyChange(w http.ResponseWriter, r *http.Request) {
	var req CatalogQueryRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	h.respondWithPage(w, r, catalog.ParseRawQuery(req.Query).Set(req.Param, req.Value))
}

func (h *CatalogHandler) respondWithPage(w http.ResponseWriter, r *http.Request, q catalog.Query) {
	page, err := h.catalogService.Browse(r.Context(), q)
	if err != nil {
		h.logger.Error("Failed to browse catalog", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}

	location := "/api/catalog"
	if page.Query != "" {
		location += "?" + page.Query
	}
	w.Header().Set("Content-Location", location)
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct returns one active product
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.catalogService.Product(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to load product", zap.String("product_id", id.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// GetSeller returns a seller's public profile with their active products
func (h *CatalogHandler) GetSeller(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.catalogService.SellerProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSellerNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "seller not found")
			return
		}
		h.logger.Error("Failed to load seller profile", zap.String("seller_id", id.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load seller")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

// ListCategories returns every category
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.Categories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}
