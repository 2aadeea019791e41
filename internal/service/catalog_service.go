package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"chocolata/internal/catalog"
	"chocolata/internal/domain"
	"chocolata/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrSellerNotFound = errors.New("seller not found")

// CatalogPage is a computed page together with the canonical query that produced it
type CatalogPage struct {
	catalog.Page
	Query            string `json:"query"`
	HasActiveFilters bool   `json:"has_active_filters"`
}

// CatalogService answers storefront browsing requests
type CatalogService interface {
	Browse(ctx context.Context, q catalog.Query) (*CatalogPage, error)
	Product(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Categories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	SellerProfile(ctx context.Context, sellerID uuid.UUID) (*domain.SellerProfile, error)
}

type catalogService struct {
	products      repository.ProductRepository
	categories    repository.CategoryRepository
	users         repository.UserRepository
	verifications repository.SellerVerificationRepository
	engine        *catalog.Engine
	pageSize      int
	loads         singleflight.Group
	activity      *ActivityLog
	logger        *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	users repository.UserRepository,
	verifications repository.SellerVerificationRepository,
	engine *catalog.Engine,
	pageSize int,
	activity *ActivityLog,
	logger *zap.Logger,
) CatalogService {
	if pageSize <= 0 {
		pageSize = catalog.DefaultPageSize
	}
	return &catalogService{
		products:      products,
		categories:    categories,
		users:         users,
		verifications: verifications,
		engine:        engine,
		pageSize:      pageSize,
		activity:      activity,
		logger:        logger,
	}
}

// Browse loads the active catalog and evaluates q against it
func (s *catalogService) Browse(ctx context.Context, q catalog.Query) (*CatalogPage, error) {
	q = q.Normalize()

	products, err := s.activeProducts(ctx)
	if err != nil {
		return nil, err
	}

	page := s.engine.ComputeVisiblePage(products, q, s.pageSize)
	return &CatalogPage{Page: page, Query: q.Encode(), HasActiveFilters: q.HasActiveFilters()}, nil
}

// activeProducts collapses concurrent loads into one repository call
func (s *catalogService) activeProducts(ctx context.Context) ([]domain.Product, error) {
	// one caller giving up must not fail the others sharing the load
	loadCtx := context.WithoutCancel(ctx)
	v, err, shared := s.loads.Do("active", func() (interface{}, error) {
		rows, err := s.products.ListActive(loadCtx)
		if err != nil {
			return nil, err
		}
		products := make([]domain.Product, 0, len(rows))
		for _, p := range rows {
			products = append(products, *p)
		}
		return products, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if shared {
		s.logger.Debug("Catalog load shared")
	}

	// the engine never mutates its input, so the shared slice is safe to hand out
	return v.([]domain.Product), nil
}

// Product returns a catalog product. Inactive products are reported as not found.
func (s *catalogService) Product(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Info("Category created", zap.String("category_id", category.ID.String()), zap.String("name", category.Name))
	s.activity.Record(ctx, domain.ActivityCreate, domain.TableCategories, category.ID, changeSet{}.
		set("name", nil, category.Name).
		set("description", nil, category.Description))
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Category deleted", zap.String("category_id", id.String()))
	s.activity.Record(ctx, domain.ActivityDelete, domain.TableCategories, id, nil)
	return nil
}

// SellerProfile shows a seller and their active products, newest first.
// Accounts that are not sellers are reported as not found.
func (s *catalogService) SellerProfile(ctx context.Context, sellerID uuid.UUID) (*domain.SellerProfile, error) {
	user, err := s.users.FindByID(ctx, sellerID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrSellerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find seller: %w", err)
	}
	if user.Role != domain.RoleSeller {
		return nil, ErrSellerNotFound
	}

	profile := &domain.SellerProfile{
		ID:          user.ID,
		FullName:    user.FullName,
		MemberSince: user.CreatedAt,
		Products:    []domain.Product{},
	}

	v, err := s.verifications.FindByUser(ctx, sellerID)
	switch {
	case err == nil:
		if v.Status == domain.VerificationApproved {
			profile.Verified = true
			profile.BusinessName = v.BusinessName
		}
	case !errors.Is(err, repository.ErrVerificationNotFound):
		return nil, fmt.Errorf("failed to check seller verification: %w", err)
	}

	products, err := s.activeProducts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.SellerID == sellerID {
			profile.Products = append(profile.Products, p)
		}
	}
	slices.SortStableFunc(profile.Products, func(a, b domain.Product) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	profile.ProductCount = len(profile.Products)

	return profile, nil
}
