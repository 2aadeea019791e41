package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/repository"
	"chocolata/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const productImageFolder = "products"

var (
	ErrForbidden         = errors.New("not allowed to act on this resource")
	ErrSellerNotApproved = errors.New("seller verification has not been approved")
	ErrInvalidProduct    = errors.New("invalid product")
)

// ProductInput is the editable part of a product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  *uuid.UUID
	IsActive    *bool
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case !in.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than 0", ErrInvalidProduct)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}
	return nil
}

// ProductService manages listings for sellers and admins
type ProductService interface {
	Create(ctx context.Context, sellerID uuid.UUID, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, sellerID, productID uuid.UUID, input ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, sellerID, productID uuid.UUID) error
	ListOwn(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error)
	UploadImage(ctx context.Context, sellerID, productID uuid.UUID, image io.Reader) (*domain.Product, error)
	ListAll(ctx context.Context) ([]*domain.Product, error)
	SetActive(ctx context.Context, productID uuid.UUID, active bool) error
}

type productService struct {
	products      repository.ProductRepository
	verifications repository.SellerVerificationRepository
	store         storage.ObjectStore
	activity      *ActivityLog
	logger        *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	verifications repository.SellerVerificationRepository,
	store storage.ObjectStore,
	activity *ActivityLog,
	logger *zap.Logger,
) ProductService {
	return &productService{
		products:      products,
		verifications: verifications,
		store:         store,
		activity:      activity,
		logger:        logger,
	}
}

// Create lists a new product. Only sellers with an approved verification may list.
func (s *productService) Create(ctx context.Context, sellerID uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := s.requireApproved(ctx, sellerID); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		CategoryID:  input.CategoryID,
		Stock:       input.Stock,
		IsActive:    input.IsActive == nil || *input.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", sellerID.String()),
	)
	s.activity.Record(ctx, domain.ActivityCreate, domain.TableProducts, product.ID, changeSet{}.
		set("name", nil, product.Name).
		set("price", nil, product.Price.StringFixed(2)).
		set("stock", nil, product.Stock).
		set("is_active", nil, product.IsActive))
	return s.products.FindByID(ctx, product.ID)
}

func (s *productService) Update(ctx context.Context, sellerID, productID uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	product, err := s.owned(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	before := *product

	product.Name = strings.TrimSpace(input.Name)
	product.Description = strings.TrimSpace(input.Description)
	product.Price = input.Price
	product.Stock = input.Stock
	product.CategoryID = input.CategoryID
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, domain.ActivityUpdate, domain.TableProducts, productID, changeSet{}.
		diff("name", before.Name, product.Name).
		diff("description", before.Description, product.Description).
		diff("price", before.Price.StringFixed(2), product.Price.StringFixed(2)).
		diff("stock", before.Stock, product.Stock).
		diff("category_id", categoryValue(before.CategoryID), categoryValue(product.CategoryID)).
		diff("is_active", before.IsActive, product.IsActive))
	return s.products.FindByID(ctx, productID)
}

func categoryValue(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// Delete removes a product and its image. Products that were ordered must be deactivated instead.
func (s *productService) Delete(ctx context.Context, sellerID, productID uuid.UUID) error {
	product, err := s.owned(ctx, sellerID, productID)
	if err != nil {
		return err
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}

	s.removeObject(ctx, product.ImagePublicID)
	s.logger.Info("Product deleted", zap.String("product_id", productID.String()))
	s.activity.Record(ctx, domain.ActivityDelete, domain.TableProducts, productID, changeSet{}.
		set("name", product.Name, nil).
		set("price", product.Price.StringFixed(2), nil))
	return nil
}

func (s *productService) ListOwn(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error) {
	return s.products.ListBySeller(ctx, sellerID)
}

// UploadImage stores a new product image and replaces the previous one
func (s *productService) UploadImage(ctx context.Context, sellerID, productID uuid.UUID, image io.Reader) (*domain.Product, error) {
	product, err := s.owned(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}

	obj, err := s.store.Upload(ctx, image, productImageFolder)
	if err != nil {
		return nil, err
	}

	previous, previousURL := product.ImagePublicID, product.ImageURL
	product.ImageURL = obj.URL
	product.ImagePublicID = obj.PublicID
	if err := s.products.Update(ctx, product); err != nil {
		s.removeObject(ctx, obj.PublicID)
		return nil, err
	}

	s.removeObject(ctx, previous)
	s.activity.Record(ctx, domain.ActivityUpdate, domain.TableProducts, productID, changeSet{}.
		diff("image_url", previousURL, product.ImageURL))
	return product, nil
}

func (s *productService) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return s.products.ListAll(ctx)
}

func (s *productService) SetActive(ctx context.Context, productID uuid.UUID, active bool) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.products.SetActive(ctx, productID, active); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.ActivityUpdate, domain.TableProducts, productID, changeSet{}.
		diff("is_active", product.IsActive, active))
	s.logger.Info("Product visibility changed",
		zap.String("product_id", productID.String()),
		zap.Bool("active", active),
	)
	return nil
}

func (s *productService) owned(ctx context.Context, sellerID, productID uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, ErrForbidden
	}
	return product, nil
}

func (s *productService) requireApproved(ctx context.Context, sellerID uuid.UUID) error {
	v, err := s.verifications.FindByUser(ctx, sellerID)
	if errors.Is(err, repository.ErrVerificationNotFound) {
		return ErrSellerNotApproved
	}
	if err != nil {
		return fmt.Errorf("failed to check seller verification: %w", err)
	}
	if v.Status != domain.VerificationApproved {
		return ErrSellerNotApproved
	}
	return nil
}

// removeObject deletes a stored file; failures leave an orphan and are only logged
func (s *productService) removeObject(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.store.Delete(ctx, publicID); err != nil {
		s.logger.Warn("Failed to delete stored file", zap.String("public_id", publicID), zap.Error(err))
	}
}
