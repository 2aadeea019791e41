package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chocolata/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrProductUnavailable = errors.New("product is not available")
	ErrItemNotInCart      = errors.New("item not in cart")
)

// ProductFinder loads the product a line is being created from
type ProductFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// Summary is a cart with its derived totals
type Summary struct {
	Items    []domain.CartLineItem `json:"items"`
	Subtotal decimal.Decimal       `json:"subtotal"`
	Count    int                   `json:"count"`
}

// Service implements the cart operations on top of a Store
type Service struct {
	store    Store
	products ProductFinder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a cart service
func NewService(store Store, products ProductFinder, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		products: products,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the user's cart, or an empty one when none is stored
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		now := s.now()
		return &domain.Cart{UserID: userID, Items: []domain.CartLineItem{}, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Summary returns the cart lines with subtotal and item count
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(c.Items), nil
}

// Summarize derives totals for a list of lines
func Summarize(items []domain.CartLineItem) *Summary {
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return &Summary{Items: items, Subtotal: Subtotal(items), Count: Count(items)}
}

// AddItem adds quantity of a product, snapshotting its current price on first add
func (s *Service) AddItem(ctx context.Context, userID string, productID uuid.UUID, quantity int) (*Summary, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !product.IsActive {
		return nil, ErrProductUnavailable
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, domain.CartLineItem{
			ID:        uuid.NewString(),
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  quantity,
			ImageURL:  product.ImageURL,
		})
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Debug("Cart item added",
		zap.String("user_id", userID),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
	)
	return Summarize(c.Items), nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line
func (s *Service) UpdateQuantity(ctx context.Context, userID string, productID uuid.UUID, quantity int) (*Summary, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, ErrItemNotInCart
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return Summarize(c.Items), nil
}

// RemoveItem drops the product's line from the cart
func (s *Service) RemoveItem(ctx context.Context, userID string, productID uuid.UUID) (*Summary, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(c.Items) {
		return nil, ErrItemNotInCart
	}
	c.Items = kept

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return Summarize(c.Items), nil
}

// Clear empties the cart
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

func (s *Service) save(ctx context.Context, c *domain.Cart) error {
	c.UpdatedAt = s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	return s.store.Save(ctx, c)
}
