package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chocolata/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductInUse    = errors.New("product has been ordered and cannot be deleted")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error)
	ListActive(ctx context.Context) ([]*domain.Product, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error)
	ListAll(ctx context.Context) ([]*domain.Product, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Count(ctx context.Context) (total int, active int, err error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `
	p.id, p.seller_id, p.name, p.description, p.price, p.category_id, COALESCE(c.name, ''),
	p.image_url, p.image_public_id, p.stock, p.is_active, p.created_at, p.updated_at`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.SellerID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.CategoryID,
		&product.Category,
		&product.ImageURL,
		&product.ImagePublicID,
		&product.Stock,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, seller_id, name, description, price, category_id, image_url, image_public_id,
		                      stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SellerID,
		product.Name,
		product.Description,
		product.Price,
		product.CategoryID,
		product.ImageURL,
		product.ImagePublicID,
		product.Stock,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update updates an existing product in the database using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, category_id = $5,
		    image_url = $6, image_public_id = $7, stock = $8, is_active = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.CategoryID,
		product.ImageURL,
		product.ImagePublicID,
		product.Stock,
		product.IsActive,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	return expectOneRow(result, ErrProductNotFound)
}

// Delete removes a product from the database using parameterized queries
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return expectOneRow(result, ErrProductNotFound)
}

// FindByID retrieves a product by ID, active or not
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + ` WHERE p.id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByIDs returns the current rows for ids. Missing ids are simply absent from the result.
func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT` + productColumns + productFrom + ` WHERE p.id = ANY($1::uuid[])`
	return r.list(ctx, query, keys)
}

// ListActive returns every product visible in the catalog, newest first
func (r *productRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + ` WHERE p.is_active ORDER BY p.created_at DESC`
	return r.list(ctx, query)
}

// ListBySeller returns a seller's own products including inactive ones
func (r *productRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + ` WHERE p.seller_id = $1 ORDER BY p.created_at DESC`
	return r.list(ctx, query, sellerID)
}

// ListAll returns every product for administration
func (r *productRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + ` ORDER BY p.created_at DESC`
	return r.list(ctx, query)
}

// SetActive shows or hides a product in the catalog
func (r *productRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update product visibility: %w", err)
	}

	return expectOneRow(result, ErrProductNotFound)
}

// Count returns the number of products and how many of them are active
func (r *productRepository) Count(ctx context.Context) (int, int, error) {
	var total, active int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM products`,
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, active, nil
}

func (r *productRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}
