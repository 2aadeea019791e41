package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a seller's listing in the catalog
type Product struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	SellerID      uuid.UUID       `json:"seller_id" db:"seller_id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	Price         decimal.Decimal `json:"price" db:"price"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty" db:"category_id"`
	Category      string          `json:"category" db:"category"`
	ImageURL      string          `json:"image_url" db:"image_url"`
	ImagePublicID string          `json:"-" db:"image_public_id"`
	Stock         int             `json:"stock" db:"stock"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Category groups products for the catalog's category selector
type Category struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	ProductCount int       `json:"product_count" db:"product_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
