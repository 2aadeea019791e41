package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the marketplace role carried in access tokens
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// ParseRole maps a stored or claimed role string onto a Role. Unknown values become buyers.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSeller:
		return RoleSeller
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleBuyer
	}
}

// User represents an account on the marketplace
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// RefreshToken is a long-lived token used to mint new access tokens
type RefreshToken struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	Revoked   bool      `db:"revoked"`
}

// SellerProfile is the public storefront view of a seller. It carries no contact details.
type SellerProfile struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	BusinessName string    `json:"business_name,omitempty"`
	Verified     bool      `json:"verified"`
	MemberSince  time.Time `json:"member_since"`
	ProductCount int       `json:"product_count"`
	Products     []Product `json:"products"`
}
