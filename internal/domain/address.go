package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is a shipping address a buyer saved for later checkouts.
// A user with saved addresses has exactly one default.
type Address struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"-" db:"user_id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Line1      string    `json:"address_line1" db:"address_line1"`
	Line2      string    `json:"address_line2,omitempty" db:"address_line2"`
	City       string    `json:"city" db:"city"`
	PostalCode string    `json:"postal_code" db:"postal_code"`
	Country    string    `json:"country" db:"country"`
	IsDefault  bool      `json:"is_default" db:"is_default"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Street joins both address lines the way they are printed on an order
func (a Address) Street() string {
	if strings.TrimSpace(a.Line2) == "" {
		return a.Line1
	}
	return a.Line1 + ", " + a.Line2
}
