package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VerificationStatus is the review state of a seller application
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// SellerVerification is a seller's submitted proof of business, reviewed by an admin
type SellerVerification struct {
	ID               uuid.UUID          `json:"id"`
	UserID           uuid.UUID          `json:"user_id"`
	BusinessName     string             `json:"business_name"`
	DocumentURL      string             `json:"document_url"`
	DocumentPublicID string             `json:"-"`
	Status           VerificationStatus `json:"status"`
	SubmittedAt      time.Time          `json:"submitted_at"`
	ReviewedAt       *time.Time         `json:"reviewed_at,omitempty"`
	ReviewedBy       *uuid.UUID         `json:"reviewed_by,omitempty"`
	SellerEmail      string             `json:"seller_email,omitempty"`
	SellerName       string             `json:"seller_name,omitempty"`
}

// DashboardStats summarizes the platform for admins
type DashboardStats struct {
	Buyers               int             `json:"buyers"`
	Sellers              int             `json:"sellers"`
	Admins               int             `json:"admins"`
	Products             int             `json:"products"`
	ActiveProducts       int             `json:"active_products"`
	Orders               int             `json:"orders"`
	PendingVerifications int             `json:"pending_verifications"`
	Revenue              decimal.Decimal `json:"revenue"`
	Currency             string          `json:"currency"`
}
