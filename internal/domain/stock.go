package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// StockFailureReason explains why a cart line cannot be ordered
type StockFailureReason string

const (
	StockReasonEmptyCart         StockFailureReason = "empty_cart"
	StockReasonNotFound          StockFailureReason = "not_found"
	StockReasonSoldOut           StockFailureReason = "sold_out"
	StockReasonInsufficientStock StockFailureReason = "insufficient_stock"
)

// StockFailure describes one problem found while checking a cart against live stock
type StockFailure struct {
	ProductID    uuid.UUID          `json:"product_id"`
	Name         string             `json:"name,omitempty"`
	Reason       StockFailureReason `json:"reason"`
	AvailableQty *int               `json:"available_qty,omitempty"`
}

// Message renders the failure for a shopper
func (f StockFailure) Message() string {
	switch f.Reason {
	case StockReasonEmptyCart:
		return "Your cart is empty"
	case StockReasonSoldOut:
		return fmt.Sprintf("%s is sold out", f.Name)
	case StockReasonInsufficientStock:
		available := 0
		if f.AvailableQty != nil {
			available = *f.AvailableQty
		}
		return fmt.Sprintf("Only %d left of %s", available, f.Name)
	default:
		return fmt.Sprintf("%s is no longer available", f.Name)
	}
}

// StockValidationResult is produced fresh on each checkout attempt and never persisted
type StockValidationResult struct {
	Valid    bool           `json:"valid"`
	Failures []StockFailure `json:"failures"`
}

// Messages returns one shopper-facing line per failure
func (r StockValidationResult) Messages() []string {
	messages := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		messages = append(messages, f.Message())
	}
	return messages
}
