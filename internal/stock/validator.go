// Package stock checks requested cart quantities against authoritative product stock.
package stock

import (
	"context"
	"fmt"

	"chocolata/internal/domain"

	"github.com/google/uuid"
)

// SnapshotSource fetches live product rows for a set of ids
type SnapshotSource interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error)
}

// Validator checks a cart against fresh stock fetched from its source
type Validator struct {
	source SnapshotSource
}

// NewValidator creates a validator reading from source
func NewValidator(source SnapshotSource) *Validator {
	return &Validator{source: source}
}

// Validate returns empty_cart without touching the source when the cart holds no products,
// otherwise fetches the referenced products and evaluates every line.
func (v *Validator) Validate(ctx context.Context, items []domain.CartLineItem) (domain.StockValidationResult, error) {
	result, _, err := v.Snapshot(ctx, items)
	return result, err
}

// Snapshot is Validate that also returns the live products it checked against, keyed by id.
// Inactive products count as missing.
func (v *Validator) Snapshot(ctx context.Context, items []domain.CartLineItem) (domain.StockValidationResult, map[uuid.UUID]domain.Product, error) {
	ids := distinctProductIDs(items)
	if len(ids) == 0 {
		return emptyCart(), map[uuid.UUID]domain.Product{}, nil
	}

	snapshots, err := v.source.FindByIDs(ctx, ids)
	if err != nil {
		return domain.StockValidationResult{}, nil, fmt.Errorf("failed to load stock snapshots: %w", err)
	}

	live := make([]domain.Product, 0, len(snapshots))
	byID := make(map[uuid.UUID]domain.Product, len(snapshots))
	for _, p := range snapshots {
		// a hidden product can no longer be bought
		if p != nil && p.IsActive {
			live = append(live, *p)
			byID[p.ID] = *p
		}
	}
	return Evaluate(items, live), byID, nil
}

// Evaluate compares requested quantities with the snapshots and reports every failure.
// Lines for the same product are summed before comparing.
func Evaluate(items []domain.CartLineItem, snapshots []domain.Product) domain.StockValidationResult {
	ids := distinctProductIDs(items)
	if len(ids) == 0 {
		return emptyCart()
	}

	byID := make(map[uuid.UUID]domain.Product, len(snapshots))
	for _, p := range snapshots {
		byID[p.ID] = p
	}

	requested := make(map[uuid.UUID]int, len(ids))
	names := make(map[uuid.UUID]string, len(ids))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		requested[item.ProductID] += item.Quantity
		if _, ok := names[item.ProductID]; !ok {
			names[item.ProductID] = item.Name
		}
	}

	failures := []domain.StockFailure{}
	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			failures = append(failures, domain.StockFailure{
				ProductID: id,
				Name:      names[id],
				Reason:    domain.StockReasonNotFound,
			})
			continue
		}

		available := product.Stock
		switch {
		case available <= 0:
			failures = append(failures, domain.StockFailure{
				ProductID: id,
				Name:      product.Name,
				Reason:    domain.StockReasonSoldOut,
			})
		case requested[id] > available:
			failures = append(failures, domain.StockFailure{
				ProductID:    id,
				Name:         product.Name,
				Reason:       domain.StockReasonInsufficientStock,
				AvailableQty: &available,
			})
		}
	}

	return domain.StockValidationResult{Valid: len(failures) == 0, Failures: failures}
}

func emptyCart() domain.StockValidationResult {
	return domain.StockValidationResult{
		Valid:    false,
		Failures: []domain.StockFailure{{Reason: domain.StockReasonEmptyCart}},
	}
}

// distinctProductIDs returns the ids of lines with a positive quantity, in first-seen order
func distinctProductIDs(items []domain.CartLineItem) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		ids = append(ids, item.ProductID)
	}
	return ids
}
