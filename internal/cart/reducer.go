// Package cart holds the buyer's basket: pure total reducers, a Redis store and the cart service.
package cart

import (
	"chocolata/internal/domain"

	"github.com/shopspring/decimal"
)

// Subtotal sums price × quantity over the lines using each line's price snapshot
func Subtotal(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count sums the quantities of all lines
func Count(items []domain.CartLineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}
