// Package pricing holds the shipping, VAT and delivery-date rules applied at checkout.
package pricing

import (
	"strings"
	"time"

	"chocolata/internal/cart"
	"chocolata/internal/domain"

	"github.com/shopspring/decimal"
)

// DomesticCountry is the shop's home market
const DomesticCountry = "SE"

// Rules is the table-driven policy for shipping, tax and delivery estimates.
// Country keys are upper-case ISO codes.
type Rules struct {
	FreeShippingThreshold decimal.Decimal
	ShippingRates         map[string]decimal.Decimal
	DefaultShipping       decimal.Decimal
	VATRates              map[string]decimal.Decimal
	DeliveryDays          map[string]int
	DefaultDeliveryDays   int
}

// DefaultRules returns the shop's standing rates (SEK)
func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(500),
		ShippingRates: map[string]decimal.Decimal{
			"SE": decimal.NewFromInt(49),
			"NO": decimal.NewFromInt(79),
			"DK": decimal.NewFromInt(79),
			"FI": decimal.NewFromInt(79),
			"DE": decimal.NewFromInt(99),
		},
		DefaultShipping: decimal.NewFromInt(149),
		VATRates: map[string]decimal.Decimal{
			DomesticCountry: decimal.RequireFromString("0.25"),
		},
		DeliveryDays: map[string]int{
			"SE": 2,
			"NO": 3,
			"DK": 3,
			"FI": 3,
			"DE": 5,
		},
		DefaultDeliveryDays: 7,
	}
}

// WithFreeShippingThreshold overrides the free shipping limit
func (r Rules) WithFreeShippingThreshold(threshold decimal.Decimal) Rules {
	r.FreeShippingThreshold = threshold
	return r
}

// NormalizeCountry trims and upper-cases a country code
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// ShippingCost is free at or above the threshold, otherwise looked up per country
func (r Rules) ShippingCost(country string, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		return decimal.Zero
	}
	if rate, ok := r.ShippingRates[NormalizeCountry(country)]; ok {
		return rate
	}
	return r.DefaultShipping
}

// Tax applies the destination VAT rate to subtotal plus shipping
func (r Rules) Tax(subtotal, shipping decimal.Decimal, country string) decimal.Decimal {
	rate, ok := r.VATRates[NormalizeCountry(country)]
	if !ok {
		return decimal.Zero
	}
	return subtotal.Add(shipping).Mul(rate)
}

// EstimatedDeliveryDate adds the country's day offset to today, then moves forward
// one day at a time until the date is not a Saturday or Sunday.
func (r Rules) EstimatedDeliveryDate(country string, today time.Time) time.Time {
	days, ok := r.DeliveryDays[NormalizeCountry(country)]
	if !ok {
		days = r.DefaultDeliveryDays
	}

	y, m, d := today.Date()
	delivery := time.Date(y, m, d, 0, 0, 0, 0, today.Location()).AddDate(0, 0, days)
	for delivery.Weekday() == time.Saturday || delivery.Weekday() == time.Sunday {
		delivery = delivery.AddDate(0, 0, 1)
	}
	return delivery
}

// Totals derives the full order totals from cart lines and a destination
func (r Rules) Totals(items []domain.CartLineItem, country string, today time.Time) domain.OrderTotals {
	subtotal := cart.Subtotal(items)
	shipping := r.ShippingCost(country, subtotal)
	tax := r.Tax(subtotal, shipping, country)

	return domain.OrderTotals{
		Subtotal:              subtotal,
		ShippingCost:          shipping,
		TaxAmount:             tax,
		Total:                 subtotal.Add(shipping).Add(tax),
		EstimatedDeliveryDate: r.EstimatedDeliveryDate(country, today),
	}
}

var defaultRules = DefaultRules()

// ShippingCost applies the default rules
func ShippingCost(country string, subtotal decimal.Decimal) decimal.Decimal {
	return defaultRules.ShippingCost(country, subtotal)
}

// Tax applies the default rules
func Tax(subtotal, shipping decimal.Decimal, country string) decimal.Decimal {
	return defaultRules.Tax(subtotal, shipping, country)
}

// EstimatedDeliveryDate applies the default rules
func EstimatedDeliveryDate(country string, today time.Time) time.Time {
	return defaultRules.EstimatedDeliveryDate(country, today)
}

// ComputeOrderTotals applies the default rules
func ComputeOrderTotals(items []domain.CartLineItem, country string, today time.Time) domain.OrderTotals {
	return defaultRules.Totals(items, country, today)
}
