package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus tracks fulfilment
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks the money side of an order
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethod is the buyer's chosen way to pay
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodKlarna PaymentMethod = "klarna"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether an order may move from one status to another
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderTotals is derived from cart lines and a destination; it is never stored on its own
type OrderTotals struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	ShippingCost          decimal.Decimal `json:"shipping_cost"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	Total                 decimal.Decimal `json:"total"`
	EstimatedDeliveryDate time.Time       `json:"estimated_delivery_date"`
}

// Rounded returns the totals rounded to the currency minor unit for display and storage
func (t OrderTotals) Rounded() OrderTotals {
	return OrderTotals{
		Subtotal:              t.Subtotal.Round(2),
		ShippingCost:          t.ShippingCost.Round(2),
		TaxAmount:             t.TaxAmount.Round(2),
		Total:                 t.Total.Round(2),
		EstimatedDeliveryDate: t.EstimatedDeliveryDate,
	}
}

// ShippingDetails is where and to whom an order is sent
type ShippingDetails struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order represents a placed order
type Order struct {
	ID                    uuid.UUID       `json:"id"`
	BuyerID               uuid.UUID       `json:"buyer_id"`
	Status                OrderStatus     `json:"status"`
	PaymentStatus         PaymentStatus   `json:"payment_status"`
	PaymentMethod         PaymentMethod   `json:"payment_method"`
	PaymentTransactionID  string          `json:"payment_transaction_id,omitempty"`
	Currency              string          `json:"currency"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	ShippingCost          decimal.Decimal `json:"shipping_cost"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	Total                 decimal.Decimal `json:"total"`
	EstimatedDeliveryDate time.Time       `json:"estimated_delivery_date"`
	Shipping              ShippingDetails `json:"shipping"`
	Items                 []OrderItem     `json:"items"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// OrderItem is a purchased line with the price paid
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
