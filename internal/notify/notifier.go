// Package notify tells buyers about their orders.
package notify

import (
	"context"

	"chocolata/internal/domain"

	"go.uber.org/zap"
)

// Notifier sends order messages. Implementations must not block order processing on delivery.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order) error
	OrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error
}

// LogNotifier records the messages that would be emailed
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OrderPlaced(_ context.Context, order *domain.Order) error {
	n.logger.Info("Order confirmation email queued",
		zap.String("to", order.Shipping.Email),
		zap.String("subject", "Order Confirmation #"+shortID(order)),
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.Total.StringFixed(2)),
		zap.String("currency", order.Currency),
		zap.Int("items", len(order.Items)),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.Time("estimated_delivery", order.EstimatedDeliveryDate),
	)
	return nil
}

func (n *LogNotifier) OrderStatusChanged(_ context.Context, order *domain.Order, from domain.OrderStatus) error {
	n.logger.Info("Order status email queued",
		zap.String("to", order.Shipping.Email),
		zap.String("subject", "Order #"+shortID(order)+" is "+string(order.Status)),
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to_status", string(order.Status)),
	)
	return nil
}

func shortID(order *domain.Order) string {
	return order.ID.String()[:8]
}
