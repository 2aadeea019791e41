package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/notify"
	"chocolata/internal/payment"
	"chocolata/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrIllegalTransition = errors.New("order cannot move to that status")

// sellerTargets are the statuses a seller may set on orders containing their products
var sellerTargets = map[domain.OrderStatus]bool{
	domain.OrderStatusShipped:   true,
	domain.OrderStatusDelivered: true,
}

// OrderService handles orders after they are placed
type OrderService interface {
	ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Order, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error)
	UpdateStatusAsSeller(ctx context.Context, sellerID, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ExpireStalePayments(ctx context.Context) (int, error)
}

type orderService struct {
	orders         repository.OrderRepository
	notifier       notify.Notifier
	webhookSecret  string
	paymentTimeout time.Duration
	activity       *ActivityLog
	now            func() time.Time
	logger         *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orders repository.OrderRepository,
	notifier notify.Notifier,
	webhookSecret string,
	paymentTimeout time.Duration,
	activity *ActivityLog,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orders:         orders,
		notifier:       notifier,
		webhookSecret:  webhookSecret,
		paymentTimeout: paymentTimeout,
		activity:       activity,
		now:            time.Now,
		logger:         logger,
	}
}

func (s *orderService) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID)
}

// GetForBuyer returns the buyer's own order. Other buyers' orders are reported as not found.
func (s *orderService) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.ListBySeller(ctx, sellerID)
}

// UpdateStatusAsSeller lets a seller ship or deliver an order that contains their products
func (s *orderService) UpdateStatusAsSeller(ctx context.Context, sellerID, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	involved := false
	for _, item := range order.Items {
		if item.SellerID == sellerID {
			involved = true
			break
		}
	}
	if !involved {
		return nil, repository.ErrOrderNotFound
	}
	if !sellerTargets[status] {
		return nil, ErrForbidden
	}

	return s.transition(ctx, order, status)
}

func (s *orderService) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return s.orders.ListAll(ctx)
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

// UpdateStatus applies any legal transition
func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, status)
}

func (s *orderService) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	from, fromPayment := order.Status, order.PaymentStatus
	if !domain.CanTransitionTo(from, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, from, to)
	}

	if to == domain.OrderStatusCancelled {
		paymentStatus := domain.PaymentStatusFailed
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			paymentStatus = domain.PaymentStatusRefunded
		}
		if err := s.orders.CancelAndRestock(ctx, order.ID, paymentStatus); err != nil {
			return nil, err
		}
	} else if err := s.orders.UpdateStatus(ctx, order.ID, to); err != nil {
		return nil, err
	}

	updated, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.activity.Record(ctx, domain.ActivityUpdate, domain.TableOrders, order.ID, changeSet{}.
		diff("status", string(from), string(updated.Status)).
		diff("payment_status", string(fromPayment), string(updated.PaymentStatus)))
	if err := s.notifier.OrderStatusChanged(ctx, updated, from); err != nil {
		s.logger.Warn("Failed to send status notification", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	return updated, nil
}

// HandleWebhook applies a payment provider notification. Unknown event types and events
// without an order reference are acknowledged and ignored.
func (s *orderService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if err := payment.VerifySignature(s.webhookSecret, body, signature); err != nil {
		return err
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		return err
	}

	status, ok := payment.Outcome(event.Type)
	if !ok || !event.HasOrder {
		s.logger.Info("Unhandled webhook event", zap.String("type", event.Type))
		return nil
	}

	log := s.logger.With(
		zap.String("order_id", event.OrderID.String()),
		zap.String("type", event.Type),
		zap.String("transaction_id", event.TransactionID),
	)

	switch status {
	case domain.PaymentStatusCompleted:
		err = s.confirmPayment(ctx, event, log)
	case domain.PaymentStatusFailed:
		err = s.failPayment(ctx, event)
	case domain.PaymentStatusRefunded:
		err = s.orders.UpdatePayment(ctx, event.OrderID, domain.PaymentStatusRefunded, "")
	}
	if err != nil {
		log.Error("Failed to apply webhook", zap.Error(err))
		return err
	}

	log.Info("Payment webhook applied", zap.String("payment_status", string(status)))
	return nil
}

// confirmPayment records a successful charge. Money arriving for an order that was already
// cancelled (expired or failed earlier, stock released) is marked refunded and flagged for a manual refund.
func (s *orderService) confirmPayment(ctx context.Context, event payment.Event, log *zap.Logger) error {
	err := s.orders.ConfirmPayment(ctx, event.OrderID, event.TransactionID)
	if !errors.Is(err, repository.ErrOrderCancelled) {
		return err
	}

	log.Error("Payment received for cancelled order, manual refund required")
	return s.orders.UpdatePayment(ctx, event.OrderID, domain.PaymentStatusRefunded, event.TransactionID)
}

// failPayment cancels and restocks an order still awaiting its first payment;
// later failures are only recorded.
func (s *orderService) failPayment(ctx context.Context, event payment.Event) error {
	err := s.orders.CancelUnpaid(ctx, event.OrderID)
	if errors.Is(err, repository.ErrOrderNotPending) {
		return s.orders.UpdatePayment(ctx, event.OrderID, domain.PaymentStatusFailed, event.TransactionID)
	}
	return err
}

// ExpireStalePayments cancels orders still awaiting payment after the payment timeout and restocks them
func (s *orderService) ExpireStalePayments(ctx context.Context) (int, error) {
	ids, err := s.orders.FindStalePending(ctx, s.now().Add(-s.paymentTimeout))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := s.orders.CancelUnpaid(ctx, id)
		if errors.Is(err, repository.ErrOrderNotPending) {
			// paid or cancelled since the scan
			continue
		}
		if err != nil {
			s.logger.Error("Failed to expire order", zap.String("order_id", id.String()), zap.Error(err))
			continue
		}
		expired++

		if order, err := s.orders.FindByID(ctx, id); err == nil {
			if err := s.notifier.OrderStatusChanged(ctx, order, domain.OrderStatusPending); err != nil {
				s.logger.Warn("Failed to send status notification", zap.String("order_id", id.String()), zap.Error(err))
			}
		}
	}

	return expired, nil
}
