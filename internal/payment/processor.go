// Package payment charges orders and interprets provider webhooks.
package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"chocolata/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DeclinedMessage is shown to the buyer when a charge fails
const DeclinedMessage = "Payment processing failed. Please try again or use a different payment method."

// Charge is a request to take money for an order
type Charge struct {
	OrderID  uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Method   domain.PaymentMethod
}

// Result is the processor's answer. Pending means the provider will report the outcome by webhook.
type Result struct {
	Status        domain.PaymentStatus
	TransactionID string
	Message       string
}

// Processor takes payments
type Processor interface {
	Charge(ctx context.Context, charge Charge) (Result, error)
}

// MockProcessor simulates a provider. Card charges settle immediately and fail at failureRate;
// Klarna and PayPal are redirect flows that stay pending until their webhook arrives.
type MockProcessor struct {
	failureRate float64
	roll        func() float64
	now         func() time.Time
	delay       time.Duration
	logger      *zap.Logger
}

// NewMockProcessor creates a mock processor that declines roughly failureRate of card charges
func NewMockProcessor(failureRate float64, logger *zap.Logger) *MockProcessor {
	return &MockProcessor{
		failureRate: failureRate,
		roll:        rand.Float64,
		now:         time.Now,
		logger:      logger,
	}
}

// WithRoll replaces the random source, for deterministic runs
func (p *MockProcessor) WithRoll(roll func() float64) *MockProcessor {
	p.roll = roll
	return p
}

// WithDelay simulates provider latency
func (p *MockProcessor) WithDelay(d time.Duration) *MockProcessor {
	p.delay = d
	return p
}

func (p *MockProcessor) Charge(ctx context.Context, charge Charge) (Result, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("payment cancelled: %w", ctx.Err())
		case <-time.After(p.delay):
		}
	}

	txID := p.transactionID()

	switch charge.Method {
	case domain.PaymentMethodKlarna, domain.PaymentMethodPayPal:
		p.logger.Info("Payment awaiting provider confirmation",
			zap.String("order_id", charge.OrderID.String()),
			zap.String("method", string(charge.Method)),
			zap.String("transaction_id", txID),
		)
		return Result{Status: domain.PaymentStatusPending, TransactionID: txID}, nil
	case domain.PaymentMethodCard:
	default:
		return Result{}, fmt.Errorf("unsupported payment method %q", charge.Method)
	}

	if p.roll() < p.failureRate {
		p.logger.Warn("Payment declined",
			zap.String("order_id", charge.OrderID.String()),
			zap.String("amount", charge.Amount.StringFixed(2)),
		)
		return Result{Status: domain.PaymentStatusFailed, Message: DeclinedMessage}, nil
	}

	p.logger.Info("Payment completed",
		zap.String("order_id", charge.OrderID.String()),
		zap.String("amount", charge.Amount.StringFixed(2)),
		zap.String("currency", charge.Currency),
		zap.String("transaction_id", txID),
	)
	return Result{Status: domain.PaymentStatusCompleted, TransactionID: txID}, nil
}

func (p *MockProcessor) transactionID() string {
	return "txn_" + strconv.FormatInt(p.now().UnixMilli(), 10) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
