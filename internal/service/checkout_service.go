package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chocolata/internal/cart"
	"chocolata/internal/domain"
	"chocolata/internal/notify"
	"chocolata/internal/payment"
	"chocolata/internal/pricing"
	"chocolata/internal/repository"
	"chocolata/internal/stock"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrPaymentFailed      = errors.New(payment.DeclinedMessage)
	ErrInvalidCheckout    = errors.New("invalid checkout details")
	checkoutFormValidator = validator.New()
)

// StockError reports why a cart cannot be ordered right now
type StockError struct {
	Result domain.StockValidationResult
}

func (e *StockError) Error() string {
	return strings.Join(e.Result.Messages(), "; ")
}

// CheckoutForm is what the buyer submits at checkout
type CheckoutForm struct {
	FullName      string               `json:"full_name" validate:"required_without=AddressID,omitempty,min=2"`
	Email         string               `json:"email" validate:"required,email"`
	Address       string               `json:"address" validate:"required_without=AddressID,omitempty,min=5"`
	City          string               `json:"city" validate:"required_without=AddressID,omitempty,min=2"`
	PostalCode    string               `json:"postal_code" validate:"required_without=AddressID,omitempty,min=5"`
	Country       string               `json:"country" validate:"required_without=AddressID,omitempty,min=2"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"required,oneof=card klarna paypal"`
	// AddressID ships to a saved address; its fields replace the typed ones
	AddressID   *uuid.UUID `json:"address_id,omitempty"`
	SaveAddress bool       `json:"save_address"`
}

// ValidateCheckoutForm checks the form against the checkout rules
func ValidateCheckoutForm(form CheckoutForm) error {
	if err := checkoutFormValidator.Struct(form); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCheckout, err)
	}
	return nil
}

// Quote is a priced cart together with its current stock verdict
type Quote struct {
	cart.Summary
	Totals   domain.OrderTotals           `json:"totals"`
	Currency string                       `json:"currency"`
	Stock    domain.StockValidationResult `json:"stock"`
}

// CheckoutService turns carts into orders
type CheckoutService interface {
	Quote(ctx context.Context, buyerID uuid.UUID, country string) (*Quote, error)
	PlaceOrder(ctx context.Context, buyerID uuid.UUID, form CheckoutForm) (*domain.Order, error)
}

type checkoutService struct {
	carts     *cart.Service
	stock     *stock.Validator
	rules     pricing.Rules
	orders    repository.OrderRepository
	addresses AddressService
	processor payment.Processor
	notifier  notify.Notifier
	currency  string
	now       func() time.Time
	logger    *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	carts *cart.Service,
	stockValidator *stock.Validator,
	rules pricing.Rules,
	orders repository.OrderRepository,
	addresses AddressService,
	processor payment.Processor,
	notifier notify.Notifier,
	currency string,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		carts:     carts,
		stock:     stockValidator,
		rules:     rules,
		orders:    orders,
		addresses: addresses,
		processor: processor,
		notifier:  notifier,
		currency:  currency,
		now:       time.Now,
		logger:    logger,
	}
}

// Quote prices the buyer's cart for a destination and reports its stock verdict
func (s *checkoutService) Quote(ctx context.Context, buyerID uuid.UUID, country string) (*Quote, error) {
	c, err := s.carts.Get(ctx, buyerID.String())
	if err != nil {
		return nil, err
	}

	result, err := s.stock.Validate(ctx, c.Items)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Summary:  *cart.Summarize(c.Items),
		Totals:   s.rules.Totals(c.Items, country, s.now()).Rounded(),
		Currency: s.currency,
		Stock:    result,
	}, nil
}

// PlaceOrder validates the form and the cart's stock, prices the order, reserves stock,
// charges the buyer and clears the cart.
func (s *checkoutService) PlaceOrder(ctx context.Context, buyerID uuid.UUID, form CheckoutForm) (*domain.Order, error) {
	if form.AddressID != nil {
		saved, err := s.useSavedAddress(ctx, buyerID, form)
		if err != nil {
			return nil, err
		}
		form = saved
	}
	if err := ValidateCheckoutForm(form); err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, buyerID.String())
	if err != nil {
		return nil, err
	}

	result, snapshots, err := s.stock.Snapshot(ctx, c.Items)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &StockError{Result: result}
	}

	order := s.buildOrder(buyerID, form, c.Items, snapshots)

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			// stock moved between the check and the write
			return nil, s.staleStock(ctx, c.Items, err)
		}
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.String("total", order.Total.StringFixed(2)),
		zap.String("payment_method", string(order.PaymentMethod)),
	)

	if err := s.settle(ctx, order); err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, buyerID.String()); err != nil {
		s.logger.Warn("Failed to clear cart after order", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	if form.SaveAddress && form.AddressID == nil {
		s.saveAddress(ctx, buyerID, form)
	}

	placed, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.OrderPlaced(ctx, placed); err != nil {
		s.logger.Warn("Failed to send order confirmation", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	return placed, nil
}

// useSavedAddress fills the shipping fields from one of the buyer's saved addresses
func (s *checkoutService) useSavedAddress(ctx context.Context, buyerID uuid.UUID, form CheckoutForm) (CheckoutForm, error) {
	addresses, err := s.addresses.List(ctx, buyerID)
	if err != nil {
		return form, err
	}
	for _, a := range addresses {
		if a.ID == *form.AddressID {
			form.FullName = a.FullName
			form.Address = a.Street()
			form.City = a.City
			form.PostalCode = a.PostalCode
			form.Country = a.Country
			return form, nil
		}
	}
	return form, repository.ErrAddressNotFound
}

// saveAddress keeps the shipping address for next time unless the buyer already saved it.
// The order is placed either way, so failures are only logged.
func (s *checkoutService) saveAddress(ctx context.Context, buyerID uuid.UUID, form CheckoutForm) {
	input := AddressInput{
		FullName:   form.FullName,
		Line1:      form.Address,
		City:       form.City,
		PostalCode: form.PostalCode,
		Country:    pricing.NormalizeCountry(form.Country),
	}.trimmed()

	existing, err := s.addresses.List(ctx, buyerID)
	if err != nil {
		s.logger.Warn("Failed to load saved addresses", zap.String("buyer_id", buyerID.String()), zap.Error(err))
		return
	}
	for _, a := range existing {
		if strings.EqualFold(a.Street(), input.Line1) && a.PostalCode == input.PostalCode {
			return
		}
	}

	if _, err := s.addresses.Create(ctx, buyerID, input); err != nil {
		s.logger.Warn("Failed to save shipping address", zap.String("buyer_id", buyerID.String()), zap.Error(err))
	}
}

func (s *checkoutService) buildOrder(
	buyerID uuid.UUID,
	form CheckoutForm,
	items []domain.CartLineItem,
	snapshots map[uuid.UUID]domain.Product,
) *domain.Order {
	now := s.now()
	country := pricing.NormalizeCountry(form.Country)
	totals := s.rules.Totals(items, country, now).Rounded()

	order := &domain.Order{
		ID:                    uuid.New(),
		BuyerID:               buyerID,
		Status:                domain.OrderStatusPending,
		PaymentStatus:         domain.PaymentStatusPending,
		PaymentMethod:         form.PaymentMethod,
		Currency:              s.currency,
		Subtotal:              totals.Subtotal,
		ShippingCost:          totals.ShippingCost,
		TaxAmount:             totals.TaxAmount,
		Total:                 totals.Total,
		EstimatedDeliveryDate: totals.EstimatedDeliveryDate,
		Shipping: domain.ShippingDetails{
			Name:       strings.TrimSpace(form.FullName),
			Email:      strings.TrimSpace(form.Email),
			Address:    strings.TrimSpace(form.Address),
			City:       strings.TrimSpace(form.City),
			PostalCode: strings.TrimSpace(form.PostalCode),
			Country:    country,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, line := range items {
		if line.Quantity <= 0 {
			continue
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			SellerID:  snapshots[line.ProductID].SellerID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}

	return order
}

// settle charges the order and records the outcome. A declined or broken charge cancels the order.
func (s *checkoutService) settle(ctx context.Context, order *domain.Order) error {
	res, err := s.processor.Charge(ctx, payment.Charge{
		OrderID:  order.ID,
		Amount:   order.Total,
		Currency: order.Currency,
		Method:   order.PaymentMethod,
	})
	if err != nil {
		s.abandon(ctx, order.ID)
		return fmt.Errorf("failed to charge order: %w", err)
	}

	switch res.Status {
	case domain.PaymentStatusCompleted:
		err := s.orders.ConfirmPayment(ctx, order.ID, res.TransactionID)
		if errors.Is(err, repository.ErrOrderCancelled) {
			// expired while the charge was in flight
			s.logger.Error("Payment captured for cancelled order, manual refund required",
				zap.String("order_id", order.ID.String()), zap.String("transaction_id", res.TransactionID))
			if err := s.orders.UpdatePayment(ctx, order.ID, domain.PaymentStatusRefunded, res.TransactionID); err != nil {
				return err
			}
			return ErrPaymentFailed
		}
		return err
	case domain.PaymentStatusPending:
		return s.orders.UpdatePayment(ctx, order.ID, domain.PaymentStatusPending, res.TransactionID)
	default:
		s.abandon(ctx, order.ID)
		return ErrPaymentFailed
	}
}

// abandon cancels an unpaid order and puts its stock back
func (s *checkoutService) abandon(ctx context.Context, orderID uuid.UUID) {
	if err := s.orders.CancelUnpaid(ctx, orderID); err != nil {
		s.logger.Error("Failed to cancel unpaid order", zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	s.logger.Info("Unpaid order cancelled", zap.String("order_id", orderID.String()))
}

func (s *checkoutService) staleStock(ctx context.Context, items []domain.CartLineItem, cause error) error {
	result, err := s.stock.Validate(ctx, items)
	if err != nil || result.Valid {
		return cause
	}
	return &StockError{Result: result}
}
