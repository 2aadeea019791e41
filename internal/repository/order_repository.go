package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chocolata/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotPending   = errors.New("order can no longer be cancelled")
	ErrOrderCancelled    = errors.New("order is cancelled")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	UpdatePayment(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, transactionID string) error
	ConfirmPayment(ctx context.Context, id uuid.UUID, transactionID string) error
	CancelAndRestock(ctx context.Context, id uuid.UUID, payment domain.PaymentStatus) error
	CancelUnpaid(ctx context.Context, id uuid.UUID) error
	FindStalePending(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error)
	Stats(ctx context.Context) (orders int, revenue decimal.Decimal, err error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	id, buyer_id, status, payment_status, payment_method, payment_transaction_id, currency,
	subtotal, shipping_cost, tax_amount, total, estimated_delivery_date,
	shipping_name, shipping_email, shipping_address, shipping_city, shipping_postal_code, shipping_country,
	created_at, updated_at`

// Create inserts the order and its items and takes the ordered quantities out of stock,
// all in one transaction. A line that cannot be covered aborts the whole order.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		order.ID,
		order.BuyerID,
		order.Status,
		order.PaymentStatus,
		order.PaymentMethod,
		order.PaymentTransactionID,
		order.Currency,
		order.Subtotal,
		order.ShippingCost,
		order.TaxAmount,
		order.Total,
		order.EstimatedDeliveryDate,
		order.Shipping.Name,
		order.Shipping.Email,
		order.Shipping.Address,
		order.Shipping.City,
		order.Shipping.PostalCode,
		order.Shipping.Country,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range order.Items {
		result, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2
			WHERE id = $1 AND is_active AND stock >= $2
		`, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
		if err := expectOneRow(result, ErrInsufficientStock); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, seller_id, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, item.ProductID, item.SellerID, item.Name, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

// FindByID retrieves an order with all of its items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	items, err := r.items(ctx, `WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

// ListByBuyer returns a buyer's orders, newest first
func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return r.list(ctx,
		`SELECT`+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`,
		`WHERE order_id IN (SELECT id FROM orders WHERE buyer_id = $1)`,
		buyerID,
	)
}

// ListBySeller returns orders containing the seller's products. Only the seller's own lines are included.
func (r *orderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	return r.list(ctx,
		`SELECT`+orderColumns+` FROM orders
		 WHERE id IN (SELECT order_id FROM order_items WHERE seller_id = $1)
		 ORDER BY created_at DESC`,
		`WHERE seller_id = $1`,
		sellerID,
	)
}

// ListAll returns every order for administration
func (r *orderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return r.list(ctx,
		`SELECT`+orderColumns+` FROM orders ORDER BY created_at DESC`,
		``,
	)
}

// UpdateStatus sets the fulfilment status
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return expectOneRow(result, ErrOrderNotFound)
}

// UpdatePayment records a payment outcome. An empty transactionID keeps the stored one.
func (r *orderRepository) UpdatePayment(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, transactionID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2,
		    payment_transaction_id = COALESCE(NULLIF($3, ''), payment_transaction_id)
		WHERE id = $1
	`, id, status, transactionID)
	if err != nil {
		return fmt.Errorf("failed to update order payment: %w", err)
	}

	return expectOneRow(result, ErrOrderNotFound)
}

// ConfirmPayment marks the payment completed and moves a pending order into processing.
// A cancelled order is left untouched and reported as ErrOrderCancelled.
func (r *orderRepository) ConfirmPayment(ctx context.Context, id uuid.UUID, transactionID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = 'completed',
		    payment_transaction_id = COALESCE(NULLIF($2, ''), payment_transaction_id),
		    status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END
		WHERE id = $1 AND status <> 'cancelled'
	`, id, transactionID)
	if err != nil {
		return fmt.Errorf("failed to confirm order payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrOrderCancelled
}

// CancelAndRestock cancels a pending or processing order, puts its quantities back
// into stock and records the payment status, in one transaction.
func (r *orderRepository) CancelAndRestock(ctx context.Context, id uuid.UUID, payment domain.PaymentStatus) error {
	return r.cancel(ctx, id, payment, `status IN ('pending', 'processing')`)
}

// CancelUnpaid cancels an order only while both it and its payment are still pending,
// marking the payment failed and restocking. Otherwise it returns ErrOrderNotPending.
func (r *orderRepository) CancelUnpaid(ctx context.Context, id uuid.UUID) error {
	return r.cancel(ctx, id, domain.PaymentStatusFailed, `status = 'pending' AND payment_status = 'pending'`)
}

func (r *orderRepository) cancel(ctx context.Context, id uuid.UUID, payment domain.PaymentStatus, guard string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = 'cancelled', payment_status = $2
		WHERE id = $1 AND `+guard, id, payment)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if err := expectOneRow(result, ErrOrderNotPending); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products p SET stock = p.stock + oi.quantity
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id
	`, id)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	return nil
}

// FindStalePending returns pending orders still awaiting payment that were placed before createdBefore
func (r *orderRepository) FindStalePending(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending' AND payment_status = 'pending' AND created_at < $1
		ORDER BY created_at
	`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale orders: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale orders: %w", err)
	}

	return ids, nil
}

// Stats returns the order count and the revenue from completed payments
func (r *orderRepository) Stats(ctx context.Context) (int, decimal.Decimal, error) {
	var count int
	var revenue decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total) FILTER (WHERE payment_status = 'completed'), 0)
		FROM orders
	`).Scan(&count, &revenue)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to compute order stats: %w", err)
	}
	return count, revenue, nil
}

func (r *orderRepository) list(ctx context.Context, orderQuery, itemFilter string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, orderQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	items, err := r.items(ctx, itemFilter, args...)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
		if order.Items == nil {
			order.Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

func (r *orderRepository) items(ctx context.Context, filter string, args ...any) (map[uuid.UUID][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, seller_id, name, quantity, price
		FROM order_items `+filter+`
		ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	byOrder := map[uuid.UUID][]domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.SellerID,
			&item.Name,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return byOrder, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.Status,
		&order.PaymentStatus,
		&order.PaymentMethod,
		&order.PaymentTransactionID,
		&order.Currency,
		&order.Subtotal,
		&order.ShippingCost,
		&order.TaxAmount,
		&order.Total,
		&order.EstimatedDeliveryDate,
		&order.Shipping.Name,
		&order.Shipping.Email,
		&order.Shipping.Address,
		&order.Shipping.City,
		&order.Shipping.PostalCode,
		&order.Shipping.Country,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
