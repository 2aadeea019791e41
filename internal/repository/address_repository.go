package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chocolata/internal/domain"

	"github.com/google/uuid"
)

var ErrAddressNotFound = errors.New("address not found")

// AddressRepository stores buyers' saved shipping addresses. Every lookup is scoped to the owning user.
type AddressRepository interface {
	Create(ctx context.Context, address *domain.Address) error
	Update(ctx context.Context, address *domain.Address) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	SetDefault(ctx context.Context, userID, id uuid.UUID) error
}

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository creates a new instance of AddressRepository
func NewAddressRepository(db *sql.DB) AddressRepository {
	return &addressRepository{db: db}
}

const addressColumns = `id, user_id, full_name, address_line1, address_line2, city, postal_code, country, is_default, created_at, updated_at`

func scanAddress(row rowScanner) (*domain.Address, error) {
	a := &domain.Address{}
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.FullName,
		&a.Line1,
		&a.Line2,
		&a.City,
		&a.PostalCode,
		&a.Country,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// lockUser serializes default bookkeeping for one user
func lockUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

// Create saves an address. The user's first address becomes the default, and a new default replaces the old one.
func (r *addressRepository) Create(ctx context.Context, address *domain.Address) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockUser(ctx, tx, address.UserID); err != nil {
		return err
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_addresses WHERE user_id = $1`, address.UserID).Scan(&existing); err != nil {
		return fmt.Errorf("failed to count addresses: %w", err)
	}
	if existing == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE user_addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, address.UserID); err != nil {
			return fmt.Errorf("failed to clear default address: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_addresses (`+addressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		address.ID,
		address.UserID,
		address.FullName,
		address.Line1,
		address.Line2,
		address.City,
		address.PostalCode,
		address.Country,
		address.IsDefault,
		address.CreatedAt,
		address.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}

	return tx.Commit()
}

// Update rewrites the address fields. The default flag only moves through SetDefault.
func (r *addressRepository) Update(ctx context.Context, address *domain.Address) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_addresses
		SET full_name = $3, address_line1 = $4, address_line2 = $5, city = $6, postal_code = $7, country = $8
		WHERE id = $1 AND user_id = $2
	`,
		address.ID,
		address.UserID,
		address.FullName,
		address.Line1,
		address.Line2,
		address.City,
		address.PostalCode,
		address.Country,
	)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	return expectOneRow(result, ErrAddressNotFound)
}

// Delete removes an address. Deleting the default promotes the newest remaining address.
func (r *addressRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockUser(ctx, tx, userID); err != nil {
		return err
	}

	var wasDefault bool
	err = tx.QueryRowContext(ctx, `
		DELETE FROM user_addresses WHERE id = $1 AND user_id = $2 RETURNING is_default
	`, id, userID).Scan(&wasDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAddressNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}

	if wasDefault {
		_, err = tx.ExecContext(ctx, `
			UPDATE user_addresses SET is_default = TRUE
			WHERE id = (
				SELECT id FROM user_addresses WHERE user_id = $1
				ORDER BY created_at DESC, id
				LIMIT 1
			)
		`, userID)
		if err != nil {
			return fmt.Errorf("failed to promote default address: %w", err)
		}
	}

	return tx.Commit()
}

func (r *addressRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	a, err := scanAddress(r.db.QueryRowContext(ctx, `
		SELECT `+addressColumns+` FROM user_addresses WHERE id = $1 AND user_id = $2
	`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find address: %w", err)
	}
	return a, nil
}

// ListByUser returns the default address first, then the newest
func (r *addressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+addressColumns+` FROM user_addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []*domain.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}

// SetDefault makes id the user's only default address
func (r *addressRepository) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockUser(ctx, tx, userID); err != nil {
		return err
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_addresses WHERE id = $1 AND user_id = $2)
	`, id, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check address: %w", err)
	}
	if !exists {
		return ErrAddressNotFound
	}

	// the partial unique index is checked per row, so clear before setting
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_addresses SET is_default = FALSE WHERE user_id = $1 AND is_default AND id <> $2
	`, userID, id); err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_addresses SET is_default = TRUE WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("failed to set default address: %w", err)
	}

	return tx.Commit()
}
