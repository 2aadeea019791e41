package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chocolata/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrVerificationNotFound = errors.New("seller verification not found")
)

// SellerVerificationRepository defines the interface for seller verification data access
type SellerVerificationRepository interface {
	Submit(ctx context.Context, v *domain.SellerVerification) error
	FindByUser(ctx context.Context, userID uuid.UUID) (*domain.SellerVerification, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.SellerVerification, error)
	ListByStatus(ctx context.Context, status domain.VerificationStatus) ([]*domain.SellerVerification, error)
	Review(ctx context.Context, id uuid.UUID, status domain.VerificationStatus, reviewer uuid.UUID, at time.Time) error
	CountPending(ctx context.Context) (int, error)
}

type sellerVerificationRepository struct {
	db *sql.DB
}

// NewSellerVerificationRepository creates a new instance of SellerVerificationRepository
func NewSellerVerificationRepository(db *sql.DB) SellerVerificationRepository {
	return &sellerVerificationRepository{db: db}
}

const verificationSelect = `
	SELECT v.id, v.user_id, v.business_name, v.document_url, v.document_public_id, v.status,
	       v.submitted_at, v.reviewed_at, v.reviewed_by, u.email, u.full_name
	FROM seller_verifications v
	JOIN users u ON u.id = v.user_id`

// Submit stores a seller's application. A resubmission replaces the previous one and is pending again.
func (r *sellerVerificationRepository) Submit(ctx context.Context, v *domain.SellerVerification) error {
	query := `
		INSERT INTO seller_verifications (id, user_id, business_name, document_url, document_public_id, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		ON CONFLICT (user_id) DO UPDATE
		SET business_name = EXCLUDED.business_name,
		    document_url = EXCLUDED.document_url,
		    document_public_id = EXCLUDED.document_public_id,
		    status = 'pending',
		    submitted_at = EXCLUDED.submitted_at,
		    reviewed_at = NULL,
		    reviewed_by = NULL
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		v.ID,
		v.UserID,
		v.BusinessName,
		v.DocumentURL,
		v.DocumentPublicID,
		v.SubmittedAt,
	).Scan(&v.ID)

	if err != nil {
		return fmt.Errorf("failed to submit seller verification: %w", err)
	}

	v.Status = domain.VerificationPending
	v.ReviewedAt = nil
	v.ReviewedBy = nil
	return nil
}

// FindByUser returns the seller's current application
func (r *sellerVerificationRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*domain.SellerVerification, error) {
	return r.findOne(ctx, verificationSelect+` WHERE v.user_id = $1`, userID)
}

// FindByID retrieves an application by ID
func (r *sellerVerificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SellerVerification, error) {
	return r.findOne(ctx, verificationSelect+` WHERE v.id = $1`, id)
}

// ListByStatus returns applications in the given state, oldest submission first
func (r *sellerVerificationRepository) ListByStatus(ctx context.Context, status domain.VerificationStatus) ([]*domain.SellerVerification, error) {
	rows, err := r.db.QueryContext(ctx, verificationSelect+` WHERE v.status = $1 ORDER BY v.submitted_at`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller verifications: %w", err)
	}
	defer rows.Close()

	out := []*domain.SellerVerification{}
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seller verification: %w", err)
		}
		out = append(out, v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seller verifications: %w", err)
	}

	return out, nil
}

// Review records an admin decision
func (r *sellerVerificationRepository) Review(ctx context.Context, id uuid.UUID, status domain.VerificationStatus, reviewer uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE seller_verifications
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1
	`, id, status, reviewer, at)
	if err != nil {
		return fmt.Errorf("failed to review seller verification: %w", err)
	}

	return expectOneRow(result, ErrVerificationNotFound)
}

// CountPending returns how many applications await review
func (r *sellerVerificationRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seller_verifications WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending verifications: %w", err)
	}
	return n, nil
}

func (r *sellerVerificationRepository) findOne(ctx context.Context, query string, arg any) (*domain.SellerVerification, error) {
	v, err := scanVerification(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to find seller verification: %w", err)
	}
	return v, nil
}

func scanVerification(row rowScanner) (*domain.SellerVerification, error) {
	v := &domain.SellerVerification{}
	var reviewedAt sql.NullTime
	var reviewedBy uuid.NullUUID
	err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.BusinessName,
		&v.DocumentURL,
		&v.DocumentPublicID,
		&v.Status,
		&v.SubmittedAt,
		&reviewedAt,
		&reviewedBy,
		&v.SellerEmail,
		&v.SellerName,
	)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		v.ReviewedAt = &reviewedAt.Time
	}
	if reviewedBy.Valid {
		v.ReviewedBy = &reviewedBy.UUID
	}
	return v, nil
}
