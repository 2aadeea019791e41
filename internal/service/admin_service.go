package service

import (
	"context"
	"fmt"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminService backs the admin dashboard and seller review
type AdminService interface {
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
	ListVerifications(ctx context.Context, status domain.VerificationStatus) ([]*domain.SellerVerification, error)
	ReviewVerification(ctx context.Context, adminID, verificationID uuid.UUID, approve bool) (*domain.SellerVerification, error)
	Activity(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityEntry, error)
}

type adminService struct {
	users         repository.UserRepository
	products      repository.ProductRepository
	orders        repository.OrderRepository
	verifications repository.SellerVerificationRepository
	activity      *ActivityLog
	currency      string
	now           func() time.Time
	logger        *zap.Logger
}

// NewAdminService creates a new instance of AdminService
func NewAdminService(
	users repository.UserRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	verifications repository.SellerVerificationRepository,
	activity *ActivityLog,
	currency string,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		users:         users,
		products:      products,
		orders:        orders,
		verifications: verifications,
		activity:      activity,
		currency:      currency,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *adminService) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	roles, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	total, active, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	orders, revenue, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.verifications.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.DashboardStats{
		Buyers:               roles[domain.RoleBuyer],
		Sellers:              roles[domain.RoleSeller],
		Admins:               roles[domain.RoleAdmin],
		Products:             total,
		ActiveProducts:       active,
		Orders:               orders,
		PendingVerifications: pending,
		Revenue:              revenue.Round(2),
		Currency:             s.currency,
	}, nil
}

// ListVerifications returns applications in a status; an empty status means pending
func (s *adminService) ListVerifications(ctx context.Context, status domain.VerificationStatus) ([]*domain.SellerVerification, error) {
	switch status {
	case "":
		status = domain.VerificationPending
	case domain.VerificationPending, domain.VerificationApproved, domain.VerificationRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidVerification, status)
	}
	return s.verifications.ListByStatus(ctx, status)
}

// ReviewVerification approves or rejects an application
func (s *adminService) ReviewVerification(ctx context.Context, adminID, verificationID uuid.UUID, approve bool) (*domain.SellerVerification, error) {
	status := domain.VerificationRejected
	if approve {
		status = domain.VerificationApproved
	}

	current, err := s.verifications.FindByID(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	previous := current.Status
	if err := s.verifications.Review(ctx, verificationID, status, adminID, s.now()); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, domain.ActivityUpdate, domain.TableSellerVerifications, verificationID, changeSet{}.
		diff("status", string(previous), string(status)))

	s.logger.Info("Seller verification reviewed",
		zap.String("verification_id", verificationID.String()),
		zap.String("admin_id", adminID.String()),
		zap.String("status", string(status)),
	)
	return s.verifications.FindByID(ctx, verificationID)
}

// Activity lists the audit trail, newest first
func (s *adminService) Activity(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityEntry, error) {
	if s.activity == nil {
		return []*domain.ActivityEntry{}, nil
	}
	return s.activity.List(ctx, filter)
}
