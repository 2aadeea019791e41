package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/repository"
	"chocolata/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const verificationFolder = "verifications"

var ErrInvalidVerification = errors.New("invalid verification")

// SellerService handles a seller's application to sell on the marketplace
type SellerService interface {
	SubmitVerification(ctx context.Context, sellerID uuid.UUID, businessName string, document io.Reader) (*domain.SellerVerification, error)
	GetVerification(ctx context.Context, sellerID uuid.UUID) (*domain.SellerVerification, error)
}

type sellerService struct {
	verifications repository.SellerVerificationRepository
	store         storage.ObjectStore
	logger        *zap.Logger
}

// NewSellerService creates a new instance of SellerService
func NewSellerService(
	verifications repository.SellerVerificationRepository,
	store storage.ObjectStore,
	logger *zap.Logger,
) SellerService {
	return &sellerService{
		verifications: verifications,
		store:         store,
		logger:        logger,
	}
}

// SubmitVerification uploads the business document and (re)opens the seller's application
func (s *sellerService) SubmitVerification(ctx context.Context, sellerID uuid.UUID, businessName string, document io.Reader) (*domain.SellerVerification, error) {
	businessName = strings.TrimSpace(businessName)
	if len(businessName) < 2 {
		return nil, fmt.Errorf("%w: business name is required", ErrInvalidVerification)
	}
	if document == nil {
		return nil, fmt.Errorf("%w: document is required", ErrInvalidVerification)
	}

	var previous string
	existing, err := s.verifications.FindByUser(ctx, sellerID)
	switch {
	case err == nil:
		previous = existing.DocumentPublicID
	case !errors.Is(err, repository.ErrVerificationNotFound):
		return nil, err
	}

	obj, err := s.store.Upload(ctx, document, verificationFolder)
	if err != nil {
		return nil, err
	}

	v := &domain.SellerVerification{
		ID:               uuid.New(),
		UserID:           sellerID,
		BusinessName:     businessName,
		DocumentURL:      obj.URL,
		DocumentPublicID: obj.PublicID,
		Status:           domain.VerificationPending,
		SubmittedAt:      time.Now(),
	}
	if err := s.verifications.Submit(ctx, v); err != nil {
		s.discard(ctx, obj.PublicID)
		return nil, err
	}

	if previous != "" && previous != obj.PublicID {
		s.discard(ctx, previous)
	}

	s.logger.Info("Seller verification submitted",
		zap.String("seller_id", sellerID.String()),
		zap.String("verification_id", v.ID.String()),
	)
	return s.verifications.FindByUser(ctx, sellerID)
}

func (s *sellerService) GetVerification(ctx context.Context, sellerID uuid.UUID) (*domain.SellerVerification, error) {
	return s.verifications.FindByUser(ctx, sellerID)
}

func (s *sellerService) discard(ctx context.Context, publicID string) {
	if err := s.store.Delete(ctx, publicID); err != nil {
		s.logger.Warn("Failed to delete stored file", zap.String("public_id", publicID), zap.Error(err))
	}
}
