package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxSavedAddresses caps how many addresses one buyer can keep
const MaxSavedAddresses = 10

var (
	ErrInvalidAddress   = errors.New("invalid address")
	ErrTooManyAddresses = errors.New("too many saved addresses")
	addressValidator    = validator.New()
)

// AddressInput is a shipping address as the buyer types it
type AddressInput struct {
	FullName   string `validate:"required,min=2,max=200"`
	Line1      string `validate:"required,min=5,max=255"`
	Line2      string `validate:"max=255"`
	City       string `validate:"required,min=2,max=100"`
	PostalCode string `validate:"required,min=5,max=20"`
	Country    string `validate:"required,min=2,max=100"`
	IsDefault  bool
}

func (in AddressInput) trimmed() AddressInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Line1 = strings.TrimSpace(in.Line1)
	in.Line2 = strings.TrimSpace(in.Line2)
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Country = strings.TrimSpace(in.Country)
	return in
}

func (in AddressInput) validate() error {
	if err := addressValidator.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return nil
}

// AddressService manages a buyer's saved shipping addresses
type AddressService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*domain.Address, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*domain.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*domain.Address, error)
}

type addressService struct {
	addresses repository.AddressRepository
	now       func() time.Time
	logger    *zap.Logger
}

// NewAddressService creates a new instance of AddressService
func NewAddressService(addresses repository.AddressRepository, logger *zap.Logger) AddressService {
	return &addressService{
		addresses: addresses,
		now:       time.Now,
		logger:    logger,
	}
}

// List returns the default address first
func (s *addressService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	return s.addresses.ListByUser(ctx, userID)
}

// Create saves a new address. The first one becomes the default.
func (s *addressService) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*domain.Address, error) {
	input = input.trimmed()
	if err := input.validate(); err != nil {
		return nil, err
	}

	existing, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= MaxSavedAddresses {
		return nil, ErrTooManyAddresses
	}

	now := s.now()
	address := &domain.Address{
		ID:         uuid.New(),
		UserID:     userID,
		FullName:   input.FullName,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		PostalCode: input.PostalCode,
		Country:    input.Country,
		IsDefault:  input.IsDefault,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.addresses.Create(ctx, address); err != nil {
		return nil, err
	}

	s.logger.Debug("Address saved", zap.String("user_id", userID.String()), zap.String("address_id", address.ID.String()))
	return address, nil
}

// Update rewrites an address. IsDefault true also makes it the default; false never clears it.
func (s *addressService) Update(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*domain.Address, error) {
	input = input.trimmed()
	if err := input.validate(); err != nil {
		return nil, err
	}

	address, err := s.addresses.FindByID(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}
	address.FullName = input.FullName
	address.Line1 = input.Line1
	address.Line2 = input.Line2
	address.City = input.City
	address.PostalCode = input.PostalCode
	address.Country = input.Country

	if err := s.addresses.Update(ctx, address); err != nil {
		return nil, err
	}
	if input.IsDefault && !address.IsDefault {
		return s.SetDefault(ctx, userID, addressID)
	}
	return s.addresses.FindByID(ctx, userID, addressID)
}

func (s *addressService) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.addresses.Delete(ctx, userID, addressID)
}

func (s *addressService) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*domain.Address, error) {
	if err := s.addresses.SetDefault(ctx, userID, addressID); err != nil {
		return nil, err
	}
	return s.addresses.FindByID(ctx, userID, addressID)
}
