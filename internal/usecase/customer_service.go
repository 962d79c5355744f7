package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
	"github.com/weblate/wlweb-payments/internal/vat"
)

// BillingInput carries one billing-info submission.
type BillingInput struct {
	Name    string `json:"name" form:"name" validate:"required"`
	Address string `json:"address" form:"address" validate:"required"`
	City    string `json:"city" form:"city" validate:"required"`
	Country string `json:"country" form:"country" validate:"required,len=2"`
	// VAT is submitted split into country prefix and number, matching
	// the billing form.
	VATCountry string `json:"vat_0" form:"vat_0" validate:"omitempty,len=2"`
	VATNumber  string `json:"vat_1" form:"vat_1"`
	Email      string `json:"email" form:"email" validate:"omitempty,email"`
}

// VAT returns the combined VAT ID, empty when none was supplied.
func (b *BillingInput) VAT() string {
	if b.VATNumber == "" {
		return ""
	}
	return b.VATCountry + b.VATNumber
}

// CustomerService manages billing profiles and their VAT validity.
type CustomerService struct {
	customers repository.CustomerRepository
	validator vat.Validator
	logger    *zap.Logger
}

func NewCustomerService(customers repository.CustomerRepository, validator vat.Validator, logger *zap.Logger) *CustomerService {
	return &CustomerService{
		customers: customers,
		validator: validator,
		logger:    logger,
	}
}

func (s *CustomerService) GetOrCreate(ctx context.Context, userID int64, origin, email string) (*model.Customer, error) {
	return s.customers.GetOrCreate(ctx, userID, origin, email)
}

// Update applies a billing submission. The VAT ID is only re-validated
// when its value changed, to bound external-call volume.
func (s *CustomerService) Update(ctx context.Context, customer *model.Customer, input *BillingInput) error {
	customer.Name = input.Name
	customer.Address = input.Address
	customer.City = input.City
	customer.Country = input.Country
	if input.Email != "" {
		customer.Email = input.Email
	}

	newVAT := input.VAT()
	if newVAT != customer.VAT {
		customer.VAT = newVAT
		customer.VATValid = false
		s.RevalidateVAT(ctx, customer)
	}

	return s.customers.Update(ctx, customer)
}

// RevalidateVAT refreshes the validity flag from the external
// validator. Validator unavailability keeps the prior flag (fail-open
// for UX); the payment flow forces another check before money moves.
func (s *CustomerService) RevalidateVAT(ctx context.Context, customer *model.Customer) {
	if !customer.HasVAT() {
		customer.VATValid = false
		return
	}

	valid, err := s.validator.Check(ctx, customer.VATCountry(), customer.VATNumber())
	if err != nil {
		s.logger.Warn("VAT validator unavailable, keeping previous validity",
			zap.String("vat", customer.VAT),
			zap.Bool("valid", customer.VATValid),
			zap.Error(err))
		return
	}
	customer.VATValid = valid
}

// EnsureValidVAT gates progression past billing confirmation: a false
// flag forces a live re-check before the payment may proceed.
func (s *CustomerService) EnsureValidVAT(ctx context.Context, customer *model.Customer) bool {
	if !customer.HasVAT() {
		return true
	}
	if customer.VATValid {
		return true
	}

	s.RevalidateVAT(ctx, customer)
	if customer.VATValid {
		if err := s.customers.Update(ctx, customer); err != nil {
			s.logger.Warn("Failed to persist VAT validity",
				zap.Int64("customer", customer.ID),
				zap.Error(err))
		}
	}
	return customer.VATValid
}
