package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
)

// DonationInput is the donation-origin consumer's creation request.
type DonationInput struct {
	Amount    float64 `json:"amount" form:"amount" validate:"required,gt=0"`
	Recurring bool    `json:"recurring" form:"recurring"`
	Reward    int     `json:"reward" form:"reward" validate:"gte=0,lte=3"`
	LinkURL   string  `json:"link_url" form:"link_url" validate:"omitempty,url"`
	LinkText  string  `json:"link_text" form:"link_text"`
}

// DonationService wraps payments with recurring donation semantics:
// reward tiers, expirations and scheduled renewals.
type DonationService struct {
	donations  repository.DonationRepository
	payments   repository.PaymentRepository
	customers  *CustomerService
	paymentSvc *PaymentService
	dispatcher *OriginDispatcher
	cfg        config.PaymentConfig
	logger     *zap.Logger
}

func NewDonationService(
	donations repository.DonationRepository,
	payments repository.PaymentRepository,
	customers *CustomerService,
	paymentSvc *PaymentService,
	dispatcher *OriginDispatcher,
	cfg config.PaymentConfig,
	logger *zap.Logger,
) *DonationService {
	return &DonationService{
		donations:  donations,
		payments:   payments,
		customers:  customers,
		paymentSvc: paymentSvc,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// subscription period granted per successful payment cycle
func nextExpiry(current time.Time) time.Time {
	base := current
	if now := time.Now(); now.After(base) {
		// Late renewal starts the covered period now instead of
		// backdating it; early renewal extends from the old expiry so
		// no paid time is lost.
		base = now
	}
	return base.AddDate(1, 0, 0)
}

// Create opens a donation payment in state new for the given user.
func (s *DonationService) Create(ctx context.Context, userID int64, email string, input *DonationInput) (*model.Payment, error) {
	customer, err := s.customers.GetOrCreate(ctx, userID, s.cfg.DonationOrigin, email)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		CustomerID:  customer.ID,
		Amount:      decimal.NewFromFloat(input.Amount),
		Currency:    "EUR",
		Description: "Donation",
		Recurring:   input.Recurring,
		Origin:      s.cfg.DonationOrigin,
		Extra: model.JSONB{
			model.ExtraReward: input.Reward,
		},
	}
	if input.LinkURL != "" {
		payment.Extra[model.ExtraLinkURL] = input.LinkURL
		payment.Extra[model.ExtraLinkText] = input.LinkText
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	payment.Customer = customer
	return payment, nil
}

// OnPaymentProcessed grants or extends the donation funded by the
// payment. The first processed payment creates the donation; renewals
// extend the existing one by a further period, never shortening it.
func (s *DonationService) OnPaymentProcessed(ctx context.Context, payment *model.Payment) (*model.Donation, error) {
	if payment.Origin != s.cfg.DonationOrigin {
		return nil, nil
	}

	if donationID := payment.DonationID(); donationID > 0 {
		return s.extend(ctx, donationID, payment)
	}

	if payment.Customer == nil {
		return nil, fmt.Errorf("payment %s has no customer loaded", payment.UUID)
	}

	donation := &model.Donation{
		UserID:    payment.Customer.UserID,
		Reward:    payment.Reward(),
		Active:    true,
		Expires:   time.Now().AddDate(1, 0, 0),
		PaymentID: payment.ID,
	}
	if link, ok := payment.Extra[model.ExtraLinkURL].(string); ok {
		donation.LinkURL = link
	}
	if text, ok := payment.Extra[model.ExtraLinkText].(string); ok {
		donation.LinkText = text
	}

	if err := s.donations.Create(ctx, donation); err != nil {
		return nil, err
	}

	s.logger.Info("Donation created",
		zap.Int64("donation", donation.ID),
		zap.Int64("user", donation.UserID),
		zap.Int("reward", donation.Reward),
		zap.Time("expires", donation.Expires))
	return donation, nil
}

func (s *DonationService) extend(ctx context.Context, donationID int64, payment *model.Payment) (*model.Donation, error) {
	donation, err := s.donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}

	donation.Expires = nextExpiry(donation.Expires)
	donation.Active = true
	donation.PaymentID = payment.ID
	if err := s.donations.Update(ctx, donation); err != nil {
		return nil, err
	}

	s.logger.Info("Donation extended",
		zap.Int64("donation", donation.ID),
		zap.String("payment", payment.UUID.String()),
		zap.Time("expires", donation.Expires))
	return donation, nil
}

// Renew creates a renewal payment on user request (manual renewal).
func (s *DonationService) Renew(ctx context.Context, donationID, userID int64) (*model.Payment, error) {
	donation, err := s.donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if donation.UserID != userID {
		return nil, domainErrors.ErrDonationNotFound
	}
	return s.createRenewal(ctx, donation)
}

// ListByUser returns a user's donations, dormant ones included.
func (s *DonationService) ListByUser(ctx context.Context, userID int64) ([]*model.Donation, error) {
	return s.donations.ListByUser(ctx, userID)
}

// ScheduleRenewals creates renewal payments for recurring donations
// expiring inside the lookahead window. Safe to run repeatedly: a
// donation with an outstanding non-terminal renewal payment is skipped.
func (s *DonationService) ScheduleRenewals(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.RenewalLookahead)
	donations, err := s.donations.ListExpiring(ctx, deadline)
	if err != nil {
		return err
	}

	for _, donation := range donations {
		if err := s.scheduleRenewal(ctx, donation); err != nil {
			// One broken donation must not starve the rest of the batch.
			s.logger.Error("Failed to schedule renewal",
				zap.Int64("donation", donation.ID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *DonationService) scheduleRenewal(ctx context.Context, donation *model.Donation) error {
	prior, err := s.payments.GetByID(ctx, donation.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to load prior payment: %w", err)
	}
	if !prior.Recurring {
		return nil
	}

	outstanding, err := s.payments.HasOutstandingRenewal(ctx, donation.ID)
	if err != nil {
		return err
	}
	if outstanding {
		s.logger.Info("Renewal already pending",
			zap.Int64("donation", donation.ID))
		return nil
	}

	renewal, err := s.createRenewalFrom(ctx, donation, prior)
	if err != nil {
		return err
	}

	if err := s.paymentSvc.ChargeUnattended(ctx, renewal); err != nil {
		// Backend needs the user; tell the origin so it can ask them
		// to finish the payment.
		s.logger.Info("Unattended renewal not possible, leaving payment new",
			zap.Int64("donation", donation.ID),
			zap.String("payment", renewal.UUID.String()),
			zap.Error(err))
		if err := s.dispatcher.NotifyOrigin(ctx, renewal); err != nil {
			s.logger.Warn("Origin notification failed",
				zap.String("payment", renewal.UUID.String()),
				zap.Error(err))
		}
	}
	return nil
}

func (s *DonationService) createRenewal(ctx context.Context, donation *model.Donation) (*model.Payment, error) {
	prior, err := s.payments.GetByID(ctx, donation.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior payment: %w", err)
	}
	return s.createRenewalFrom(ctx, donation, prior)
}

// createRenewalFrom clones the prior payment into a fresh one tagged
// with the donation it renews.
func (s *DonationService) createRenewalFrom(ctx context.Context, donation *model.Donation, prior *model.Payment) (*model.Payment, error) {
	renewal := &model.Payment{
		CustomerID:  prior.CustomerID,
		Amount:      prior.Amount,
		Currency:    prior.Currency,
		Description: prior.Description,
		Recurring:   prior.Recurring,
		Backend:     prior.Backend,
		Origin:      prior.Origin,
		Extra: model.JSONB{
			model.ExtraDonationID: donation.ID,
			model.ExtraReward:     donation.Reward,
		},
	}
	if err := s.payments.Create(ctx, renewal); err != nil {
		return nil, err
	}
	renewal.Customer = prior.Customer

	s.logger.Info("Renewal payment created",
		zap.Int64("donation", donation.ID),
		zap.String("payment", renewal.UUID.String()))
	return renewal, nil
}

// ReconcilePending promotes accepted payments to processed and applies
// their donation effects, run by the settlement job.
func (s *DonationService) ReconcilePending(ctx context.Context) error {
	accepted, err := s.payments.ListAccepted(ctx)
	if err != nil {
		return err
	}

	for _, payment := range accepted {
		if err := s.paymentSvc.Reconcile(ctx, payment.UUID); err != nil {
			s.logger.Error("Failed to reconcile payment",
				zap.String("payment", payment.UUID.String()),
				zap.Error(err))
		}
	}
	return nil
}
