package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
	"github.com/weblate/wlweb-payments/internal/signing"
)

// HostedRequest is the verified content of a hosted API payload.
type HostedRequest struct {
	Billing       int64
	Package       string
	Projects      int64
	Languages     int64
	SourceStrings int64
	Components    int64
}

// HostedService accepts signed billing requests from the hosted
// service and turns them into payments priced from a named package.
type HostedService struct {
	packages  repository.PackageRepository
	payments  repository.PaymentRepository
	customers *CustomerService
	signer    *signing.Signer
	cfg       config.PaymentConfig
	logger    *zap.Logger
}

func NewHostedService(
	packages repository.PackageRepository,
	payments repository.PaymentRepository,
	customers *CustomerService,
	signer *signing.Signer,
	cfg config.PaymentConfig,
	logger *zap.Logger,
) *HostedService {
	return &HostedService{
		packages:  packages,
		payments:  payments,
		customers: customers,
		signer:    signer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Process verifies the payload and creates the billing payment. A
// missing or forged payload yields ErrInvalidPayload (client error); a
// payload naming an unknown package is an integrity failure.
func (s *HostedService) Process(ctx context.Context, payload string) (*model.Payment, error) {
	req, err := s.verify(payload)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packages.GetByName(ctx, req.Package)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.GetOrCreate(ctx, req.Billing, s.cfg.HostedOrigin, "")
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		CustomerID:  customer.ID,
		Amount:      pkg.Price,
		Currency:    "EUR",
		Description: pkg.Verbose,
		Origin:      s.cfg.HostedOrigin,
		Extra: model.JSONB{
			model.ExtraPackage: pkg.Name,
			model.ExtraBilling: req.Billing,
			"projects":         req.Projects,
			"languages":        req.Languages,
			"source_strings":   req.SourceStrings,
			"components":       req.Components,
		},
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	payment.Customer = customer

	s.logger.Info("Hosted payment created",
		zap.String("payment", payment.UUID.String()),
		zap.Int64("billing", req.Billing),
		zap.String("package", pkg.Name))
	return payment, nil
}

func (s *HostedService) verify(payload string) (*HostedRequest, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: missing payload", domainErrors.ErrInvalidPayload)
	}
	claims, err := s.signer.Verify(signing.PurposeHosted, payload)
	if err != nil {
		return nil, err
	}

	req := &HostedRequest{}
	var ok bool
	if req.Billing, ok = intClaim(claims, "billing"); !ok {
		return nil, fmt.Errorf("%w: missing billing", domainErrors.ErrInvalidPayload)
	}
	if req.Package, ok = claims["package"].(string); !ok || req.Package == "" {
		return nil, fmt.Errorf("%w: missing package", domainErrors.ErrInvalidPayload)
	}
	req.Projects, _ = intClaim(claims, "projects")
	req.Languages, _ = intClaim(claims, "languages")
	req.SourceStrings, _ = intClaim(claims, "source_strings")
	req.Components, _ = intClaim(claims, "components")
	return req, nil
}

// intClaim reads a numeric claim; JSON decoding hands numbers back as
// float64.
func intClaim(claims map[string]interface{}, key string) (int64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
