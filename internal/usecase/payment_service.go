package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/gateway"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
)

// initiateTimeout bounds the outbound gateway call; on timeout the
// payment stays new so the user can retry.
const initiateTimeout = 30 * time.Second

// ProcessedHook reacts to a payment reaching processed; the donation
// engine implements it. The returned donation, if any, steers the
// completion redirect.
type ProcessedHook interface {
	OnPaymentProcessed(ctx context.Context, payment *model.Payment) (*model.Donation, error)
}

// PaymentView is the payment page state: the record plus the computed
// "can proceed to method selection" gate.
type PaymentView struct {
	Payment    *model.Payment `json:"payment"`
	Total      string         `json:"total"`
	CanProceed bool           `json:"can_proceed"`
	// BlockedBy carries the user-correctable reason when the gate is
	// closed.
	BlockedBy string   `json:"blocked_by,omitempty"`
	Backends  []string `json:"backends"`
}

// MethodResult is the outcome of method selection: exactly one of
// RedirectURL, Instructions or CompletedRedirect is set.
type MethodResult struct {
	RedirectURL       string                `json:"redirect,omitempty"`
	Instructions      *gateway.Instructions `json:"instructions,omitempty"`
	CompletedRedirect string                `json:"completed_redirect,omitempty"`
	State             model.PaymentState    `json:"state"`
}

// PaymentService drives the payment state machine.
type PaymentService struct {
	payments   repository.PaymentRepository
	customers  *CustomerService
	registry   *gateway.Registry
	dispatcher *OriginDispatcher
	cfg        config.PaymentConfig
	publicURL  string
	logger     *zap.Logger
	hook       ProcessedHook
}

func NewPaymentService(
	payments repository.PaymentRepository,
	customers *CustomerService,
	registry *gateway.Registry,
	dispatcher *OriginDispatcher,
	cfg config.PaymentConfig,
	publicURL string,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:   payments,
		customers:  customers,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		publicURL:  publicURL,
		logger:     logger,
	}
}

// SetProcessedHook wires the donation engine in after construction;
// the two services reference each other.
func (s *PaymentService) SetProcessedHook(hook ProcessedHook) {
	s.hook = hook
}

// Create opens a payment in state new on behalf of an origin.
func (s *PaymentService) Create(ctx context.Context, payment *model.Payment) error {
	return s.payments.Create(ctx, payment)
}

// View loads the payment page state. The VAT gate is re-evaluated here,
// on every visit to the point of billing confirmation.
func (s *PaymentService) View(ctx context.Context, id uuid.UUID) (*PaymentView, error) {
	payment, err := s.payments.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &PaymentView{
		Payment:  payment,
		Total:    payment.TotalAmount().StringFixed(1) + " " + payment.Currency,
		Backends: s.registry.Names(),
	}
	if payment.State == model.PaymentStateNew {
		view.CanProceed, view.BlockedBy = s.canProceed(ctx, payment.Customer)
	}
	return view, nil
}

// SubmitBilling records billing info on the payment's customer.
func (s *PaymentService) SubmitBilling(ctx context.Context, id uuid.UUID, input *BillingInput) error {
	payment, err := s.payments.GetByUUID(ctx, id)
	if err != nil {
		return err
	}
	if payment.Customer == nil {
		return fmt.Errorf("payment %s has no customer", id)
	}
	return s.customers.Update(ctx, payment.Customer, input)
}

// ChooseMethod selects a backend and initiates collection. Invalid VAT
// or incomplete billing keeps the payment in new with a
// user-correctable error.
func (s *PaymentService) ChooseMethod(ctx context.Context, id uuid.UUID, method string) (*MethodResult, error) {
	payment, err := s.payments.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.State != model.PaymentStateNew {
		return nil, fmt.Errorf("%w: payment is %s", domainErrors.ErrIllegalTransition, payment.State)
	}

	if ok, reason := s.canProceed(ctx, payment.Customer); !ok {
		if reason == domainErrors.ErrInvalidVAT.Error() {
			return nil, domainErrors.ErrInvalidVAT
		}
		return nil, domainErrors.ErrCustomerIncomplete
	}

	backend, err := s.registry.Get(method)
	if err != nil {
		return nil, err
	}

	payment.Backend = &method
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, initiateTimeout)
	defer cancel()
	initiated, err := backend.Initiate(initCtx, &gateway.InitiateRequest{
		Payment:   payment,
		Customer:  payment.Customer,
		ReturnURL: s.completeURL(payment),
	})
	if err != nil {
		// Gateway trouble leaves the payment in new for a retry.
		s.logger.Error("Gateway initiation failed",
			zap.String("payment", id.String()),
			zap.String("backend", method),
			zap.Error(err))
		return nil, fmt.Errorf("gateway initiation failed: %w", err)
	}

	payment, _, err = s.payments.Transition(ctx, id, func(p *model.Payment) (model.PaymentState, error) {
		mergeExtra(p, initiated.Extra)
		return model.PaymentStatePending, nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case initiated.RedirectURL != "":
		return &MethodResult{RedirectURL: initiated.RedirectURL, State: payment.State}, nil
	case initiated.Instructions != nil:
		return &MethodResult{Instructions: initiated.Instructions, State: payment.State}, nil
	default:
		// No external round trip (debug backends): complete in place.
		redirect, err := s.complete(ctx, payment, backend, url.Values{})
		if err != nil {
			return nil, err
		}
		fresh, err := s.payments.GetByUUID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &MethodResult{CompletedRedirect: redirect, State: fresh.State}, nil
	}
}

// Complete handles the gateway return/callback. Replays against a
// terminal payment are no-ops that still return the redirect, so the
// gateway never sees an error worth retrying.
func (s *PaymentService) Complete(ctx context.Context, id uuid.UUID, params url.Values) (string, error) {
	payment, err := s.payments.GetByUUID(ctx, id)
	if err != nil {
		return "", err
	}
	if payment.Backend == nil {
		return "", fmt.Errorf("%w: no backend selected", domainErrors.ErrIllegalTransition)
	}
	backend, err := s.registry.Get(*payment.Backend)
	if err != nil {
		return "", err
	}
	return s.complete(ctx, payment, backend, params)
}

func (s *PaymentService) complete(ctx context.Context, payment *model.Payment, backend gateway.Gateway, params url.Values) (string, error) {
	if payment.State.IsTerminal() {
		return s.dispatcher.CompletionRedirect(payment, nil), nil
	}

	result, err := backend.Complete(ctx, &gateway.CompleteRequest{
		Payment: payment,
		Params:  params,
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrBadSignature) {
			s.logger.Warn("Rejected unverifiable gateway callback",
				zap.String("payment", payment.UUID.String()),
				zap.String("backend", backend.Name()))
		}
		return "", err
	}

	payment, moved, err := s.payments.Transition(ctx, payment.UUID, func(p *model.Payment) (model.PaymentState, error) {
		mergeExtra(p, result.Extra)
		return result.State, nil
	})
	if err != nil {
		return "", err
	}

	var donation *model.Donation
	if moved && payment.State == model.PaymentStateProcessed && s.hook != nil {
		donation, err = s.hook.OnPaymentProcessed(ctx, payment)
		if err != nil {
			// The money moved; donation bookkeeping must not undo that.
			s.logger.Error("Processed-payment hook failed",
				zap.String("payment", payment.UUID.String()),
				zap.Error(err))
		}
	}

	if moved && payment.State.IsTerminal() {
		if err := s.dispatcher.NotifyOrigin(ctx, payment); err != nil {
			s.logger.Warn("Origin notification failed",
				zap.String("payment", payment.UUID.String()),
				zap.Error(err))
		}
	}

	return s.dispatcher.CompletionRedirect(payment, donation), nil
}

// Reconcile promotes an accepted payment to processed and runs the
// processed hook, used by the settlement job.
func (s *PaymentService) Reconcile(ctx context.Context, id uuid.UUID) error {
	payment, moved, err := s.payments.Transition(ctx, id, func(p *model.Payment) (model.PaymentState, error) {
		if p.State != model.PaymentStateAccepted {
			return "", domainErrors.ErrStaleState
		}
		return model.PaymentStateProcessed, nil
	})
	if err != nil {
		return err
	}
	if !moved {
		// Another run already settled this payment, or it never was
		// accepted; the hook and notification belong to that run.
		return nil
	}
	if s.hook != nil {
		if _, err := s.hook.OnPaymentProcessed(ctx, payment); err != nil {
			return err
		}
	}
	if err := s.dispatcher.NotifyOrigin(ctx, payment); err != nil {
		s.logger.Warn("Origin notification failed",
			zap.String("payment", payment.UUID.String()),
			zap.Error(err))
	}
	return nil
}

// ChargeUnattended drives a renewal payment through a backend with a
// stored payment method, without the user present.
func (s *PaymentService) ChargeUnattended(ctx context.Context, payment *model.Payment) error {
	if payment.Backend == nil {
		return fmt.Errorf("%w: no backend stored", domainErrors.ErrUnknownBackend)
	}
	backend, err := s.registry.Get(*payment.Backend)
	if err != nil {
		return err
	}
	if !backend.SupportsRecurring() {
		return &gateway.Error{Code: "UNATTENDED_UNSUPPORTED", Message: "backend cannot charge unattended"}
	}

	initCtx, cancel := context.WithTimeout(ctx, initiateTimeout)
	defer cancel()
	initiated, err := backend.Initiate(initCtx, &gateway.InitiateRequest{
		Payment:    payment,
		Customer:   payment.Customer,
		ReturnURL:  s.completeURL(payment),
		Unattended: true,
	})
	if err != nil {
		return fmt.Errorf("unattended initiation failed: %w", err)
	}

	payment, _, err = s.payments.Transition(ctx, payment.UUID, func(p *model.Payment) (model.PaymentState, error) {
		mergeExtra(p, initiated.Extra)
		return model.PaymentStatePending, nil
	})
	if err != nil {
		return err
	}

	_, err = s.complete(ctx, payment, backend, url.Values{})
	return err
}

func (s *PaymentService) canProceed(ctx context.Context, customer *model.Customer) (bool, string) {
	if customer == nil || !customer.Complete() {
		return false, domainErrors.ErrCustomerIncomplete.Error()
	}
	if !s.customers.EnsureValidVAT(ctx, customer) {
		return false, domainErrors.ErrInvalidVAT.Error()
	}
	return true, ""
}

func (s *PaymentService) completeURL(payment *model.Payment) string {
	return fmt.Sprintf("%s/payment/%s/complete", s.publicURL, payment.UUID)
}

func mergeExtra(payment *model.Payment, extra model.JSONB) {
	if len(extra) == 0 {
		return
	}
	if payment.Extra == nil {
		payment.Extra = model.JSONB{}
	}
	for key, value := range extra {
		payment.Extra[key] = value
	}
}
