package usecase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/gateway"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/infrastructure/gateway/debugpay"
	"github.com/weblate/wlweb-payments/internal/infrastructure/gateway/fiobank"
	"github.com/weblate/wlweb-payments/internal/signing"
	"github.com/weblate/wlweb-payments/internal/usecase"
)

const (
	testOrigin         = "https://hosted.example.com/"
	testDonationOrigin = "https://example.com/donate/"
)

type testEnv struct {
	store       *memStore
	payments    *memPaymentRepo
	customers   *memCustomerRepo
	donations   *memDonationRepo
	packages    *memPackageRepo
	customerSvc *usecase.CustomerService
	paymentSvc  *usecase.PaymentService
	donationSvc *usecase.DonationService
	cfg         config.PaymentConfig
}

func newTestEnv(t *testing.T, vatStub *stubVAT) *testEnv {
	return newNotifyEnv(t, vatStub, "")
}

// newNotifyEnv additionally points origin notifications at notifyURL,
// for tests that watch the webhook traffic.
func newNotifyEnv(t *testing.T, vatStub *stubVAT, notifyURL string) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	store := newMemStore()
	env := &testEnv{
		store:     store,
		payments:  &memPaymentRepo{store: store},
		customers: &memCustomerRepo{store: store},
		donations: &memDonationRepo{store: store},
		packages:  &memPackageRepo{store: store},
		cfg: config.PaymentConfig{
			Secret:           "test-secret",
			Debug:            true,
			DonationOrigin:   testDonationOrigin,
			ThankYouURL:      "https://example.com/thanks/",
			DonationEditURL:  "https://example.com/donate/%d/edit/",
			HostedOrigin:     testOrigin,
			NotifyURL:        notifyURL,
			RenewalLookahead: 7 * 24 * time.Hour,
		},
	}

	gateways := []gateway.Gateway{
		fiobank.New(config.FioBankConfig{Account: "2800687890/2010"}, logger),
	}
	for _, g := range debugpay.All(logger) {
		gateways = append(gateways, g)
	}
	registry, err := gateway.NewRegistry(gateways...)
	assert.NoError(t, err)

	signer := signing.NewSigner(env.cfg.Secret)
	dispatcher := usecase.NewOriginDispatcher(env.cfg, signer, logger)

	env.customerSvc = usecase.NewCustomerService(env.customers, vatStub, logger)
	env.paymentSvc = usecase.NewPaymentService(
		env.payments, env.customerSvc, registry, dispatcher,
		env.cfg, "http://localhost:8080", logger)
	env.donationSvc = usecase.NewDonationService(
		env.donations, env.payments, env.customerSvc, env.paymentSvc,
		dispatcher, env.cfg, logger)
	env.paymentSvc.SetProcessedHook(env.donationSvc)
	return env
}

func testBilling() *usecase.BillingInput {
	return &usecase.BillingInput{
		Name:    "Michal Cihar",
		Address: "Zdimerická 1439",
		City:    "149 00 Praha 4",
		Country: "CZ",
		Email:   "michal@example.com",
	}
}

// newPayment creates a payment with completed billing, ready for
// method selection.
func (e *testEnv) newPayment(t *testing.T, origin string) *model.Payment {
	t.Helper()
	ctx := context.Background()

	customer, err := e.customerSvc.GetOrCreate(ctx, 1, origin, "michal@example.com")
	assert.NoError(t, err)
	assert.NoError(t, e.customerSvc.Update(ctx, customer, testBilling()))

	payment := &model.Payment{
		CustomerID:  customer.ID,
		Amount:      decimal.RequireFromString("100"),
		Currency:    "EUR",
		Description: "Support",
		Origin:      origin,
	}
	assert.NoError(t, e.paymentSvc.Create(ctx, payment))
	return payment
}

func TestPaymentView(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	view, err := env.paymentSvc.View(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.True(t, view.CanProceed)
	assert.Empty(t, view.BlockedBy)
	// Domestic billing address charges VAT on top.
	assert.Equal(t, "121.0 EUR", view.Total)
	assert.Contains(t, view.Backends, "fio-bank")
	assert.Contains(t, view.Backends, "pay")
}

func TestPaymentViewNotFound(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})

	_, err := env.paymentSvc.View(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestChooseMethodDebugPay(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	result, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pay")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateAccepted, result.State)
	assert.Empty(t, result.RedirectURL)
	// The user lands back at the origin with the payment attached.
	assert.Equal(t, testOrigin+"?payment="+payment.UUID.String(), result.CompletedRedirect)

	stored, err := env.payments.GetByUUID(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateAccepted, stored.State)
	assert.Equal(t, "pay", *stored.Backend)
}

func TestChooseMethodDebugReject(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	result, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "reject")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateRejected, result.State)
}

func TestChooseMethodDebugPending(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	result, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pending")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatePending, result.State)
	assert.True(t, strings.HasPrefix(result.RedirectURL, debugpay.PendingRedirectURL))
	assert.Contains(t, result.RedirectURL, payment.UUID.String())

	// The gateway round trip comes back through Complete.
	redirect, err := env.paymentSvc.Complete(ctx, payment.UUID, nil)
	assert.NoError(t, err)
	assert.Equal(t, testOrigin+"?payment="+payment.UUID.String(), redirect)

	stored, err := env.payments.GetByUUID(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateAccepted, stored.State)
}

func TestChooseMethodBankTransfer(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	result, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "fio-bank")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatePending, result.State)
	assert.NotNil(t, result.Instructions)
	assert.Equal(t, payment.UUID.String(), result.Instructions.Reference)
	assert.Equal(t, "121.00", result.Instructions.Amount)
}

func TestChooseMethodUnknownBackend(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	_, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "stripe")
	assert.ErrorIs(t, err, domainErrors.ErrUnknownBackend)

	stored, err := env.payments.GetByUUID(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateNew, stored.State)
}

func TestChooseMethodRequiresBilling(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()

	customer, err := env.customerSvc.GetOrCreate(ctx, 1, testOrigin, "michal@example.com")
	assert.NoError(t, err)

	payment := &model.Payment{
		CustomerID: customer.ID,
		Amount:     decimal.RequireFromString("100"),
		Currency:   "EUR",
		Origin:     testOrigin,
	}
	assert.NoError(t, env.paymentSvc.Create(ctx, payment))

	_, err = env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pay")
	assert.ErrorIs(t, err, domainErrors.ErrCustomerIncomplete)
}

func TestChooseMethodBlocksInvalidVAT(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: false})
	ctx := context.Background()

	customer, err := env.customerSvc.GetOrCreate(ctx, 1, testOrigin, "michal@example.com")
	assert.NoError(t, err)
	billing := testBilling()
	billing.VATCountry = "CZ"
	billing.VATNumber = "8003280317"
	assert.NoError(t, env.customerSvc.Update(ctx, customer, billing))
	assert.False(t, customer.VATValid)

	payment := &model.Payment{
		CustomerID: customer.ID,
		Amount:     decimal.RequireFromString("100"),
		Currency:   "EUR",
		Origin:     testOrigin,
	}
	assert.NoError(t, env.paymentSvc.Create(ctx, payment))

	_, err = env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pay")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidVAT)

	stored, err := env.payments.GetByUUID(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateNew, stored.State)
}

// A VAT ID that became valid again passes the gate; the refreshed flag
// is persisted.
func TestChooseMethodRechecksVAT(t *testing.T) {
	vatStub := &stubVAT{valid: false}
	env := newTestEnv(t, vatStub)
	ctx := context.Background()

	customer, err := env.customerSvc.GetOrCreate(ctx, 1, testOrigin, "michal@example.com")
	assert.NoError(t, err)
	billing := testBilling()
	billing.VATCountry = "CZ"
	billing.VATNumber = "8003280318"
	assert.NoError(t, env.customerSvc.Update(ctx, customer, billing))
	assert.False(t, customer.VATValid)

	payment := &model.Payment{
		CustomerID: customer.ID,
		Amount:     decimal.RequireFromString("100"),
		Currency:   "EUR",
		Origin:     testOrigin,
	}
	assert.NoError(t, env.paymentSvc.Create(ctx, payment))

	vatStub.valid = true
	result, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pay")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateAccepted, result.State)
	assert.True(t, customer.VATValid)
}

func TestChooseMethodOnLeftStatePayment(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	_, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pay")
	assert.NoError(t, err)

	// Method selection cannot be redone once the payment left new.
	_, err = env.paymentSvc.ChooseMethod(ctx, payment.UUID, "reject")
	assert.ErrorIs(t, err, domainErrors.ErrIllegalTransition)
}

// Duplicate callback deliveries against a finished payment must look
// successful to the gateway, returning the same redirect.
func TestCompleteIsIdempotent(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	_, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "reject")
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		redirect, err := env.paymentSvc.Complete(ctx, payment.UUID, nil)
		assert.NoError(t, err)
		assert.Equal(t, testOrigin+"?payment="+payment.UUID.String(), redirect)
	}

	stored, err := env.payments.GetByUUID(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateRejected, stored.State)
}

func TestReconcilePromotesAccepted(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	_, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pay")
	assert.NoError(t, err)

	assert.NoError(t, env.paymentSvc.Reconcile(ctx, payment.UUID))
	stored, err := env.payments.GetByUUID(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStateProcessed, stored.State)

	// A second run is a no-op.
	assert.NoError(t, env.paymentSvc.Reconcile(ctx, payment.UUID))
}

func TestReconcileSkipsPending(t *testing.T) {
	env := newTestEnv(t, &stubVAT{valid: true})
	ctx := context.Background()
	payment := env.newPayment(t, testOrigin)

	_, err := env.paymentSvc.ChooseMethod(ctx, payment.UUID, "fio-bank")
	assert.NoError(t, err)

	// Still waiting for the transfer; nothing to promote.
	assert.NoError(t, env.paymentSvc.Reconcile(ctx, payment.UUID))
	stored, err := env.payments.GetByUUID(ctx, payment.UUID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatePending, stored.State)
}

func TestReconcileNotifiesOriginOnce(t *testing.T) {
	var notified []string
	signer := signing.NewSigner("test-secret")
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		claims, err := signer.Verify(signing.PurposeNotify, body["payload"])
		assert.NoError(t, err)
		notified = append(notified, claims["state"].(string))
	}))
	defer webhook.Close()

	env := newNotifyEnv(t, &stubVAT{valid: true}, webhook.URL)
	ctx := context.Background()

	// A payment still waiting for a transfer never reaches the
	// webhook, no matter how often the settlement job looks at it.
	waiting := env.newPayment(t, testOrigin)
	_, err := env.paymentSvc.ChooseMethod(ctx, waiting.UUID, "fio-bank")
	assert.NoError(t, err)
	assert.NoError(t, env.paymentSvc.Reconcile(ctx, waiting.UUID))
	assert.Empty(t, notified)

	payment := env.newPayment(t, testOrigin)
	_, err = env.paymentSvc.ChooseMethod(ctx, payment.UUID, "pay")
	assert.NoError(t, err)
	assert.Empty(t, notified)

	assert.NoError(t, env.paymentSvc.Reconcile(ctx, payment.UUID))
	assert.Equal(t, []string{"processed"}, notified)

	// Replays stay silent.
	assert.NoError(t, env.paymentSvc.Reconcile(ctx, payment.UUID))
	assert.Equal(t, []string{"processed"}, notified)
}
