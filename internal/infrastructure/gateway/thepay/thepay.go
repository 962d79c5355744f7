// Package thepay implements the card gateway speaking the ThePay gate
// protocol: a signed redirect to the hosted payment page and a signed
// return callback reporting the outcome.
package thepay

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/gateway"
	"github.com/weblate/wlweb-payments/internal/domain/model"
)

// Gateway status codes reported on return.
const (
	statusOK        = "2"
	statusCanceled  = "3"
	statusWaiting   = "4"
	statusUnderpaid = "6"
)

const BackendName = "thepay-card"

type Gateway struct {
	cfg    config.ThePayConfig
	logger *zap.Logger
}

func New(cfg config.ThePayConfig, logger *zap.Logger) *Gateway {
	return &Gateway{cfg: cfg, logger: logger}
}

func (g *Gateway) Name() string {
	return BackendName
}

func (g *Gateway) Verbose() string {
	return "Payment card"
}

// SupportsRecurring is false: the gate protocol has no stored payment
// method, renewals need the user to come back.
func (g *Gateway) SupportsRecurring() bool {
	return false
}

func (g *Gateway) Initiate(ctx context.Context, req *gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	if req.Unattended {
		return nil, &gateway.Error{
			Code:    "UNATTENDED_UNSUPPORTED",
			Message: "card payments need the user present",
		}
	}

	total := req.Payment.TotalAmount()
	params := []param{
		{"merchantId", g.cfg.MerchantID},
		{"accountId", g.cfg.AccountID},
		{"value", total.StringFixed(2)},
		{"currency", req.Payment.Currency},
		{"description", req.Payment.Description},
		{"merchantData", req.Payment.UUID.String()},
		{"returnUrl", req.ReturnURL},
	}
	params = append(params, param{"signature", g.sign(params)})

	query := url.Values{}
	for _, p := range params {
		query.Set(p.key, p.value)
	}

	g.logger.Info("Initiating card payment",
		zap.String("payment", req.Payment.UUID.String()),
		zap.String("value", total.StringFixed(2)))

	return &gateway.InitiateResult{
		RedirectURL: g.cfg.GateURL + "?" + query.Encode(),
	}, nil
}

// Complete verifies the return callback signature before trusting the
// reported status. An unverifiable callback leaves the payment alone.
func (g *Gateway) Complete(ctx context.Context, req *gateway.CompleteRequest) (*gateway.CompleteResult, error) {
	signature := req.Params.Get("signature")
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature", domainErrors.ErrBadSignature)
	}

	signed := []param{
		{"value", req.Params.Get("value")},
		{"currency", req.Params.Get("currency")},
		{"methodId", req.Params.Get("methodId")},
		{"description", req.Params.Get("description")},
		{"merchantData", req.Params.Get("merchantData")},
		{"status", req.Params.Get("status")},
		{"paymentId", req.Params.Get("paymentId")},
	}
	expected := g.sign(signed)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		g.logger.Warn("Card callback signature mismatch",
			zap.String("payment", req.Payment.UUID.String()))
		return nil, domainErrors.ErrBadSignature
	}

	extra := model.JSONB{}
	if paymentID := req.Params.Get("paymentId"); paymentID != "" {
		extra[model.ExtraGatewayID] = paymentID
	}
	if methodID := req.Params.Get("methodId"); methodID != "" {
		extra[model.ExtraMethodID] = methodID
	}

	status := req.Params.Get("status")
	switch status {
	case statusOK:
		return &gateway.CompleteResult{State: model.PaymentStateProcessed, Extra: extra}, nil
	case statusWaiting, statusUnderpaid:
		// Money promised but not settled yet; the reconciliation job
		// promotes these once confirmed.
		return &gateway.CompleteResult{State: model.PaymentStateAccepted, Extra: extra}, nil
	case statusCanceled:
		return &gateway.CompleteResult{State: model.PaymentStateRejected, Extra: extra}, nil
	default:
		g.logger.Warn("Card callback with unknown status",
			zap.String("payment", req.Payment.UUID.String()),
			zap.String("status", status))
		return nil, &gateway.Error{
			Code:    "UNKNOWN_STATUS",
			Message: "unknown gateway status code",
			Details: status,
		}
	}
}

type param struct {
	key   string
	value string
}

// sign computes the gate signature: md5 over the ordered parameter
// string with the shared password appended.
func (g *Gateway) sign(params []param) string {
	parts := make([]string, 0, len(params)+1)
	for _, p := range params {
		parts = append(parts, p.key+"="+p.value)
	}
	parts = append(parts, "password="+g.cfg.Password)
	sum := md5.Sum([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}
