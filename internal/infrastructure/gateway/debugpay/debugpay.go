// Package debugpay implements the manual test backend. It is only
// registered when payment debug mode is enabled and must never appear
// in a production registry.
package debugpay

import (
	"context"

	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/domain/gateway"
	"github.com/weblate/wlweb-payments/internal/domain/model"
)

// Backend identifiers double as the requested action.
const (
	BackendPay     = "pay"
	BackendReject  = "reject"
	BackendPending = "pending"
)

// PendingRedirectURL simulates the external gateway page for the
// "pending" action; it bounces straight back to the return URL.
const PendingRedirectURL = "https://cihar.com/?url="

type Gateway struct {
	action string
	logger *zap.Logger
}

// New creates a debug gateway performing the given action.
func New(action string, logger *zap.Logger) *Gateway {
	return &Gateway{action: action, logger: logger}
}

// All returns the full set of debug backends.
func All(logger *zap.Logger) []*Gateway {
	return []*Gateway{
		New(BackendPay, logger),
		New(BackendReject, logger),
		New(BackendPending, logger),
	}
}

func (g *Gateway) Name() string {
	return g.action
}

func (g *Gateway) Verbose() string {
	return "Debug " + g.action
}

// SupportsRecurring is true so tests can exercise the unattended
// renewal path without a live gateway.
func (g *Gateway) SupportsRecurring() bool {
	return g.action == BackendPay
}

func (g *Gateway) Initiate(ctx context.Context, req *gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	g.logger.Info("Debug payment initiated",
		zap.String("payment", req.Payment.UUID.String()),
		zap.String("action", g.action))

	switch g.action {
	case BackendPending:
		// Pretend there is an external gateway round trip.
		return &gateway.InitiateResult{
			RedirectURL: PendingRedirectURL + req.ReturnURL,
		}, nil
	default:
		return &gateway.InitiateResult{}, nil
	}
}

func (g *Gateway) Complete(ctx context.Context, req *gateway.CompleteRequest) (*gateway.CompleteResult, error) {
	switch g.action {
	case BackendReject:
		return &gateway.CompleteResult{State: model.PaymentStateRejected}, nil
	default:
		return &gateway.CompleteResult{State: model.PaymentStateAccepted}, nil
	}
}
