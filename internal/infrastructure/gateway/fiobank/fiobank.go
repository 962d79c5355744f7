// Package fiobank implements the bank-transfer backend. There is no
// network call: initiation renders static transfer instructions and the
// payment stays pending until manual reconciliation.
package fiobank

import (
	"context"

	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	"github.com/weblate/wlweb-payments/internal/domain/gateway"
)

const BackendName = "fio-bank"

type Gateway struct {
	cfg    config.FioBankConfig
	logger *zap.Logger
}

func New(cfg config.FioBankConfig, logger *zap.Logger) *Gateway {
	return &Gateway{cfg: cfg, logger: logger}
}

func (g *Gateway) Name() string {
	return BackendName
}

func (g *Gateway) Verbose() string {
	return "Bank transfer"
}

func (g *Gateway) SupportsRecurring() bool {
	return false
}

func (g *Gateway) Initiate(ctx context.Context, req *gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	if req.Unattended {
		return nil, &gateway.Error{
			Code:    "UNATTENDED_UNSUPPORTED",
			Message: "bank transfers cannot be charged unattended",
		}
	}

	return &gateway.InitiateResult{
		Instructions: &gateway.Instructions{
			Account: g.cfg.Account,
			IBAN:    g.cfg.IBAN,
			BIC:     g.cfg.BIC,
			// The payment UUID is the variable symbol matching the
			// incoming transfer back to this record.
			Reference: req.Payment.UUID.String(),
			Amount:    req.Payment.TotalAmount().StringFixed(2),
			Currency:  req.Payment.Currency,
		},
	}, nil
}

// Complete is never driven by the bank; transfers are matched by the
// reconciliation job. A stray callback changes nothing.
func (g *Gateway) Complete(ctx context.Context, req *gateway.CompleteRequest) (*gateway.CompleteResult, error) {
	g.logger.Info("Ignoring completion callback for bank transfer",
		zap.String("payment", req.Payment.UUID.String()))
	return &gateway.CompleteResult{State: req.Payment.State}, nil
}
