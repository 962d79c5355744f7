// Package gateway wires configured backends into the immutable registry
// resolved once at startup.
package gateway

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	domainGateway "github.com/weblate/wlweb-payments/internal/domain/gateway"
	"github.com/weblate/wlweb-payments/internal/infrastructure/gateway/debugpay"
	"github.com/weblate/wlweb-payments/internal/infrastructure/gateway/fiobank"
	"github.com/weblate/wlweb-payments/internal/infrastructure/gateway/thepay"
)

// NewRegistry builds the backend registry from configuration. Debug
// backends are only wired when payment debug mode is on.
func NewRegistry(cfg *config.PaymentConfig, logger *zap.Logger) (*domainGateway.Registry, error) {
	gateways := []domainGateway.Gateway{
		fiobank.New(cfg.Bank, logger),
	}

	if cfg.ThePay.MerchantID != "" {
		gateways = append(gateways, thepay.New(cfg.ThePay, logger))
	}

	if cfg.Debug {
		logger.Warn("Payment debug mode enabled, registering test backends")
		for _, g := range debugpay.All(logger) {
			gateways = append(gateways, g)
		}
	}

	registry, err := domainGateway.NewRegistry(gateways...)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway registry: %w", err)
	}

	logger.Info("Gateway registry built",
		zap.Strings("backends", registry.Names()))

	return registry, nil
}
