package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/signing"
)

// notifyTTL bounds how long an origin notification payload stays
// replayable in transit.
const notifyTTL = time.Hour

// OriginDispatcher routes completed payments back to the consumer that
// created them: a browser redirect plus, for external origins, a signed
// server-to-server notification.
type OriginDispatcher struct {
	cfg    config.PaymentConfig
	signer *signing.Signer
	client *resty.Client
	logger *zap.Logger
}

func NewOriginDispatcher(cfg config.PaymentConfig, signer *signing.Signer, logger *zap.Logger) *OriginDispatcher {
	return &OriginDispatcher{
		cfg:    cfg,
		signer: signer,
		client: resty.New().SetTimeout(10 * time.Second),
		logger: logger,
	}
}

// CompletionRedirect determines where the user lands after the gateway
// round trip. Donation payments that produced or renewed a donation go
// to the thank-you or reward edit page; everything else returns to its
// origin with the payment identifier attached.
func (d *OriginDispatcher) CompletionRedirect(payment *model.Payment, donation *model.Donation) string {
	if payment.Origin == d.cfg.DonationOrigin && donation != nil {
		if donation.Reward > 0 && d.cfg.DonationEditURL != "" {
			return fmt.Sprintf(d.cfg.DonationEditURL, donation.ID)
		}
		return d.cfg.ThankYouURL
	}
	return fmt.Sprintf("%s?payment=%s", payment.Origin, payment.UUID)
}

// NotifyOrigin posts a signed billing snapshot to the origin webhook so
// the external system learns the outcome even if the user never follows
// the redirect. Failures are the caller's to log, never to surface: the
// internal transition already happened.
func (d *OriginDispatcher) NotifyOrigin(ctx context.Context, payment *model.Payment) error {
	if d.cfg.NotifyURL == "" || payment.Origin == d.cfg.DonationOrigin {
		return nil
	}

	claims := map[string]interface{}{
		"payment":  payment.UUID.String(),
		"state":    string(payment.State),
		"amount":   payment.TotalAmount().String(),
		"currency": payment.Currency,
	}
	if payment.Customer != nil {
		claims["customer"] = map[string]interface{}{
			"name":    payment.Customer.Name,
			"address": payment.Customer.Address,
			"city":    payment.Customer.City,
			"country": payment.Customer.Country,
			"vat":     payment.Customer.VAT,
		}
	}

	token, err := d.signer.Sign(signing.PurposeNotify, claims, notifyTTL)
	if err != nil {
		return fmt.Errorf("failed to sign notification: %w", err)
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"payload": token}).
		Post(d.cfg.NotifyURL)
	if err != nil {
		return fmt.Errorf("origin notification failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("origin notification status: %d", resp.StatusCode())
	}

	d.logger.Info("Origin notified",
		zap.String("payment", payment.UUID.String()),
		zap.String("state", string(payment.State)))
	return nil
}
