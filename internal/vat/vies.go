// Package vat validates VAT IDs against the VIES service.
package vat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Validator checks a (country, number) VAT ID. Unavailable transport is
// reported as an error so callers can keep the last known validity.
type Validator interface {
	Check(ctx context.Context, country, number string) (bool, error)
}

type checkResponse struct {
	CountryCode string `json:"countryCode"`
	VATNumber   string `json:"vatNumber"`
	Valid       bool   `json:"valid"`
}

type viesValidator struct {
	client *resty.Client
	logger *zap.Logger
}

// NewValidator creates a VIES REST client with a bounded timeout.
func NewValidator(baseURL string, timeout time.Duration, logger *zap.Logger) Validator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &viesValidator{client: client, logger: logger}
}

func (v *viesValidator) Check(ctx context.Context, country, number string) (bool, error) {
	var result checkResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetPathParams(map[string]string{
			"country": country,
			"number":  number,
		}).
		Get("/ms/{country}/vat/{number}")
	if err != nil {
		v.logger.Warn("VIES request failed",
			zap.String("country", country),
			zap.Error(err))
		return false, fmt.Errorf("vies request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		return result.Valid, nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		// Validator outage, not a verdict on the VAT ID.
		v.logger.Warn("VIES unavailable",
			zap.Int("status", resp.StatusCode()),
			zap.String("country", country))
		return false, fmt.Errorf("vies unavailable: status %d", resp.StatusCode())
	default:
		// 4xx means the ID could not be looked up, treat as invalid.
		return false, nil
	}
}
