package vat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/vat"
)

func viesServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ms/CZ/vat/8003280318":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"countryCode": "CZ",
				"vatNumber":   "8003280318",
				"valid":       true,
			})
		case "/ms/CZ/vat/8003280317":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"countryCode": "CZ",
				"vatNumber":   "8003280317",
				"valid":       false,
			})
		case "/ms/XX/vat/1":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
}

func TestCheckValidVAT(t *testing.T) {
	srv := viesServer(t)
	defer srv.Close()

	validator := vat.NewValidator(srv.URL, 5*time.Second, zap.NewNop())
	valid, err := validator.Check(context.Background(), "CZ", "8003280318")
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestCheckInvalidVAT(t *testing.T) {
	srv := viesServer(t)
	defer srv.Close()

	validator := vat.NewValidator(srv.URL, 5*time.Second, zap.NewNop())
	valid, err := validator.Check(context.Background(), "CZ", "8003280317")
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestCheckUnknownCountry(t *testing.T) {
	srv := viesServer(t)
	defer srv.Close()

	// 4xx is a verdict on the VAT ID, not an outage.
	validator := vat.NewValidator(srv.URL, 5*time.Second, zap.NewNop())
	valid, err := validator.Check(context.Background(), "XX", "1")
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestCheckOutageReportsError(t *testing.T) {
	srv := viesServer(t)
	defer srv.Close()

	validator := vat.NewValidator(srv.URL, 5*time.Second, zap.NewNop())
	_, err := validator.Check(context.Background(), "DE", "123456789")
	assert.Error(t, err)
}

func TestCheckUnreachableReportsError(t *testing.T) {
	srv := viesServer(t)
	srv.Close()

	validator := vat.NewValidator(srv.URL, time.Second, zap.NewNop())
	_, err := validator.Check(context.Background(), "CZ", "8003280318")
	assert.Error(t, err)
}
