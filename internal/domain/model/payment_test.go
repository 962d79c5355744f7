package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/weblate/wlweb-payments/internal/domain/model"
)

func TestPaymentStateTransitions(t *testing.T) {
	tests := []struct {
		from    model.PaymentState
		to      model.PaymentState
		allowed bool
	}{
		{model.PaymentStateNew, model.PaymentStatePending, true},
		{model.PaymentStateNew, model.PaymentStateAccepted, false},
		{model.PaymentStateNew, model.PaymentStateProcessed, false},
		{model.PaymentStatePending, model.PaymentStateAccepted, true},
		{model.PaymentStatePending, model.PaymentStateProcessed, true},
		{model.PaymentStatePending, model.PaymentStateRejected, true},
		{model.PaymentStatePending, model.PaymentStateNew, false},
		{model.PaymentStateAccepted, model.PaymentStateProcessed, true},
		{model.PaymentStateAccepted, model.PaymentStateRejected, false},
		{model.PaymentStateAccepted, model.PaymentStatePending, false},
		{model.PaymentStateProcessed, model.PaymentStateAccepted, false},
		{model.PaymentStateProcessed, model.PaymentStateRejected, false},
		{model.PaymentStateRejected, model.PaymentStatePending, false},
		{model.PaymentStateRejected, model.PaymentStateProcessed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestPaymentStateIsTerminal(t *testing.T) {
	assert.False(t, model.PaymentStateNew.IsTerminal())
	assert.False(t, model.PaymentStatePending.IsTerminal())
	assert.False(t, model.PaymentStateAccepted.IsTerminal())
	assert.True(t, model.PaymentStateRejected.IsTerminal())
	assert.True(t, model.PaymentStateProcessed.IsTerminal())
}

func TestPaymentTotalAmount(t *testing.T) {
	amount := decimal.RequireFromString("100")

	t.Run("domestic customer pays VAT", func(t *testing.T) {
		payment := &model.Payment{
			Amount:   amount,
			Currency: "EUR",
			Customer: &model.Customer{Country: "CZ"},
		}
		assert.Equal(t, "121.0 EUR", payment.TotalAmount().StringFixed(1)+" EUR")
	})

	t.Run("EU customer without VAT ID pays VAT", func(t *testing.T) {
		payment := &model.Payment{
			Amount:   amount,
			Customer: &model.Customer{Country: "DE"},
		}
		assert.Equal(t, "121.00", payment.TotalAmount().StringFixed(2))
	})

	t.Run("EU customer with valid VAT ID reverse charges", func(t *testing.T) {
		payment := &model.Payment{
			Amount: amount,
			Customer: &model.Customer{
				Country:  "DE",
				VAT:      "DE123456789",
				VATValid: true,
			},
		}
		assert.Equal(t, "100.00", payment.TotalAmount().StringFixed(2))
	})

	t.Run("EU customer with invalid VAT ID pays VAT", func(t *testing.T) {
		payment := &model.Payment{
			Amount: amount,
			Customer: &model.Customer{
				Country:  "DE",
				VAT:      "DE123456789",
				VATValid: false,
			},
		}
		assert.Equal(t, "121.00", payment.TotalAmount().StringFixed(2))
	})

	t.Run("non-EU customer pays no VAT", func(t *testing.T) {
		payment := &model.Payment{
			Amount:   amount,
			Customer: &model.Customer{Country: "US"},
		}
		assert.Equal(t, "100.00", payment.TotalAmount().StringFixed(2))
	})

	t.Run("no customer loaded", func(t *testing.T) {
		payment := &model.Payment{Amount: amount}
		assert.Equal(t, "100.00", payment.TotalAmount().StringFixed(2))
	})
}

func TestPaymentDonationID(t *testing.T) {
	assert.Equal(t, int64(0), (&model.Payment{}).DonationID())

	// JSONB round trips numbers as float64.
	payment := &model.Payment{Extra: model.JSONB{model.ExtraDonationID: float64(12)}}
	assert.Equal(t, int64(12), payment.DonationID())

	payment = &model.Payment{Extra: model.JSONB{model.ExtraDonationID: int64(7)}}
	assert.Equal(t, int64(7), payment.DonationID())
}

func TestCustomerVATParsing(t *testing.T) {
	customer := &model.Customer{VAT: "CZ8003280318"}
	assert.True(t, customer.HasVAT())
	assert.Equal(t, "CZ", customer.VATCountry())
	assert.Equal(t, "8003280318", customer.VATNumber())

	empty := &model.Customer{}
	assert.False(t, empty.HasVAT())
	assert.Equal(t, "", empty.VATCountry())
}

func TestCustomerComplete(t *testing.T) {
	customer := &model.Customer{
		Name:    "Michal Cihar",
		Address: "Zdiměřická 1439",
		City:    "149 00 Praha 4",
		Country: "CZ",
	}
	assert.True(t, customer.Complete())

	customer.City = ""
	assert.False(t, customer.Complete())
}
