package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentState is the lifecycle state of a payment.
type PaymentState string

const (
	PaymentStateNew       PaymentState = "new"
	PaymentStatePending   PaymentState = "pending"
	PaymentStateAccepted  PaymentState = "accepted"
	PaymentStateRejected  PaymentState = "rejected"
	PaymentStateProcessed PaymentState = "processed"
)

// legalTransitions holds the forward-only transition table. Rejected and
// processed are terminal.
var legalTransitions = map[PaymentState][]PaymentState{
	PaymentStateNew:      {PaymentStatePending},
	PaymentStatePending:  {PaymentStateAccepted, PaymentStateProcessed, PaymentStateRejected},
	PaymentStateAccepted: {PaymentStateProcessed},
}

// CanTransition reports whether moving from s to target is legal.
func (s PaymentState) CanTransition(target PaymentState) bool {
	for _, next := range legalTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is legal out of s.
func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateRejected || s == PaymentStateProcessed
}

// Extra data keys stored on a payment across the gateway round trip.
const (
	ExtraDonationID = "donation_id"
	ExtraReward     = "reward"
	ExtraLinkURL    = "link_url"
	ExtraLinkText   = "link_text"
	ExtraGatewayID  = "gateway_id"
	ExtraMethodID   = "method_id"
	ExtraPackage    = "package"
	ExtraBilling    = "billing"
)

// Payment represents one attempt to collect money through a backend.
// All external URLs key on UUID so payment identifiers cannot be
// enumerated sequentially.
type Payment struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"uuid"`
	CustomerID  int64           `gorm:"not null;index" json:"customer_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;default:'EUR'" json:"currency"`
	Description string          `gorm:"not null" json:"description"`
	Recurring   bool            `gorm:"default:false" json:"recurring"`
	Backend     *string         `gorm:"size:50" json:"backend,omitempty"`
	State       PaymentState    `gorm:"size:20;not null;default:'new';index" json:"state"`
	Origin      string          `gorm:"size:200;not null;index" json:"origin"`
	Extra       JSONB           `gorm:"type:jsonb;default:'{}'" json:"extra,omitempty"`
	CreatedAt   time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"default:now()" json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// TotalAmount returns the amount the customer is actually charged,
// including VAT when the billing country requires it.
func (p *Payment) TotalAmount() decimal.Decimal {
	if p.Customer != nil && p.Customer.NeedsVAT() {
		return p.Amount.Mul(vatMultiplier).Round(2)
	}
	return p.Amount
}

// DonationID returns the donation this payment renews, or 0 for an
// initial payment.
func (p *Payment) DonationID() int64 {
	switch v := p.Extra[ExtraDonationID].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Reward returns the donation reward tier carried on the payment.
func (p *Payment) Reward() int {
	switch v := p.Extra[ExtraReward].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
