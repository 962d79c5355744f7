package gateway

import (
	"context"
	"net/url"

	"github.com/weblate/wlweb-payments/internal/domain/model"
)

// Gateway defines the interface for payment backends (card gateway,
// bank transfer, debug).
type Gateway interface {
	// Name returns the backend identifier used in method selection
	Name() string

	// Verbose returns the user facing backend name
	Verbose() string

	// SupportsRecurring reports whether the backend can charge a
	// renewal without the user present
	SupportsRecurring() bool

	// Initiate starts collection for a payment, returning either a
	// redirect target or inline instructions
	Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error)

	// Complete translates gateway callback data into a payment outcome
	Complete(ctx context.Context, req *CompleteRequest) (*CompleteResult, error)
}

// InitiateRequest carries the payment intent to the backend.
type InitiateRequest struct {
	Payment   *model.Payment
	Customer  *model.Customer
	ReturnURL string
	// Unattended is set by the renewal job; backends without stored
	// payment methods must fail initiation in this mode.
	Unattended bool
}

// InitiateResult is either a redirect to an external payment page or a
// set of inline instructions (bank transfer).
type InitiateResult struct {
	RedirectURL  string
	Instructions *Instructions
	// Extra is merged into the payment record before the redirect,
	// typically the gateway-side payment identifier.
	Extra model.JSONB
}

// Instructions describe a manual bank transfer.
type Instructions struct {
	Account   string `json:"account"`
	IBAN      string `json:"iban,omitempty"`
	BIC       string `json:"bic,omitempty"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

// CompleteRequest carries the gateway return/callback parameters.
type CompleteRequest struct {
	Payment *model.Payment
	Params  url.Values
}

// CompleteResult is the payment outcome reported by the backend.
type CompleteResult struct {
	State model.PaymentState
	Extra model.JSONB
}

// Error wraps a backend protocol failure with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
