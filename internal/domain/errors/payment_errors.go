package errors

import "errors"

var (
	// ErrPaymentNotFound indicates that no payment exists for the given UUID
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrStaleState indicates the payment state changed under the row lock;
	// the caller treats this as a no-op, not a failure
	ErrStaleState = errors.New("payment state changed concurrently")

	// ErrIllegalTransition indicates an attempt to move a payment backwards
	ErrIllegalTransition = errors.New("illegal payment state transition")

	// ErrCustomerIncomplete indicates billing information is missing
	ErrCustomerIncomplete = errors.New("billing information incomplete")

	// ErrInvalidVAT indicates the customer VAT ID failed validation
	ErrInvalidVAT = errors.New("the VAT ID is no longer valid")

	// ErrUnknownBackend indicates a backend identifier with no registered gateway
	ErrUnknownBackend = errors.New("unknown payment backend")

	// ErrBadSignature indicates a gateway callback that failed verification
	ErrBadSignature = errors.New("callback signature verification failed")

	// ErrInvalidPayload indicates a signed payload that could not be verified
	ErrInvalidPayload = errors.New("invalid signed payload")

	// ErrDonationNotFound indicates that the donation does not exist or is
	// owned by somebody else
	ErrDonationNotFound = errors.New("donation not found")

	// ErrPackageNotFound indicates a hosted API request named a package
	// that is not configured; a server-side integrity problem
	ErrPackageNotFound = errors.New("package not found")
)
