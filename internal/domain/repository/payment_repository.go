package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/weblate/wlweb-payments/internal/domain/model"
)

// TransitionFunc inspects a row-locked payment and returns the state it
// should move to. Returning the current state makes the transition a
// no-op. The payment's Extra map may be mutated; it is persisted
// together with the state.
type TransitionFunc func(payment *model.Payment) (model.PaymentState, error)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
	// Update persists mutable fields of a payment still in state new.
	Update(ctx context.Context, payment *model.Payment) error

	// Transition runs fn against the payment re-read under a row lock
	// inside a transaction. Illegal or stale transitions commit nothing
	// and are reported as no-ops, making duplicate callback delivery
	// and double job invocation safe. The bool reports whether this
	// call actually moved the state, so side effects of a transition
	// run exactly once.
	Transition(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*model.Payment, bool, error)

	// ListAccepted returns payments awaiting settlement reconciliation.
	ListAccepted(ctx context.Context) ([]*model.Payment, error)
	// HasOutstandingRenewal reports whether a non-terminal renewal
	// payment already exists for the donation.
	HasOutstandingRenewal(ctx context.Context, donationID int64) (bool, error)
}
