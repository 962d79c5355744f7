package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
)

// memStore backs the in-memory repositories. The fakes mirror the
// database semantics the services rely on: transition legality checks,
// the renewal outstanding check and the forward-only expiry guard.
type memStore struct {
	mu           sync.Mutex
	payments     map[int64]*model.Payment
	customers    map[int64]*model.Customer
	donations    map[int64]*model.Donation
	packages     map[string]*model.Package
	nextPayment  int64
	nextCustomer int64
	nextDonation int64
}

func newMemStore() *memStore {
	return &memStore{
		payments:  map[int64]*model.Payment{},
		customers: map[int64]*model.Customer{},
		donations: map[int64]*model.Donation{},
		packages:  map[string]*model.Package{},
	}
}

type memPaymentRepo struct {
	store *memStore
}

func (r *memPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextPayment++
	payment.ID = r.store.nextPayment
	if payment.UUID == uuid.Nil {
		payment.UUID = uuid.New()
	}
	if payment.State == "" {
		payment.State = model.PaymentStateNew
	}
	if payment.Extra == nil {
		payment.Extra = model.JSONB{}
	}
	r.store.payments[payment.ID] = payment
	return nil
}

func (r *memPaymentRepo) byUUID(id uuid.UUID) *model.Payment {
	for _, p := range r.store.payments {
		if p.UUID == id {
			return p
		}
	}
	return nil
}

func (r *memPaymentRepo) attachCustomer(p *model.Payment) {
	if p.Customer == nil {
		p.Customer = r.store.customers[p.CustomerID]
	}
}

func (r *memPaymentRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.byUUID(id)
	if p == nil {
		return nil, domainErrors.ErrPaymentNotFound
	}
	r.attachCustomer(p)
	return p, nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	r.attachCustomer(p)
	return p, nil
}

func (r *memPaymentRepo) Update(ctx context.Context, payment *model.Payment) error {
	if payment.State != model.PaymentStateNew {
		return fmt.Errorf("%w: payment %s is %s", domainErrors.ErrIllegalTransition,
			payment.UUID, payment.State)
	}
	return nil
}

func (r *memPaymentRepo) Transition(ctx context.Context, id uuid.UUID, fn repository.TransitionFunc) (*model.Payment, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.byUUID(id)
	if p == nil {
		return nil, false, domainErrors.ErrPaymentNotFound
	}
	r.attachCustomer(p)

	if p.State.IsTerminal() {
		return p, false, nil
	}

	target, err := fn(p)
	if err != nil {
		if err == domainErrors.ErrStaleState {
			return p, false, nil
		}
		return nil, false, err
	}
	if target == p.State {
		return p, false, nil
	}
	if !p.State.CanTransition(target) {
		return nil, false, fmt.Errorf("%w: %s -> %s", domainErrors.ErrIllegalTransition, p.State, target)
	}
	p.State = target
	return p, true, nil
}

func (r *memPaymentRepo) ListAccepted(ctx context.Context) ([]*model.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var accepted []*model.Payment
	for i := int64(1); i <= r.store.nextPayment; i++ {
		if p, ok := r.store.payments[i]; ok && p.State == model.PaymentStateAccepted {
			r.attachCustomer(p)
			accepted = append(accepted, p)
		}
	}
	return accepted, nil
}

func (r *memPaymentRepo) HasOutstandingRenewal(ctx context.Context, donationID int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, p := range r.store.payments {
		if p.DonationID() == donationID && !p.State.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

type memCustomerRepo struct {
	store *memStore
}

func (r *memCustomerRepo) GetOrCreate(ctx context.Context, userID int64, origin, email string) (*model.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, c := range r.store.customers {
		if c.UserID == userID && c.Origin == origin {
			return c, nil
		}
	}
	r.store.nextCustomer++
	customer := &model.Customer{
		ID:     r.store.nextCustomer,
		UserID: userID,
		Origin: origin,
		Email:  email,
	}
	r.store.customers[customer.ID] = customer
	return customer, nil
}

func (r *memCustomerRepo) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d not found", id)
	}
	return c, nil
}

func (r *memCustomerRepo) Update(ctx context.Context, customer *model.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.customers[customer.ID] = customer
	return nil
}

type memDonationRepo struct {
	store *memStore
}

func (r *memDonationRepo) Create(ctx context.Context, donation *model.Donation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextDonation++
	donation.ID = r.store.nextDonation
	stored := *donation
	r.store.donations[donation.ID] = &stored
	return nil
}

func (r *memDonationRepo) GetByID(ctx context.Context, id int64) (*model.Donation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, ok := r.store.donations[id]
	if !ok {
		return nil, domainErrors.ErrDonationNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *memDonationRepo) Update(ctx context.Context, donation *model.Donation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.donations[donation.ID]
	if !ok {
		return domainErrors.ErrDonationNotFound
	}
	// Expirations only ever move forward.
	if donation.Expires.Before(stored.Expires) {
		return nil
	}
	copied := *donation
	r.store.donations[donation.ID] = &copied
	return nil
}

func (r *memDonationRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Donation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var donations []*model.Donation
	for i := int64(1); i <= r.store.nextDonation; i++ {
		if d, ok := r.store.donations[i]; ok && d.UserID == userID {
			copied := *d
			donations = append(donations, &copied)
		}
	}
	return donations, nil
}

func (r *memDonationRepo) ListExpiring(ctx context.Context, deadline time.Time) ([]*model.Donation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var donations []*model.Donation
	for i := int64(1); i <= r.store.nextDonation; i++ {
		if d, ok := r.store.donations[i]; ok && d.Active && d.Expires.Before(deadline) {
			copied := *d
			donations = append(donations, &copied)
		}
	}
	return donations, nil
}

type memPackageRepo struct {
	store *memStore
}

func (r *memPackageRepo) GetByName(ctx context.Context, name string) (*model.Package, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	pkg, ok := r.store.packages[name]
	if !ok {
		return nil, domainErrors.ErrPackageNotFound
	}
	return pkg, nil
}

func (r *memPackageRepo) Upsert(ctx context.Context, pkg *model.Package) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.packages[pkg.Name] = pkg
	return nil
}

func (r *memPackageRepo) List(ctx context.Context) ([]*model.Package, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var packages []*model.Package
	for _, pkg := range r.store.packages {
		packages = append(packages, pkg)
	}
	return packages, nil
}

// stubVAT is a canned VAT validator.
type stubVAT struct {
	valid bool
	err   error
}

func (s *stubVAT) Check(ctx context.Context, country, number string) (bool, error) {
	return s.valid, s.err
}
