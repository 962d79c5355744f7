package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if payment.UUID == uuid.Nil {
		payment.UUID = uuid.New()
	}
	if payment.State == "" {
		payment.State = model.PaymentStateNew
	}
	if payment.Extra == nil {
		payment.Extra = model.JSONB{}
	}

	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		r.logger.Error("Failed to create payment",
			zap.String("origin", payment.Origin),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("uuid = ?", id).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		r.logger.Error("Failed to get payment",
			zap.String("uuid", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		First(&payment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// Update persists mutable fields. Only payments still in state new may
// change amount or backend; state itself moves through Transition.
func (r *paymentRepository) Update(ctx context.Context, payment *model.Payment) error {
	if payment.State != model.PaymentStateNew {
		return fmt.Errorf("%w: payment %s is %s", domainErrors.ErrIllegalTransition,
			payment.UUID, payment.State)
	}

	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("uuid = ? AND state = ?", payment.UUID, model.PaymentStateNew).
		Updates(map[string]interface{}{
			"amount":      payment.Amount,
			"description": payment.Description,
			"backend":     payment.Backend,
			"extra":       payment.Extra,
		}).Error
	if err != nil {
		r.logger.Error("Failed to update payment",
			zap.String("uuid", payment.UUID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

// Transition re-reads the payment under FOR UPDATE, asks fn for the
// target state and applies it only when the move is legal. Terminal
// rows and repeated deliveries fall through as no-ops, reported via
// the returned bool so callers fire per-transition effects once.
func (r *paymentRepository) Transition(ctx context.Context, id uuid.UUID, fn repository.TransitionFunc) (*model.Payment, bool, error) {
	var result *model.Payment
	var moved bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment model.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", id).
			First(&payment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErrors.ErrPaymentNotFound
			}
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		if payment.State.IsTerminal() {
			// Duplicate webhook or late job run; keep the row as is.
			r.logger.Info("Skipping transition of terminal payment",
				zap.String("uuid", id.String()),
				zap.String("state", string(payment.State)))
			result = &payment
			return nil
		}

		target, err := fn(&payment)
		if err != nil {
			if errors.Is(err, domainErrors.ErrStaleState) {
				result = &payment
				return nil
			}
			return err
		}

		if target == payment.State {
			result = &payment
			return nil
		}
		if !payment.State.CanTransition(target) {
			return fmt.Errorf("%w: %s -> %s", domainErrors.ErrIllegalTransition,
				payment.State, target)
		}

		previous := payment.State
		payment.State = target
		err = tx.Model(&model.Payment{}).
			Where("id = ?", payment.ID).
			Updates(map[string]interface{}{
				"state": payment.State,
				"extra": payment.Extra,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to store transition: %w", err)
		}

		r.logger.Info("Payment transitioned",
			zap.String("uuid", id.String()),
			zap.String("from", string(previous)),
			zap.String("to", string(target)))
		result = &payment
		moved = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	// Transition skips relations; reload the customer for callers that
	// need the billing snapshot.
	if result != nil && result.Customer == nil {
		if fresh, err := r.GetByUUID(ctx, id); err == nil {
			result = fresh
		}
	}
	return result, moved, nil
}

func (r *paymentRepository) ListAccepted(ctx context.Context) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("state = ?", model.PaymentStateAccepted).
		Order("created_at").
		Find(&payments).Error
	if err != nil {
		r.logger.Error("Failed to list accepted payments", zap.Error(err))
		return nil, fmt.Errorf("failed to list accepted payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) HasOutstandingRenewal(ctx context.Context, donationID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("extra->>? = ?", model.ExtraDonationID, fmt.Sprint(donationID)).
		Where("state NOT IN ?", []model.PaymentState{
			model.PaymentStateProcessed,
			model.PaymentStateRejected,
		}).
		Count(&count).Error
	if err != nil {
		r.logger.Error("Failed to count renewal payments",
			zap.Int64("donation_id", donationID),
			zap.Error(err))
		return false, fmt.Errorf("failed to count renewal payments: %w", err)
	}
	return count > 0, nil
}
