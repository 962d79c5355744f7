package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
)

type donationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDonationRepository creates a new donation repository
func NewDonationRepository(db *gorm.DB, logger *zap.Logger) repository.DonationRepository {
	return &donationRepository{db: db, logger: logger}
}

func (r *donationRepository) Create(ctx context.Context, donation *model.Donation) error {
	if err := r.db.WithContext(ctx).Create(donation).Error; err != nil {
		r.logger.Error("Failed to create donation",
			zap.Int64("user_id", donation.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

func (r *donationRepository) GetByID(ctx context.Context, id int64) (*model.Donation, error) {
	var donation model.Donation
	err := r.db.WithContext(ctx).First(&donation, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return &donation, nil
}

// Update never lets expires move backwards; the guard lives in the
// query so concurrent extensions cannot race each other below an
// already stored value.
func (r *donationRepository) Update(ctx context.Context, donation *model.Donation) error {
	err := r.db.WithContext(ctx).
		Model(&model.Donation{}).
		Where("id = ? AND expires <= ?", donation.ID, donation.Expires).
		Updates(map[string]interface{}{
			"reward":     donation.Reward,
			"active":     donation.Active,
			"expires":    donation.Expires,
			"payment_id": donation.PaymentID,
			"link_url":   donation.LinkURL,
			"link_text":  donation.LinkText,
		}).Error
	if err != nil {
		r.logger.Error("Failed to update donation",
			zap.Int64("id", donation.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update donation: %w", err)
	}
	return nil
}

func (r *donationRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Donation, error) {
	var donations []*model.Donation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

func (r *donationRepository) ListExpiring(ctx context.Context, deadline time.Time) ([]*model.Donation, error) {
	var donations []*model.Donation
	err := r.db.WithContext(ctx).
		Where("active = ? AND expires < ?", true, deadline).
		Order("expires").
		Find(&donations).Error
	if err != nil {
		r.logger.Error("Failed to list expiring donations", zap.Error(err))
		return nil, fmt.Errorf("failed to list expiring donations: %w", err)
	}
	return donations, nil
}
