package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
)

type customerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB, logger *zap.Logger) repository.CustomerRepository {
	return &customerRepository{db: db, logger: logger}
}

func (r *customerRepository) GetOrCreate(ctx context.Context, userID int64, origin, email string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND origin = ?", userID, origin).
		First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.Error("Failed to get customer",
			zap.Int64("user_id", userID),
			zap.String("origin", origin),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	customer = model.Customer{
		UserID: userID,
		Origin: origin,
		Email:  email,
	}
	if err := r.db.WithContext(ctx).Create(&customer).Error; err != nil {
		r.logger.Error("Failed to create customer",
			zap.Int64("user_id", userID),
			zap.String("origin", origin),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &customer, nil
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).First(&customer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("customer %d not found", id)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

func (r *customerRepository) Update(ctx context.Context, customer *model.Customer) error {
	err := r.db.WithContext(ctx).
		Model(&model.Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]interface{}{
			"email":     customer.Email,
			"name":      customer.Name,
			"address":   customer.Address,
			"city":      customer.City,
			"country":   customer.Country,
			"vat":       customer.VAT,
			"vat_valid": customer.VATValid,
		}).Error
	if err != nil {
		r.logger.Error("Failed to update customer",
			zap.Int64("id", customer.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}
