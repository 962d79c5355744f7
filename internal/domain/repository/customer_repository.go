package repository

import (
	"context"

	"github.com/weblate/wlweb-payments/internal/domain/model"
)

type CustomerRepository interface {
	// GetOrCreate returns the billing profile for (user, origin),
	// creating an empty one on first use.
	GetOrCreate(ctx context.Context, userID int64, origin, email string) (*model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	Update(ctx context.Context, customer *model.Customer) error
}
