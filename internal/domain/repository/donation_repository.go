package repository

import (
	"context"
	"time"

	"github.com/weblate/wlweb-payments/internal/domain/model"
)

type DonationRepository interface {
	Create(ctx context.Context, donation *model.Donation) error
	GetByID(ctx context.Context, id int64) (*model.Donation, error)
	Update(ctx context.Context, donation *model.Donation) error
	ListByUser(ctx context.Context, userID int64) ([]*model.Donation, error)
	// ListExpiring returns active donations whose expiration falls
	// before the given deadline (including already expired ones).
	ListExpiring(ctx context.Context, deadline time.Time) ([]*model.Donation, error)
}
