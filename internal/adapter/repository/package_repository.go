package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/domain/repository"
)

type packageRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPackageRepository creates a new package repository
func NewPackageRepository(db *gorm.DB, logger *zap.Logger) repository.PackageRepository {
	return &packageRepository{db: db, logger: logger}
}

func (r *packageRepository) GetByName(ctx context.Context, name string) (*model.Package, error) {
	var pkg model.Package
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domainErrors.ErrPackageNotFound, name)
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return &pkg, nil
}

func (r *packageRepository) Upsert(ctx context.Context, pkg *model.Package) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"verbose", "price"}),
		}).
		Create(pkg).Error
	if err != nil {
		r.logger.Error("Failed to upsert package",
			zap.String("name", pkg.Name),
			zap.Error(err))
		return fmt.Errorf("failed to upsert package: %w", err)
	}
	return nil
}

func (r *packageRepository) List(ctx context.Context) ([]*model.Package, error) {
	var packages []*model.Package
	err := r.db.WithContext(ctx).Order("name").Find(&packages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return packages, nil
}
