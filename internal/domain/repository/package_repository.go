package repository

import (
	"context"

	"github.com/weblate/wlweb-payments/internal/domain/model"
)

type PackageRepository interface {
	GetByName(ctx context.Context, name string) (*model.Package, error)
	// Upsert inserts or refreshes reference data, used by the package
	// sync command.
	Upsert(ctx context.Context, pkg *model.Package) error
	List(ctx context.Context) ([]*model.Package, error)
}
