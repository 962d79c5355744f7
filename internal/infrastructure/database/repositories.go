package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weblate/wlweb-payments/internal/adapter/repository"
	domainRepo "github.com/weblate/wlweb-payments/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Customer domainRepo.CustomerRepository
	Payment  domainRepo.PaymentRepository
	Donation domainRepo.DonationRepository
	Package  domainRepo.PackageRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Customer: repository.NewCustomerRepository(db, logger),
		Payment:  repository.NewPaymentRepository(db, logger),
		Donation: repository.NewDonationRepository(db, logger),
		Package:  repository.NewPackageRepository(db, logger),
	}
}
