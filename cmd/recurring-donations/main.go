package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/config"
	"github.com/weblate/wlweb-payments/internal/infrastructure/database"
	"github.com/weblate/wlweb-payments/internal/infrastructure/gateway"
	"github.com/weblate/wlweb-payments/internal/signing"
	"github.com/weblate/wlweb-payments/internal/usecase"
	"github.com/weblate/wlweb-payments/internal/vat"
)

// Issues renewal payments for donations expiring within the
// configured lookahead window. Run daily from cron.
func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, logger)

	registry, err := gateway.NewRegistry(&cfg.Service.Payment, logger)
	if err != nil {
		logger.Fatal("Failed to build gateway registry", zap.Error(err))
	}

	paymentCfg := cfg.Service.Payment
	signer := signing.NewSigner(paymentCfg.Secret)
	vatValidator := vat.NewValidator(cfg.Service.VAT.URL, cfg.Service.VAT.Timeout, logger)
	dispatcher := usecase.NewOriginDispatcher(paymentCfg, signer, logger)

	customerSvc := usecase.NewCustomerService(repos.Customer, vatValidator, logger)
	paymentSvc := usecase.NewPaymentService(
		repos.Payment, customerSvc, registry, dispatcher,
		paymentCfg, cfg.Service.PublicURL, logger)
	donationSvc := usecase.NewDonationService(
		repos.Donation, repos.Payment, customerSvc, paymentSvc,
		dispatcher, paymentCfg, logger)
	paymentSvc.SetProcessedHook(donationSvc)

	ctx := context.Background()

	if err := donationSvc.ScheduleRenewals(ctx); err != nil {
		logger.Fatal("Renewal run failed", zap.Error(err))
	}

	logger.Info("Renewal run completed")
}
