package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/weblate/wlweb-payments/internal/adapter/handler/http"
	"github.com/weblate/wlweb-payments/internal/config"
	domainGateway "github.com/weblate/wlweb-payments/internal/domain/gateway"
	"github.com/weblate/wlweb-payments/internal/infrastructure/database"
	"github.com/weblate/wlweb-payments/internal/middleware/auth"
	"github.com/weblate/wlweb-payments/internal/signing"
	"github.com/weblate/wlweb-payments/internal/usecase"
	"github.com/weblate/wlweb-payments/internal/vat"
)

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	repos    *database.Repositories
	registry *domainGateway.Registry
}

// requestValidator adapts go-playground/validator to echo.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(cfg *config.Config, logger *zap.Logger, repos *database.Repositories, registry *domainGateway.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{
		config:   cfg,
		logger:   logger,
		echo:     e,
		repos:    repos,
		registry: registry,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "payments",
		})
	})

	paymentCfg := s.config.Service.Payment

	// Shared collaborators
	signer := signing.NewSigner(paymentCfg.Secret)
	vatValidator := vat.NewValidator(s.config.Service.VAT.URL, s.config.Service.VAT.Timeout, s.logger)
	dispatcher := usecase.NewOriginDispatcher(paymentCfg, signer, s.logger)

	// Services; the payment state machine and the donation engine
	// reference each other through the processed hook.
	customerSvc := usecase.NewCustomerService(s.repos.Customer, vatValidator, s.logger)
	paymentSvc := usecase.NewPaymentService(
		s.repos.Payment, customerSvc, s.registry, dispatcher,
		paymentCfg, s.config.Service.PublicURL, s.logger)
	donationSvc := usecase.NewDonationService(
		s.repos.Donation, s.repos.Payment, customerSvc, paymentSvc,
		dispatcher, paymentCfg, s.logger)
	paymentSvc.SetProcessedHook(donationSvc)
	hostedSvc := usecase.NewHostedService(
		s.repos.Package, s.repos.Payment, customerSvc, signer,
		paymentCfg, s.logger)

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentSvc, s.logger)
	donationHandler := handlers.NewDonationHandler(donationSvc, s.logger)
	hostedHandler := handlers.NewHostedHandler(hostedSvc, s.logger)

	// Payment pages, keyed by UUID rather than authentication: the
	// identifier itself is the capability.
	payment := s.echo.Group("/payment")
	payment.GET("/:uuid", paymentHandler.GetPayment)
	payment.POST("/:uuid/customer", paymentHandler.SubmitCustomer)
	payment.POST("/:uuid/method", paymentHandler.SubmitMethod)
	payment.GET("/:uuid/complete", paymentHandler.Complete)
	payment.POST("/:uuid/complete", paymentHandler.Complete)

	// Donation endpoints require the SSO identity.
	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.Auth.JWTSecret,
		Logger: s.logger,
	}
	donations := s.echo.Group("", auth.JWTMiddleware(jwtConfig))
	donations.POST("/donate", donationHandler.CreateDonation)
	donations.GET("/donations", donationHandler.ListDonations)
	donations.POST("/donations/:id/renew", donationHandler.RenewDonation)

	// Public API for the hosted service, authenticated by payload
	// signature instead of a session.
	s.echo.POST("/api/hosted/", hostedHandler.Handle)
}
