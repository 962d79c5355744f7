package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/middleware/auth"
	"github.com/weblate/wlweb-payments/internal/usecase"
)

type DonationHandler struct {
	donations *usecase.DonationService
	logger    *zap.Logger
}

func NewDonationHandler(donations *usecase.DonationService, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{donations: donations, logger: logger}
}

// CreateDonation opens a donation payment and points the donor at the
// billing step.
func (h *DonationHandler) CreateDonation(c echo.Context) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	var input usecase.DonationInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&input); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	payment, err := h.donations.Create(c.Request().Context(), user.UserID, user.Email, &input)
	if err != nil {
		h.logger.Error("Failed to create donation payment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"payment":  payment.UUID,
		"redirect": "/payment/" + payment.UUID.String() + "/customer",
	})
}

// ListDonations returns the caller's donations, dormant ones included.
func (h *DonationHandler) ListDonations(c echo.Context) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	donations, err := h.donations.ListByUser(c.Request().Context(), user.UserID)
	if err != nil {
		h.logger.Error("Failed to list donations", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"donations": donations})
}

// RenewDonation creates a renewal payment on user request.
func (h *DonationHandler) RenewDonation(c echo.Context) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	donationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Donation not found"})
	}

	payment, err := h.donations.Renew(c.Request().Context(), donationID, user.UserID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrDonationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Donation not found"})
		}
		h.logger.Error("Failed to create renewal payment",
			zap.Int64("donation", donationID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"payment":  payment.UUID,
		"redirect": "/payment/" + payment.UUID.String(),
	})
}
