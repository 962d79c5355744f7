package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/weblate/wlweb-payments/internal/signing"
	"github.com/weblate/wlweb-payments/internal/usecase"
)

type HostedHandler struct {
	hosted *usecase.HostedService
	logger *zap.Logger
}

func NewHostedHandler(hosted *usecase.HostedService, logger *zap.Logger) *HostedHandler {
	return &HostedHandler{hosted: hosted, logger: logger}
}

// Handle accepts a signed billing request from the hosted service. The
// payload field carries the whole request; a missing or unverifiable
// payload is a client error regardless of its content.
func (h *HostedHandler) Handle(c echo.Context) error {
	payload := c.FormValue("payload")

	payment, err := h.hosted.Process(c.Request().Context(), payload)
	if err != nil {
		if signing.IsInvalidPayload(err) {
			h.logger.Warn("Rejected hosted payload",
				zap.String("remote", c.RealIP()),
				zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid payload"})
		}
		h.logger.Error("Hosted request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"payment": payment.UUID,
	})
}
