package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
	"github.com/weblate/wlweb-payments/internal/usecase"
)

type PaymentHandler struct {
	payments *usecase.PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments *usecase.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// GetPayment renders the payment page state. Visiting it re-evaluates
// the billing/VAT gate, so a stale VAT ID surfaces here.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := parseUUID(c)
	if err != nil {
		return err
	}

	view, err := h.payments.View(c.Request().Context(), id)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// SubmitCustomer stores the billing information submission.
func (h *PaymentHandler) SubmitCustomer(c echo.Context) error {
	id, err := parseUUID(c)
	if err != nil {
		return err
	}

	var input usecase.BillingInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&input); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := h.payments.SubmitBilling(c.Request().Context(), id, &input); err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"redirect": "/payment/" + id.String(),
	})
}

type methodRequest struct {
	Method string `json:"method" form:"method" validate:"required"`
}

// SubmitMethod selects the payment backend. An invalid VAT sends the
// user back to the billing step with a correctable error.
func (h *PaymentHandler) SubmitMethod(c echo.Context) error {
	id, err := parseUUID(c)
	if err != nil {
		return err
	}

	var req methodRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.payments.ChooseMethod(c.Request().Context(), id, req.Method)
	if err != nil {
		return h.mapError(c, err)
	}

	switch {
	case result.RedirectURL != "":
		return c.Redirect(http.StatusFound, result.RedirectURL)
	case result.CompletedRedirect != "":
		return c.Redirect(http.StatusFound, result.CompletedRedirect)
	default:
		return c.JSON(http.StatusOK, result)
	}
}

// Complete is the gateway return/callback endpoint. Unverifiable
// callbacks are rejected without touching the payment; replays against
// a finished payment still get their redirect so the gateway stops
// retrying.
func (h *PaymentHandler) Complete(c echo.Context) error {
	id, err := parseUUID(c)
	if err != nil {
		return err
	}

	params := url.Values{}
	for key, values := range c.QueryParams() {
		params[key] = values
	}
	if form, err := c.FormParams(); err == nil {
		for key, values := range form {
			params[key] = values
		}
	}

	redirect, err := h.payments.Complete(c.Request().Context(), id, params)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Redirect(http.StatusFound, redirect)
}

func (h *PaymentHandler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domainErrors.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Payment not found"})
	case errors.Is(err, domainErrors.ErrInvalidVAT):
		id := c.Param("uuid")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":    "The VAT ID is no longer valid",
			"redirect": "/payment/" + id + "/customer",
		})
	case errors.Is(err, domainErrors.ErrCustomerIncomplete):
		id := c.Param("uuid")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":    "Please provide your billing information",
			"redirect": "/payment/" + id + "/customer",
		})
	case errors.Is(err, domainErrors.ErrBadSignature):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Callback verification failed"})
	case errors.Is(err, domainErrors.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		h.logger.Error("Payment request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal error"})
	}
}

// parseUUID rejects malformed payment identifiers the same way as
// unknown ones, not leaking which UUIDs exist.
func parseUUID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "Payment not found")
	}
	return id, nil
}
