package handler

import (
	"errors"
	"net/http"
	"strings"

	"paystack-storefront/internal/dto"
	"paystack-storefront/internal/middleware"
	"paystack-storefront/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	paymentService service.PaymentService
	defaultChannel string
}

func NewPaymentHandler(paymentService service.PaymentService, defaultChannel string) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		defaultChannel: defaultChannel,
	}
}

// Pay initiates a payment attempt and either returns the hosted-page URL or,
// with ?redirect=1, performs the navigation itself.
func (h *PaymentHandler) Pay(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.CheckoutID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing checkout_id")
	}

	result, err := h.paymentService.InitiatePayment(ctx, middleware.SessionID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrGatewayNotConfigured) || errors.Is(err, service.ErrGatewayNotAvailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return err
	}

	if c.QueryParam("redirect") == "1" {
		return c.Redirect(http.StatusFound, result.AuthorizationURL)
	}
	return c.JSON(http.StatusOK, result)
}

// Callback receives the gateway redirect. Every outcome is a redirect:
// order confirmation on success, checkout with an error code otherwise.
func (h *PaymentHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	params := dto.CallbackParams{
		PaymentStatus: c.QueryParam("paymentStatus"),
		Trxref:        c.QueryParam("trxref"),
		Reference:     c.QueryParam("reference"),
		Channel:       h.channelFromRequest(c),
	}

	result := h.paymentService.CompleteCallback(ctx, middleware.SessionID(c), params)
	return c.Redirect(http.StatusFound, result.RedirectURL)
}

// channelFromRequest recovers the channel from the URL path, never from
// stored state. Reserved leading segments mean the unscoped callback route,
// which falls back to the configured default.
func (h *PaymentHandler) channelFromRequest(c echo.Context) string {
	if ch := c.Param("channel"); ch != "" {
		return ch
	}
	segments := strings.Split(strings.TrimPrefix(c.Request().URL.Path, "/"), "/")
	if len(segments) > 0 {
		switch segments[0] {
		case "", "checkout", "api":
		default:
			return segments[0]
		}
	}
	return h.defaultChannel
}
