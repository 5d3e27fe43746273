package handler

import (
	"net/http"

	"paystack-storefront/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

// GetCheckout serves the checkout page data. With none of the recognized
// query parameters present there is nothing to render.
func (h *CheckoutHandler) GetCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	checkoutID := c.QueryParam("checkout")
	orderToken := c.QueryParam("order")
	paymentStatus := c.QueryParam("paymentStatus")
	errorCode := c.QueryParam("error")
	trxref := c.QueryParam("trxref")
	reference := c.QueryParam("reference")

	if checkoutID == "" && orderToken == "" && paymentStatus == "" &&
		errorCode == "" && trxref == "" && reference == "" {
		return c.NoContent(http.StatusNoContent)
	}

	if errorCode != "" && checkoutID == "" {
		return c.JSON(http.StatusOK, map[string]string{"error": errorCode})
	}

	if checkoutID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing checkout id")
	}

	result, err := h.checkoutService.GetCheckout(ctx, checkoutID)
	if err != nil {
		return err
	}
	if errorCode != "" {
		return c.JSON(http.StatusOK, map[string]any{
			"error":    errorCode,
			"checkout": result,
		})
	}
	return c.JSON(http.StatusOK, result)
}

// GetOrder serves the order confirmation data by token.
func (h *CheckoutHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	token := c.Param("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order token")
	}

	order, err := h.checkoutService.GetOrderByToken(ctx, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return c.JSON(http.StatusOK, order)
}
