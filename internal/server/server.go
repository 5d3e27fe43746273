package server

import (
	"context"

	"paystack-storefront/internal/config"
	"paystack-storefront/internal/handler"
	"paystack-storefront/internal/middleware"
	"paystack-storefront/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo            *echo.Echo
	paymentHandler  *handler.PaymentHandler
	checkoutHandler *handler.CheckoutHandler
}

func NewServer(
	cfg *config.Config,
	paymentService service.PaymentService,
	checkoutService service.CheckoutService,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.SessionMiddleware(cfg.Session.CookieName))

	paymentHandler := handler.NewPaymentHandler(paymentService, cfg.Saleor.DefaultChannel)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)

	s := &Server{
		echo:            e,
		paymentHandler:  paymentHandler,
		checkoutHandler: checkoutHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.GET("/checkout", s.checkoutHandler.GetCheckout)
	api.POST("/checkout/pay", s.paymentHandler.Pay)
	api.GET("/order/:token", s.checkoutHandler.GetOrder)

	// -------- gateway redirect legs --------
	s.echo.GET("/checkout/paystack/callback", s.paymentHandler.Callback)
	s.echo.GET("/:channel/checkout/paystack/callback", s.paymentHandler.Callback)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
