package service

import (
	"context"
	"fmt"
	"strings"

	"paystack-storefront/internal/client"
	"paystack-storefront/internal/config"
	"paystack-storefront/internal/dto"
	"paystack-storefront/internal/model"
)

type CheckoutService interface {
	GetCheckout(ctx context.Context, checkoutID string) (*dto.CheckoutResponse, error)
	GetOrderByToken(ctx context.Context, token string) (*model.Order, error)
	SupportedGateways(gateways []model.PaymentGateway) []model.PaymentGateway
}

type checkoutServiceImpl struct {
	saleorClient client.SaleorClient
	paystackCfg  *config.Paystack
	converter    *CurrencyConverter
}

func NewCheckoutService(
	saleorClient client.SaleorClient,
	paystackCfg *config.Paystack,
	converter *CurrencyConverter,
) CheckoutService {
	return &checkoutServiceImpl{
		saleorClient: saleorClient,
		paystackCfg:  paystackCfg,
		converter:    converter,
	}
}

func (s *checkoutServiceImpl) GetCheckout(ctx context.Context, checkoutID string) (*dto.CheckoutResponse, error) {
	checkout, err := s.saleorClient.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("get checkout: %w", err)
	}

	gatewayAmount := s.converter.Convert(checkout.TotalPrice.Gross)

	return &dto.CheckoutResponse{
		Checkout:        checkout,
		Gateways:        s.SupportedGateways(checkout.AvailablePaymentGateways),
		GatewayAmount:   gatewayAmount.Amount.StringFixed(2),
		GatewayCurrency: gatewayAmount.Currency,
	}, nil
}

func (s *checkoutServiceImpl) GetOrderByToken(ctx context.Context, token string) (*model.Order, error) {
	return s.saleorClient.OrderByToken(ctx, token)
}

// SupportedGateways filters the backend's gateway list down to ids this
// storefront can actually execute. Unrecognized gateways are dropped, not
// errored; a gateway with missing configuration is treated the same way.
func (s *checkoutServiceImpl) SupportedGateways(gateways []model.PaymentGateway) []model.PaymentGateway {
	supported := make([]model.PaymentGateway, 0, len(gateways))
	for _, gw := range gateways {
		if !s.executable(gw.ID) {
			continue
		}
		supported = append(supported, gw)
	}
	return supported
}

func (s *checkoutServiceImpl) executable(gatewayID string) bool {
	if !s.paystackCfg.Ready() {
		return false
	}
	if gatewayID == s.paystackCfg.GatewayID {
		return true
	}
	return strings.Contains(gatewayID, "paystack")
}
