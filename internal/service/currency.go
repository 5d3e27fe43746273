package service

import (
	"fmt"

	"paystack-storefront/internal/config"
	"paystack-storefront/internal/model"

	"github.com/shopspring/decimal"
)

// CurrencyConverter bridges the checkout currency to the currency the
// gateway account accepts. Only the gateway-facing amount is converted; the
// backend keeps seeing the checkout's own currency.
type CurrencyConverter struct {
	enabled        bool
	targetCurrency string
	usdRate        decimal.Decimal
}

func NewCurrencyConverter(cfg *config.Paystack) (*CurrencyConverter, error) {
	rate, err := decimal.NewFromString(cfg.USDToTargetRate)
	if err != nil {
		return nil, fmt.Errorf("parse currency rate %q: %w", cfg.USDToTargetRate, err)
	}
	if cfg.CurrencyConversionEnabled && !rate.IsPositive() {
		return nil, fmt.Errorf("currency rate must be positive, got %s", rate)
	}
	return &CurrencyConverter{
		enabled:        cfg.CurrencyConversionEnabled,
		targetCurrency: cfg.TargetCurrency,
		usdRate:        rate,
	}, nil
}

// Convert returns the gateway amount for a checkout total. Only USD→target
// bridging is supported; anything else passes through unchanged.
func (c *CurrencyConverter) Convert(total model.Money) model.Money {
	if !c.enabled || total.Currency == c.targetCurrency {
		return total
	}
	if total.Currency != "USD" {
		return total
	}
	return model.Money{
		Amount:   total.Amount.Mul(c.usdRate).Round(2),
		Currency: c.targetCurrency,
	}
}

// MinorUnits converts a major-unit amount to the smallest currency unit
// (kobo, pesewas, cents), which is what the gateway expects.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
