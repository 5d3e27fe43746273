package config

import (
	"fmt"
	"time"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"storefront.db"`

	Saleor   Saleor   `envPrefix:"SALEOR_"`
	Paystack Paystack `envPrefix:"PAYSTACK_"`
	Session  Session  `envPrefix:"SESSION_"`
}

type Saleor struct {
	APIURL         string `env:"API_URL"`
	DefaultChannel string `env:"DEFAULT_CHANNEL" envDefault:"default-channel"`
}

type Paystack struct {
	Enabled    bool   `env:"ENABLED" envDefault:"false"`
	PublicKey  string `env:"PUBLIC_KEY"`
	AppBaseURL string `env:"APP_URL"`
	GatewayID  string `env:"GATEWAY_ID"`

	CurrencyConversionEnabled bool   `env:"CURRENCY_CONVERSION_ENABLED" envDefault:"false"`
	TargetCurrency            string `env:"TARGET_CURRENCY" envDefault:"GHS"`
	USDToTargetRate           string `env:"USD_TO_GHS_RATE" envDefault:"14.5"`

	// exact: settled amount must equal the checkout total.
	// at-least: settled amount must cover the checkout total.
	SettlementPolicy string `env:"SETTLEMENT_POLICY" envDefault:"at-least"`
}

type Session struct {
	CookieName string        `env:"COOKIE_NAME" envDefault:"storefront_session"`
	TTL        time.Duration `env:"TTL" envDefault:"24h"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsDevelopment() bool {
	return e.Name == "development"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

// Ready reports whether the gateway has everything it needs to render a
// payment option. A half-configured gateway is treated as absent, not broken.
func (p Paystack) Ready() bool {
	return p.Enabled && p.PublicKey != "" && p.AppBaseURL != "" && p.GatewayID != ""
}

// Validate returns an error describing missing required settings. In
// development the caller treats this as fatal; in production the gateway is
// disabled and the error logged instead.
func (c *Config) Validate() error {
	if c.Saleor.APIURL == "" {
		return fmt.Errorf("missing SALEOR_API_URL")
	}
	if c.Paystack.Enabled {
		if c.Paystack.PublicKey == "" {
			return fmt.Errorf("paystack enabled but PAYSTACK_PUBLIC_KEY is not set")
		}
		if c.Paystack.AppBaseURL == "" {
			return fmt.Errorf("paystack enabled but PAYSTACK_APP_URL is not set")
		}
		if c.Paystack.GatewayID == "" {
			return fmt.Errorf("paystack enabled but PAYSTACK_GATEWAY_ID is not set")
		}
	}
	switch c.Paystack.SettlementPolicy {
	case "exact", "at-least":
	default:
		return fmt.Errorf("invalid SETTLEMENT_POLICY %q (want exact or at-least)", c.Paystack.SettlementPolicy)
	}
	return nil
}
