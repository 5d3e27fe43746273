package dto

import "paystack-storefront/internal/model"

// Error codes carried back to the checkout page as ?error=<code>.
const (
	ErrCodeMissingData      = "missing_data"
	ErrCodePaymentFailed    = "payment_failed"
	ErrCodeProcessingFailed = "payment_processing_failed"
)

type PayRequest struct {
	CheckoutID string `json:"checkout_id"`
	Channel    string `json:"channel,omitempty"`
}

type PayResponse struct {
	TransactionID    string `json:"transaction_id"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// CallbackParams are the query parameters the gateway appends when
// redirecting back from the hosted payment page.
type CallbackParams struct {
	PaymentStatus string
	Trxref        string
	Reference     string
	Channel       string
}

// PaymentReference prefers trxref, matching the order the gateway documents.
func (p CallbackParams) PaymentReference() string {
	if p.Trxref != "" {
		return p.Trxref
	}
	return p.Reference
}

// Success reports whether the entry condition for the callback route holds.
func (p CallbackParams) Success() bool {
	return p.PaymentStatus == "success" && p.PaymentReference() != ""
}

// CallbackResult is the terminal outcome of one callback run. It is always a
// redirect; failures never escape as HTTP errors.
type CallbackResult struct {
	State       string `json:"state"`
	RedirectURL string `json:"redirect_url"`
	OrderToken  string `json:"order_token,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

type CheckoutResponse struct {
	Checkout *model.Checkout        `json:"checkout"`
	Gateways []model.PaymentGateway `json:"gateways"`
	// Amount actually charged at the gateway after optional currency
	// bridging; equals the checkout total when bridging is off.
	GatewayAmount   string `json:"gateway_amount"`
	GatewayCurrency string `json:"gateway_currency"`
}
