package model

import "github.com/shopspring/decimal"

// Wire models for the commerce backend. Checkouts and orders are owned by
// the backend; the storefront only holds read-mostly copies.

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type TaxedMoney struct {
	Gross Money `json:"gross"`
}

type Address struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	StreetAddress1 string `json:"streetAddress1"`
	City           string `json:"city"`
	PostalCode     string `json:"postalCode"`
	Country        string `json:"country"`
}

type CheckoutLine struct {
	ID          string     `json:"id"`
	Quantity    int32      `json:"quantity"`
	VariantName string     `json:"variantName"`
	TotalPrice  TaxedMoney `json:"totalPrice"`
}

type PaymentGateway struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

type Checkout struct {
	ID                       string           `json:"id"`
	Email                    string           `json:"email"`
	Lines                    []CheckoutLine   `json:"lines"`
	TotalPrice               TaxedMoney       `json:"totalPrice"`
	BillingAddress           *Address         `json:"billingAddress"`
	ShippingAddress          *Address         `json:"shippingAddress"`
	IsShippingRequired       bool             `json:"isShippingRequired"`
	AvailablePaymentGateways []PaymentGateway `json:"availablePaymentGateways"`
}

type Transaction struct {
	ID string `json:"id"`
}

type TransactionEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Order struct {
	ID              string         `json:"id"`
	Token           string         `json:"token"`
	Number          string         `json:"number"`
	UserEmail       string         `json:"userEmail"`
	Total           TaxedMoney     `json:"total"`
	BillingAddress  *Address       `json:"billingAddress"`
	ShippingAddress *Address       `json:"shippingAddress"`
	Lines           []CheckoutLine `json:"lines"`
}

// SaleorError is the error shape every mutation payload carries. A non-empty
// list means the mutation failed even when the transport succeeded.
type SaleorError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type TransactionInitializeResult struct {
	Transaction *Transaction  `json:"transaction"`
	Errors      []SaleorError `json:"errors"`
}

type TransactionProcessResult struct {
	Transaction      *Transaction      `json:"transaction"`
	TransactionEvent *TransactionEvent `json:"transactionEvent"`
	Errors           []SaleorError     `json:"errors"`
}

type CheckoutCompleteResult struct {
	Order  *Order        `json:"order"`
	Errors []SaleorError `json:"errors"`
}
