package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paystack-storefront/internal/model"
)

// SaleorClient covers the backend operations the payment protocol consumes.
type SaleorClient interface {
	GetCheckout(ctx context.Context, checkoutID string) (*model.Checkout, error)
	TransactionInitialize(ctx context.Context, checkoutID, gatewayID string, data map[string]any) (*model.TransactionInitializeResult, error)
	TransactionProcess(ctx context.Context, transactionID string, data map[string]any) (*model.TransactionProcessResult, error)
	CheckoutComplete(ctx context.Context, checkoutID string) (*model.CheckoutCompleteResult, error)
	OrderByToken(ctx context.Context, token string) (*model.Order, error)
}

type saleorClientImpl struct {
	httpClient *http.Client
	apiURL     string
}

func NewSaleorClient(apiURL string) SaleorClient {
	return &saleorClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiURL: apiURL,
	}
}

const checkoutFields = `
	id
	email
	isShippingRequired
	totalPrice { gross { amount currency } }
	billingAddress { firstName lastName streetAddress1 city postalCode country }
	shippingAddress { firstName lastName streetAddress1 city postalCode country }
	lines { id quantity variantName totalPrice { gross { amount currency } } }
	availablePaymentGateways { id name }
`

const checkoutQuery = `
	query Checkout($id: ID!) {
		checkout(id: $id) {` + checkoutFields + `}
	}
`

const transactionInitializeMutation = `
	mutation TransactionInitialize($checkoutId: ID!, $paymentGateway: PaymentGatewayToInitialize!) {
		transactionInitialize(id: $checkoutId, paymentGateway: $paymentGateway) {
			transaction { id }
			errors { field message code }
		}
	}
`

const transactionProcessMutation = `
	mutation TransactionProcess($id: ID!, $data: JSON) {
		transactionProcess(id: $id, data: $data) {
			transaction { id }
			transactionEvent { id type }
			errors { field message code }
		}
	}
`

const checkoutCompleteMutation = `
	mutation CheckoutComplete($checkoutId: ID!) {
		checkoutComplete(id: $checkoutId) {
			order { id token number }
			errors { field message code }
		}
	}
`

const orderByTokenQuery = `
	query OrderByToken($token: UUID!) {
		orderByToken(token: $token) {
			id
			token
			number
			userEmail
			total { gross { amount currency } }
			billingAddress { firstName lastName streetAddress1 city postalCode country }
			shippingAddress { firstName lastName streetAddress1 city postalCode country }
			lines { id quantity variantName totalPrice { gross { amount currency } } }
		}
	}
`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// do posts a GraphQL document and decodes the data payload into out.
// Transport failures and top-level GraphQL errors come back as errors;
// mutation-level error lists are left for the caller to inspect.
func (c *saleorClientImpl) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("saleor error %d: %s", resp.StatusCode, string(b))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode saleor response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("saleor graphql error: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode saleor data: %w", err)
	}
	return nil
}

func (c *saleorClientImpl) GetCheckout(ctx context.Context, checkoutID string) (*model.Checkout, error) {
	var data struct {
		Checkout *model.Checkout `json:"checkout"`
	}
	err := c.do(ctx, checkoutQuery, map[string]any{"id": checkoutID}, &data)
	if err != nil {
		return nil, fmt.Errorf("fetch checkout: %w", err)
	}
	if data.Checkout == nil {
		return nil, fmt.Errorf("checkout %s not found", checkoutID)
	}
	return data.Checkout, nil
}

func (c *saleorClientImpl) TransactionInitialize(ctx context.Context, checkoutID, gatewayID string, data map[string]any) (*model.TransactionInitializeResult, error) {
	var payload struct {
		TransactionInitialize *model.TransactionInitializeResult `json:"transactionInitialize"`
	}
	err := c.do(ctx, transactionInitializeMutation, map[string]any{
		"checkoutId": checkoutID,
		"paymentGateway": map[string]any{
			"id":   gatewayID,
			"data": data,
		},
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("transaction initialize: %w", err)
	}
	if payload.TransactionInitialize == nil {
		return nil, fmt.Errorf("transaction initialize: empty payload")
	}
	return payload.TransactionInitialize, nil
}

func (c *saleorClientImpl) TransactionProcess(ctx context.Context, transactionID string, data map[string]any) (*model.TransactionProcessResult, error) {
	var payload struct {
		TransactionProcess *model.TransactionProcessResult `json:"transactionProcess"`
	}
	err := c.do(ctx, transactionProcessMutation, map[string]any{
		"id":   transactionID,
		"data": data,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("transaction process: %w", err)
	}
	if payload.TransactionProcess == nil {
		return nil, fmt.Errorf("transaction process: empty payload")
	}
	return payload.TransactionProcess, nil
}

func (c *saleorClientImpl) CheckoutComplete(ctx context.Context, checkoutID string) (*model.CheckoutCompleteResult, error) {
	var payload struct {
		CheckoutComplete *model.CheckoutCompleteResult `json:"checkoutComplete"`
	}
	err := c.do(ctx, checkoutCompleteMutation, map[string]any{"checkoutId": checkoutID}, &payload)
	if err != nil {
		return nil, fmt.Errorf("checkout complete: %w", err)
	}
	if payload.CheckoutComplete == nil {
		return nil, fmt.Errorf("checkout complete: empty payload")
	}
	return payload.CheckoutComplete, nil
}

func (c *saleorClientImpl) OrderByToken(ctx context.Context, token string) (*model.Order, error) {
	var data struct {
		OrderByToken *model.Order `json:"orderByToken"`
	}
	err := c.do(ctx, orderByTokenQuery, map[string]any{"token": token}, &data)
	if err != nil {
		return nil, fmt.Errorf("fetch order by token: %w", err)
	}
	if data.OrderByToken == nil {
		return nil, fmt.Errorf("order %s not found", token)
	}
	return data.OrderByToken, nil
}
