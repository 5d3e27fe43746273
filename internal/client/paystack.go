package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paystack-storefront/internal/config"
	"paystack-storefront/internal/model"
)

// PaystackClient talks to the Paystack app's hosted-payment endpoints.
type PaystackClient interface {
	InitializePayment(ctx context.Context, req *model.InitializePaymentRequest) (*model.InitializePaymentResponse, error)
	VerifyPayment(ctx context.Context, reference string) (*model.VerifyPaymentResponse, error)
}

type paystackClientImpl struct {
	httpClient *http.Client
	baseURL    string
	publicKey  string
}

func NewPaystackClient(cfg *config.Paystack) PaystackClient {
	return &paystackClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   strings.TrimSuffix(cfg.AppBaseURL, "/"),
		publicKey: cfg.PublicKey,
	}
}

func (c *paystackClientImpl) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
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
		return fmt.Errorf("paystack error %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paystack response: %w", err)
	}
	return nil
}

func (c *paystackClientImpl) InitializePayment(ctx context.Context, req *model.InitializePaymentRequest) (*model.InitializePaymentResponse, error) {
	var result model.InitializePaymentResponse
	if err := c.post(ctx, "/api/initialize-payment", req, &result); err != nil {
		return nil, err
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack initialize rejected: %s", result.Message)
	}
	if result.HostedPageURL() == "" {
		return nil, fmt.Errorf("paystack initialize returned no authorization url")
	}
	return &result, nil
}

func (c *paystackClientImpl) VerifyPayment(ctx context.Context, reference string) (*model.VerifyPaymentResponse, error) {
	var result model.VerifyPaymentResponse
	err := c.post(ctx, "/api/verify-payment", &model.VerifyPaymentRequest{Reference: reference}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
