package service

import (
	"context"
	"errors"
	"testing"

	"paystack-storefront/internal/client"
	"paystack-storefront/internal/config"
	"paystack-storefront/internal/dto"
	"paystack-storefront/internal/model"
	"paystack-storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

// ---- fakes ----

type fakeSaleorClient struct {
	checkout       *model.Checkout
	checkoutErr    error
	initResult     *model.TransactionInitializeResult
	initErr        error
	processResult  *model.TransactionProcessResult
	processErr     error
	completeResult *model.CheckoutCompleteResult
	completeErr    error
	order          *model.Order

	checkoutCalls int
	initCalls     int
	processCalls  int
	completeCalls int

	lastInitData    map[string]any
	lastProcessData map[string]any
}

func (f *fakeSaleorClient) GetCheckout(_ context.Context, _ string) (*model.Checkout, error) {
	f.checkoutCalls++
	return f.checkout, f.checkoutErr
}

func (f *fakeSaleorClient) TransactionInitialize(_ context.Context, _, _ string, data map[string]any) (*model.TransactionInitializeResult, error) {
	f.initCalls++
	f.lastInitData = data
	return f.initResult, f.initErr
}

func (f *fakeSaleorClient) TransactionProcess(_ context.Context, _ string, data map[string]any) (*model.TransactionProcessResult, error) {
	f.processCalls++
	f.lastProcessData = data
	return f.processResult, f.processErr
}

func (f *fakeSaleorClient) CheckoutComplete(_ context.Context, _ string) (*model.CheckoutCompleteResult, error) {
	f.completeCalls++
	return f.completeResult, f.completeErr
}

func (f *fakeSaleorClient) OrderByToken(_ context.Context, _ string) (*model.Order, error) {
	return f.order, nil
}

type fakePaystackClient struct {
	initResp   *model.InitializePaymentResponse
	initErr    error
	verifyResp *model.VerifyPaymentResponse
	verifyErr  error

	initCalls    int
	verifyCalls  int
	lastInitReq  *model.InitializePaymentRequest
	onInitialize func(*model.InitializePaymentRequest)
}

func (f *fakePaystackClient) InitializePayment(_ context.Context, req *model.InitializePaymentRequest) (*model.InitializePaymentResponse, error) {
	f.initCalls++
	f.lastInitReq = req
	if f.onInitialize != nil {
		f.onInitialize(req)
	}
	return f.initResp, f.initErr
}

func (f *fakePaystackClient) VerifyPayment(_ context.Context, _ string) (*model.VerifyPaymentResponse, error) {
	f.verifyCalls++
	return f.verifyResp, f.verifyErr
}

// ---- fixture ----

type paymentFixture struct {
	svc      PaymentService
	saleor   *fakeSaleorClient
	paystack *fakePaystackClient
	sessions repository.SessionRepository
	events   repository.CallbackEventRepository
	cfg      *config.Paystack
	db       *gorm.DB
}

func testPaystackConfig() *config.Paystack {
	return &config.Paystack{
		Enabled:          true,
		PublicKey:        "pk_test_123",
		AppBaseURL:       "https://paystack-app.example.com",
		GatewayID:        "app.paystack.storefront",
		TargetCurrency:   "GHS",
		USDToTargetRate:  "14.5",
		SettlementPolicy: "at-least",
	}
}

func testCheckout() *model.Checkout {
	return &model.Checkout{
		ID:         "abc123",
		Email:      "ama@example.com",
		TotalPrice: model.TaxedMoney{Gross: money("150.00", "GHS")},
		Lines:      []model.CheckoutLine{{ID: "line-1", Quantity: 1}},
		AvailablePaymentGateways: []model.PaymentGateway{
			{ID: "app.paystack.storefront", Name: "Paystack"},
		},
	}
}

func newPaymentFixture(t *testing.T, cfg *config.Paystack) *paymentFixture {
	t.Helper()

	db, err := client.InitDBClient("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM payment_sessions")
		db.Exec("DELETE FROM callback_events")
	})

	converter, err := NewCurrencyConverter(cfg)
	require.NoError(t, err)

	saleor := &fakeSaleorClient{
		checkout:   testCheckout(),
		initResult: &model.TransactionInitializeResult{Transaction: &model.Transaction{ID: "txn-1"}},
		processResult: &model.TransactionProcessResult{
			TransactionEvent: &model.TransactionEvent{ID: "ev-1", Type: "CHARGE_SUCCESS"},
		},
		completeResult: &model.CheckoutCompleteResult{Order: &model.Order{ID: "ord-id", Token: "ord_789"}},
	}
	paystack := &fakePaystackClient{
		initResp: &model.InitializePaymentResponse{
			Status: true,
			Data:   &model.InitializePaymentData{AuthorizationURL: "https://checkout.paystack.com/xyz"},
		},
		verifyResp: &model.VerifyPaymentResponse{
			Status: true,
			Data:   &model.VerifyPaymentData{Status: "success", Amount: 15000, Currency: "GHS"},
		},
	}

	sessions := repository.NewSessionRepository(db)
	events := repository.NewCallbackEventRepository(db)

	svc := NewPaymentService(
		db, zap.NewNop().Sugar(),
		saleor, paystack,
		sessions, events,
		converter, cfg,
		"https://shop.example.com",
		"default-channel",
	)

	return &paymentFixture{
		svc:      svc,
		saleor:   saleor,
		paystack: paystack,
		sessions: sessions,
		events:   events,
		cfg:      cfg,
		db:       db,
	}
}

func (f *paymentFixture) seedSession(t *testing.T, sessionID string) {
	t.Helper()
	err := f.sessions.Put(context.Background(), &model.PaymentSession{
		SessionID:     sessionID,
		CheckoutID:    "abc123",
		TransactionID: "txn-1",
		Reference:     "checkout-abc123-1700000000000",
		Snapshot:      `{"id":"abc123","amount":"150.00","currency":"GHS"}`,
	})
	require.NoError(t, err)
}

func successParams() dto.CallbackParams {
	return dto.CallbackParams{
		PaymentStatus: "success",
		Reference:     "checkout-abc123-1700000000000",
		Channel:       "default-channel",
	}
}

// ---- payment initiation ----

func TestInitiatePayment_PersistsSessionBeforeNavigate(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()

	var persistedAtNavigate *model.PaymentSession
	f.paystack.onInitialize = func(_ *model.InitializePaymentRequest) {
		session, err := f.sessions.Get(ctx, "sess-1")
		require.NoError(t, err)
		persistedAtNavigate = session
	}

	result, err := f.svc.InitiatePayment(ctx, "sess-1", &dto.PayRequest{CheckoutID: "abc123"})
	require.NoError(t, err)

	// Both ids were durable before the hosted-page URL existed.
	require.NotNil(t, persistedAtNavigate)
	assert.Equal(t, "abc123", persistedAtNavigate.CheckoutID)
	assert.Equal(t, "txn-1", persistedAtNavigate.TransactionID)

	assert.Equal(t, "txn-1", result.TransactionID)
	assert.Equal(t, "https://checkout.paystack.com/xyz", result.AuthorizationURL)

	checkoutID, err := ParseReference(result.Reference)
	require.NoError(t, err)
	assert.Equal(t, "abc123", checkoutID)
}

func TestInitiatePayment_BackendRejection(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()

	f.saleor.initResult = &model.TransactionInitializeResult{
		Errors: []model.SaleorError{{Message: "gateway rejected configuration"}},
	}

	_, err := f.svc.InitiatePayment(ctx, "sess-1", &dto.PayRequest{CheckoutID: "abc123"})
	require.Error(t, err)

	// No partial state, no navigation.
	session, getErr := f.sessions.Get(ctx, "sess-1")
	require.NoError(t, getErr)
	assert.Nil(t, session)
	assert.Equal(t, 0, f.paystack.initCalls)
}

func TestInitiatePayment_GatewayNotConfigured(t *testing.T) {
	cfg := testPaystackConfig()
	cfg.PublicKey = ""
	f := newPaymentFixture(t, cfg)

	_, err := f.svc.InitiatePayment(context.Background(), "sess-1", &dto.PayRequest{CheckoutID: "abc123"})
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
	assert.Equal(t, 0, f.saleor.checkoutCalls)
}

func TestInitiatePayment_GatewayNotOffered(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.saleor.checkout.AvailablePaymentGateways = []model.PaymentGateway{
		{ID: "mirumee.payments.dummy", Name: "Dummy"},
	}

	_, err := f.svc.InitiatePayment(context.Background(), "sess-1", &dto.PayRequest{CheckoutID: "abc123"})
	assert.ErrorIs(t, err, ErrGatewayNotAvailable)
	assert.Equal(t, 0, f.saleor.initCalls)
}

func TestInitiatePayment_HostedPageFailureClearsSession(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()

	f.paystack.initResp = nil
	f.paystack.initErr = errors.New("app unreachable")

	_, err := f.svc.InitiatePayment(ctx, "sess-1", &dto.PayRequest{CheckoutID: "abc123"})
	require.Error(t, err)

	session, getErr := f.sessions.Get(ctx, "sess-1")
	require.NoError(t, getErr)
	assert.Nil(t, session)
}

func TestInitiatePayment_CurrencyBridging(t *testing.T) {
	cfg := testPaystackConfig()
	cfg.CurrencyConversionEnabled = true
	f := newPaymentFixture(t, cfg)

	f.saleor.checkout.TotalPrice = model.TaxedMoney{Gross: money("10.00", "USD")}

	_, err := f.svc.InitiatePayment(context.Background(), "sess-1", &dto.PayRequest{CheckoutID: "abc123"})
	require.NoError(t, err)

	// Gateway sees the bridged amount in minor units; the backend keeps the
	// checkout's own currency.
	require.NotNil(t, f.paystack.lastInitReq)
	assert.Equal(t, int64(14500), f.paystack.lastInitReq.Amount)
	assert.Equal(t, "GHS", f.paystack.lastInitReq.Currency)
	assert.Equal(t, "10.00", f.saleor.lastInitData["amount"])
	assert.Equal(t, "USD", f.saleor.lastInitData["currency"])
}

func TestInitiatePayment_HyphenatedCheckoutID(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.saleor.checkout.ID = "abc-123"

	result, err := f.svc.InitiatePayment(context.Background(), "sess-1", &dto.PayRequest{CheckoutID: "abc-123"})
	require.NoError(t, err)

	checkoutID, err := ParseReference(result.Reference)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", checkoutID)
}

// ---- callback protocol ----

func TestCompleteCallback_HappyPath(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()
	f.seedSession(t, "sess-1")

	result := f.svc.CompleteCallback(ctx, "sess-1", successParams())

	assert.Equal(t, stateRedirecting, result.State)
	assert.Equal(t, "ord_789", result.OrderToken)
	assert.Equal(t, "/default-channel/order/ord_789", result.RedirectURL)
	assert.Empty(t, result.ErrorCode)

	assert.Equal(t, 1, f.saleor.processCalls)
	assert.Equal(t, 1, f.saleor.completeCalls)

	// Session cleared, terminal state recorded.
	session, err := f.sessions.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, session)

	event, err := f.events.Find(ctx, "checkout-abc123-1700000000000")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, stateRedirecting, event.State)
	assert.Equal(t, "ord_789", event.OrderToken)
}

func TestCompleteCallback_ProcessorErrors(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()
	f.seedSession(t, "sess-1")

	f.saleor.processResult = &model.TransactionProcessResult{
		Errors: []model.SaleorError{{Message: "event rejected"}},
	}

	result := f.svc.CompleteCallback(ctx, "sess-1", successParams())

	assert.Equal(t, stateFailed, result.State)
	assert.Equal(t, dto.ErrCodeProcessingFailed, result.ErrorCode)
	assert.Equal(t, "/checkout?error=payment_processing_failed", result.RedirectURL)
	assert.Equal(t, 0, f.saleor.completeCalls)

	session, err := f.sessions.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestCompleteCallback_StrictEventType(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.seedSession(t, "sess-1")

	// Empty error list, wrong event type: still a failure.
	f.saleor.processResult = &model.TransactionProcessResult{
		TransactionEvent: &model.TransactionEvent{ID: "ev-1", Type: "CHARGE_FAILURE"},
	}

	result := f.svc.CompleteCallback(context.Background(), "sess-1", successParams())

	assert.Equal(t, dto.ErrCodeProcessingFailed, result.ErrorCode)
	assert.Equal(t, 0, f.saleor.completeCalls)
}

func TestCompleteCallback_MissingContextFailsClosed(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())

	result := f.svc.CompleteCallback(context.Background(), "sess-absent", dto.CallbackParams{
		PaymentStatus: "success",
		Reference:     "PAYREF-12345",
	})

	assert.Equal(t, stateFailed, result.State)
	assert.Equal(t, dto.ErrCodeMissingData, result.ErrorCode)
	assert.Equal(t, "/checkout?error=missing_data", result.RedirectURL)

	// Zero network calls of any kind.
	assert.Equal(t, 0, f.saleor.processCalls)
	assert.Equal(t, 0, f.saleor.completeCalls)
	assert.Equal(t, 0, f.saleor.checkoutCalls)
	assert.Equal(t, 0, f.paystack.verifyCalls)
}

func TestCompleteCallback_ReferenceAloneIsNotEnough(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())

	// Checkout id is recoverable from the reference, but there is no
	// transaction id anywhere: fail closed, no backend calls.
	result := f.svc.CompleteCallback(context.Background(), "sess-absent", successParams())

	assert.Equal(t, dto.ErrCodeMissingData, result.ErrorCode)
	assert.Equal(t, 0, f.saleor.processCalls)
	assert.Equal(t, 0, f.saleor.completeCalls)
}

func TestCompleteCallback_DoubleInvocation(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()
	f.seedSession(t, "sess-1")

	first := f.svc.CompleteCallback(ctx, "sess-1", successParams())
	require.Equal(t, stateRedirecting, first.State)

	// Back-button re-entry: session already cleared, so the second run
	// short-circuits at the missing-context check without touching the
	// backend again.
	second := f.svc.CompleteCallback(ctx, "sess-1", successParams())

	assert.Equal(t, dto.ErrCodeMissingData, second.ErrorCode)
	assert.Equal(t, 1, f.saleor.processCalls)
	assert.Equal(t, 1, f.saleor.completeCalls)
}

func TestCompleteCallback_LedgerReplay(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()
	f.seedSession(t, "sess-1")

	first := f.svc.CompleteCallback(ctx, "sess-1", successParams())
	require.Equal(t, stateRedirecting, first.State)

	// A re-run that somehow still has its session replays the recorded
	// terminal state instead of re-running mutations.
	f.seedSession(t, "sess-1")
	second := f.svc.CompleteCallback(ctx, "sess-1", successParams())

	assert.Equal(t, stateRedirecting, second.State)
	assert.Equal(t, first.RedirectURL, second.RedirectURL)
	assert.Equal(t, 1, f.saleor.processCalls)
	assert.Equal(t, 1, f.saleor.completeCalls)
}

func TestCompleteCallback_VerificationSoftFailure(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.seedSession(t, "sess-1")

	f.paystack.verifyResp = nil
	f.paystack.verifyErr = errors.New("blocked by CORS")

	result := f.svc.CompleteCallback(context.Background(), "sess-1", successParams())

	// Verification is advisory; the run proceeds to a settled order.
	assert.Equal(t, stateRedirecting, result.State)
	assert.Equal(t, 1, f.saleor.processCalls)
}

func TestCompleteCallback_SettlementPolicyExact(t *testing.T) {
	cfg := testPaystackConfig()
	cfg.SettlementPolicy = "exact"
	f := newPaymentFixture(t, cfg)
	f.seedSession(t, "sess-1")

	f.paystack.verifyResp = &model.VerifyPaymentResponse{
		Status: true,
		Data:   &model.VerifyPaymentData{Status: "success", Amount: 14999, Currency: "GHS"},
	}

	result := f.svc.CompleteCallback(context.Background(), "sess-1", successParams())

	assert.Equal(t, dto.ErrCodePaymentFailed, result.ErrorCode)
	assert.Equal(t, 0, f.saleor.processCalls)
}

func TestCompleteCallback_SettlementPolicyAtLeastAllowsOverpayment(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.seedSession(t, "sess-1")

	f.paystack.verifyResp = &model.VerifyPaymentResponse{
		Status: true,
		Data:   &model.VerifyPaymentData{Status: "success", Amount: 16000, Currency: "GHS"},
	}

	result := f.svc.CompleteCallback(context.Background(), "sess-1", successParams())
	assert.Equal(t, stateRedirecting, result.State)
}

func TestCompleteCallback_CompletionPaymentValidation(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.seedSession(t, "sess-1")

	f.saleor.completeResult = &model.CheckoutCompleteResult{
		Errors: []model.SaleorError{{Message: "Provided payment methods can not cover the checkout's total amount"}},
	}

	result := f.svc.CompleteCallback(context.Background(), "sess-1", successParams())

	assert.Equal(t, dto.ErrCodePaymentFailed, result.ErrorCode)
	assert.Equal(t, "/checkout?error=payment_failed", result.RedirectURL)
}

func TestCompleteCallback_PaymentCoverageClassified(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.seedSession(t, "sess-1")

	core, logs := observer.New(zap.ErrorLevel)
	converter, err := NewCurrencyConverter(f.cfg)
	require.NoError(t, err)
	svc := NewPaymentService(
		f.db, zap.New(core).Sugar(),
		f.saleor, f.paystack,
		f.sessions, f.events,
		converter, f.cfg,
		"https://shop.example.com",
		"default-channel",
	)

	f.saleor.completeResult = &model.CheckoutCompleteResult{
		Errors: []model.SaleorError{{Message: "Provided payment methods can not cover the checkout's total amount"}},
	}

	result := svc.CompleteCallback(context.Background(), "sess-1", successParams())
	assert.Equal(t, dto.ErrCodePaymentFailed, result.ErrorCode)

	entries := logs.FilterMessage("checkout completion rejected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["payment_related"])
}

func TestCompleteCallback_CompletionWithoutOrder(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.seedSession(t, "sess-1")

	// No errors and no order: backend inconsistency, never a success.
	f.saleor.completeResult = &model.CheckoutCompleteResult{}

	result := f.svc.CompleteCallback(context.Background(), "sess-1", successParams())

	assert.Equal(t, stateFailed, result.State)
	assert.Equal(t, dto.ErrCodePaymentFailed, result.ErrorCode)
}

func TestCompleteCallback_CorruptSnapshotTolerated(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	ctx := context.Background()

	err := f.sessions.Put(ctx, &model.PaymentSession{
		SessionID:     "sess-1",
		CheckoutID:    "abc123",
		TransactionID: "txn-1",
		Reference:     "checkout-abc123-1700000000000",
		Snapshot:      `{"id":"abc123",`,
	})
	require.NoError(t, err)

	result := f.svc.CompleteCallback(ctx, "sess-1", successParams())

	// Identifiers on the row are enough; the corrupt snapshot is dropped.
	assert.Equal(t, stateRedirecting, result.State)
}

func TestCompleteCallback_EntryConditionNotMet(t *testing.T) {
	f := newPaymentFixture(t, testPaystackConfig())
	f.seedSession(t, "sess-1")

	result := f.svc.CompleteCallback(context.Background(), "sess-1", dto.CallbackParams{
		PaymentStatus: "cancelled",
		Reference:     "checkout-abc123-1700000000000",
	})

	assert.Equal(t, dto.ErrCodeMissingData, result.ErrorCode)
	assert.Equal(t, 0, f.saleor.processCalls)
}
