package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paystack-storefront/internal/client"
	"paystack-storefront/internal/config"
	"paystack-storefront/internal/dto"
	"paystack-storefront/internal/model"
	"paystack-storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Callback states. Terminal states clear the session; nothing transitions
// back to awaitingCallback.
const (
	stateAwaitingCallback = "awaitingCallback"
	stateVerifying        = "verifying"
	stateProcessing       = "processingTransaction"
	stateCompleting       = "completingCheckout"
	stateRedirecting      = "redirecting"
	stateFailed           = "failed"
)

// Event types that count as a settled transaction. Anything else is a
// failure even when the backend reports no errors.
var allowedEventTypes = map[string]bool{
	"CHARGE_SUCCESS":        true,
	"AUTHORIZATION_SUCCESS": true,
}

var (
	ErrGatewayNotConfigured = errors.New("paystack gateway is not configured")
	ErrGatewayNotAvailable  = errors.New("paystack gateway is not available for this checkout")
)

const fallbackEmail = "customer@example.com"

type PaymentService interface {
	InitiatePayment(ctx context.Context, sessionID string, req *dto.PayRequest) (*dto.PayResponse, error)
	CompleteCallback(ctx context.Context, sessionID string, params dto.CallbackParams) *dto.CallbackResult
}

type paymentServiceImpl struct {
	db             *gorm.DB
	logger         *zap.SugaredLogger
	saleorClient   client.SaleorClient
	paystackClient client.PaystackClient
	sessions       repository.SessionRepository
	callbackEvents repository.CallbackEventRepository
	converter      *CurrencyConverter
	paystackCfg    *config.Paystack
	baseURL        string
	defaultChannel string
}

func NewPaymentService(
	db *gorm.DB,
	logger *zap.SugaredLogger,
	saleorClient client.SaleorClient,
	paystackClient client.PaystackClient,
	sessions repository.SessionRepository,
	callbackEvents repository.CallbackEventRepository,
	converter *CurrencyConverter,
	paystackCfg *config.Paystack,
	baseURL string,
	defaultChannel string,
) PaymentService {
	return &paymentServiceImpl{
		db:             db,
		logger:         logger,
		saleorClient:   saleorClient,
		paystackClient: paystackClient,
		sessions:       sessions,
		callbackEvents: callbackEvents,
		converter:      converter,
		paystackCfg:    paystackCfg,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		defaultChannel: defaultChannel,
	}
}

// InitiatePayment creates the backend transaction and the hosted-page URL
// for one payment attempt. The session record is flushed before the redirect
// target is handed back; once the browser navigates, that record is all the
// callback has to resume from.
func (s *paymentServiceImpl) InitiatePayment(ctx context.Context, sessionID string, req *dto.PayRequest) (*dto.PayResponse, error) {
	if !s.paystackCfg.Ready() {
		return nil, ErrGatewayNotConfigured
	}

	// Refresh the checkout: delivery or address changes may have moved the
	// total since the page was rendered.
	checkout, err := s.saleorClient.GetCheckout(ctx, req.CheckoutID)
	if err != nil {
		return nil, fmt.Errorf("refresh checkout: %w", err)
	}
	if !s.gatewayAvailable(checkout.AvailablePaymentGateways) {
		return nil, ErrGatewayNotAvailable
	}

	reference, err := GenerateReferenceSafe(checkout.ID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate payment reference: %w", err)
	}

	total := checkout.TotalPrice.Gross
	gatewayAmount := s.converter.Convert(total)
	email := checkout.Email
	if email == "" {
		email = fallbackEmail
	}

	initResult, err := s.saleorClient.TransactionInitialize(ctx, checkout.ID, s.paystackCfg.GatewayID, map[string]any{
		"amount":    total.Amount.StringFixed(2),
		"currency":  total.Currency,
		"email":     email,
		"reference": reference,
		"publicKey": s.paystackCfg.PublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}
	if len(initResult.Errors) > 0 {
		return nil, fmt.Errorf("transaction initialize rejected: %s", joinErrors(initResult.Errors))
	}
	if initResult.Transaction == nil {
		return nil, fmt.Errorf("transaction initialize returned no transaction")
	}

	snapshot, err := json.Marshal(model.CheckoutSnapshot{
		ID:         checkout.ID,
		Amount:     total.Amount.StringFixed(2),
		Currency:   total.Currency,
		Email:      checkout.Email,
		GatewayIDs: gatewayIDs(checkout.AvailablePaymentGateways),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout snapshot: %w", err)
	}

	// Persisted before the redirect URL leaves this function. A failed write
	// means no navigation and no partial state.
	session := &model.PaymentSession{
		SessionID:     sessionID,
		CheckoutID:    checkout.ID,
		TransactionID: initResult.Transaction.ID,
		Reference:     reference,
		Snapshot:      string(snapshot),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("persist payment session: %w", err)
	}

	channel := req.Channel
	if channel == "" {
		channel = s.defaultChannel
	}
	psResp, err := s.paystackClient.InitializePayment(ctx, &model.InitializePaymentRequest{
		Email:       email,
		Amount:      MinorUnits(gatewayAmount.Amount),
		Currency:    gatewayAmount.Currency,
		Reference:   reference,
		CallbackURL: s.baseURL + "/checkout/paystack/callback?paymentStatus=success",
		Metadata: map[string]string{
			"checkout_id":    checkout.ID,
			"transaction_id": initResult.Transaction.ID,
			"channel":        channel,
		},
	})
	if err != nil {
		if rmErr := s.sessions.Remove(ctx, nil, sessionID); rmErr != nil {
			s.logger.Errorw("remove session after failed gateway init", "session_id", sessionID, "error", rmErr)
		}
		return nil, fmt.Errorf("initialize hosted payment: %w", err)
	}

	s.logger.Infow("payment initiated",
		"checkout_id", checkout.ID,
		"transaction_id", initResult.Transaction.ID,
		"reference", reference,
		"amount", gatewayAmount.Amount.StringFixed(2),
		"currency", gatewayAmount.Currency,
	)

	return &dto.PayResponse{
		TransactionID:    initResult.Transaction.ID,
		Reference:        reference,
		AuthorizationURL: psResp.HostedPageURL(),
	}, nil
}

// callbackRun tracks one pass through the completion protocol.
type callbackRun struct {
	state      string
	reference  string
	channel    string
	sessionID  string
	checkoutID string
}

func (r *callbackRun) to(state string) {
	r.state = state
}

// CompleteCallback drives the gateway return leg:
// recover context → verify (best effort) → process transaction → complete
// checkout → redirect. Every failure is converted into a checkout redirect
// with an error code; nothing escapes as an HTTP error.
func (s *paymentServiceImpl) CompleteCallback(ctx context.Context, sessionID string, params dto.CallbackParams) *dto.CallbackResult {
	run := &callbackRun{
		state:     stateAwaitingCallback,
		reference: params.PaymentReference(),
		channel:   params.Channel,
		sessionID: sessionID,
	}
	if run.channel == "" {
		run.channel = s.defaultChannel
	}

	if !params.Success() {
		s.logger.Warnw("callback invoked without success parameters", "session_id", sessionID)
		return s.fail(ctx, run, dto.ErrCodeMissingData)
	}

	// Recover the pending transaction context. The session store is primary;
	// the reference pattern is the only fallback for checkout identity and
	// cannot recover a transaction id, so a missing session fails closed
	// before any backend call.
	var transactionID string
	var snapshot *model.CheckoutSnapshot

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Errorw("read payment session", "session_id", sessionID, "error", err)
	}
	if session != nil {
		run.checkoutID = session.CheckoutID
		transactionID = session.TransactionID
		snap, snapErr := session.DecodeSnapshot()
		if snapErr != nil {
			s.logger.Warnw("corrupt checkout snapshot, continuing without it",
				"session_id", sessionID, "error", snapErr)
		}
		snapshot = snap
	}
	if run.checkoutID == "" {
		recovered, parseErr := ParseReference(run.reference)
		if parseErr != nil {
			s.logger.Warnw("payment reference not recoverable", "reference", run.reference, "error", parseErr)
		} else {
			run.checkoutID = recovered
		}
	}
	if run.checkoutID == "" || transactionID == "" {
		s.logger.Warnw("missing payment context, failing closed",
			"session_id", sessionID,
			"has_checkout_id", run.checkoutID != "",
			"has_transaction_id", transactionID != "",
		)
		return s.fail(ctx, run, dto.ErrCodeMissingData)
	}

	// Re-invocation guard: a reference that already reached a terminal state
	// replays that state instead of re-running backend mutations.
	if prior, findErr := s.callbackEvents.Find(ctx, run.reference); findErr != nil {
		s.logger.Errorw("read callback ledger", "reference", run.reference, "error", findErr)
	} else if prior != nil {
		s.logger.Infow("callback replayed from ledger", "reference", run.reference, "state", prior.State)
		s.clearSession(ctx, nil, sessionID)
		return &dto.CallbackResult{
			State:       prior.State,
			RedirectURL: prior.RedirectURL,
			OrderToken:  prior.OrderToken,
			ErrorCode:   prior.ErrorCode,
		}
	}

	// Best-effort gateway verification. The backend's transaction record is
	// the source of truth; a verify failure is logged and the run proceeds.
	run.to(stateVerifying)
	verify, verifyErr := s.paystackClient.VerifyPayment(ctx, run.reference)
	switch {
	case verifyErr != nil:
		s.logger.Warnw("payment verification unavailable, proceeding", "reference", run.reference, "error", verifyErr)
	case !verify.Verified():
		s.logger.Warnw("gateway did not confirm payment, proceeding", "reference", run.reference, "message", verify.Message)
	default:
		if !s.settlementCovers(verify.Data, snapshot) {
			s.logger.Errorw("settled amount violates settlement policy",
				"reference", run.reference,
				"policy", s.paystackCfg.SettlementPolicy,
				"settled_minor", verify.Data.Amount,
			)
			return s.fail(ctx, run, dto.ErrCodePaymentFailed)
		}
	}

	// Register the processing event. Strict event-type check: an empty error
	// list does not make an unexpected event type a success.
	run.to(stateProcessing)
	processData := map[string]any{
		"reference":      run.reference,
		"trxref":         params.Trxref,
		"paystackStatus": "success",
	}
	if snapshot != nil {
		processData["amount"] = snapshot.Amount
		processData["currency"] = snapshot.Currency
	}
	processResult, err := s.saleorClient.TransactionProcess(ctx, transactionID, processData)
	if err != nil {
		s.logger.Errorw("transaction process failed", "transaction_id", transactionID, "error", err)
		return s.fail(ctx, run, dto.ErrCodeProcessingFailed)
	}
	if len(processResult.Errors) > 0 {
		s.logger.Errorw("transaction process rejected",
			"transaction_id", transactionID, "errors", joinErrors(processResult.Errors))
		return s.fail(ctx, run, dto.ErrCodeProcessingFailed)
	}
	event := processResult.TransactionEvent
	if event == nil || !allowedEventTypes[event.Type] {
		eventType := ""
		if event != nil {
			eventType = event.Type
		}
		s.logger.Errorw("transaction event type not accepted",
			"transaction_id", transactionID, "event_type", eventType)
		return s.fail(ctx, run, dto.ErrCodeProcessingFailed)
	}

	// The processed transaction now covers the checkout; complete it with no
	// payment data attached.
	run.to(stateCompleting)
	completeResult, err := s.saleorClient.CheckoutComplete(ctx, run.checkoutID)
	if err != nil {
		s.logger.Errorw("checkout complete failed", "checkout_id", run.checkoutID, "error", err)
		return s.fail(ctx, run, dto.ErrCodePaymentFailed)
	}
	if len(completeResult.Errors) > 0 {
		// payment_related separates coverage failures (retry payment) from
		// checkout-shape failures (fix the checkout).
		s.logger.Errorw("checkout completion rejected",
			"checkout_id", run.checkoutID,
			"payment_related", paymentRelated(completeResult.Errors),
			"errors", joinErrors(completeResult.Errors))
		return s.fail(ctx, run, dto.ErrCodePaymentFailed)
	}
	order := completeResult.Order
	if order == nil || order.Token == "" {
		// No errors reported and no order either: backend inconsistency.
		s.logger.Errorw("checkout complete returned no order", "checkout_id", run.checkoutID)
		return s.fail(ctx, run, dto.ErrCodePaymentFailed)
	}

	run.to(stateRedirecting)
	result := &dto.CallbackResult{
		State:       stateRedirecting,
		OrderToken:  order.Token,
		RedirectURL: fmt.Sprintf("/%s/order/%s", run.channel, order.Token),
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.callbackEvents.Record(ctx, tx, &model.CallbackEvent{
			Reference:   run.reference,
			State:       stateRedirecting,
			OrderToken:  order.Token,
			RedirectURL: result.RedirectURL,
		}); err != nil {
			return fmt.Errorf("record callback event: %w", err)
		}
		return s.sessions.Remove(ctx, tx, sessionID)
	})
	if txErr != nil {
		// The order exists; losing the ledger row only weakens replay, so
		// the user still gets their confirmation.
		s.logger.Errorw("settle callback bookkeeping", "reference", run.reference, "error", txErr)
	}

	s.logger.Infow("checkout completed",
		"checkout_id", run.checkoutID,
		"order_token", order.Token,
		"reference", run.reference,
	)
	return result
}

// fail converts any protocol failure into a checkout redirect and clears the
// session so a later attempt starts fresh. Runs that already touched backend
// mutations are recorded in the ledger; missing-context exits are not, so a
// user who lands in the right tab can still retry.
func (s *paymentServiceImpl) fail(ctx context.Context, run *callbackRun, errorCode string) *dto.CallbackResult {
	reachedBackend := run.state == stateProcessing || run.state == stateCompleting
	run.to(stateFailed)

	redirectURL := "/checkout?error=" + errorCode
	if reachedBackend && run.reference != "" {
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.callbackEvents.Record(ctx, tx, &model.CallbackEvent{
				Reference:   run.reference,
				State:       stateFailed,
				ErrorCode:   errorCode,
				RedirectURL: redirectURL,
			}); err != nil {
				return fmt.Errorf("record callback event: %w", err)
			}
			return s.sessions.Remove(ctx, tx, run.sessionID)
		})
		if txErr != nil {
			s.logger.Errorw("record failed callback", "reference", run.reference, "error", txErr)
		}
	} else {
		s.clearSession(ctx, nil, run.sessionID)
	}

	return &dto.CallbackResult{
		State:       stateFailed,
		ErrorCode:   errorCode,
		RedirectURL: redirectURL,
	}
}

func (s *paymentServiceImpl) clearSession(ctx context.Context, tx *gorm.DB, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.sessions.Remove(ctx, tx, sessionID); err != nil {
		s.logger.Errorw("clear payment session", "session_id", sessionID, "error", err)
	}
}

// settlementCovers applies the configured policy to the amount the gateway
// reports as settled. Without a snapshot or settlement data there is nothing
// to compare, and the backend remains the authority.
func (s *paymentServiceImpl) settlementCovers(data *model.VerifyPaymentData, snapshot *model.CheckoutSnapshot) bool {
	if data == nil || data.Amount <= 0 || snapshot == nil || snapshot.Amount == "" {
		return true
	}
	total, err := decimal.NewFromString(snapshot.Amount)
	if err != nil {
		s.logger.Warnw("unparseable snapshot amount", "amount", snapshot.Amount, "error", err)
		return true
	}
	converted := s.converter.Convert(model.Money{Amount: total, Currency: snapshot.Currency})
	if data.Currency != "" && data.Currency != converted.Currency {
		// Different currency than expected: not comparable client-side.
		return true
	}
	expected := MinorUnits(converted.Amount)
	if s.paystackCfg.SettlementPolicy == "exact" {
		return data.Amount == expected
	}
	return data.Amount >= expected
}

func (s *paymentServiceImpl) gatewayAvailable(gateways []model.PaymentGateway) bool {
	for _, gw := range gateways {
		if gw.ID == s.paystackCfg.GatewayID || strings.Contains(gw.ID, "paystack") {
			return true
		}
	}
	return false
}

// paymentRelated classifies completion errors that point at payment
// coverage; these suggest retrying payment, not checkout.
func paymentRelated(errs []model.SaleorError) bool {
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "payment") || strings.Contains(msg, "cover") || strings.Contains(msg, "amount") {
			return true
		}
	}
	return false
}

func joinErrors(errs []model.SaleorError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, ", ")
}

func gatewayIDs(gateways []model.PaymentGateway) []string {
	ids := make([]string, len(gateways))
	for i, gw := range gateways {
		ids[i] = gw.ID
	}
	return ids
}
