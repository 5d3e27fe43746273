package model

import (
	"encoding/json"
	"time"
)

// PaymentSession bridges the redirect to the hosted payment page. It is
// written once by payment initiation and consumed (then removed) by the
// callback; a row that outlives its run is harmless and swept by age.
type PaymentSession struct {
	SessionID     string `gorm:"primaryKey;size:64;not null"`
	CheckoutID    string `gorm:"size:128;index;not null"`
	TransactionID string `gorm:"size:128;not null"`
	Reference     string `gorm:"size:128;index;not null"`
	// Serialized CheckoutSnapshot. May be corrupted by out-of-band writes;
	// readers must tolerate that.
	Snapshot  string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckoutSnapshot is the fallback copy of checkout state used when the
// live checkout cannot be re-fetched right after the redirect returns.
type CheckoutSnapshot struct {
	ID         string  `json:"id"`
	Amount     string  `json:"amount"`
	Currency   string  `json:"currency"`
	Email      string  `json:"email,omitempty"`
	GatewayIDs []string `json:"gateway_ids,omitempty"`
}

// DecodeSnapshot returns nil on empty or malformed JSON; the identifiers on
// the row stay usable either way.
func (s *PaymentSession) DecodeSnapshot() (*CheckoutSnapshot, error) {
	if s.Snapshot == "" {
		return nil, nil
	}
	var snap CheckoutSnapshot
	if err := json.Unmarshal([]byte(s.Snapshot), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CallbackEvent records the terminal state of one callback run, keyed by
// payment reference. A reference that already has a row is never re-run
// against the backend.
type CallbackEvent struct {
	Reference   string `gorm:"primaryKey;size:128;not null"`
	State       string `gorm:"size:32;not null"` // redirecting, failed
	ErrorCode   string `gorm:"size:64"`
	OrderToken  string `gorm:"size:128"`
	RedirectURL string `gorm:"size:512"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
