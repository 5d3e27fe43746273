package repository

import (
	"context"
	"errors"
	"time"

	"paystack-storefront/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository is the payment-session store. Only payment initiation
// writes it and only the callback clears it; no other component touches a
// session mid-run.
type SessionRepository interface {
	Put(ctx context.Context, session *model.PaymentSession) error
	// Get returns nil (no error) when the session is absent.
	Get(ctx context.Context, sessionID string) (*model.PaymentSession, error)
	Remove(ctx context.Context, tx *gorm.DB, sessionID string) error
	PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type sessionRepoImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepoImpl{
		db: db,
	}
}

func (r *sessionRepoImpl) Put(ctx context.Context, session *model.PaymentSession) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"checkout_id", "transaction_id", "reference", "snapshot", "updated_at",
		}),
	}).Create(session).Error
}

func (r *sessionRepoImpl) Get(ctx context.Context, sessionID string) (*model.PaymentSession, error) {
	var session model.PaymentSession
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepoImpl) Remove(ctx context.Context, tx *gorm.DB, sessionID string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.PaymentSession{}).Error
}

// PurgeStale drops sessions from abandoned runs. Stale rows cannot cause a
// duplicate charge (the callback fails closed without them), so the sweep is
// housekeeping, not correctness.
func (r *sessionRepoImpl) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&model.PaymentSession{})
	return result.RowsAffected, result.Error
}
