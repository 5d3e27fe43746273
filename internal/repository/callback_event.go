package repository

import (
	"context"
	"errors"
	"time"

	"paystack-storefront/internal/model"

	"gorm.io/gorm"
)

// CallbackEventRepository is the processed-callback ledger keyed by payment
// reference. It backs the double-invocation guard: a reference with a
// recorded terminal state is never run against the backend again.
type CallbackEventRepository interface {
	// Find returns nil (no error) when the reference has not been processed.
	Find(ctx context.Context, reference string) (*model.CallbackEvent, error)
	Record(ctx context.Context, tx *gorm.DB, event *model.CallbackEvent) error
}

type callbackEventRepoImpl struct {
	db *gorm.DB
}

func NewCallbackEventRepository(db *gorm.DB) CallbackEventRepository {
	return &callbackEventRepoImpl{db: db}
}

func (r *callbackEventRepoImpl) Find(ctx context.Context, reference string) (*model.CallbackEvent, error) {
	var event model.CallbackEvent
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &event, nil
}

func (r *callbackEventRepoImpl) Record(ctx context.Context, tx *gorm.DB, event *model.CallbackEvent) error {
	if tx == nil {
		tx = r.db
	}
	event.ProcessedAt = time.Now()
	return tx.WithContext(ctx).Create(event).Error
}
