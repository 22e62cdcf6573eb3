package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
)

type WebhookEventRepository interface {
	// Insert returns gorm.ErrDuplicatedKey on a redelivered event id.
	Insert(ctx context.Context, event *db_models.WebhookEvent) error
	Exists(ctx context.Context, stripeEventID string) (bool, error)
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{
		db: db,
	}
}

func (w *webhookEventRepository) Insert(ctx context.Context, event *db_models.WebhookEvent) error {
	return w.db.WithContext(ctx).Create(event).Error
}

func (w *webhookEventRepository) Exists(ctx context.Context, stripeEventID string) (bool, error) {
	var event db_models.WebhookEvent
	err := w.db.WithContext(ctx).
		Select("id").
		First(&event, "stripe_event_id = ?", stripeEventID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
