package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
)

type UsageRecordRepository interface {
	// Insert returns gorm.ErrDuplicatedKey when the call id was already
	// recorded; callers treat that as an idempotency hit, not a failure.
	Insert(ctx context.Context, record *db_models.UsageRecord) error
	FindByCallID(ctx context.Context, callID string) (*db_models.UsageRecord, error)
}

type usageRecordRepository struct {
	db *gorm.DB
}

func NewUsageRecordRepository(db *gorm.DB) UsageRecordRepository {
	return &usageRecordRepository{
		db: db,
	}
}

func (u *usageRecordRepository) Insert(ctx context.Context, record *db_models.UsageRecord) error {
	return u.db.WithContext(ctx).Create(record).Error
}

func (u *usageRecordRepository) FindByCallID(ctx context.Context, callID string) (*db_models.UsageRecord, error) {
	var record db_models.UsageRecord
	err := u.db.WithContext(ctx).First(&record, "call_id = ?", callID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}
