package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
)

type SubscriptionRepository interface {
	Insert(ctx context.Context, sub *db_models.Subscription) error
	FindByStripeID(ctx context.Context, stripeSubID string) (*db_models.Subscription, error)
	// FindActiveByOrg returns the newest non-terminal subscription for the
	// organization with its Plan preloaded, or nil.
	FindActiveByOrg(ctx context.Context, orgID uuid.UUID) (*db_models.Subscription, error)
	HasNonTerminalByOrg(ctx context.Context, orgID uuid.UUID) (bool, error)
	UpdateProviderState(ctx context.Context, id uuid.UUID, status db_models.SubscriptionStatus, periodStart, periodEnd int64, cancelAtPeriodEnd bool) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status db_models.SubscriptionStatus) error
	MarkCanceled(ctx context.Context, id uuid.UUID, canceledAt int64) error
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{
		db: db,
	}
}

func (s *subscriptionRepository) Insert(ctx context.Context, sub *db_models.Subscription) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

func (s *subscriptionRepository) FindByStripeID(ctx context.Context, stripeSubID string) (*db_models.Subscription, error) {
	var sub db_models.Subscription
	err := s.db.WithContext(ctx).First(&sub, "stripe_subscription_id = ?", stripeSubID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

func (s *subscriptionRepository) FindActiveByOrg(ctx context.Context, orgID uuid.UUID) (*db_models.Subscription, error) {
	var sub db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("organization_id = ? AND status IN ?", orgID, db_models.NonTerminalStatuses()).
		Order("created_at DESC").
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

func (s *subscriptionRepository) HasNonTerminalByOrg(ctx context.Context, orgID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("organization_id = ? AND status IN ?", orgID, db_models.NonTerminalStatuses()).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (s *subscriptionRepository) UpdateProviderState(ctx context.Context, id uuid.UUID, status db_models.SubscriptionStatus, periodStart, periodEnd int64, cancelAtPeriodEnd bool) error {
	return s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":               status,
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
			"cancel_at_period_end": cancelAtPeriodEnd,
		}).Error
}

func (s *subscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status db_models.SubscriptionStatus) error {
	return s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *subscriptionRepository) MarkCanceled(ctx context.Context, id uuid.UUID, canceledAt int64) error {
	return s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      db_models.SubStatusCanceled,
			"canceled_at": canceledAt,
		}).Error
}
