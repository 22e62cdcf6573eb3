package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
)

type BillingCycleRepository interface {
	Insert(ctx context.Context, cycle *db_models.BillingCycle) error
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.BillingCycle, error)
	FindActiveBySubscription(ctx context.Context, subID uuid.UUID) (*db_models.BillingCycle, error)
	FindBySubscriptionAndStart(ctx context.Context, subID uuid.UUID, periodStart int64) (*db_models.BillingCycle, error)
	CloseActive(ctx context.Context, subID uuid.UUID) error
	AttachInvoice(ctx context.Context, id uuid.UUID, stripeInvoiceID string) error
	// ApplyUsage adds billed minutes and recomputes the overage columns in a
	// single UPDATE, so concurrent reporters never overwrite each other.
	ApplyUsage(ctx context.Context, id uuid.UUID, billedMinutes int64, overageRateMinor int64) error
}

type billingCycleRepository struct {
	db *gorm.DB
}

func NewBillingCycleRepository(db *gorm.DB) BillingCycleRepository {
	return &billingCycleRepository{
		db: db,
	}
}

func (b *billingCycleRepository) Insert(ctx context.Context, cycle *db_models.BillingCycle) error {
	return b.db.WithContext(ctx).Create(cycle).Error
}

func (b *billingCycleRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.BillingCycle, error) {
	var cycle db_models.BillingCycle
	err := b.db.WithContext(ctx).First(&cycle, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cycle, nil
}

func (b *billingCycleRepository) FindActiveBySubscription(ctx context.Context, subID uuid.UUID) (*db_models.BillingCycle, error) {
	var cycle db_models.BillingCycle
	err := b.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ?", subID, db_models.CycleStatusActive).
		First(&cycle).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cycle, nil
}

func (b *billingCycleRepository) FindBySubscriptionAndStart(ctx context.Context, subID uuid.UUID, periodStart int64) (*db_models.BillingCycle, error) {
	var cycle db_models.BillingCycle
	err := b.db.WithContext(ctx).
		Where("subscription_id = ? AND period_start = ?", subID, periodStart).
		First(&cycle).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cycle, nil
}

func (b *billingCycleRepository) CloseActive(ctx context.Context, subID uuid.UUID) error {
	return b.db.WithContext(ctx).
		Model(&db_models.BillingCycle{}).
		Where("subscription_id = ? AND status = ?", subID, db_models.CycleStatusActive).
		Update("status", db_models.CycleStatusClosed).Error
}

func (b *billingCycleRepository) AttachInvoice(ctx context.Context, id uuid.UUID, stripeInvoiceID string) error {
	return b.db.WithContext(ctx).
		Model(&db_models.BillingCycle{}).
		Where("id = ?", id).
		Update("stripe_invoice_id", stripeInvoiceID).Error
}

func (b *billingCycleRepository) ApplyUsage(ctx context.Context, id uuid.UUID, billedMinutes int64, overageRateMinor int64) error {
	// CASE arithmetic runs against the post-increment value inside one
	// statement, which keeps the overage columns consistent under
	// concurrent increments (and is portable between Postgres and SQLite).
	return b.db.WithContext(ctx).
		Model(&db_models.BillingCycle{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"minutes_used": gorm.Expr("minutes_used + ?", billedMinutes),
			"overage_minutes": gorm.Expr(
				"CASE WHEN minutes_used + ? > minutes_included THEN minutes_used + ? - minutes_included ELSE 0 END",
				billedMinutes, billedMinutes),
			"overage_cost_minor": gorm.Expr(
				"CASE WHEN minutes_used + ? > minutes_included THEN (minutes_used + ? - minutes_included) * ? ELSE 0 END",
				billedMinutes, billedMinutes, overageRateMinor),
		}).Error
}
