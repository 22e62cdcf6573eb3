package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"voxbill/internal/models/db_models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&db_models.Plan{},
		&db_models.Organization{},
		&db_models.Subscription{},
		&db_models.BillingCycle{},
		&db_models.UsageRecord{},
		&db_models.WebhookEvent{},
	))

	return db
}

func seedCycle(t *testing.T, db *gorm.DB, included int64) *db_models.BillingCycle {
	t.Helper()

	now := time.Now().Unix()
	cycle := &db_models.BillingCycle{
		SubscriptionID:  uuid.New(),
		PeriodStart:     now,
		PeriodEnd:       now + 30*24*3600,
		MinutesIncluded: included,
		Status:          db_models.CycleStatusActive,
	}
	require.NoError(t, db.Create(cycle).Error)
	return cycle
}

func TestApplyUsageAccumulatesWithinAllowance(t *testing.T) {
	db := newTestDB(t)
	repo := NewBillingCycleRepository(db)
	cycle := seedCycle(t, db, 100)

	require.NoError(t, repo.ApplyUsage(context.Background(), cycle.ID, 30, 5))
	require.NoError(t, repo.ApplyUsage(context.Background(), cycle.ID, 40, 5))

	got, err := repo.FindByID(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), got.MinutesUsed)
	assert.Equal(t, int64(0), got.OverageMinutes)
	assert.Equal(t, int64(0), got.OverageCostMinor)
}

func TestApplyUsageRecomputesOverageOnEveryIncrement(t *testing.T) {
	db := newTestDB(t)
	repo := NewBillingCycleRepository(db)
	cycle := seedCycle(t, db, 100)

	require.NoError(t, repo.ApplyUsage(context.Background(), cycle.ID, 90, 5))
	require.NoError(t, repo.ApplyUsage(context.Background(), cycle.ID, 25, 5))

	got, err := repo.FindByID(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(115), got.MinutesUsed)
	assert.Equal(t, int64(15), got.OverageMinutes)
	assert.Equal(t, int64(75), got.OverageCostMinor)

	require.NoError(t, repo.ApplyUsage(context.Background(), cycle.ID, 1, 5))
	got, err = repo.FindByID(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(116), got.MinutesUsed)
	assert.Equal(t, int64(16), got.OverageMinutes)
	assert.Equal(t, int64(80), got.OverageCostMinor)
}

func TestDuplicatePeriodStartIsRejected(t *testing.T) {
	db := newTestDB(t)
	repo := NewBillingCycleRepository(db)
	cycle := seedCycle(t, db, 100)

	dup := &db_models.BillingCycle{
		SubscriptionID:  cycle.SubscriptionID,
		PeriodStart:     cycle.PeriodStart,
		PeriodEnd:       cycle.PeriodEnd,
		MinutesIncluded: 100,
		Status:          db_models.CycleStatusActive,
	}
	err := repo.Insert(context.Background(), dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestCloseActiveOnlyTouchesActiveCycles(t *testing.T) {
	db := newTestDB(t)
	repo := NewBillingCycleRepository(db)
	cycle := seedCycle(t, db, 100)

	closed := &db_models.BillingCycle{
		SubscriptionID:  cycle.SubscriptionID,
		PeriodStart:     cycle.PeriodStart - 30*24*3600,
		PeriodEnd:       cycle.PeriodStart,
		MinutesIncluded: 100,
		MinutesUsed:     77,
		Status:          db_models.CycleStatusClosed,
	}
	require.NoError(t, db.Create(closed).Error)

	require.NoError(t, repo.CloseActive(context.Background(), cycle.SubscriptionID))

	active, err := repo.FindActiveBySubscription(context.Background(), cycle.SubscriptionID)
	require.NoError(t, err)
	assert.Nil(t, active)

	prior, err := repo.FindByID(context.Background(), closed.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(77), prior.MinutesUsed)
}

func TestDuplicateCallIDIsRejected(t *testing.T) {
	db := newTestDB(t)
	repo := NewUsageRecordRepository(db)

	record := &db_models.UsageRecord{
		CallID:             "call_unique",
		OrganizationID:     uuid.New(),
		SubscriptionID:     uuid.New(),
		RawDurationMinutes: 1.5,
		BilledMinutes:      2,
	}
	require.NoError(t, repo.Insert(context.Background(), record))

	dup := &db_models.UsageRecord{
		CallID:             "call_unique",
		OrganizationID:     record.OrganizationID,
		SubscriptionID:     record.SubscriptionID,
		RawDurationMinutes: 1.5,
		BilledMinutes:      2,
	}
	err := repo.Insert(context.Background(), dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	found, err := repo.FindByCallID(context.Background(), "call_unique")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, record.ID, found.ID)
}
