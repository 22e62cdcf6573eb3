package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"voxbill/internal/models/db_models"
	"voxbill/internal/repositories"
	"voxbill/pkg/memcache"
)

const testSignature = "t=valid,v1=test"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and shared.
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

// fakeStripeGateway stands in for the provider: deterministic ids, call
// counters, and switchable failures.
type fakeStripeGateway struct {
	customers     int
	meterEvents   []string
	checkouts     []CheckoutSessionParams
	subscriptions map[string]*ProviderSubscription

	failCreateCustomer bool
	failCheckout       bool
	failMeterEvent     bool
}

func newFakeGateway() *fakeStripeGateway {
	return &fakeStripeGateway{
		subscriptions: map[string]*ProviderSubscription{},
	}
}

func (f *fakeStripeGateway) CreateCustomer(ctx context.Context, orgID, email, name string) (string, error) {
	if f.failCreateCustomer {
		return "", fmt.Errorf("stripe unavailable")
	}
	f.customers++
	return fmt.Sprintf("cus_test_%d", f.customers), nil
}

func (f *fakeStripeGateway) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSessionResult, error) {
	if f.failCheckout {
		return nil, fmt.Errorf("stripe unavailable")
	}
	f.checkouts = append(f.checkouts, params)
	return &CheckoutSessionResult{
		SessionID:   fmt.Sprintf("cs_test_%d", len(f.checkouts)),
		CheckoutURL: "https://checkout.stripe.com/pay/cs_test",
	}, nil
}

func (f *fakeStripeGateway) GetSubscription(ctx context.Context, stripeSubID string) (*ProviderSubscription, error) {
	sub, ok := f.subscriptions[stripeSubID]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", stripeSubID)
	}
	return sub, nil
}

func (f *fakeStripeGateway) SendMeterEvent(ctx context.Context, callID, customerID string, billedMinutes int64) (string, error) {
	if f.failMeterEvent {
		return "", fmt.Errorf("stripe unavailable")
	}
	f.meterEvents = append(f.meterEvents, callID)
	return callID, nil
}

// VerifyEvent accepts the fixed test signature and parses the event body the
// way the real verifier does after its HMAC check.
func (f *fakeStripeGateway) VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	if sigHeader != testSignature {
		return nil, fmt.Errorf("signature mismatch")
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// fakeMailService records notices instead of dialing SMTP.
type fakeMailService struct {
	notices []string
}

func (f *fakeMailService) SendPaymentFailedNotice(to, orgName string) error {
	f.notices = append(f.notices, to)
	return nil
}

type testEnv struct {
	db      *gorm.DB
	gateway *fakeStripeGateway
	mail    *fakeMailService

	planRepo   repositories.IPlanRepository
	orgRepo    repositories.OrganizationRepository
	subRepo    repositories.SubscriptionRepository
	cycleRepo  repositories.BillingCycleRepository
	recordRepo repositories.UsageRecordRepository
	eventRepo  repositories.WebhookEventRepository

	checkout  CheckoutService
	lifecycle LifecycleService
	usage     UsageService
	summary   SummaryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	gateway := newFakeGateway()
	mail := &fakeMailService{}

	env := &testEnv{
		db:         db,
		gateway:    gateway,
		mail:       mail,
		planRepo:   repositories.NewPlanRepository(db),
		orgRepo:    repositories.NewOrganizationRepository(db),
		subRepo:    repositories.NewSubscriptionRepository(db),
		cycleRepo:  repositories.NewBillingCycleRepository(db),
		recordRepo: repositories.NewUsageRecordRepository(db),
		eventRepo:  repositories.NewWebhookEventRepository(db),
	}

	env.checkout = NewCheckoutService(env.planRepo, env.orgRepo, env.subRepo, gateway)
	env.lifecycle = NewLifecycleService(db, env.planRepo, env.orgRepo, env.subRepo,
		env.cycleRepo, env.eventRepo, memcache.NewEventCache(), gateway, mail)
	env.usage = NewUsageService(env.orgRepo, env.subRepo, env.cycleRepo, env.recordRepo, gateway)
	env.summary = NewSummaryService(env.subRepo, env.cycleRepo)

	return env
}

func (e *testEnv) seedPlan(t *testing.T) *db_models.Plan {
	t.Helper()
	plan := &db_models.Plan{
		Code:                 "starter",
		Name:                 "Starter",
		PriceMinor:           2900,
		Currency:             "usd",
		IncludedMinutes:      500,
		OverageRateMinor:     5,
		StripePriceMonthlyID: "price_monthly_starter",
		StripePriceYearlyID:  "price_yearly_starter",
		StripeMeteredPriceID: "price_metered_starter",
		StripeSetupFeeID:     "price_setup_starter",
		IsActive:             true,
	}
	require.NoError(t, e.db.Create(plan).Error)
	return plan
}

func (e *testEnv) seedOrg(t *testing.T, customerID string) *db_models.Organization {
	t.Helper()
	org := &db_models.Organization{
		Name:  "Acme Voice",
		Email: fmt.Sprintf("ops+%s@acme.test", uuid.NewString()[:8]),
	}
	if customerID != "" {
		org.StripeCustomerID = &customerID
	}
	require.NoError(t, e.db.Create(org).Error)
	return org
}

func (e *testEnv) seedActiveSubscription(t *testing.T, org *db_models.Organization, plan *db_models.Plan, stripeSubID string) (*db_models.Subscription, *db_models.BillingCycle) {
	t.Helper()

	now := time.Now().Unix()
	customerID := ""
	if org.StripeCustomerID != nil {
		customerID = *org.StripeCustomerID
	}

	sub := &db_models.Subscription{
		OrganizationID:       org.ID,
		PlanID:               plan.ID,
		Status:               db_models.SubStatusActive,
		BillingPeriod:        db_models.PeriodMonthly,
		CurrentPeriodStart:   now,
		CurrentPeriodEnd:     now + 30*24*3600,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: stripeSubID,
	}
	require.NoError(t, e.db.Create(sub).Error)

	cycle := &db_models.BillingCycle{
		SubscriptionID:  sub.ID,
		PeriodStart:     sub.CurrentPeriodStart,
		PeriodEnd:       sub.CurrentPeriodEnd,
		MinutesIncluded: plan.IncludedMinutes,
		Status:          db_models.CycleStatusActive,
	}
	require.NoError(t, e.db.Create(cycle).Error)

	return sub, cycle
}

func eventBody(t *testing.T, id, kind string, object interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"id":   id,
		"type": kind,
		"data": map[string]interface{}{
			"object": json.RawMessage(raw),
		},
	})
	require.NoError(t, err)
	return body
}
