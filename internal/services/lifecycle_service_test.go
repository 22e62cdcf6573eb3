package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voxbill/internal/models/db_models"
	"voxbill/internal/models/request_models"
	"voxbill/pkg/utils"
)

func TestProcessEventRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	body := eventBody(t, "evt_bad", eventCheckoutCompleted, map[string]string{"id": "cs_1"})
	err := env.lifecycle.ProcessEvent(context.Background(), body, "t=forged,v1=nope")
	require.ErrorIs(t, err, utils.ErrUnauthorized)

	exists, err := env.eventRepo.Exists(context.Background(), "evt_bad")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCheckoutCompletedCreatesSubscriptionAndFirstCycle(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_new")

	now := time.Now().Unix()
	env.gateway.subscriptions["sub_new"] = &ProviderSubscription{
		ID:          "sub_new",
		CustomerID:  "cus_new",
		Status:      "active",
		PeriodStart: now,
		PeriodEnd:   now + 30*24*3600,
	}

	body := eventBody(t, "evt_checkout_1", eventCheckoutCompleted, map[string]interface{}{
		"id":           "cs_1",
		"customer":     "cus_new",
		"subscription": "sub_new",
		"metadata": map[string]string{
			"org_id":         org.ID.String(),
			"plan_id":        plan.ID.String(),
			"billing_period": "monthly",
		},
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	sub, err := env.subRepo.FindByStripeID(context.Background(), "sub_new")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, db_models.SubStatusActive, sub.Status)
	assert.Equal(t, db_models.PeriodMonthly, sub.BillingPeriod)
	assert.Equal(t, org.ID, sub.OrganizationID)
	assert.Equal(t, plan.ID, sub.PlanID)
	assert.Equal(t, now, sub.CurrentPeriodStart)

	cycle, err := env.cycleRepo.FindActiveBySubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, cycle)
	assert.Equal(t, plan.IncludedMinutes, cycle.MinutesIncluded)
	assert.Equal(t, int64(0), cycle.MinutesUsed)
	assert.Equal(t, now, cycle.PeriodStart)
}

func TestCheckoutCompletedRedeliveryIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_redeliver")

	now := time.Now().Unix()
	env.gateway.subscriptions["sub_redeliver"] = &ProviderSubscription{
		ID:          "sub_redeliver",
		CustomerID:  "cus_redeliver",
		Status:      "active",
		PeriodStart: now,
		PeriodEnd:   now + 30*24*3600,
	}

	object := map[string]interface{}{
		"id":           "cs_2",
		"customer":     "cus_redeliver",
		"subscription": "sub_redeliver",
		"metadata": map[string]string{
			"org_id":         org.ID.String(),
			"plan_id":        plan.ID.String(),
			"billing_period": "monthly",
		},
	}

	// Same event id twice, then the same session under a fresh event id, as
	// happens after a provider-side retry window.
	body := eventBody(t, "evt_checkout_2", eventCheckoutCompleted, object)
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	retry := eventBody(t, "evt_checkout_2_retry", eventCheckoutCompleted, object)
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), retry, testSignature))

	var subCount, cycleCount int64
	require.NoError(t, env.db.Model(&db_models.Subscription{}).Count(&subCount).Error)
	require.NoError(t, env.db.Model(&db_models.BillingCycle{}).Count(&cycleCount).Error)
	assert.Equal(t, int64(1), subCount)
	assert.Equal(t, int64(1), cycleCount)
}

func TestInvoicePaidInitialAttachesInvoiceOnly(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_initial")
	sub, cycle := env.seedActiveSubscription(t, org, plan, "sub_initial")

	body := eventBody(t, "evt_inv_initial", eventInvoicePaid, map[string]string{
		"id":             "in_initial",
		"customer":       "cus_initial",
		"subscription":   "sub_initial",
		"billing_reason": "subscription_create",
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	updated, err := env.cycleRepo.FindByID(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_initial", updated.StripeInvoiceID)

	// No rollover happened.
	var cycleCount int64
	require.NoError(t, env.db.Model(&db_models.BillingCycle{}).
		Where("subscription_id = ?", sub.ID).Count(&cycleCount).Error)
	assert.Equal(t, int64(1), cycleCount)
}

func TestInvoicePaidRenewalRollsCycleOver(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_renew")
	sub, oldCycle := env.seedActiveSubscription(t, org, plan, "sub_renew")

	require.NoError(t, env.cycleRepo.ApplyUsage(context.Background(), oldCycle.ID, 217, plan.OverageRateMinor))

	newStart := sub.CurrentPeriodEnd
	newEnd := newStart + 30*24*3600
	env.gateway.subscriptions["sub_renew"] = &ProviderSubscription{
		ID:          "sub_renew",
		CustomerID:  "cus_renew",
		Status:      "active",
		PeriodStart: newStart,
		PeriodEnd:   newEnd,
	}

	body := eventBody(t, "evt_inv_renew", eventInvoicePaid, map[string]string{
		"id":             "in_renew",
		"customer":       "cus_renew",
		"subscription":   "sub_renew",
		"billing_reason": "subscription_cycle",
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	closed, err := env.cycleRepo.FindByID(context.Background(), oldCycle.ID)
	require.NoError(t, err)
	assert.Equal(t, db_models.CycleStatusClosed, closed.Status)
	assert.Equal(t, int64(217), closed.MinutesUsed)

	fresh, err := env.cycleRepo.FindActiveBySubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, newStart, fresh.PeriodStart)
	assert.Equal(t, int64(0), fresh.MinutesUsed)
	assert.Equal(t, plan.IncludedMinutes, fresh.MinutesIncluded)
	assert.Equal(t, "in_renew", fresh.StripeInvoiceID)

	refreshed, err := env.subRepo.FindByStripeID(context.Background(), "sub_renew")
	require.NoError(t, err)
	assert.Equal(t, newStart, refreshed.CurrentPeriodStart)
	assert.Equal(t, newEnd, refreshed.CurrentPeriodEnd)

	// Re-delivery under a fresh event id must not close the new cycle.
	retry := eventBody(t, "evt_inv_renew_retry", eventInvoicePaid, map[string]string{
		"id":             "in_renew",
		"customer":       "cus_renew",
		"subscription":   "sub_renew",
		"billing_reason": "subscription_cycle",
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), retry, testSignature))

	still, err := env.cycleRepo.FindActiveBySubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, still)
	assert.Equal(t, newStart, still.PeriodStart)

	var cycleCount int64
	require.NoError(t, env.db.Model(&db_models.BillingCycle{}).
		Where("subscription_id = ?", sub.ID).Count(&cycleCount).Error)
	assert.Equal(t, int64(2), cycleCount)
}

func TestInvoicePaymentFailedMarksPastDueAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_pastdue")
	sub, _ := env.seedActiveSubscription(t, org, plan, "sub_pastdue")

	body := eventBody(t, "evt_inv_failed", eventInvoicePaymentFailed, map[string]string{
		"id":             "in_failed",
		"customer":       "cus_pastdue",
		"subscription":   "sub_pastdue",
		"billing_reason": "subscription_cycle",
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	var updated db_models.Subscription
	require.NoError(t, env.db.First(&updated, "id = ?", sub.ID).Error)
	assert.Equal(t, db_models.SubStatusPastDue, updated.Status)
	assert.Equal(t, []string{org.Email}, env.mail.notices)
}

func TestSubscriptionUpdatedSyncsProviderState(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_update")
	sub, _ := env.seedActiveSubscription(t, org, plan, "sub_update")

	newStart := sub.CurrentPeriodStart + 100
	body := eventBody(t, "evt_sub_update", eventSubscriptionUpdated, map[string]interface{}{
		"id":                   "sub_update",
		"customer":             "cus_update",
		"status":               "past_due",
		"current_period_start": newStart,
		"current_period_end":   newStart + 30*24*3600,
		"cancel_at_period_end": true,
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	var updated db_models.Subscription
	require.NoError(t, env.db.First(&updated, "id = ?", sub.ID).Error)
	assert.Equal(t, db_models.SubStatusPastDue, updated.Status)
	assert.Equal(t, newStart, updated.CurrentPeriodStart)
	assert.True(t, updated.CancelAtPeriodEnd)
}

func TestSubscriptionDeletedCancelsAndClosesCycle(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_del")
	sub, cycle := env.seedActiveSubscription(t, org, plan, "sub_del")

	canceledAt := time.Now().Unix()
	body := eventBody(t, "evt_sub_del", eventSubscriptionDeleted, map[string]interface{}{
		"id":          "sub_del",
		"customer":    "cus_del",
		"status":      "canceled",
		"canceled_at": canceledAt,
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	var updated db_models.Subscription
	require.NoError(t, env.db.First(&updated, "id = ?", sub.ID).Error)
	assert.Equal(t, db_models.SubStatusCanceled, updated.Status)
	require.NotNil(t, updated.CanceledAt)
	assert.Equal(t, canceledAt, *updated.CanceledAt)

	closed, err := env.cycleRepo.FindByID(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, db_models.CycleStatusClosed, closed.Status)

	// Usage against the canceled subscription is refused.
	_, err = env.usage.ReportCallUsage(context.Background(), request_models.ReportCallUsageRequest{
		OrgID:               org.ID.String(),
		CallDurationMinutes: 1.0,
		CallID:              "call_after_cancel",
	})
	assert.ErrorIs(t, err, utils.ErrSubscriptionNotFound)
}

func TestUnknownEventKindIsAckedAndRecorded(t *testing.T) {
	env := newTestEnv(t)

	body := eventBody(t, "evt_unknown", "customer.created", map[string]string{"id": "cus_x"})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	exists, err := env.eventRepo.Exists(context.Background(), "evt_unknown")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHandlerFailureStillAcksAndRecordsError(t *testing.T) {
	env := newTestEnv(t)
	plan := env.seedPlan(t)
	org := env.seedOrg(t, "cus_fail")

	// No provider-side subscription registered, so the live fetch fails.
	body := eventBody(t, "evt_fetch_fail", eventCheckoutCompleted, map[string]interface{}{
		"id":           "cs_fail",
		"customer":     "cus_fail",
		"subscription": "sub_missing",
		"metadata": map[string]string{
			"org_id":         org.ID.String(),
			"plan_id":        plan.ID.String(),
			"billing_period": "monthly",
		},
	})
	require.NoError(t, env.lifecycle.ProcessEvent(context.Background(), body, testSignature))

	var row db_models.WebhookEvent
	require.NoError(t, env.db.First(&row, "stripe_event_id = ?", "evt_fetch_fail").Error)
	assert.NotEmpty(t, row.ProcessingError)
}
