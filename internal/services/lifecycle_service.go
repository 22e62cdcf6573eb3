package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
	"voxbill/internal/repositories"
	"voxbill/pkg/memcache"
	"voxbill/pkg/utils"
)

// The closed set of provider notifications the engine reacts to. Anything
// else is acknowledged and ignored.
const (
	eventCheckoutCompleted    = "checkout.session.completed"
	eventInvoicePaid          = "invoice.paid"
	eventInvoicePaymentFailed = "invoice.payment_failed"
	eventSubscriptionUpdated  = "customer.subscription.updated"
	eventSubscriptionDeleted  = "customer.subscription.deleted"
)

const (
	invoiceReasonInitial = "subscription_create"
	invoiceReasonRenewal = "subscription_cycle"
)

const eventCacheTTL = 30 * time.Minute

// LifecycleService consumes at-least-once, possibly reordered provider
// events and advances the local subscription and billing-cycle state.
// ProcessEvent returns an error only when the signature check fails; once an
// event is authenticated it is always acknowledged, and side-effect failures
// are written to the ledger for reconciliation instead of triggering
// provider retries.
type LifecycleService interface {
	ProcessEvent(ctx context.Context, payload []byte, sigHeader string) error
}

type lifecycleService struct {
	db        *gorm.DB
	planRepo  repositories.IPlanRepository
	orgRepo   repositories.OrganizationRepository
	subRepo   repositories.SubscriptionRepository
	cycleRepo repositories.BillingCycleRepository
	eventRepo repositories.WebhookEventRepository
	cache     memcache.EventCache
	gateway   StripeGateway
	mail      IMailService
}

func NewLifecycleService(
	db *gorm.DB,
	planRepo repositories.IPlanRepository,
	orgRepo repositories.OrganizationRepository,
	subRepo repositories.SubscriptionRepository,
	cycleRepo repositories.BillingCycleRepository,
	eventRepo repositories.WebhookEventRepository,
	cache memcache.EventCache,
	gateway StripeGateway,
	mail IMailService,
) LifecycleService {
	return &lifecycleService{
		db:        db,
		planRepo:  planRepo,
		orgRepo:   orgRepo,
		subRepo:   subRepo,
		cycleRepo: cycleRepo,
		eventRepo: eventRepo,
		cache:     cache,
		gateway:   gateway,
		mail:      mail,
	}
}

// Local views of the provider payloads. The webhook endpoint is pinned to a
// fixed API version in the Stripe dashboard, so these shapes are stable
// regardless of SDK upgrades.
type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	Subscription  string `json:"subscription"`
	BillingReason string `json:"billing_reason"`
}

type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	Metadata           map[string]string `json:"metadata"`
}

func (s *lifecycleService) ProcessEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.gateway.VerifyEvent(payload, sigHeader)
	if err != nil {
		log.Printf("webhook: signature verification failed: %v", err)
		return utils.ErrUnauthorized
	}

	if s.cache.Seen(event.ID) {
		return nil
	}
	seen, err := s.eventRepo.Exists(ctx, event.ID)
	if err != nil {
		log.Printf("webhook: ledger lookup for %s failed: %v", event.ID, err)
	}
	if seen {
		s.cache.Mark(event.ID, eventCacheTTL)
		return nil
	}

	procErr := s.dispatch(ctx, event)
	if procErr != nil {
		log.Printf("webhook: event %s (%s) accepted but processing failed: %v", event.ID, event.Type, procErr)
	}

	s.record(ctx, event, procErr)
	s.cache.Mark(event.ID, eventCacheTTL)

	return nil
}

func (s *lifecycleService) dispatch(ctx context.Context, event *stripe.Event) error {
	switch string(event.Type) {
	case eventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case eventInvoicePaid:
		return s.handleInvoicePaid(ctx, event)
	case eventInvoicePaymentFailed:
		return s.handleInvoicePaymentFailed(ctx, event)
	case eventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event)
	case eventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		log.Printf("webhook: ignoring event kind %s", event.Type)
		return nil
	}
}

// record writes the idempotency ledger row. A duplicate key here means a
// concurrent delivery beat us to it, which is fine.
func (s *lifecycleService) record(ctx context.Context, event *stripe.Event, procErr error) {
	row := &db_models.WebhookEvent{
		StripeEventID: event.ID,
		Kind:          string(event.Type),
		Payload:       datatypes.JSON(event.Data.Raw),
		ProcessedAt:   utils.NowUnixSeconds(),
	}
	if procErr != nil {
		row.ProcessingError = procErr.Error()
	}

	if err := s.eventRepo.Insert(ctx, row); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Printf("webhook: recording event %s failed: %v", event.ID, err)
	}
}

// handleCheckoutCompleted performs the none -> active transition: first
// Subscription plus its first BillingCycle, both copied from the provider's
// live subscription object. Re-deliveries find the row and no-op.
func (s *lifecycleService) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("parse checkout session: %w", err)
	}
	if session.Subscription == "" {
		// One-off payment session, nothing to track.
		return nil
	}

	existing, err := s.subRepo.FindByStripeID(ctx, session.Subscription)
	if err != nil {
		return fmt.Errorf("lookup subscription %s: %w", session.Subscription, err)
	}
	if existing != nil {
		return nil
	}

	live, err := s.gateway.GetSubscription(ctx, session.Subscription)
	if err != nil {
		return fmt.Errorf("fetch live subscription %s: %w", session.Subscription, err)
	}

	org, err := s.resolveOrganization(ctx, session.Metadata["org_id"], firstNonEmpty(live.CustomerID, session.Customer))
	if err != nil {
		return err
	}
	if org.StripeCustomerID == nil || *org.StripeCustomerID == "" {
		// The checkout flow failed to persist the customer id; recover it here.
		if err := s.orgRepo.SetStripeCustomerID(ctx, org.ID, live.CustomerID); err != nil {
			log.Printf("webhook: recovering customer id for org %s failed: %v", org.ID, err)
		}
	}

	plan, err := s.planRepo.GetPlanByID(ctx, session.Metadata["plan_id"])
	if err != nil {
		return fmt.Errorf("lookup plan %s: %w", session.Metadata["plan_id"], err)
	}
	if plan == nil {
		return fmt.Errorf("checkout session %s references unknown plan %q", session.ID, session.Metadata["plan_id"])
	}

	sub := &db_models.Subscription{
		OrganizationID:       org.ID,
		PlanID:               plan.ID,
		Status:               mapProviderStatus(live.Status),
		BillingPeriod:        db_models.BillingPeriod(session.Metadata["billing_period"]),
		CurrentPeriodStart:   live.PeriodStart,
		CurrentPeriodEnd:     live.PeriodEnd,
		CancelAtPeriodEnd:    live.CancelAtPeriodEnd,
		StripeCustomerID:     live.CustomerID,
		StripeSubscriptionID: live.ID,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil // concurrent delivery won the race
			}
			return err
		}

		cycle := &db_models.BillingCycle{
			SubscriptionID:  sub.ID,
			PeriodStart:     live.PeriodStart,
			PeriodEnd:       live.PeriodEnd,
			MinutesIncluded: plan.IncludedMinutes,
			MinutesUsed:     0,
			Status:          db_models.CycleStatusActive,
		}
		if err := tx.Create(cycle).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return nil
	})
}

func (s *lifecycleService) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("parse invoice: %w", err)
	}
	if invoice.Subscription == "" {
		return nil
	}

	sub, err := s.subRepo.FindByStripeID(ctx, invoice.Subscription)
	if err != nil {
		return fmt.Errorf("lookup subscription %s: %w", invoice.Subscription, err)
	}
	if sub == nil {
		// The checkout event may still be in flight; the invoice reference is
		// lost for audit, usage accounting is unaffected.
		log.Printf("webhook: invoice %s for unknown subscription %s", invoice.ID, invoice.Subscription)
		return nil
	}

	switch invoice.BillingReason {
	case invoiceReasonInitial:
		return s.attachInitialInvoice(ctx, sub, invoice.ID)
	case invoiceReasonRenewal:
		return s.rolloverCycle(ctx, sub, invoice.ID)
	default:
		log.Printf("webhook: ignoring invoice %s with billing reason %q", invoice.ID, invoice.BillingReason)
		return nil
	}
}

// attachInitialInvoice handles the duplicate signal for a completed checkout:
// no new rows, only the invoice reference on the already-created cycle.
func (s *lifecycleService) attachInitialInvoice(ctx context.Context, sub *db_models.Subscription, invoiceID string) error {
	cycle, err := s.cycleRepo.FindActiveBySubscription(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("lookup active cycle: %w", err)
	}
	if cycle == nil {
		log.Printf("webhook: no active cycle to attach invoice %s (subscription %s)", invoiceID, sub.ID)
		return nil
	}
	return s.cycleRepo.AttachInvoice(ctx, cycle.ID, invoiceID)
}

// rolloverCycle closes the running cycle and opens the next one with the
// plan's allowance as of now. The unique (subscription, period start) index
// makes re-deliveries skip creation.
func (s *lifecycleService) rolloverCycle(ctx context.Context, sub *db_models.Subscription, invoiceID string) error {
	live, err := s.gateway.GetSubscription(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("fetch live subscription %s: %w", sub.StripeSubscriptionID, err)
	}

	plan, err := s.planRepo.GetPlanByID(ctx, sub.PlanID.String())
	if err != nil {
		return fmt.Errorf("lookup plan %s: %w", sub.PlanID, err)
	}
	if plan == nil {
		return fmt.Errorf("subscription %s references unknown plan %s", sub.ID, sub.PlanID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db_models.BillingCycle
		lookupErr := tx.Where("subscription_id = ? AND period_start = ?", sub.ID, live.PeriodStart).
			First(&existing).Error
		if lookupErr == nil {
			return nil // renewal already applied
		}
		if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}

		if err := tx.Model(&db_models.BillingCycle{}).
			Where("subscription_id = ? AND status = ?", sub.ID, db_models.CycleStatusActive).
			Update("status", db_models.CycleStatusClosed).Error; err != nil {
			return err
		}

		cycle := &db_models.BillingCycle{
			SubscriptionID:  sub.ID,
			PeriodStart:     live.PeriodStart,
			PeriodEnd:       live.PeriodEnd,
			MinutesIncluded: plan.IncludedMinutes,
			MinutesUsed:     0,
			Status:          db_models.CycleStatusActive,
			StripeInvoiceID: invoiceID,
		}
		if err := tx.Create(cycle).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.subRepo.UpdateProviderState(ctx, sub.ID, mapProviderStatus(live.Status),
		live.PeriodStart, live.PeriodEnd, live.CancelAtPeriodEnd)
}

func (s *lifecycleService) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("parse invoice: %w", err)
	}
	if invoice.Subscription == "" {
		return nil
	}

	sub, err := s.subRepo.FindByStripeID(ctx, invoice.Subscription)
	if err != nil {
		return fmt.Errorf("lookup subscription %s: %w", invoice.Subscription, err)
	}
	if sub == nil {
		log.Printf("webhook: payment failure for unknown subscription %s", invoice.Subscription)
		return nil
	}

	if err := s.subRepo.UpdateStatus(ctx, sub.ID, db_models.SubStatusPastDue); err != nil {
		return fmt.Errorf("mark past_due: %w", err)
	}

	// Best effort: the webhook ack never waits on email delivery.
	if org, orgErr := s.orgRepo.FindByID(ctx, sub.OrganizationID); orgErr == nil && org != nil {
		if mailErr := s.mail.SendPaymentFailedNotice(org.Email, org.Name); mailErr != nil {
			log.Printf("webhook: payment-failed notice to %s failed: %v", org.Email, mailErr)
		}
	}

	return nil
}

// handleSubscriptionUpdated is a sync, not a guarded transition: the payload
// values overwrite the local row as-is, so replaying it is harmless.
func (s *lifecycleService) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	var payload subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return fmt.Errorf("parse subscription: %w", err)
	}

	sub, err := s.subRepo.FindByStripeID(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("lookup subscription %s: %w", payload.ID, err)
	}
	if sub == nil {
		log.Printf("webhook: update for unknown subscription %s", payload.ID)
		return nil
	}

	return s.subRepo.UpdateProviderState(ctx, sub.ID, mapProviderStatus(payload.Status),
		payload.CurrentPeriodStart, payload.CurrentPeriodEnd, payload.CancelAtPeriodEnd)
}

func (s *lifecycleService) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var payload subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return fmt.Errorf("parse subscription: %w", err)
	}

	sub, err := s.subRepo.FindByStripeID(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("lookup subscription %s: %w", payload.ID, err)
	}
	if sub == nil {
		log.Printf("webhook: deletion for unknown subscription %s", payload.ID)
		return nil
	}

	canceledAt := payload.CanceledAt
	if canceledAt == 0 {
		canceledAt = utils.NowUnixSeconds()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db_models.Subscription{}).
			Where("id = ?", sub.ID).
			Updates(map[string]interface{}{
				"status":      db_models.SubStatusCanceled,
				"canceled_at": canceledAt,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&db_models.BillingCycle{}).
			Where("subscription_id = ? AND status = ?", sub.ID, db_models.CycleStatusActive).
			Update("status", db_models.CycleStatusClosed).Error
	})
}

func (s *lifecycleService) resolveOrganization(ctx context.Context, metaOrgID, customerID string) (*db_models.Organization, error) {
	if metaOrgID != "" {
		if id, err := uuid.Parse(metaOrgID); err == nil {
			org, err := s.orgRepo.FindByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("lookup org %s: %w", metaOrgID, err)
			}
			if org != nil {
				return org, nil
			}
		}
	}

	if customerID != "" {
		org, err := s.orgRepo.FindByStripeCustomerID(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("lookup org by customer %s: %w", customerID, err)
		}
		if org != nil {
			return org, nil
		}
	}

	return nil, fmt.Errorf("no organization for customer %q (metadata org %q)", customerID, metaOrgID)
}

func mapProviderStatus(status string) db_models.SubscriptionStatus {
	switch status {
	case "trialing":
		return db_models.SubStatusTrialing
	case "active":
		return db_models.SubStatusActive
	case "canceled":
		return db_models.SubStatusCanceled
	case "past_due", "unpaid", "incomplete", "incomplete_expired":
		return db_models.SubStatusPastDue
	default:
		return db_models.SubStatusActive
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
