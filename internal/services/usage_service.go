package services

import (
	"context"
	"errors"
	"log"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
	"voxbill/internal/models/request_models"
	"voxbill/internal/models/response_models"
	"voxbill/internal/repositories"
	"voxbill/pkg/utils"
)

// UsageService turns one completed call into provider-billable minutes.
// Ordering is deliberate: idempotency check, then the meter event, then the
// local cycle update, then the append-only record. The meter event goes
// first because understating the provider's ledger is the one failure mode
// that loses money.
type UsageService interface {
	ReportCallUsage(ctx context.Context, req request_models.ReportCallUsageRequest) (*response_models.ReportCallUsageResponse, error)
}

type usageService struct {
	orgRepo    repositories.OrganizationRepository
	subRepo    repositories.SubscriptionRepository
	cycleRepo  repositories.BillingCycleRepository
	recordRepo repositories.UsageRecordRepository
	gateway    StripeGateway
}

func NewUsageService(
	orgRepo repositories.OrganizationRepository,
	subRepo repositories.SubscriptionRepository,
	cycleRepo repositories.BillingCycleRepository,
	recordRepo repositories.UsageRecordRepository,
	gateway StripeGateway,
) UsageService {
	return &usageService{
		orgRepo:    orgRepo,
		subRepo:    subRepo,
		cycleRepo:  cycleRepo,
		recordRepo: recordRepo,
		gateway:    gateway,
	}
}

// BilledMinutes rounds a raw call duration up to whole minutes. Nonzero work
// never bills zero.
func BilledMinutes(rawMinutes float64) int64 {
	return int64(math.Ceil(rawMinutes))
}

func (s *usageService) ReportCallUsage(ctx context.Context, req request_models.ReportCallUsageRequest) (*response_models.ReportCallUsageResponse, error) {
	orgID, err := uuid.Parse(req.OrgID)
	if err != nil || req.CallID == "" || req.CallDurationMinutes <= 0 ||
		math.IsNaN(req.CallDurationMinutes) || math.IsInf(req.CallDurationMinutes, 0) {
		return nil, utils.ErrInvalidRequest
	}

	billed := BilledMinutes(req.CallDurationMinutes)

	// Idempotency guard: a retried call id returns the original outcome with
	// no further writes and no second meter event.
	existing, err := s.recordRepo.FindByCallID(ctx, req.CallID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if existing != nil {
		return s.duplicateResponse(ctx, existing), nil
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if org == nil {
		return nil, utils.ErrOrganizationNotFound
	}
	if org.StripeCustomerID == nil || *org.StripeCustomerID == "" {
		// Never checked out; there is no customer to bill against.
		return nil, utils.ErrInvalidRequest
	}

	sub, err := s.subRepo.FindActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if sub == nil {
		return nil, utils.ErrSubscriptionNotFound
	}

	// Fail closed: no local mutation until the provider has the minutes.
	meterEventID, err := s.gateway.SendMeterEvent(ctx, req.CallID, *org.StripeCustomerID, billed)
	if err != nil {
		log.Printf("usage: meter event for call %s failed: %v", req.CallID, err)
		return nil, utils.ErrUpstream
	}

	resp := &response_models.ReportCallUsageResponse{
		CallID:             req.CallID,
		BilledMinutes:      billed,
		RawDurationMinutes: req.CallDurationMinutes,
		MeterEventSent:     true,
	}

	record := &db_models.UsageRecord{
		CallID:             req.CallID,
		OrganizationID:     orgID,
		SubscriptionID:     sub.ID,
		RawDurationMinutes: req.CallDurationMinutes,
		BilledMinutes:      billed,
		StripeMeterEventID: meterEventID,
	}

	cycle, err := s.cycleRepo.FindActiveBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if cycle == nil {
		// Provider already billed correctly; local dashboards go stale for
		// this cycle and reconciliation picks it up from the usage record.
		log.Printf("usage: no active cycle for subscription %s, call %s", sub.ID, req.CallID)
	} else {
		if err := s.cycleRepo.ApplyUsage(ctx, cycle.ID, billed, sub.Plan.OverageRateMinor); err != nil {
			return nil, utils.ErrDatabaseError
		}
		record.BillingCycleID = &cycle.ID

		updated, err := s.cycleRepo.FindByID(ctx, cycle.ID)
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if updated != nil {
			resp.TotalMinutesUsed = updated.MinutesUsed
			resp.OverageMinutes = updated.OverageMinutes
		}
	}

	if err := s.recordRepo.Insert(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent retry slipped past the pre-check. Stripe already
			// deduplicated the meter event by identifier; the doubled local
			// increment is logged for reconciliation.
			log.Printf("usage: concurrent duplicate for call %s", req.CallID)
			if winner, ferr := s.recordRepo.FindByCallID(ctx, req.CallID); ferr == nil && winner != nil {
				return s.duplicateResponse(ctx, winner), nil
			}
			return s.duplicateResponse(ctx, record), nil
		}
		return nil, utils.ErrDatabaseError
	}

	return resp, nil
}

// duplicateResponse rebuilds the success payload for an already-applied call
// without touching the provider or writing anything.
func (s *usageService) duplicateResponse(ctx context.Context, record *db_models.UsageRecord) *response_models.ReportCallUsageResponse {
	resp := &response_models.ReportCallUsageResponse{
		CallID:             record.CallID,
		BilledMinutes:      record.BilledMinutes,
		RawDurationMinutes: record.RawDurationMinutes,
		MeterEventSent:     true,
		Duplicate:          true,
	}

	if record.BillingCycleID != nil {
		if cycle, err := s.cycleRepo.FindByID(ctx, *record.BillingCycleID); err == nil && cycle != nil {
			resp.TotalMinutesUsed = cycle.MinutesUsed
			resp.OverageMinutes = cycle.OverageMinutes
		}
	}

	return resp
}
