package services

import (
	"context"

	"github.com/google/uuid"
	"voxbill/internal/models/response_models"
	"voxbill/internal/repositories"
	"voxbill/pkg/utils"
)

// SummaryService is the read-only projection behind customer dashboards: the
// current subscription plus the live cycle's usage counters. It never writes.
type SummaryService interface {
	GetBillingSummary(ctx context.Context, orgID uuid.UUID) (*response_models.BillingSummaryResponse, error)
}

type summaryService struct {
	subRepo   repositories.SubscriptionRepository
	cycleRepo repositories.BillingCycleRepository
}

func NewSummaryService(subRepo repositories.SubscriptionRepository, cycleRepo repositories.BillingCycleRepository) SummaryService {
	return &summaryService{
		subRepo:   subRepo,
		cycleRepo: cycleRepo,
	}
}

func (s *summaryService) GetBillingSummary(ctx context.Context, orgID uuid.UUID) (*response_models.BillingSummaryResponse, error) {
	sub, err := s.subRepo.FindActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if sub == nil {
		return nil, utils.ErrSubscriptionNotFound
	}

	out := &response_models.BillingSummaryResponse{
		OrganizationID:     orgID,
		PlanCode:           sub.Plan.Code,
		PlanName:           sub.Plan.Name,
		Status:             string(sub.Status),
		BillingPeriod:      string(sub.BillingPeriod),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}

	cycle, err := s.cycleRepo.FindActiveBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if cycle != nil {
		out.MinutesIncluded = cycle.MinutesIncluded
		out.MinutesUsed = cycle.MinutesUsed
		out.OverageMinutes = cycle.OverageMinutes
		out.OverageCostMinor = cycle.OverageCostMinor
	}

	return out, nil
}
