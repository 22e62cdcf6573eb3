package services

import (
	"context"

	"voxbill/internal/models/response_models"
	"voxbill/internal/repositories"
	"voxbill/pkg/utils"
)

type PlanServiceInterface interface {
	ListActivePlans(ctx context.Context) ([]response_models.PlanResponse, error)
}

type PlanService struct {
	planRepo repositories.IPlanRepository
}

func NewPlanService(planRepo repositories.IPlanRepository) PlanServiceInterface {
	return &PlanService{
		planRepo: planRepo,
	}
}

func (p *PlanService) ListActivePlans(ctx context.Context) ([]response_models.PlanResponse, error) {
	plans, err := p.planRepo.GetActivePlans(ctx)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}

	out := make([]response_models.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, response_models.PlanResponse{
			ID:               plan.ID,
			Code:             plan.Code,
			Name:             plan.Name,
			Description:      plan.Description,
			PriceMinor:       plan.PriceMinor,
			Currency:         plan.Currency,
			IncludedMinutes:  plan.IncludedMinutes,
			OverageRateMinor: plan.OverageRateMinor,
			IsActive:         plan.IsActive,
		})
	}

	return out, nil
}
