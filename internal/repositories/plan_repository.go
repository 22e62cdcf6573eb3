package repositories

import (
	"context"
	"errors"
	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
)

type IPlanRepository interface {
	GetPlanByID(ctx context.Context, planID string) (*db_models.Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*db_models.Plan, error)
	GetActivePlans(ctx context.Context) ([]db_models.Plan, error)
}

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) IPlanRepository {
	return &PlanRepository{db: db}
}

func (p *PlanRepository) GetPlanByID(ctx context.Context, planID string) (*db_models.Plan, error) {

	var plan db_models.Plan
	err := p.db.WithContext(ctx).First(&plan, "id = ?", planID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &plan, nil
}

func (p *PlanRepository) GetPlanByCode(ctx context.Context, code string) (*db_models.Plan, error) {

	var plan db_models.Plan
	err := p.db.WithContext(ctx).First(&plan, "code = ?", code).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &plan, nil
}

func (p *PlanRepository) GetActivePlans(ctx context.Context) ([]db_models.Plan, error) {

	var plans []db_models.Plan
	err := p.db.WithContext(ctx).Where("is_active = ?", true).Order("price_minor ASC").Find(&plans).Error

	if err != nil {
		return nil, err
	}

	return plans, nil
}
