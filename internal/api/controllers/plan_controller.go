package controllers

import (
	"github.com/gin-gonic/gin"
	"voxbill/internal/services"
	"voxbill/pkg/utils"
)

type PlanController struct {
	planService services.PlanServiceInterface
}

func NewPlanController(planService services.PlanServiceInterface) *PlanController {
	return &PlanController{
		planService: planService,
	}
}

// ListPlans godoc
// @Summary List purchasable plans
// @Description Returns all active plans with pricing and included minutes
// @Tags Plans
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /plans [get]
func (p *PlanController) ListPlans(c *gin.Context) {
	plans, err := p.planService.ListActivePlans(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, plans, "Plans fetched successfully")
}
