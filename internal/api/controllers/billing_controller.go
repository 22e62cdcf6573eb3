package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"net/http"
	"voxbill/internal/models/db_models"
	"voxbill/internal/models/request_models"
	"voxbill/internal/services"
	"voxbill/pkg/utils"
)

type BillingController struct {
	checkoutService services.CheckoutService
	summaryService  services.SummaryService
}

func NewBillingController(
	checkoutService services.CheckoutService,
	summaryService services.SummaryService,
) *BillingController {
	return &BillingController{
		checkoutService: checkoutService,
		summaryService:  summaryService,
	}
}

// CreateCheckout godoc
// @Summary Start a subscription checkout
// @Description Creates a hosted checkout session for the authenticated organization and the chosen plan
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body request_models.CreateCheckoutRequest true "Checkout payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/checkout [post]
func (b *BillingController) CreateCheckout(c *gin.Context) {
	var req request_models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	orgID, err := uuid.Parse(c.GetString("org_id"))
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	resp, err := b.checkoutService.CreateCheckoutForPlan(
		c.Request.Context(), orgID, req.PlanID, db_models.BillingPeriod(req.BillingPeriod))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Checkout session created")
}

// GetSummary godoc
// @Summary Get the current billing summary
// @Description Returns the active subscription, plan and live cycle usage for the authenticated organization
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/summary [get]
func (b *BillingController) GetSummary(c *gin.Context) {
	orgID, err := uuid.Parse(c.GetString("org_id"))
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	resp, err := b.summaryService.GetBillingSummary(c.Request.Context(), orgID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Billing summary fetched successfully")
}
