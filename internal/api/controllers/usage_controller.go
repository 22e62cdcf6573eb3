package controllers

import (
	"github.com/gin-gonic/gin"
	"net/http"
	"voxbill/internal/models/request_models"
	"voxbill/internal/services"
	"voxbill/pkg/utils"
)

type UsageController struct {
	usageService services.UsageService
}

func NewUsageController(usageService services.UsageService) *UsageController {
	return &UsageController{
		usageService: usageService,
	}
}

// ReportCallUsage godoc
// @Summary Report a completed call
// @Description Records billed minutes for a finished call, forwards them to the metering provider, and returns the updated cycle counters. Safe to retry with the same call_id.
// @Tags Usage
// @Accept json
// @Produce json
// @Param request body request_models.ReportCallUsageRequest true "Call usage payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /usage/calls [post]
func (u *UsageController) ReportCallUsage(c *gin.Context) {
	var req request_models.ReportCallUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	resp, err := u.usageService.ReportCallUsage(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Usage recorded")
}
