package controllers

import (
	"github.com/gin-gonic/gin"
	"net/http"
	"voxbill/internal/models/request_models"
	"voxbill/internal/services"
	"voxbill/pkg/utils"
)

type OrganizationController struct {
	orgService services.OrganizationServiceInterface
}

func NewOrganizationController(orgService services.OrganizationServiceInterface) *OrganizationController {
	return &OrganizationController{
		orgService: orgService,
	}
}

// Register godoc
// @Summary Register a new organization
// @Description Create a new organization account
// @Tags Organizations
// @Accept json
// @Produce json
// @Param request body request_models.RegisterOrganizationRequest true "Organization registration payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /orgs/register [post]
func (o *OrganizationController) Register(c *gin.Context) {
	var req request_models.RegisterOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := o.orgService.Register(c.Request.Context(), req); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Organization created successfully")
}

// Login godoc
// @Summary Login to an organization account
// @Description Authenticate an organization and return a token
// @Tags Organizations
// @Accept json
// @Produce json
// @Param request body request_models.LoginRequest true "Login payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /orgs/login [post]
func (o *OrganizationController) Login(c *gin.Context) {
	var req request_models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	resp, err := o.orgService.Login(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Login successful")
}
