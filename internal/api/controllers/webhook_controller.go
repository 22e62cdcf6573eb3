package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"voxbill/internal/services"
	"voxbill/pkg/utils"
)

type WebhookController struct {
	lifecycleService services.LifecycleService
}

func NewWebhookController(lifecycleService services.LifecycleService) *WebhookController {
	return &WebhookController{
		lifecycleService: lifecycleService,
	}
}

// HandleStripeEvent godoc
// @Summary Receive Stripe webhook events
// @Description Verifies the event signature and applies subscription lifecycle changes. Always acks verified events.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature header"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} utils.APIResponse
// @Router /webhooks/stripe [post]
func (w *WebhookController) HandleStripeEvent(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Unable to read request body")
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")

	if err := w.lifecycleService.ProcessEvent(c.Request.Context(), payload, sigHeader); err != nil {
		if errors.Is(err, utils.ErrUnauthorized) {
			utils.RespondError(c, http.StatusBadRequest, "Invalid webhook signature")
			return
		}
		utils.HandleServiceError(c, err)
		return
	}

	// Stripe only needs a 2xx to stop retrying.
	c.JSON(http.StatusOK, gin.H{"received": true})
}
