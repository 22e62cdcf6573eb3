package services

import (
	"context"
	"log"

	"github.com/google/uuid"
	"voxbill/internal/models/db_models"
	"voxbill/internal/models/response_models"
	"voxbill/internal/repositories"
	"voxbill/pkg/utils"
)

type CheckoutService interface {
	CreateCheckoutForPlan(ctx context.Context, orgID uuid.UUID, planID string, period db_models.BillingPeriod) (*response_models.CreateCheckoutResponse, error)
}

type checkoutService struct {
	planRepo repositories.IPlanRepository
	orgRepo  repositories.OrganizationRepository
	subRepo  repositories.SubscriptionRepository
	gateway  StripeGateway
}

func NewCheckoutService(
	planRepo repositories.IPlanRepository,
	orgRepo repositories.OrganizationRepository,
	subRepo repositories.SubscriptionRepository,
	gateway StripeGateway,
) CheckoutService {
	return &checkoutService{
		planRepo: planRepo,
		orgRepo:  orgRepo,
		subRepo:  subRepo,
		gateway:  gateway,
	}
}

// CreateCheckoutForPlan builds a provider checkout for the chosen plan and
// billing term. It may lazily create the organization's Stripe customer, but
// never creates a Subscription or BillingCycle row; those only appear once
// the provider confirms completion through the webhook.
func (s *checkoutService) CreateCheckoutForPlan(ctx context.Context, orgID uuid.UUID, planID string, period db_models.BillingPeriod) (*response_models.CreateCheckoutResponse, error) {
	if period != db_models.PeriodMonthly && period != db_models.PeriodYearly {
		return nil, utils.ErrInvalidRequest
	}

	plan, err := s.planRepo.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if plan == nil {
		return nil, utils.ErrPlanNotFound
	}
	if !plan.IsActive {
		return nil, utils.ErrInvalidRequest
	}

	priceID := plan.PriceIDForPeriod(period)
	if priceID == "" {
		return nil, utils.ErrInvalidRequest
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if org == nil {
		return nil, utils.ErrOrganizationNotFound
	}

	customerID, err := s.resolveCustomerID(ctx, org)
	if err != nil {
		return nil, err
	}

	params := CheckoutSessionParams{
		CustomerID:       customerID,
		RecurringPriceID: priceID,
		MeteredPriceID:   plan.StripeMeteredPriceID,
		OrgID:            org.ID.String(),
		PlanID:           plan.ID.String(),
		BillingPeriod:    string(period),
	}

	// Setup fee only for first-time customers: any subscription still in a
	// non-terminal status waives it, regardless of which plan it bought.
	if plan.StripeSetupFeeID != "" {
		hasLive, err := s.subRepo.HasNonTerminalByOrg(ctx, org.ID)
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if !hasLive {
			params.SetupFeePriceID = plan.StripeSetupFeeID
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		log.Printf("checkout: stripe session for org %s failed: %v", org.ID, err)
		return nil, utils.ErrUpstream
	}

	return &response_models.CreateCheckoutResponse{
		CheckoutURL: session.CheckoutURL,
		SessionID:   session.SessionID,
	}, nil
}

// resolveCustomerID reuses the stored Stripe customer or provisions one on
// first checkout. Persisting the new id locally is best effort: the checkout
// still proceeds if the write-back fails, and the webhook handler can recover
// the mapping from the event's customer field.
func (s *checkoutService) resolveCustomerID(ctx context.Context, org *db_models.Organization) (string, error) {
	if org.StripeCustomerID != nil && *org.StripeCustomerID != "" {
		return *org.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, org.ID.String(), org.Email, org.Name)
	if err != nil {
		log.Printf("checkout: stripe customer for org %s failed: %v", org.ID, err)
		return "", utils.ErrUpstream
	}

	if err := s.orgRepo.SetStripeCustomerID(ctx, org.ID, customerID); err != nil {
		log.Printf("checkout: persisting customer id for org %s failed: %v", org.ID, err)
	}

	return customerID, nil
}
