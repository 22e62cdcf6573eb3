package services

import (
	"context"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	meterevent "github.com/stripe/stripe-go/v82/billing/meterevent"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig carries the provider credentials and redirect targets.
type StripeConfig struct {
	SecretKey     string // sk_xxx
	WebhookSecret string // whsec_xxx, signs inbound events
	SuccessURL    string // e.g. https://yourapp.com/billing/success
	CancelURL     string // e.g. https://yourapp.com/billing/cancel
	MeterName     string // Stripe billing meter event_name for call minutes
}

// ProviderSubscription is the slice of Stripe's live subscription object the
// engine mirrors locally.
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	PeriodStart       int64
	PeriodEnd         int64
	CancelAtPeriodEnd bool
	CanceledAt        *int64
}

type CheckoutSessionParams struct {
	CustomerID       string
	RecurringPriceID string
	MeteredPriceID   string // optional
	SetupFeePriceID  string // optional, first-time customers only
	OrgID            string
	PlanID           string
	BillingPeriod    string
}

type CheckoutSessionResult struct {
	SessionID   string
	CheckoutURL string
}

// StripeGateway is the engine's only door to the external provider. Services
// depend on the interface so tests can swap in a fake.
type StripeGateway interface {
	CreateCustomer(ctx context.Context, orgID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSessionResult, error)
	GetSubscription(ctx context.Context, stripeSubID string) (*ProviderSubscription, error)
	// SendMeterEvent reports billed minutes with the call id as the
	// provider-side idempotency identifier; Stripe drops duplicates.
	SendMeterEvent(ctx context.Context, callID, customerID string, billedMinutes int64) (string, error)
	// VerifyEvent checks the request signature over the raw body and returns
	// the parsed event, or an error when the signature is bad.
	VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error)
}

type stripeGateway struct {
	cfg StripeConfig
}

func NewStripeGateway(cfg StripeConfig) StripeGateway {
	stripe.Key = cfg.SecretKey
	return &stripeGateway{cfg: cfg}
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, orgID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
		Metadata: map[string]string{
			"org_id": orgID,
		},
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe customer creation failed: %w", err)
	}

	return cust.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSessionResult, error) {
	lineItems := []*stripe.CheckoutSessionLineItemParams{
		{
			Price:    stripe.String(p.RecurringPriceID),
			Quantity: stripe.Int64(1),
		},
	}
	if p.MeteredPriceID != "" {
		// Metered prices must not carry a quantity.
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Price: stripe.String(p.MeteredPriceID),
		})
	}
	if p.SetupFeePriceID != "" {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(p.SetupFeePriceID),
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(p.CustomerID),
		LineItems:  lineItems,
		SuccessURL: stripe.String(g.cfg.SuccessURL),
		CancelURL:  stripe.String(g.cfg.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"org_id":         p.OrgID,
				"plan_id":        p.PlanID,
				"billing_period": p.BillingPeriod,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("org_id", p.OrgID)
	params.AddMetadata("plan_id", p.PlanID)

	session, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session failed: %w", err)
	}

	return &CheckoutSessionResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

func (g *stripeGateway) GetSubscription(ctx context.Context, stripeSubID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(stripeSubID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe subscription fetch failed: %w", err)
	}

	out := &ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	// Period bounds live on the subscription item since the Basil API.
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		out.PeriodStart = sub.Items.Data[0].CurrentPeriodStart
		out.PeriodEnd = sub.Items.Data[0].CurrentPeriodEnd
	}
	if sub.CanceledAt != 0 {
		ts := sub.CanceledAt
		out.CanceledAt = &ts
	}

	return out, nil
}

func (g *stripeGateway) SendMeterEvent(ctx context.Context, callID, customerID string, billedMinutes int64) (string, error) {
	params := &stripe.BillingMeterEventParams{
		EventName:  stripe.String(g.cfg.MeterName),
		Identifier: stripe.String(callID),
		Payload: map[string]string{
			"stripe_customer_id": customerID,
			"value":              strconv.FormatInt(billedMinutes, 10),
		},
	}
	params.Context = ctx

	event, err := meterevent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe meter event failed: %w", err)
	}

	return event.Identifier, nil
}

func (g *stripeGateway) VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	// The webhook endpoint is pinned to a fixed API version in the Stripe
	// dashboard, independent of the SDK pin.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}
	return &event, nil
}
