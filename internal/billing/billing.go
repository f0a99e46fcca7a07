// Package billing is the gateway to the payment provider. It exposes flat
// domain values so callers never handle provider SDK types.
package billing

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrNoActivePrices   = errors.New("no active prices found for product")
	ErrInactiveProduct  = errors.New("product is not active")
)

// Webhook event types the reconciler reacts to.
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

type CheckoutParams struct {
	PriceID           string
	CustomerID        string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	TrialPeriodDays   int64
}

type CheckoutSession struct {
	ID                string
	URL               string
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
}

type Subscription struct {
	ID         string
	CustomerID string
	Status     string
	PriceID    string
	ProductID  string
	PlanName   string
}

type PortalParams struct {
	CustomerID string
	ProductID  string
	ReturnURL  string
}

type Price struct {
	ID              string `json:"id"`
	ProductID       string `json:"productId"`
	UnitAmount      int64  `json:"unitAmount"`
	Currency        string `json:"currency"`
	Interval        string `json:"interval"`
	TrialPeriodDays int64  `json:"trialPeriodDays"`
}

type Product struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	DefaultPriceID string `json:"defaultPriceId"`
}

// PlanParams describes a recurring plan to create in the provider.
type PlanParams struct {
	Name        string
	Description string
	UnitAmount  int64
	Currency    string
	Interval    string
}

// Event is a verified webhook delivery. Subscription is set for
// subscription events.
type Event struct {
	ID           string
	Type         string
	Subscription *Subscription
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	GetProductName(ctx context.Context, productID string) (string, error)
	CreatePortalSession(ctx context.Context, params PortalParams) (string, error)
	ListPrices(ctx context.Context) ([]Price, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ConstructEvent(payload []byte, signature string) (*Event, error)
}
