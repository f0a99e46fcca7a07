package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

const portalHeadline = "Manage your subscription"

var cancellationReasons = []string{
	"too_expensive",
	"missing_features",
	"switched_service",
	"unused",
	"other",
}

// Stripe implements Provider on top of stripe-go.
type Stripe struct {
	api           *client.API
	webhookSecret string
	log           *logger.Logger
}

func NewStripe(secretKey, webhookSecret string, log *logger.Logger) *Stripe {
	return &Stripe{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(p.SuccessURL),
		CancelURL:           stripe.String(p.CancelURL),
		ClientReferenceID:   stripe.String(p.ClientReferenceID),
		AllowPromotionCodes: stripe.Bool(true),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.TrialPeriodDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(p.TrialPeriodDays),
		}
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session failed: %w", err)
	}
	return checkoutSessionFromStripe(sess), nil
}

func (s *Stripe) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("customer")
	params.AddExpand("subscription")
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session lookup failed: %w", err)
	}
	return checkoutSessionFromStripe(sess), nil
}

func (s *Stripe) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.AddExpand("items.data.price.product")
	params.Context = ctx

	sub, err := s.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe subscription lookup failed: %w", err)
	}
	return subscriptionFromStripe(sub), nil
}

func (s *Stripe) GetProductName(ctx context.Context, productID string) (string, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx

	product, err := s.api.Products.Get(productID, params)
	if err != nil {
		return "", fmt.Errorf("stripe product lookup failed: %w", err)
	}
	return product.Name, nil
}

func (s *Stripe) CreatePortalSession(ctx context.Context, p PortalParams) (string, error) {
	configID, err := s.portalConfiguration(ctx, p.ProductID)
	if err != nil {
		return "", err
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:      stripe.String(p.CustomerID),
		ReturnURL:     stripe.String(p.ReturnURL),
		Configuration: stripe.String(configID),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session failed: %w", err)
	}
	return sess.URL, nil
}

// portalConfiguration reuses the account's first portal configuration and
// creates one for productID when none exists.
func (s *Stripe) portalConfiguration(ctx context.Context, productID string) (string, error) {
	listParams := &stripe.BillingPortalConfigurationListParams{}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := s.api.BillingPortalConfigurations.List(listParams)
	if iter.Next() {
		return iter.BillingPortalConfiguration().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("stripe portal configuration lookup failed: %w", err)
	}

	productParams := &stripe.ProductParams{}
	productParams.Context = ctx
	product, err := s.api.Products.Get(productID, productParams)
	if err != nil {
		return "", fmt.Errorf("stripe product lookup failed: %w", err)
	}
	if !product.Active {
		return "", ErrInactiveProduct
	}

	priceParams := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	priceParams.Context = ctx
	var priceIDs []string
	prices := s.api.Prices.List(priceParams)
	for prices.Next() {
		priceIDs = append(priceIDs, prices.Price().ID)
	}
	if err := prices.Err(); err != nil {
		return "", fmt.Errorf("stripe price listing failed: %w", err)
	}
	if len(priceIDs) == 0 {
		return "", ErrNoActivePrices
	}

	params := &stripe.BillingPortalConfigurationParams{
		BusinessProfile: &stripe.BillingPortalConfigurationBusinessProfileParams{
			Headline: stripe.String(portalHeadline),
		},
		Features: &stripe.BillingPortalConfigurationFeaturesParams{
			SubscriptionUpdate: &stripe.BillingPortalConfigurationFeaturesSubscriptionUpdateParams{
				Enabled:               stripe.Bool(true),
				DefaultAllowedUpdates: stripe.StringSlice([]string{"price", "quantity", "promotion_code"}),
				ProrationBehavior:     stripe.String("create_prorations"),
				Products: []*stripe.BillingPortalConfigurationFeaturesSubscriptionUpdateProductParams{
					{
						Product: stripe.String(product.ID),
						Prices:  stripe.StringSlice(priceIDs),
					},
				},
			},
			SubscriptionCancel: &stripe.BillingPortalConfigurationFeaturesSubscriptionCancelParams{
				Enabled: stripe.Bool(true),
				Mode:    stripe.String("at_period_end"),
				CancellationReason: &stripe.BillingPortalConfigurationFeaturesSubscriptionCancelCancellationReasonParams{
					Enabled: stripe.Bool(true),
					Options: stripe.StringSlice(cancellationReasons),
				},
			},
			PaymentMethodUpdate: &stripe.BillingPortalConfigurationFeaturesPaymentMethodUpdateParams{
				Enabled: stripe.Bool(true),
			},
		},
	}
	params.Context = ctx

	config, err := s.api.BillingPortalConfigurations.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal configuration failed: %w", err)
	}
	s.log.Info("[Stripe] created portal configuration", "configuration", config.ID, "product", product.ID)
	return config.ID, nil
}

func (s *Stripe) ListPrices(ctx context.Context) ([]Price, error) {
	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
		Type:   stripe.String(string(stripe.PriceTypeRecurring)),
	}
	params.AddExpand("data.product")
	params.Context = ctx

	var prices []Price
	iter := s.api.Prices.List(params)
	for iter.Next() {
		prices = append(prices, priceFromStripe(iter.Price()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe price listing failed: %w", err)
	}
	return prices, nil
}

func (s *Stripe) ListProducts(ctx context.Context) ([]Product, error) {
	params := &stripe.ProductListParams{
		Active: stripe.Bool(true),
	}
	params.AddExpand("data.default_price")
	params.Context = ctx

	var products []Product
	iter := s.api.Products.List(params)
	for iter.Next() {
		products = append(products, productFromStripe(iter.Product()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe product listing failed: %w", err)
	}
	return products, nil
}

// CreatePlan creates a product with one recurring price and makes that
// price the product's default.
func (s *Stripe) CreatePlan(ctx context.Context, p PlanParams) (*Product, error) {
	productParams := &stripe.ProductParams{
		Name:        stripe.String(p.Name),
		Description: stripe.String(p.Description),
	}
	productParams.Context = ctx
	product, err := s.api.Products.New(productParams)
	if err != nil {
		return nil, fmt.Errorf("stripe product creation failed: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(p.UnitAmount),
		Currency:   stripe.String(p.Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(p.Interval),
		},
	}
	priceParams.Context = ctx
	price, err := s.api.Prices.New(priceParams)
	if err != nil {
		return nil, fmt.Errorf("stripe price creation failed: %w", err)
	}

	updateParams := &stripe.ProductParams{DefaultPrice: stripe.String(price.ID)}
	updateParams.Context = ctx
	if _, err := s.api.Products.Update(product.ID, updateParams); err != nil {
		return nil, fmt.Errorf("stripe default price update failed: %w", err)
	}

	s.log.Info("[Stripe] created plan", "product", product.ID, "price", price.ID)
	return &Product{
		ID:             product.ID,
		Name:           product.Name,
		Description:    product.Description,
		DefaultPriceID: price.ID,
	}, nil
}

func (s *Stripe) ConstructEvent(payload []byte, signature string) (*Event, error) {
	return constructEvent(payload, signature, s.webhookSecret)
}

func constructEvent(payload []byte, signature, secret string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		secret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		out.Subscription = subscriptionFromStripe(&sub)
	}
	return out, nil
}

func checkoutSessionFromStripe(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:                sess.ID,
		URL:               sess.URL,
		ClientReferenceID: sess.ClientReferenceID,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	return out
}

func subscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if price := sub.Items.Data[0].Price; price != nil {
			out.PriceID = price.ID
			if price.Product != nil {
				out.ProductID = price.Product.ID
				out.PlanName = price.Product.Name
			}
		}
	}
	return out
}

func priceFromStripe(p *stripe.Price) Price {
	out := Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
		out.TrialPeriodDays = p.Recurring.TrialPeriodDays
	}
	return out
}

func productFromStripe(p *stripe.Product) Product {
	out := Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
	}
	if p.DefaultPrice != nil {
		out.DefaultPriceID = p.DefaultPrice.ID
	}
	return out
}

// ClientReference encodes a user id for a checkout session.
func ClientReference(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// ParseClientReference reverses ClientReference.
func ParseClientReference(ref string) (int64, error) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid client reference %q", ref)
	}
	return id, nil
}
