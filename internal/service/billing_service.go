package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/action"
	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/billing"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"github.com/Marga-Ghale/statement-saas/internal/types"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	checkoutTrialDays = 14
	catalogCacheKey   = "pricing:catalog"
)

// ============================================
// Billing Service
// ============================================

type BillingService interface {
	CheckoutStarter
	Checkout(ctx context.Context, form action.Form) (*action.Result, error)
	CustomerPortal(ctx context.Context, form action.Form) (*action.Result, error)
	CompleteCheckout(ctx context.Context, sessionID string) (*action.Result, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	ApplySubscriptionChange(ctx context.Context, sub *billing.Subscription) error
	Catalog(ctx context.Context) (*Catalog, error)
	RefreshCatalog(ctx context.Context) (*Catalog, error)
}

// CatalogPlan is one purchasable plan on the pricing page.
type CatalogPlan struct {
	ProductID       string          `json:"productId"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	PriceID         string          `json:"priceId"`
	Amount          decimal.Decimal `json:"amount"`
	Display         string          `json:"display"`
	Currency        string          `json:"currency"`
	Interval        string          `json:"interval"`
	TrialPeriodDays int64           `json:"trialPeriodDays"`
}

type Catalog struct {
	Plans     []CatalogPlan `json:"plans"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

type BillingDeps struct {
	Provider billing.Provider
	Users    *userLookup
	TeamRepo repository.TeamRepository
	Codec    *auth.SessionCodec
	Cache    Cache
	CacheTTL time.Duration
	BaseURL  string
	Log      *logger.Logger
}

type billingService struct {
	provider billing.Provider
	users    *userLookup
	teamRepo repository.TeamRepository
	codec    *auth.SessionCodec
	cache    Cache
	cacheTTL time.Duration
	baseURL  string
	log      *logger.Logger
	now      func() time.Time

	checkout action.Func
	portal   action.Func
}

func NewBillingService(deps BillingDeps) BillingService {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &billingService{
		provider: deps.Provider,
		users:    deps.Users,
		teamRepo: deps.TeamRepo,
		codec:    deps.Codec,
		cache:    deps.Cache,
		cacheTTL: ttl,
		baseURL:  strings.TrimRight(deps.BaseURL, "/"),
		log:      deps.Log,
		now:      time.Now,
	}
	s.checkout = action.ValidatedWithUser(checkoutSchema, s.users.Current, s.handleCheckout)
	s.portal = action.ValidatedWithUser(portalSchema, s.users.Current, s.handlePortal)
	return s
}

// CreateCheckout returns the URL the user should be sent to in order to
// subscribe to priceID. Visitors without an account are sent to sign up
// first.
func (s *billingService) CreateCheckout(ctx context.Context, team *repository.Team, user *repository.User, priceID string) (string, error) {
	if team == nil || user == nil {
		q := url.Values{"redirect": {"checkout"}, "priceId": {priceID}}
		return "/sign-up?" + q.Encode(), nil
	}

	params := billing.CheckoutParams{
		PriceID:           priceID,
		ClientReferenceID: billing.ClientReference(user.ID),
		SuccessURL:        s.baseURL + "/api/stripe/checkout?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.baseURL + routePricing,
		TrialPeriodDays:   checkoutTrialDays,
	}
	if team.StripeCustomerID != nil {
		params.CustomerID = *team.StripeCustomerID
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ============================================
// Checkout & portal actions
// ============================================

type checkoutInput struct {
	PriceID string `json:"priceId"`
}

func (in checkoutInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.PriceID, validation.Required.Error("Price is required")),
	)
}

var checkoutSchema = action.Schema[checkoutInput]{
	Fields: []string{"priceId"},
	Bind: func(f action.Form) checkoutInput {
		return checkoutInput{PriceID: strings.TrimSpace(f.Get("priceId"))}
	},
}

type portalInput struct{}

func (portalInput) Validate() error { return nil }

var portalSchema = action.Schema[portalInput]{
	Bind: func(action.Form) portalInput { return portalInput{} },
}

func (s *billingService) Checkout(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.checkout(ctx, form)
}

func (s *billingService) CustomerPortal(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.portal(ctx, form)
}

func (s *billingService) handleCheckout(ctx context.Context, in checkoutInput, form action.Form, user *repository.User) (*action.Result, error) {
	team, err := s.requireTeam(ctx, user)
	if err != nil {
		return nil, err
	}
	target, err := s.CreateCheckout(ctx, team, user, in.PriceID)
	if err != nil {
		return nil, err
	}
	return action.RedirectTo(target), nil
}

func (s *billingService) handlePortal(ctx context.Context, _ portalInput, form action.Form, user *repository.User) (*action.Result, error) {
	team, err := s.requireTeam(ctx, user)
	if err != nil {
		return nil, err
	}
	if team.StripeCustomerID == nil || team.StripeProductID == nil {
		return action.RedirectTo(routePricing), nil
	}

	portalURL, err := s.provider.CreatePortalSession(ctx, billing.PortalParams{
		CustomerID: *team.StripeCustomerID,
		ProductID:  *team.StripeProductID,
		ReturnURL:  s.baseURL + routeDashboard,
	})
	if err != nil {
		return nil, err
	}
	return action.RedirectTo(portalURL), nil
}

func (s *billingService) requireTeam(ctx context.Context, user *repository.User) (*repository.Team, error) {
	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

// ============================================
// Reconciliation
// ============================================

// CompleteCheckout records the subscription created by a finished checkout
// on the purchasing user's team and signs that user in.
func (s *billingService) CompleteCheckout(ctx context.Context, sessionID string) (*action.Result, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CustomerID == "" {
		return nil, ErrMissingCustomer
	}
	if sess.SubscriptionID == "" {
		return nil, ErrMissingSubscription
	}

	sub, err := s.provider.GetSubscription(ctx, sess.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.PriceID == "" {
		return nil, ErrMissingPlan
	}
	if sub.ProductID == "" {
		return nil, ErrMissingProduct
	}

	if sess.ClientReferenceID == "" {
		return nil, ErrMissingClientRef
	}
	userID, err := billing.ParseClientReference(sess.ClientReferenceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingClientRef, err)
	}

	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}
	if team == nil {
		return nil, ErrMissingTeamForUser
	}

	update := repository.SubscriptionUpdate{
		CustomerID:     optional(sess.CustomerID),
		SubscriptionID: optional(sub.ID),
		ProductID:      optional(sub.ProductID),
		PlanName:       optional(sub.PlanName),
		Status:         sub.Status,
	}
	if err := s.teamRepo.UpdateSubscription(ctx, team.ID, update); err != nil {
		return nil, fmt.Errorf("failed to update team subscription: %w", err)
	}

	session, err := s.codec.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("[Billing] checkout completed", "team_id", team.ID, "subscription", sub.ID, "status", sub.Status)
	return &action.Result{Redirect: routeDashboard, Session: session}, nil
}

// HandleWebhook verifies a provider delivery and applies subscription
// events. Unrelated event types are accepted and ignored.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return fmt.Errorf("%w: event %s has no subscription", billing.ErrInvalidPayload, event.ID)
		}
		return s.ApplySubscriptionChange(ctx, event.Subscription)
	default:
		s.log.Debug("[Billing] unhandled webhook event", "type", event.Type, "event", event.ID)
		return nil
	}
}

// ApplySubscriptionChange overwrites the billing columns of the team owning
// sub's customer. Replaying the same change leaves the team unchanged.
func (s *billingService) ApplySubscriptionChange(ctx context.Context, sub *billing.Subscription) error {
	team, err := s.teamRepo.FindByStripeCustomerID(ctx, sub.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to look up team: %w", err)
	}
	if team == nil {
		s.log.Warn("[Billing] team not found for customer", "customer", sub.CustomerID, "subscription", sub.ID)
		return nil
	}

	status := types.SubscriptionStatus(sub.Status)
	var update repository.SubscriptionUpdate

	switch {
	case status.IsLive():
		planName := sub.PlanName
		if planName == "" && sub.ProductID != "" {
			planName, err = s.provider.GetProductName(ctx, sub.ProductID)
			if err != nil {
				return err
			}
		}
		update = repository.SubscriptionUpdate{
			SubscriptionID: optional(sub.ID),
			ProductID:      optional(sub.ProductID),
			PlanName:       optional(planName),
			Status:         sub.Status,
		}
	case status.IsEnded():
		update = repository.SubscriptionUpdate{Status: sub.Status}
	default:
		s.log.Info("[Billing] ignoring subscription status", "team_id", team.ID, "status", sub.Status)
		return nil
	}

	if err := s.teamRepo.UpdateSubscription(ctx, team.ID, update); err != nil {
		return fmt.Errorf("failed to update team subscription: %w", err)
	}
	s.log.Info("[Billing] subscription updated", "team_id", team.ID, "status", sub.Status)
	return nil
}

// ============================================
// Pricing catalog
// ============================================

// Catalog serves the pricing catalog from cache when possible.
func (s *billingService) Catalog(ctx context.Context) (*Catalog, error) {
	if s.cache != nil {
		var cached Catalog
		err := s.cache.GetCache(ctx, catalogCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		s.log.Debug("[Billing] catalog cache miss", "error", err)
	}
	return s.RefreshCatalog(ctx)
}

// RefreshCatalog fetches prices and products from the provider and stores
// the result in the cache.
func (s *billingService) RefreshCatalog(ctx context.Context) (*Catalog, error) {
	var (
		prices   []billing.Price
		products []billing.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = s.provider.ListPrices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.provider.ListProducts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load pricing: %w", err)
	}

	catalog := buildCatalog(products, prices)
	catalog.FetchedAt = s.now().UTC()

	if s.cache != nil {
		if err := s.cache.SetCache(ctx, catalogCacheKey, catalog, s.cacheTTL); err != nil {
			s.log.Warn("[Billing] failed to cache catalog", "error", err)
		}
	}
	return catalog, nil
}

func buildCatalog(products []billing.Product, prices []billing.Price) *Catalog {
	catalog := &Catalog{Plans: []CatalogPlan{}}

	for _, product := range products {
		price, ok := priceFor(product, prices)
		if !ok {
			continue
		}
		amount := decimal.New(price.UnitAmount, -2)
		catalog.Plans = append(catalog.Plans, CatalogPlan{
			ProductID:       product.ID,
			Name:            product.Name,
			Description:     product.Description,
			PriceID:         price.ID,
			Amount:          amount,
			Display:         amount.StringFixed(2),
			Currency:        price.Currency,
			Interval:        price.Interval,
			TrialPeriodDays: price.TrialPeriodDays,
		})
	}

	sort.SliceStable(catalog.Plans, func(i, j int) bool {
		return catalog.Plans[i].Amount.LessThan(catalog.Plans[j].Amount)
	})
	return catalog
}

// priceFor prefers the product's default price and falls back to any
// recurring price of the product.
func priceFor(product billing.Product, prices []billing.Price) (billing.Price, bool) {
	var fallback *billing.Price
	for i := range prices {
		p := prices[i]
		if p.ProductID != product.ID {
			continue
		}
		if p.ID == product.DefaultPriceID {
			return p, true
		}
		if fallback == nil {
			fallback = &prices[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return billing.Price{}, false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsBillingInputError reports whether err came from a bad webhook delivery
// rather than from this service.
func IsBillingInputError(err error) bool {
	return errors.Is(err, billing.ErrInvalidSignature) || errors.Is(err, billing.ErrInvalidPayload)
}
