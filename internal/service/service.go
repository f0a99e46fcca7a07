package service

import (
	"context"
	"errors"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/billing"
	"github.com/Marga-Ghale/statement-saas/internal/config"
	"github.com/Marga-Ghale/statement-saas/internal/email"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrMissingSessionID    = errors.New("missing checkout session id")
	ErrMissingCustomer     = errors.New("no customer found for checkout session")
	ErrMissingSubscription = errors.New("no subscription found for checkout session")
	ErrMissingPlan         = errors.New("no plan found for subscription")
	ErrMissingProduct      = errors.New("no product id found for subscription")
	ErrMissingClientRef    = errors.New("no user id found in checkout session client reference")
	ErrMissingTeamForUser  = errors.New("user is not associated with any team")
)

// User-facing action messages
const (
	msgInvalidCredentials  = "Invalid email or password. Please try again."
	msgCreateUserFailed    = "Failed to create user. Please try again."
	msgInvalidInvitation   = "Invalid or expired invitation."
	msgWrongPassword       = "Current password is incorrect."
	msgSamePassword        = "New password must be different from the current password."
	msgPasswordUpdated     = "Password updated successfully."
	msgDeleteWrongPassword = "Incorrect password. Account deletion failed."
	msgAccountUpdated      = "Account updated successfully."
	msgEmailInUse          = "Email is already in use."
	msgNoTeam              = "User is not part of a team"
	msgAlreadyMember       = "User is already a member of this team"
	msgAlreadyInvited      = "An invitation has already been sent to this email"
	msgInvitationSent      = "Invitation sent successfully"
	msgMemberRemoved       = "Team member removed successfully"
	msgMemberNotFound      = "Team member not found"
)

// Redirect targets
const (
	routeConverter = "/converter"
	routeDashboard = "/dashboard"
	routeSignIn    = "/sign-in"
	routePricing   = "/pricing"
)

// Cache is the subset of the Redis helpers the services use.
type Cache interface {
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetCache(ctx context.Context, key string, dest interface{}) error
}

// InvitationMailer delivers invitation emails out of band.
type InvitationMailer interface {
	QueueTeamInvitation(to string, data email.TeamInvitationData)
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Account  AccountService
	Team     TeamService
	Billing  BillingService
	Activity ActivityService
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config  *config.Config
	Repos   *repository.Repositories
	Codec   *auth.SessionCodec
	Billing billing.Provider
	Cache   Cache
	Mailer  InvitationMailer
	Log     *logger.Logger
}

func NewServices(deps *ServiceDeps) *Services {
	users := newUserLookup(deps.Repos.UserRepo, deps.Repos.TeamRepo)
	activity := NewActivityService(deps.Repos.ActivityRepo, deps.Log.Named("activity"))

	billingSvc := NewBillingService(BillingDeps{
		Provider: deps.Billing,
		Users:    users,
		TeamRepo: deps.Repos.TeamRepo,
		Codec:    deps.Codec,
		Cache:    deps.Cache,
		CacheTTL: deps.Config.PricingCacheTTL,
		BaseURL:  deps.Config.BaseURL,
		Log:      deps.Log.Named("billing"),
	})

	return &Services{
		Account: NewAccountService(AccountDeps{
			Users:          users,
			UserRepo:       deps.Repos.UserRepo,
			TeamRepo:       deps.Repos.TeamRepo,
			InvitationRepo: deps.Repos.InvitationRepo,
			Activity:       activity,
			Checkout:       billingSvc,
			Codec:          deps.Codec,
			Log:            deps.Log.Named("account"),
		}),
		Team: NewTeamService(TeamDeps{
			Users:          users,
			TeamRepo:       deps.Repos.TeamRepo,
			InvitationRepo: deps.Repos.InvitationRepo,
			Activity:       activity,
			Mailer:         deps.Mailer,
			BaseURL:        deps.Config.BaseURL,
			Log:            deps.Log.Named("team"),
		}),
		Billing:  billingSvc,
		Activity: activity,
	}
}
