package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Marga-Ghale/statement-saas/internal/action"
	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"github.com/Marga-Ghale/statement-saas/internal/types"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ============================================
// Account Service
// ============================================

type AccountService interface {
	SignIn(ctx context.Context, form action.Form) (*action.Result, error)
	SignUp(ctx context.Context, form action.Form) (*action.Result, error)
	SignOut(ctx context.Context) (*action.Result, error)
	UpdatePassword(ctx context.Context, form action.Form) (*action.Result, error)
	DeleteAccount(ctx context.Context, form action.Form) (*action.Result, error)
	UpdateAccount(ctx context.Context, form action.Form) (*action.Result, error)
	CurrentUser(ctx context.Context) (*repository.User, error)
}

// CheckoutStarter opens a billing checkout for a signed-in user.
type CheckoutStarter interface {
	CreateCheckout(ctx context.Context, team *repository.Team, user *repository.User, priceID string) (string, error)
}

type AccountDeps struct {
	Users          *userLookup
	UserRepo       repository.UserRepository
	TeamRepo       repository.TeamRepository
	InvitationRepo repository.InvitationRepository
	Activity       ActivityService
	Checkout       CheckoutStarter
	Codec          *auth.SessionCodec
	Log            *logger.Logger
}

type accountService struct {
	users          *userLookup
	userRepo       repository.UserRepository
	teamRepo       repository.TeamRepository
	invitationRepo repository.InvitationRepository
	activity       ActivityService
	checkout       CheckoutStarter
	codec          *auth.SessionCodec
	log            *logger.Logger

	signIn         action.Func
	signUp         action.Func
	updatePassword action.Func
	deleteAccount  action.Func
	updateAccount  action.Func
}

func NewAccountService(deps AccountDeps) AccountService {
	s := &accountService{
		users:          deps.Users,
		userRepo:       deps.UserRepo,
		teamRepo:       deps.TeamRepo,
		invitationRepo: deps.InvitationRepo,
		activity:       deps.Activity,
		checkout:       deps.Checkout,
		codec:          deps.Codec,
		log:            deps.Log,
	}
	s.signIn = action.Validated(signInSchema, s.handleSignIn)
	s.signUp = action.Validated(signUpSchema, s.handleSignUp)
	s.updatePassword = action.ValidatedWithUser(updatePasswordSchema, s.users.Current, s.handleUpdatePassword)
	s.deleteAccount = action.ValidatedWithUser(deleteAccountSchema, s.users.Current, s.handleDeleteAccount)
	s.updateAccount = action.ValidatedWithUser(updateAccountSchema, s.users.Current, s.handleUpdateAccount)
	return s
}

func (s *accountService) SignIn(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.signIn(ctx, form)
}

func (s *accountService) SignUp(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.signUp(ctx, form)
}

func (s *accountService) UpdatePassword(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.updatePassword(ctx, form)
}

func (s *accountService) DeleteAccount(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.deleteAccount(ctx, form)
}

func (s *accountService) UpdateAccount(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.updateAccount(ctx, form)
}

func (s *accountService) CurrentUser(ctx context.Context) (*repository.User, error) {
	return s.users.Current(ctx)
}

// ============================================
// Sign in
// ============================================

type signInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in signInInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email,
			validation.Required.Error("Email is required"),
			validation.Length(3, 255).Error("Email must be between 3 and 255 characters"),
			is.Email.Error("Invalid email address"),
		),
		validation.Field(&in.Password, passwordRules("Password")...),
	)
}

var signInSchema = action.Schema[signInInput]{
	Fields: []string{"email", "password"},
	Bind: func(f action.Form) signInInput {
		return signInInput{Email: strings.TrimSpace(f.Get("email")), Password: f.Get("password")}
	},
}

func (s *accountService) handleSignIn(ctx context.Context, in signInInput, form action.Form) (*action.Result, error) {
	user, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !auth.VerifyPassword(in.Password, user.PasswordHash) {
		return action.Fail(msgInvalidCredentials, signInSchema.Echo(form)), nil
	}

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}

	ip := clientIP(ctx)
	session, err := s.issueAlongside(ctx, user.ID, func(ctx context.Context) error {
		s.activity.Record(ctx, teamIDOf(team), user.ID, types.ActivitySignIn, ip)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, "[Account] user signed in")
	return s.landing(ctx, form, team, user, session, routeConverter)
}

// ============================================
// Sign up
// ============================================

type signUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	InviteID string `json:"inviteId"`
	UUID     string `json:"uuid"`
}

func (in signUpInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Invalid email address"),
		),
		validation.Field(&in.Password,
			validation.Required.Error("Password is required"),
			validation.Length(8, 0).Error("Password must be at least 8 characters"),
		),
		validation.Field(&in.InviteID, is.Int.Error("Invalid or expired invitation.")),
		validation.Field(&in.UUID, validation.Length(0, 64).Error("Invalid session identifier")),
	)
}

var signUpSchema = action.Schema[signUpInput]{
	Fields: []string{"email", "password", "inviteId", "uuid"},
	Bind: func(f action.Form) signUpInput {
		return signUpInput{
			Email:    strings.TrimSpace(f.Get("email")),
			Password: f.Get("password"),
			InviteID: strings.TrimSpace(f.Get("inviteId")),
			UUID:     strings.TrimSpace(f.Get("uuid")),
		}
	},
}

func (s *accountService) handleSignUp(ctx context.Context, in signUpInput, form action.Form) (*action.Result, error) {
	fields := signUpSchema.Echo(form)

	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return action.Fail(msgCreateUserFailed, fields), nil
	}

	// The invitation is checked before any write so a bad invite leaves
	// nothing behind.
	var invitation *repository.Invitation
	if in.InviteID != "" {
		inviteID, err := strconv.ParseInt(in.InviteID, 10, 64)
		if err != nil {
			return action.Fail(msgInvalidInvitation, fields), nil
		}
		invitation, err = s.invitationRepo.FindPending(ctx, inviteID, in.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up invitation: %w", err)
		}
		if invitation == nil {
			return action.Fail(msgInvalidInvitation, fields), nil
		}
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	sessionUUID := in.UUID
	if sessionUUID == "" {
		sessionUUID = uuid.New().String()
	}

	user := &repository.User{
		UUID:         sessionUUID,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         types.RoleOwner,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return action.Fail(msgCreateUserFailed, fields), nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	ip := clientIP(ctx)
	memberRole := types.RoleOwner
	var team *repository.Team

	if invitation != nil {
		memberRole = invitation.Role
		if err := s.invitationRepo.MarkAccepted(ctx, invitation.ID); err != nil {
			return nil, fmt.Errorf("failed to accept invitation: %w", err)
		}
		s.activity.Record(ctx, &invitation.TeamID, user.ID, types.ActivityAcceptInvitation, ip)

		team, err = s.teamRepo.FindByID(ctx, invitation.TeamID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up team: %w", err)
		}
		if team == nil {
			return nil, ErrTeamNotFound
		}
	} else {
		team = &repository.Team{Name: fmt.Sprintf("%s's Team", in.Email)}
		if err := s.teamRepo.Create(ctx, team); err != nil {
			return nil, fmt.Errorf("failed to create team: %w", err)
		}
		s.activity.Record(ctx, &team.ID, user.ID, types.ActivityCreateTeam, ip)
	}

	session, err := s.issueAlongside(ctx, user.ID,
		func(ctx context.Context) error {
			member := &repository.TeamMember{UserID: user.ID, TeamID: team.ID, Role: memberRole}
			if err := s.teamRepo.AddMember(ctx, member); err != nil {
				return fmt.Errorf("failed to add team member: %w", err)
			}
			return nil
		},
		func(ctx context.Context) error {
			s.activity.Record(ctx, &team.ID, user.ID, types.ActivitySignUp, ip)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, "[Account] user signed up", "team_id", team.ID, "invited", invitation != nil)
	return s.landing(ctx, form, team, user, session, routeDashboard)
}

// ============================================
// Sign out
// ============================================

// SignOut clears the session. The activity entry is written only when the
// session still names a user.
func (s *accountService) SignOut(ctx context.Context) (*action.Result, error) {
	user, err := s.users.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user != nil {
		team, err := s.users.TeamOf(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up team: %w", err)
		}
		s.activity.Record(ctx, teamIDOf(team), user.ID, types.ActivitySignOut, clientIP(ctx))
	}
	return &action.Result{Redirect: routeSignIn, ClearSession: true}, nil
}

// ============================================
// Update password
// ============================================

type updatePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (in updatePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CurrentPassword, passwordRules("Current password")...),
		validation.Field(&in.NewPassword, passwordRules("New password")...),
		validation.Field(&in.ConfirmPassword,
			append(passwordRules("Confirm password"), validation.By(equalsString(in.NewPassword, "Passwords don't match")))...,
		),
	)
}

var updatePasswordSchema = action.Schema[updatePasswordInput]{
	Fields: []string{"currentPassword", "newPassword", "confirmPassword"},
	Bind: func(f action.Form) updatePasswordInput {
		return updatePasswordInput{
			CurrentPassword: f.Get("currentPassword"),
			NewPassword:     f.Get("newPassword"),
			ConfirmPassword: f.Get("confirmPassword"),
		}
	},
}

func (s *accountService) handleUpdatePassword(ctx context.Context, in updatePasswordInput, form action.Form, user *repository.User) (*action.Result, error) {
	fields := updatePasswordSchema.Echo(form)

	if !auth.VerifyPassword(in.CurrentPassword, user.PasswordHash) {
		return action.Fail(msgWrongPassword, fields), nil
	}
	if in.CurrentPassword == in.NewPassword {
		return action.Fail(msgSamePassword, fields), nil
	}

	newHash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return nil, err
	}

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}

	ip := clientIP(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.userRepo.UpdatePassword(gctx, user.ID, newHash)
	})
	g.Go(func() error {
		s.activity.Record(gctx, teamIDOf(team), user.ID, types.ActivityUpdatePassword, ip)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	s.audit(ctx, user.ID, "[Account] password updated")
	return action.Succeed(msgPasswordUpdated), nil
}

// ============================================
// Delete account
// ============================================

type deleteAccountInput struct {
	Password string `json:"password"`
}

func (in deleteAccountInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Password, passwordRules("Password")...),
	)
}

var deleteAccountSchema = action.Schema[deleteAccountInput]{
	Fields: []string{"password"},
	Bind: func(f action.Form) deleteAccountInput {
		return deleteAccountInput{Password: f.Get("password")}
	},
}

func (s *accountService) handleDeleteAccount(ctx context.Context, in deleteAccountInput, form action.Form, user *repository.User) (*action.Result, error) {
	if !auth.VerifyPassword(in.Password, user.PasswordHash) {
		return action.Fail(msgDeleteWrongPassword, deleteAccountSchema.Echo(form)), nil
	}

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}

	s.activity.Record(ctx, teamIDOf(team), user.ID, types.ActivityDeleteAccount, clientIP(ctx))

	if err := s.userRepo.SoftDelete(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	if team != nil {
		if err := s.teamRepo.RemoveUser(ctx, user.ID, team.ID); err != nil {
			return nil, fmt.Errorf("failed to remove team membership: %w", err)
		}
	}

	s.audit(ctx, user.ID, "[Account] account deleted")
	return &action.Result{Redirect: routeSignIn, ClearSession: true}, nil
}

// ============================================
// Update account
// ============================================

type updateAccountInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (in updateAccountInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("Name is required"),
			validation.RuneLength(1, 100).Error("Name cannot exceed 100 characters"),
		),
		validation.Field(&in.Email,
			validation.Required.Error("Invalid email address"),
			is.Email.Error("Invalid email address"),
		),
	)
}

var updateAccountSchema = action.Schema[updateAccountInput]{
	Fields: []string{"name", "email"},
	Bind: func(f action.Form) updateAccountInput {
		return updateAccountInput{
			Name:  strings.TrimSpace(f.Get("name")),
			Email: strings.TrimSpace(f.Get("email")),
		}
	},
}

func (s *accountService) handleUpdateAccount(ctx context.Context, in updateAccountInput, form action.Form, user *repository.User) (*action.Result, error) {
	fields := updateAccountSchema.Echo(form)

	if in.Email != user.Email {
		other, err := s.userRepo.FindByEmail(ctx, in.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if other != nil && other.ID != user.ID {
			return action.Fail(msgEmailInUse, fields), nil
		}
	}

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}

	ip := clientIP(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.userRepo.UpdateAccount(gctx, user.ID, in.Name, in.Email)
	})
	g.Go(func() error {
		s.activity.Record(gctx, teamIDOf(team), user.ID, types.ActivityUpdateAccount, ip)
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return action.Fail(msgEmailInUse, fields), nil
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return &action.Result{Success: msgAccountUpdated, Fields: map[string]string{"name": in.Name}}, nil
}

// ============================================
// Helpers
// ============================================

// issueAlongside signs a session for userID while running writes
// concurrently, and returns once every one of them has settled.
func (s *accountService) issueAlongside(ctx context.Context, userID int64, writes ...func(context.Context) error) (*auth.IssuedSession, error) {
	var session *auth.IssuedSession

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		issued, err := s.codec.Issue(userID)
		if err != nil {
			return err
		}
		session = issued
		return nil
	})
	for _, write := range writes {
		write := write
		g.Go(func() error { return write(gctx) })
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return session, nil
}

// landing picks the post-authentication redirect, handing off to checkout
// when the form asked for it.
func (s *accountService) landing(ctx context.Context, form action.Form, team *repository.Team, user *repository.User, session *auth.IssuedSession, fallback string) (*action.Result, error) {
	target := fallback
	if form.Get("redirect") == "checkout" {
		checkoutURL, err := s.checkout.CreateCheckout(ctx, team, user, form.Get("priceId"))
		if err != nil {
			return nil, err
		}
		target = checkoutURL
	}
	return &action.Result{Redirect: target, Session: session}, nil
}

func passwordRules(label string) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(label + " is required"),
		validation.Length(8, 100).Error(label + " must be between 8 and 100 characters"),
	}
}

func equalsString(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

// audit logs a security event with the caller's address and user agent.
func (s *accountService) audit(ctx context.Context, userID int64, msg string, keysAndValues ...interface{}) {
	info := action.RequestInfoFromContext(ctx)
	keysAndValues = append(keysAndValues, "ip", info.IPAddress, "user_agent", info.UserAgent)
	s.log.WithUser(userID).Audit(msg, keysAndValues...)
}

func clientIP(ctx context.Context) string {
	return action.RequestInfoFromContext(ctx).IPAddress
}
