package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Marga-Ghale/statement-saas/internal/action"
	"github.com/Marga-Ghale/statement-saas/internal/email"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"github.com/Marga-Ghale/statement-saas/internal/types"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ============================================
// Team Service
// ============================================

type TeamService interface {
	InviteTeamMember(ctx context.Context, form action.Form) (*action.Result, error)
	RemoveTeamMember(ctx context.Context, form action.Form) (*action.Result, error)
	GetTeam(ctx context.Context) (*TeamDetails, error)
}

// TeamDetails is a team together with its members.
type TeamDetails struct {
	Team    *repository.Team
	Members []*repository.TeamMember
}

type TeamDeps struct {
	Users          *userLookup
	TeamRepo       repository.TeamRepository
	InvitationRepo repository.InvitationRepository
	Activity       ActivityService
	Mailer         InvitationMailer
	BaseURL        string
	Log            *logger.Logger
}

type teamService struct {
	users          *userLookup
	teamRepo       repository.TeamRepository
	invitationRepo repository.InvitationRepository
	activity       ActivityService
	mailer         InvitationMailer
	baseURL        string
	log            *logger.Logger

	invite action.Func
	remove action.Func
}

func NewTeamService(deps TeamDeps) TeamService {
	s := &teamService{
		users:          deps.Users,
		teamRepo:       deps.TeamRepo,
		invitationRepo: deps.InvitationRepo,
		activity:       deps.Activity,
		mailer:         deps.Mailer,
		baseURL:        strings.TrimRight(deps.BaseURL, "/"),
		log:            deps.Log,
	}
	s.invite = action.ValidatedWithUser(inviteSchema, s.users.Current, s.handleInvite)
	s.remove = action.ValidatedWithUser(removeMemberSchema, s.users.Current, s.handleRemove)
	return s
}

func (s *teamService) InviteTeamMember(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.invite(ctx, form)
}

func (s *teamService) RemoveTeamMember(ctx context.Context, form action.Form) (*action.Result, error) {
	return s.remove(ctx, form)
}

func (s *teamService) GetTeam(ctx context.Context) (*TeamDetails, error) {
	user, err := s.users.Current(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, action.ErrUnauthorized
	}

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}

	members, err := s.teamRepo.ListMembers(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	return &TeamDetails{Team: team, Members: members}, nil
}

// ============================================
// Invite
// ============================================

type inviteInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (in inviteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Invalid email address"),
		),
		validation.Field(&in.Role,
			validation.Required.Error("Role is required"),
			validation.In(types.ValidInviteRoles...).Error("Role must be either member or owner"),
		),
	)
}

var inviteSchema = action.Schema[inviteInput]{
	Fields: []string{"email", "role"},
	Bind: func(f action.Form) inviteInput {
		return inviteInput{Email: strings.TrimSpace(f.Get("email")), Role: f.Get("role")}
	},
}

func (s *teamService) handleInvite(ctx context.Context, in inviteInput, form action.Form, user *repository.User) (*action.Result, error) {
	fields := inviteSchema.Echo(form)

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}
	if team == nil {
		return action.Fail(msgNoTeam, fields), nil
	}

	isMember, err := s.teamRepo.HasMemberWithEmail(ctx, team.ID, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if isMember {
		return action.Fail(msgAlreadyMember, fields), nil
	}

	pending, err := s.invitationRepo.HasPending(ctx, team.ID, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check invitations: %w", err)
	}
	if pending {
		return action.Fail(msgAlreadyInvited, fields), nil
	}

	invitation := &repository.Invitation{
		TeamID:    team.ID,
		Email:     in.Email,
		Role:      in.Role,
		InvitedBy: user.ID,
		Status:    types.InvitationPending,
	}
	if err := s.invitationRepo.Create(ctx, invitation); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.activity.Record(ctx, &team.ID, user.ID, types.ActivityInviteTeamMember, clientIP(ctx))

	if s.mailer != nil {
		s.mailer.QueueTeamInvitation(in.Email, email.TeamInvitationData{
			TeamName:  team.Name,
			InvitedBy: user.DisplayName(),
			Role:      in.Role,
			InviteURL: s.inviteURL(invitation.ID),
		})
	}

	s.log.Info("[Team] invitation created", "team_id", team.ID, "invitation_id", invitation.ID)
	return action.Succeed(msgInvitationSent), nil
}

func (s *teamService) inviteURL(invitationID int64) string {
	q := url.Values{"inviteId": {strconv.FormatInt(invitationID, 10)}}
	return s.baseURL + "/sign-up?" + q.Encode()
}

// ============================================
// Remove
// ============================================

type removeMemberInput struct {
	MemberID int64 `json:"memberId"`
}

func (in removeMemberInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.MemberID,
			validation.Required.Error("Member ID is required"),
			validation.Min(int64(1)).Error("Member ID is required"),
		),
	)
}

var removeMemberSchema = action.Schema[removeMemberInput]{
	Fields: []string{"memberId"},
	Bind: func(f action.Form) removeMemberInput {
		id, _ := strconv.ParseInt(strings.TrimSpace(f.Get("memberId")), 10, 64)
		return removeMemberInput{MemberID: id}
	},
}

func (s *teamService) handleRemove(ctx context.Context, in removeMemberInput, form action.Form, user *repository.User) (*action.Result, error) {
	fields := removeMemberSchema.Echo(form)

	team, err := s.users.TeamOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team: %w", err)
	}
	if team == nil {
		return action.Fail(msgNoTeam, fields), nil
	}

	removed, err := s.teamRepo.RemoveMember(ctx, in.MemberID, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove team member: %w", err)
	}
	if !removed {
		return action.Fail(msgMemberNotFound, fields), nil
	}

	s.activity.Record(ctx, &team.ID, user.ID, types.ActivityRemoveTeamMember, clientIP(ctx))
	return action.Succeed(msgMemberRemoved), nil
}
