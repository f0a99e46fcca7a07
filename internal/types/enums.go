package types

// ActivityType names an entry in the activity log.
type ActivityType string

const (
	ActivitySignUp           ActivityType = "SIGN_UP"
	ActivitySignIn           ActivityType = "SIGN_IN"
	ActivitySignOut          ActivityType = "SIGN_OUT"
	ActivityUpdatePassword   ActivityType = "UPDATE_PASSWORD"
	ActivityDeleteAccount    ActivityType = "DELETE_ACCOUNT"
	ActivityUpdateAccount    ActivityType = "UPDATE_ACCOUNT"
	ActivityCreateTeam       ActivityType = "CREATE_TEAM"
	ActivityRemoveTeamMember ActivityType = "REMOVE_TEAM_MEMBER"
	ActivityInviteTeamMember ActivityType = "INVITE_TEAM_MEMBER"
	ActivityAcceptInvitation ActivityType = "ACCEPT_INVITATION"
)

// Team and user roles
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// ValidInviteRoles lists the roles an invitation may carry.
var ValidInviteRoles = []interface{}{RoleMember, RoleOwner}

// Invitation status values
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

// SubscriptionStatus mirrors the Stripe subscription lifecycle states the
// service tracks. An empty status means the team never subscribed.
type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionUnpaid   SubscriptionStatus = "unpaid"
)

// IsLive reports whether the status grants access to paid features.
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

// IsEnded reports whether the subscription has lapsed.
func (s SubscriptionStatus) IsEnded() bool {
	return s == SubscriptionCanceled || s == SubscriptionUnpaid
}
