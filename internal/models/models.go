package models

import "time"

// ============================================
// User DTOs
// ============================================

type UserResponse struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ============================================
// Team DTOs
// ============================================

type TeamMemberResponse struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	Name     *string   `json:"name"`
	Email    string    `json:"email"`
}

type TeamResponse struct {
	ID                   int64                `json:"id"`
	Name                 string               `json:"name"`
	CreatedAt            time.Time            `json:"createdAt"`
	StripeCustomerID     *string              `json:"stripeCustomerId"`
	StripeSubscriptionID *string              `json:"stripeSubscriptionId"`
	StripeProductID      *string              `json:"stripeProductId"`
	PlanName             *string              `json:"planName"`
	SubscriptionStatus   *string              `json:"subscriptionStatus"`
	Members              []TeamMemberResponse `json:"teamMembers"`
}

// ============================================
// Activity DTOs
// ============================================

type ActivityResponse struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress *string   `json:"ipAddress"`
	UserName  *string   `json:"userName"`
}

// ============================================
// Converter DTOs
// ============================================

type UploadResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

type FileResponse struct {
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
}

type FilesResponse struct {
	Files []FileResponse `json:"files"`
}
