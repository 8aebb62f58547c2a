package types

import (
	"time"

	"github.com/google/uuid"
)

// Membership tiers gate how many plans a user may generate per day.
const (
	TierRegular = "regular"
	TierMember  = "member"
	TierSuper   = "super"
)

// User is a registered account.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	City           string    `json:"city,omitempty"`
	MembershipTier string    `json:"membership_tier"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GenerationQuota reports how much of the daily plan-generation budget
// a user has left.
type GenerationQuota struct {
	CanGenerate    bool   `json:"can_generate"`
	MembershipTier string `json:"membership_tier"`
	TierName       string `json:"tier_name"`
	DailyLimit     int    `json:"daily_limit"`
	TodayCount     int    `json:"today_count"`
	Remaining      int    `json:"remaining"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates an account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is the JWT access token plus the opaque refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
