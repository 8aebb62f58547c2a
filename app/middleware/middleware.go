package appMiddleware

import (
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserIDKey contextKey = "userID"
const MembershipTierKey contextKey = "membershipTier"

// Claims carried by the access token.
type Claims struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	MembershipTier string `json:"membership_tier,omitempty"`
	jwt.RegisteredClaims
}

// JwtSecretKey signs access tokens. Set from config at startup; the
// default only exists so tests can sign tokens.
var JwtSecretKey = []byte("dev-only-secret")
