package plans

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// Daily plan-generation limits per membership tier.
var tierLimits = map[string]int{
	types.TierRegular: 3,
	types.TierMember:  7,
	types.TierSuper:   15,
}

var tierNames = map[string]string{
	types.TierRegular: "普通用户",
	types.TierMember:  "会员",
	types.TierSuper:   "超级会员",
}

// SavePlanRequest persists one pipeline result under the caller's
// account.
type SavePlanRequest struct {
	Destination string          `json:"destination"`
	Days        int             `json:"days"`
	Preferences []string        `json:"preferences,omitempty"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content"`
	PlanData    *types.TripPlan `json:"plan_data,omitempty"`
	CoverURL    string          `json:"cover_url,omitempty"`
	StartDate   string          `json:"start_date,omitempty"`
	EndDate     string          `json:"end_date,omitempty"`
}

func (r SavePlanRequest) Validate() error {
	if r.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if r.Days < 1 || r.Days > 14 {
		return fmt.Errorf("days must be between 1 and 14")
	}
	if r.Content == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}

// newShareCode returns an 8-char hex code. Uniqueness is enforced by
// the database; collisions at this size are not worth handling.
func newShareCode() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}
