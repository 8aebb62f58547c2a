package types

import (
	"time"

	"github.com/google/uuid"
)

// StoredPlan is a persisted plan record. ShareCode is present exactly
// when the plan was public at some point: it is generated once when the
// plan is first made public and kept through later visibility toggles.
type StoredPlan struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Destination   string    `json:"destination"`
	Days          int       `json:"days"`
	Preferences   []string  `json:"preferences,omitempty"`
	Description   string    `json:"description,omitempty"`
	Content       string    `json:"content"`
	PlanData      *TripPlan `json:"plan_data,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	StartDate     string    `json:"start_date,omitempty"`
	EndDate       string    `json:"end_date,omitempty"`
	IsPublic      bool      `json:"is_public"`
	ShareCode     *string   `json:"share_code,omitempty"`
	ViewCount     int       `json:"view_count"`
	LikeCount     int       `json:"like_count"`
	FavoriteCount int       `json:"favorite_count,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PlanUpdate carries the mutable fields of a stored plan; nil means
// leave unchanged.
type PlanUpdate struct {
	Destination *string   `json:"destination,omitempty"`
	Days        *int      `json:"days,omitempty"`
	Preferences []string  `json:"preferences,omitempty"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	PlanData    *TripPlan `json:"plan_data,omitempty"`
	CoverURL    *string   `json:"cover_url,omitempty"`
	IsPublic    *bool     `json:"is_public,omitempty"`
}
