package plans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

const (
	publicListTTL     = time.Minute
	cacheCleanupEvery = 5 * time.Minute
)

var _ PlansService = (*PlansServiceImpl)(nil)

// PlansService covers stored-plan CRUD, sharing, favorites, likes and
// the daily generation quota.
type PlansService interface {
	SavePlan(ctx context.Context, userID uuid.UUID, req SavePlanRequest) (*types.StoredPlan, error)
	GetPlan(ctx context.Context, planID, viewerID uuid.UUID) (*types.StoredPlan, error)
	GetSharedPlan(ctx context.Context, shareCode string) (*types.StoredPlan, error)
	ListMyPlans(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error)
	ListPublicPlans(ctx context.Context, destination string, limit, offset int) ([]types.StoredPlan, error)
	UpdatePlan(ctx context.Context, planID, userID uuid.UUID, update types.PlanUpdate) (*types.StoredPlan, error)
	DeletePlan(ctx context.Context, planID, userID uuid.UUID) error

	Favorite(ctx context.Context, userID, planID uuid.UUID) error
	Unfavorite(ctx context.Context, userID, planID uuid.UUID) error
	ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error)
	Like(ctx context.Context, userID, planID uuid.UUID) error
	Unlike(ctx context.Context, userID, planID uuid.UUID) error

	CheckQuota(ctx context.Context, userID uuid.UUID, tier string) (*types.GenerationQuota, error)
	RecordGeneration(ctx context.Context, userID uuid.UUID, destination string) error
}

type PlansServiceImpl struct {
	logger *slog.Logger
	repo   PlansRepo
	cache  *gocache.Cache
}

func NewPlansServiceImpl(repo PlansRepo, logger *slog.Logger) *PlansServiceImpl {
	return &PlansServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  gocache.New(publicListTTL, cacheCleanupEvery),
	}
}

func (s *PlansServiceImpl) SavePlan(ctx context.Context, userID uuid.UUID, req SavePlanRequest) (*types.StoredPlan, error) {
	ctx, span := otel.Tracer("PlansService").Start(ctx, "SavePlan")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.repo.CreatePlan(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("plan.id", plan.ID.String()))
	return plan, nil
}

// GetPlan returns the plan when the viewer owns it or it is public;
// a private plan owned by someone else reads as not found.
func (s *PlansServiceImpl) GetPlan(ctx context.Context, planID, viewerID uuid.UUID) (*types.StoredPlan, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != viewerID && !plan.IsPublic {
		return nil, types.ErrNotFound
	}
	return plan, nil
}

func (s *PlansServiceImpl) GetSharedPlan(ctx context.Context, shareCode string) (*types.StoredPlan, error) {
	if shareCode == "" {
		return nil, types.ErrNotFound
	}
	return s.repo.GetPlanByShareCode(ctx, shareCode)
}

func (s *PlansServiceImpl) ListMyPlans(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	return s.repo.ListUserPlans(ctx, userID, limit, offset)
}

func (s *PlansServiceImpl) ListPublicPlans(ctx context.Context, destination string, limit, offset int) ([]types.StoredPlan, error) {
	key := fmt.Sprintf("public:%s:%d:%d", destination, limit, offset)
	if cached, found := s.cache.Get(key); found {
		return cached.([]types.StoredPlan), nil
	}
	plans, err := s.repo.ListPublicPlans(ctx, destination, limit, offset)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, plans)
	return plans, nil
}

// UpdatePlan applies the update for the owning user. The share code is
// generated exactly once, on the first public toggle, and survives
// later visibility flips so old share links keep working.
func (s *PlansServiceImpl) UpdatePlan(ctx context.Context, planID, userID uuid.UUID, update types.PlanUpdate) (*types.StoredPlan, error) {
	ctx, span := otel.Tracer("PlansService").Start(ctx, "UpdatePlan")
	defer span.End()

	existing, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, types.ErrForbidden
	}

	var shareCode *string
	if update.IsPublic != nil && *update.IsPublic && existing.ShareCode == nil {
		code := newShareCode()
		shareCode = &code
		s.logger.InfoContext(ctx, "share code assigned",
			slog.String("plan_id", planID.String()), slog.String("share_code", code))
	}

	if err := s.repo.UpdatePlan(ctx, planID, update, shareCode); err != nil {
		return nil, err
	}
	return s.repo.GetPlan(ctx, planID)
}

func (s *PlansServiceImpl) DeletePlan(ctx context.Context, planID, userID uuid.UUID) error {
	return s.repo.DeletePlan(ctx, planID, userID)
}

func (s *PlansServiceImpl) Favorite(ctx context.Context, userID, planID uuid.UUID) error {
	return s.repo.Favorite(ctx, userID, planID)
}

func (s *PlansServiceImpl) Unfavorite(ctx context.Context, userID, planID uuid.UUID) error {
	return s.repo.Unfavorite(ctx, userID, planID)
}

func (s *PlansServiceImpl) ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	return s.repo.ListFavorites(ctx, userID, limit, offset)
}

func (s *PlansServiceImpl) Like(ctx context.Context, userID, planID uuid.UUID) error {
	return s.repo.Like(ctx, userID, planID)
}

func (s *PlansServiceImpl) Unlike(ctx context.Context, userID, planID uuid.UUID) error {
	return s.repo.Unlike(ctx, userID, planID)
}

// CheckQuota reports the remaining daily generation budget for the
// user's membership tier. Unknown tiers fall back to the regular
// limit.
func (s *PlansServiceImpl) CheckQuota(ctx context.Context, userID uuid.UUID, tier string) (*types.GenerationQuota, error) {
	limit, ok := tierLimits[tier]
	if !ok {
		tier = types.TierRegular
		limit = tierLimits[types.TierRegular]
	}

	count, err := s.repo.CountGenerationsToday(ctx, userID)
	if err != nil {
		return nil, err
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &types.GenerationQuota{
		CanGenerate:    count < limit,
		MembershipTier: tier,
		TierName:       tierNames[tier],
		DailyLimit:     limit,
		TodayCount:     count,
		Remaining:      remaining,
	}, nil
}

func (s *PlansServiceImpl) RecordGeneration(ctx context.Context, userID uuid.UUID, destination string) error {
	return s.repo.RecordGeneration(ctx, userID, destination)
}
