package plans

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

type MockPlansRepo struct {
	mock.Mock
}

var _ PlansRepo = (*MockPlansRepo)(nil)

func (m *MockPlansRepo) CreatePlan(ctx context.Context, userID uuid.UUID, req SavePlanRequest) (*types.StoredPlan, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.StoredPlan), args.Error(1)
}

func (m *MockPlansRepo) GetPlan(ctx context.Context, planID uuid.UUID) (*types.StoredPlan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.StoredPlan), args.Error(1)
}

func (m *MockPlansRepo) GetPlanByShareCode(ctx context.Context, shareCode string) (*types.StoredPlan, error) {
	args := m.Called(ctx, shareCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.StoredPlan), args.Error(1)
}

func (m *MockPlansRepo) ListUserPlans(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.StoredPlan), args.Error(1)
}

func (m *MockPlansRepo) ListPublicPlans(ctx context.Context, destination string, limit, offset int) ([]types.StoredPlan, error) {
	args := m.Called(ctx, destination, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.StoredPlan), args.Error(1)
}

func (m *MockPlansRepo) UpdatePlan(ctx context.Context, planID uuid.UUID, update types.PlanUpdate, shareCode *string) error {
	return m.Called(ctx, planID, update, shareCode).Error(0)
}

func (m *MockPlansRepo) DeletePlan(ctx context.Context, planID, userID uuid.UUID) error {
	return m.Called(ctx, planID, userID).Error(0)
}

func (m *MockPlansRepo) Favorite(ctx context.Context, userID, planID uuid.UUID) error {
	return m.Called(ctx, userID, planID).Error(0)
}

func (m *MockPlansRepo) Unfavorite(ctx context.Context, userID, planID uuid.UUID) error {
	return m.Called(ctx, userID, planID).Error(0)
}

func (m *MockPlansRepo) ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.StoredPlan), args.Error(1)
}

func (m *MockPlansRepo) Like(ctx context.Context, userID, planID uuid.UUID) error {
	return m.Called(ctx, userID, planID).Error(0)
}

func (m *MockPlansRepo) Unlike(ctx context.Context, userID, planID uuid.UUID) error {
	return m.Called(ctx, userID, planID).Error(0)
}

func (m *MockPlansRepo) CountGenerationsToday(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockPlansRepo) RecordGeneration(ctx context.Context, userID uuid.UUID, destination string) error {
	return m.Called(ctx, userID, destination).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestUpdatePlanAssignsShareCodeOnFirstPublicToggle(t *testing.T) {
	planID, userID := uuid.New(), uuid.New()
	repo := new(MockPlansRepo)
	repo.On("GetPlan", mock.Anything, planID).
		Return(&types.StoredPlan{ID: planID, UserID: userID, ShareCode: nil}, nil)
	repo.On("UpdatePlan", mock.Anything, planID, mock.Anything,
		mock.MatchedBy(func(code *string) bool { return code != nil && len(*code) == 8 })).
		Return(nil)

	svc := NewPlansServiceImpl(repo, testLogger())
	public := true
	_, err := svc.UpdatePlan(context.Background(), planID, userID, types.PlanUpdate{IsPublic: &public})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUpdatePlanNeverRegeneratesShareCode(t *testing.T) {
	planID, userID := uuid.New(), uuid.New()
	existingCode := "ab12cd34"
	repo := new(MockPlansRepo)
	repo.On("GetPlan", mock.Anything, planID).
		Return(&types.StoredPlan{ID: planID, UserID: userID, IsPublic: false, ShareCode: &existingCode}, nil)
	repo.On("UpdatePlan", mock.Anything, planID, mock.Anything, (*string)(nil)).Return(nil)

	svc := NewPlansServiceImpl(repo, testLogger())
	public := true
	_, err := svc.UpdatePlan(context.Background(), planID, userID, types.PlanUpdate{IsPublic: &public})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUpdatePlanRejectsNonOwner(t *testing.T) {
	planID := uuid.New()
	repo := new(MockPlansRepo)
	repo.On("GetPlan", mock.Anything, planID).
		Return(&types.StoredPlan{ID: planID, UserID: uuid.New()}, nil)

	svc := NewPlansServiceImpl(repo, testLogger())
	content := "updated"
	_, err := svc.UpdatePlan(context.Background(), planID, uuid.New(), types.PlanUpdate{Content: &content})

	assert.ErrorIs(t, err, types.ErrForbidden)
	repo.AssertNotCalled(t, "UpdatePlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetPlanVisibility(t *testing.T) {
	planID, ownerID := uuid.New(), uuid.New()
	repo := new(MockPlansRepo)
	svc := NewPlansServiceImpl(repo, testLogger())

	repo.On("GetPlan", mock.Anything, planID).
		Return(&types.StoredPlan{ID: planID, UserID: ownerID, IsPublic: false}, nil).Once()
	_, err := svc.GetPlan(context.Background(), planID, uuid.New())
	// a private plan owned by someone else reads as missing
	assert.ErrorIs(t, err, types.ErrNotFound)

	repo.On("GetPlan", mock.Anything, planID).
		Return(&types.StoredPlan{ID: planID, UserID: ownerID, IsPublic: true}, nil).Once()
	plan, err := svc.GetPlan(context.Background(), planID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, planID, plan.ID)

	repo.On("GetPlan", mock.Anything, planID).
		Return(&types.StoredPlan{ID: planID, UserID: ownerID, IsPublic: false}, nil).Once()
	_, err = svc.GetPlan(context.Background(), planID, ownerID)
	assert.NoError(t, err)
}

func TestCheckQuota(t *testing.T) {
	userID := uuid.New()
	repo := new(MockPlansRepo)
	repo.On("CountGenerationsToday", mock.Anything, userID).Return(3, nil)

	svc := NewPlansServiceImpl(repo, testLogger())

	quota, err := svc.CheckQuota(context.Background(), userID, types.TierRegular)
	require.NoError(t, err)
	assert.False(t, quota.CanGenerate)
	assert.Equal(t, 3, quota.DailyLimit)
	assert.Equal(t, 0, quota.Remaining)

	quota, err = svc.CheckQuota(context.Background(), userID, types.TierSuper)
	require.NoError(t, err)
	assert.True(t, quota.CanGenerate)
	assert.Equal(t, 15, quota.DailyLimit)
	assert.Equal(t, 12, quota.Remaining)
	assert.Equal(t, "超级会员", quota.TierName)
}

func TestCheckQuotaUnknownTierFallsBackToRegular(t *testing.T) {
	userID := uuid.New()
	repo := new(MockPlansRepo)
	repo.On("CountGenerationsToday", mock.Anything, userID).Return(0, nil)

	svc := NewPlansServiceImpl(repo, testLogger())
	quota, err := svc.CheckQuota(context.Background(), userID, "platinum")

	require.NoError(t, err)
	assert.Equal(t, types.TierRegular, quota.MembershipTier)
	assert.Equal(t, 3, quota.DailyLimit)
}

func TestListPublicPlansIsCached(t *testing.T) {
	repo := new(MockPlansRepo)
	repo.On("ListPublicPlans", mock.Anything, "杭州", 20, 0).
		Return([]types.StoredPlan{{Destination: "杭州"}}, nil).Once()

	svc := NewPlansServiceImpl(repo, testLogger())

	first, err := svc.ListPublicPlans(context.Background(), "杭州", 20, 0)
	require.NoError(t, err)
	second, err := svc.ListPublicPlans(context.Background(), "杭州", 20, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	repo.AssertNumberOfCalls(t, "ListPublicPlans", 1)
}

func TestSavePlanValidates(t *testing.T) {
	svc := NewPlansServiceImpl(new(MockPlansRepo), testLogger())

	_, err := svc.SavePlan(context.Background(), uuid.New(), SavePlanRequest{Days: 2, Content: "x"})
	assert.ErrorContains(t, err, "destination is required")

	_, err = svc.SavePlan(context.Background(), uuid.New(), SavePlanRequest{Destination: "杭州", Days: 0, Content: "x"})
	assert.ErrorContains(t, err, "days must be between")

	_, err = svc.SavePlan(context.Background(), uuid.New(), SavePlanRequest{Destination: "杭州", Days: 2})
	assert.ErrorContains(t, err, "content is required")
}
