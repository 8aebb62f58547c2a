package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/wayfarer-labs/wayfarer-api/internal/api/auth"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/planner"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/plans"
	"github.com/wayfarer-labs/wayfarer-api/internal/router"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// E2ETestSuite drives complete user workflows through the real router,
// handlers and services. Only persistence and the chat provider are
// replaced: repos run in memory, generation returns a canned plan.
type E2ETestSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client

	accessToken  string
	refreshToken string
	userEmail    string
	planID       string
	shareCode    string
}

func (s *E2ETestSuite) SetupSuite() {
	logger := slog.New(slog.DiscardHandler)

	authRepo := newMemAuthRepo()
	authService := auth.NewAuthServiceImpl(authRepo, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	plansRepo := newMemPlansRepo()
	plansService := plans.NewPlansServiceImpl(plansRepo, logger)
	plansHandler := plans.NewHandlerImpl(plansService, logger)

	plannerHandler := planner.NewHandlerImpl(cannedPlanner{}, nil, plansService, logger)

	s.server = httptest.NewServer(router.SetupRouter(&router.Config{
		Logger:         logger,
		AuthHandler:    authHandler,
		PlansHandler:   plansHandler,
		PlannerHandler: plannerHandler,
	}))
	s.client = &http.Client{Timeout: 30 * time.Second}
	s.userEmail = fmt.Sprintf("e2e+%d@example.com", time.Now().UnixNano())
}

func (s *E2ETestSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
}

func (s *E2ETestSuite) do(method, path string, body any, authed bool) (*http.Response, []byte) {
	s.T().Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, data
}

func (s *E2ETestSuite) Test01_RegisterAndLogin() {
	resp, _ := s.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "e2e-traveler",
		"email":    s.userEmail,
		"password": "correct-horse-battery",
	}, false)
	s.Equal(http.StatusCreated, resp.StatusCode)

	resp, body := s.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    s.userEmail,
		"password": "correct-horse-battery",
	}, false)
	s.Equal(http.StatusOK, resp.StatusCode)

	var login auth.LoginResponse
	s.Require().NoError(json.Unmarshal(body, &login))
	s.NotEmpty(login.AccessToken)
	s.NotEmpty(login.RefreshToken)
	s.accessToken = login.AccessToken
	s.refreshToken = login.RefreshToken
}

func (s *E2ETestSuite) Test02_ProfileRequiresAuth() {
	resp, _ := s.do(http.MethodGet, "/api/v1/users/me", nil, false)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(http.MethodGet, "/api/v1/users/me", nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)

	var user types.User
	s.Require().NoError(json.Unmarshal(body, &user))
	s.Equal("e2e-traveler", user.Username)
	s.Equal(types.TierRegular, user.MembershipTier)
}

func (s *E2ETestSuite) Test03_RefreshRotatesToken() {
	resp, body := s.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": s.refreshToken,
	}, false)
	s.Equal(http.StatusOK, resp.StatusCode)

	var pair types.TokenPair
	s.Require().NoError(json.Unmarshal(body, &pair))
	s.NotEqual(s.refreshToken, pair.RefreshToken)

	// The old token is dead after rotation.
	resp, _ = s.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": s.refreshToken,
	}, false)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
}

func (s *E2ETestSuite) Test04_GeneratePlanConsumesQuota() {
	resp, body := s.do(http.MethodPost, "/api/v1/plans/generate", map[string]any{
		"destination": "杭州",
		"days":        3,
	}, true)
	s.Equal(http.StatusOK, resp.StatusCode)

	var result types.PlanResult
	s.Require().NoError(json.Unmarshal(body, &result))
	s.Require().NotNil(result.Plan)
	s.Equal("杭州", result.Plan.Destination)

	resp, body = s.do(http.MethodGet, "/api/v1/quota", nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)

	var quota types.GenerationQuota
	s.Require().NoError(json.Unmarshal(body, &quota))
	s.Equal(1, quota.TodayCount)
	s.Equal(3, quota.DailyLimit)
	s.True(quota.CanGenerate)
}

func (s *E2ETestSuite) Test05_SaveShareAndView() {
	resp, body := s.do(http.MethodPost, "/api/v1/plans", map[string]any{
		"destination": "杭州",
		"days":        3,
		"content":     "## Day 1\n西湖漫步",
	}, true)
	s.Equal(http.StatusCreated, resp.StatusCode)

	var saved types.StoredPlan
	s.Require().NoError(json.Unmarshal(body, &saved))
	s.planID = saved.ID.String()
	s.False(saved.IsPublic)
	s.Nil(saved.ShareCode)

	resp, body = s.do(http.MethodPut, "/api/v1/plans/"+s.planID, map[string]any{
		"is_public": true,
	}, true)
	s.Equal(http.StatusOK, resp.StatusCode)

	var updated types.StoredPlan
	s.Require().NoError(json.Unmarshal(body, &updated))
	s.Require().NotNil(updated.ShareCode)
	s.Len(*updated.ShareCode, 8)
	s.shareCode = *updated.ShareCode

	// The shared view is public and bumps the view count.
	resp, body = s.do(http.MethodGet, "/api/v1/plans/shared/"+s.shareCode, nil, false)
	s.Equal(http.StatusOK, resp.StatusCode)

	var shared types.StoredPlan
	s.Require().NoError(json.Unmarshal(body, &shared))
	s.Equal(1, shared.ViewCount)

	// Toggling public again keeps the original share code.
	resp, body = s.do(http.MethodPut, "/api/v1/plans/"+s.planID, map[string]any{
		"is_public": true,
	}, true)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().NoError(json.Unmarshal(body, &updated))
	s.Require().NotNil(updated.ShareCode)
	s.Equal(s.shareCode, *updated.ShareCode)
}

func (s *E2ETestSuite) Test06_LikeAndFavorite() {
	resp, _ := s.do(http.MethodPost, "/api/v1/plans/"+s.planID+"/like", nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/api/v1/plans/"+s.planID+"/favorite", nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, body := s.do(http.MethodGet, "/api/v1/plans/"+s.planID, nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)
	var plan types.StoredPlan
	s.Require().NoError(json.Unmarshal(body, &plan))
	s.Equal(1, plan.LikeCount)

	resp, body = s.do(http.MethodGet, "/api/v1/plans/favorites", nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)
	var favorites []types.StoredPlan
	s.Require().NoError(json.Unmarshal(body, &favorites))
	s.Len(favorites, 1)

	resp, _ = s.do(http.MethodDelete, "/api/v1/plans/"+s.planID+"/like", nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp, body = s.do(http.MethodGet, "/api/v1/plans/"+s.planID, nil, true)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().NoError(json.Unmarshal(body, &plan))
	s.Equal(0, plan.LikeCount)
}

func (s *E2ETestSuite) Test07_PublicListing() {
	resp, body := s.do(http.MethodGet, "/api/v1/plans/public?destination=杭州", nil, false)
	s.Equal(http.StatusOK, resp.StatusCode)

	var listed []types.StoredPlan
	s.Require().NoError(json.Unmarshal(body, &listed))
	s.Require().Len(listed, 1)
	s.Equal("杭州", listed[0].Destination)
}

func TestE2E(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}

// cannedPlanner skips the chat provider and returns a fixed itinerary.
type cannedPlanner struct{}

var _ planner.Service = cannedPlanner{}

func (cannedPlanner) CreatePlan(ctx context.Context, req types.PlanRequest, mode planner.Mode) (*types.PlanResult, error) {
	return &types.PlanResult{
		Reply: "为你规划了" + req.Destination + "的行程",
		Plan: &types.TripPlan{
			ID:          "e2e00000",
			Destination: req.Destination,
			Days:        req.Days,
		},
	}, nil
}

// memAuthRepo is an in-memory auth.AuthRepo.
type memAuthRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*types.User
	byEmail map[string]uuid.UUID
	tokens  map[string]memToken
}

var (
	_ auth.AuthRepo   = (*memAuthRepo)(nil)
	_ plans.PlansRepo = (*memPlansRepo)(nil)
)

type memToken struct {
	userID      uuid.UUID
	expiresAt   time.Time
	invalidated bool
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{
		users:   make(map[uuid.UUID]*types.User),
		byEmail: make(map[string]uuid.UUID),
		tokens:  make(map[string]memToken),
	}
}

func (r *memAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return nil, types.ErrConflict
	}
	now := time.Now()
	u := &types.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		PasswordHash:   passwordHash,
		MembershipTier: types.TierRegular,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.users[u.ID] = u
	r.byEmail[email] = u.ID
	return u, nil
}

func (r *memAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, types.ErrNotFound
	}
	u := *r.users[id]
	return &u, nil
}

func (r *memAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memAuthRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params auth.UpdateProfileRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return types.ErrNotFound
	}
	if params.Username != nil {
		u.Username = *params.Username
	}
	if params.AvatarURL != nil {
		u.AvatarURL = *params.AvatarURL
	}
	if params.City != nil {
		u.City = *params.City
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memAuthRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = memToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *memAuthRepo) GetRefreshTokenOwner(ctx context.Context, token string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.invalidated || time.Now().After(t.expiresAt) {
		return uuid.Nil, types.ErrUnauthenticated
	}
	return t.userID, nil
}

func (r *memAuthRepo) InvalidateRefreshToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return types.ErrNotFound
	}
	t.invalidated = true
	r.tokens[token] = t
	return nil
}

func (r *memAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, t := range r.tokens {
		if t.userID == userID {
			t.invalidated = true
			r.tokens[token] = t
		}
	}
	return nil
}

// memPlansRepo is an in-memory plans.PlansRepo.
type memPlansRepo struct {
	mu          sync.Mutex
	plans       map[uuid.UUID]*types.StoredPlan
	favorites   map[uuid.UUID]map[uuid.UUID]bool // userID -> planIDs
	likes       map[uuid.UUID]map[uuid.UUID]bool
	generations map[uuid.UUID]int
}

func newMemPlansRepo() *memPlansRepo {
	return &memPlansRepo{
		plans:       make(map[uuid.UUID]*types.StoredPlan),
		favorites:   make(map[uuid.UUID]map[uuid.UUID]bool),
		likes:       make(map[uuid.UUID]map[uuid.UUID]bool),
		generations: make(map[uuid.UUID]int),
	}
}

func (r *memPlansRepo) CreatePlan(ctx context.Context, userID uuid.UUID, req plans.SavePlanRequest) (*types.StoredPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	p := &types.StoredPlan{
		ID:          uuid.New(),
		UserID:      userID,
		Destination: req.Destination,
		Days:        req.Days,
		Preferences: req.Preferences,
		Description: req.Description,
		Content:     req.Content,
		PlanData:    req.PlanData,
		CoverURL:    req.CoverURL,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.plans[p.ID] = p
	return r.snapshot(p), nil
}

func (r *memPlansRepo) snapshot(p *types.StoredPlan) *types.StoredPlan {
	copied := *p
	copied.FavoriteCount = 0
	for _, planIDs := range r.favorites {
		if planIDs[p.ID] {
			copied.FavoriteCount++
		}
	}
	return &copied
}

func (r *memPlansRepo) GetPlan(ctx context.Context, planID uuid.UUID) (*types.StoredPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return r.snapshot(p), nil
}

func (r *memPlansRepo) GetPlanByShareCode(ctx context.Context, shareCode string) (*types.StoredPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.IsPublic && p.ShareCode != nil && *p.ShareCode == shareCode {
			p.ViewCount++
			return r.snapshot(p), nil
		}
	}
	return nil, types.ErrNotFound
}

func (r *memPlansRepo) ListUserPlans(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.StoredPlan
	for _, p := range r.plans {
		if p.UserID == userID {
			out = append(out, *r.snapshot(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *memPlansRepo) ListPublicPlans(ctx context.Context, destination string, limit, offset int) ([]types.StoredPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.StoredPlan
	for _, p := range r.plans {
		if p.IsPublic && (destination == "" || p.Destination == destination) {
			out = append(out, *r.snapshot(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViewCount > out[j].ViewCount })
	return page(out, limit, offset), nil
}

func (r *memPlansRepo) UpdatePlan(ctx context.Context, planID uuid.UUID, update types.PlanUpdate, shareCode *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok {
		return types.ErrNotFound
	}
	if update.Destination != nil {
		p.Destination = *update.Destination
	}
	if update.Days != nil {
		p.Days = *update.Days
	}
	if update.Preferences != nil {
		p.Preferences = update.Preferences
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Content != nil {
		p.Content = *update.Content
	}
	if update.PlanData != nil {
		p.PlanData = update.PlanData
	}
	if update.CoverURL != nil {
		p.CoverURL = *update.CoverURL
	}
	if update.IsPublic != nil {
		p.IsPublic = *update.IsPublic
	}
	if shareCode != nil {
		p.ShareCode = shareCode
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memPlansRepo) DeletePlan(ctx context.Context, planID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok || p.UserID != userID {
		return types.ErrNotFound
	}
	delete(r.plans, planID)
	return nil
}

func (r *memPlansRepo) Favorite(ctx context.Context, userID, planID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[planID]; !ok {
		return types.ErrNotFound
	}
	if r.favorites[userID] == nil {
		r.favorites[userID] = make(map[uuid.UUID]bool)
	}
	r.favorites[userID][planID] = true
	return nil
}

func (r *memPlansRepo) Unfavorite(ctx context.Context, userID, planID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.favorites[userID], planID)
	return nil
}

func (r *memPlansRepo) ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.StoredPlan
	for planID := range r.favorites[userID] {
		if p, ok := r.plans[planID]; ok {
			out = append(out, *r.snapshot(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *memPlansRepo) Like(ctx context.Context, userID, planID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok {
		return types.ErrNotFound
	}
	if r.likes[userID] == nil {
		r.likes[userID] = make(map[uuid.UUID]bool)
	}
	if !r.likes[userID][planID] {
		r.likes[userID][planID] = true
		p.LikeCount++
	}
	return nil
}

func (r *memPlansRepo) Unlike(ctx context.Context, userID, planID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok {
		return types.ErrNotFound
	}
	if r.likes[userID][planID] {
		delete(r.likes[userID], planID)
		if p.LikeCount > 0 {
			p.LikeCount--
		}
	}
	return nil
}

func (r *memPlansRepo) CountGenerationsToday(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[userID], nil
}

func (r *memPlansRepo) RecordGeneration(ctx context.Context, userID uuid.UUID, destination string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[userID]++
	return nil
}

func page(in []types.StoredPlan, limit, offset int) []types.StoredPlan {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
