package plans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// DBPool is the slice of pgxpool.Pool the repository uses; pgxmock
// implements it for tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ PlansRepo = (*PostgresPlansRepo)(nil)

// PlansRepo defines the contract for stored-plan persistence.
type PlansRepo interface {
	CreatePlan(ctx context.Context, userID uuid.UUID, req SavePlanRequest) (*types.StoredPlan, error)
	GetPlan(ctx context.Context, planID uuid.UUID) (*types.StoredPlan, error)
	// GetPlanByShareCode returns a public plan and increments its view
	// count in the same statement.
	GetPlanByShareCode(ctx context.Context, shareCode string) (*types.StoredPlan, error)
	ListUserPlans(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error)
	ListPublicPlans(ctx context.Context, destination string, limit, offset int) ([]types.StoredPlan, error)
	// UpdatePlan applies the non-nil fields; shareCode is set only when
	// non-nil (first public toggle).
	UpdatePlan(ctx context.Context, planID uuid.UUID, update types.PlanUpdate, shareCode *string) error
	DeletePlan(ctx context.Context, planID, userID uuid.UUID) error

	Favorite(ctx context.Context, userID, planID uuid.UUID) error
	Unfavorite(ctx context.Context, userID, planID uuid.UUID) error
	ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error)
	Like(ctx context.Context, userID, planID uuid.UUID) error
	Unlike(ctx context.Context, userID, planID uuid.UUID) error

	CountGenerationsToday(ctx context.Context, userID uuid.UUID) (int, error)
	RecordGeneration(ctx context.Context, userID uuid.UUID, destination string) error
}

type PostgresPlansRepo struct {
	logger *slog.Logger
	pgpool DBPool
}

func NewPostgresPlansRepo(pgpool DBPool, logger *slog.Logger) *PostgresPlansRepo {
	return &PostgresPlansRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const planColumns = `id, user_id, destination, days, preferences, description, content,
	plan_data, COALESCE(cover_url, ''), COALESCE(start_date, ''), COALESCE(end_date, ''),
	is_public, share_code, view_count, like_count,
	(SELECT COUNT(*) FROM favorites f WHERE f.plan_id = plans.id) AS favorite_count,
	created_at, updated_at`

func scanPlan(row pgx.Row) (*types.StoredPlan, error) {
	var p types.StoredPlan
	var description *string
	err := row.Scan(&p.ID, &p.UserID, &p.Destination, &p.Days, &p.Preferences, &description,
		&p.Content, &p.PlanData, &p.CoverURL, &p.StartDate, &p.EndDate,
		&p.IsPublic, &p.ShareCode, &p.ViewCount, &p.LikeCount, &p.FavoriteCount,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if description != nil {
		p.Description = *description
	}
	return &p, nil
}

func scanPlans(rows pgx.Rows) ([]types.StoredPlan, error) {
	defer rows.Close()
	var out []types.StoredPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresPlansRepo) CreatePlan(ctx context.Context, userID uuid.UUID, req SavePlanRequest) (*types.StoredPlan, error) {
	prefs := req.Preferences
	if prefs == nil {
		prefs = []string{}
	}
	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO plans (user_id, destination, days, preferences, description, content,
			plan_data, cover_url, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+planColumns,
		userID, req.Destination, req.Days, prefs, req.Description, req.Content,
		req.PlanData, req.CoverURL, req.StartDate, req.EndDate)
	return scanPlan(row)
}

func (r *PostgresPlansRepo) GetPlan(ctx context.Context, planID uuid.UUID) (*types.StoredPlan, error) {
	return scanPlan(r.pgpool.QueryRow(ctx,
		"SELECT "+planColumns+" FROM plans WHERE id = $1", planID))
}

func (r *PostgresPlansRepo) GetPlanByShareCode(ctx context.Context, shareCode string) (*types.StoredPlan, error) {
	return scanPlan(r.pgpool.QueryRow(ctx,
		`UPDATE plans SET view_count = view_count + 1
		 WHERE share_code = $1 AND is_public
		 RETURNING `+planColumns, shareCode))
}

func (r *PostgresPlansRepo) ListUserPlans(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	rows, err := r.pgpool.Query(ctx,
		"SELECT "+planColumns+" FROM plans WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list user plans: %w", err)
	}
	return scanPlans(rows)
}

func (r *PostgresPlansRepo) ListPublicPlans(ctx context.Context, destination string, limit, offset int) ([]types.StoredPlan, error) {
	query := "SELECT " + planColumns + " FROM plans WHERE is_public"
	args := []any{limit, offset}
	if destination != "" {
		query += " AND destination = $3"
		args = append(args, destination)
	}
	query += " ORDER BY view_count DESC, created_at DESC LIMIT $1 OFFSET $2"

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list public plans: %w", err)
	}
	return scanPlans(rows)
}

func (r *PostgresPlansRepo) UpdatePlan(ctx context.Context, planID uuid.UUID, update types.PlanUpdate, shareCode *string) error {
	sets := []string{"updated_at = now()"}
	args := []any{planID}
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if update.Destination != nil {
		add("destination", *update.Destination)
	}
	if update.Days != nil {
		add("days", *update.Days)
	}
	if update.Preferences != nil {
		add("preferences", update.Preferences)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Content != nil {
		add("content", *update.Content)
	}
	if update.PlanData != nil {
		add("plan_data", update.PlanData)
	}
	if update.CoverURL != nil {
		add("cover_url", *update.CoverURL)
	}
	if update.IsPublic != nil {
		add("is_public", *update.IsPublic)
	}
	if shareCode != nil {
		add("share_code", *shareCode)
	}

	tag, err := r.pgpool.Exec(ctx,
		"UPDATE plans SET "+strings.Join(sets, ", ")+" WHERE id = $1", args...)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresPlansRepo) DeletePlan(ctx context.Context, planID, userID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		"DELETE FROM plans WHERE id = $1 AND user_id = $2", planID, userID)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresPlansRepo) Favorite(ctx context.Context, userID, planID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		"INSERT INTO favorites (user_id, plan_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		userID, planID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return types.ErrNotFound
		}
		return fmt.Errorf("favorite plan: %w", err)
	}
	return nil
}

func (r *PostgresPlansRepo) Unfavorite(ctx context.Context, userID, planID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		"DELETE FROM favorites WHERE user_id = $1 AND plan_id = $2", userID, planID)
	if err != nil {
		return fmt.Errorf("unfavorite plan: %w", err)
	}
	return nil
}

func (r *PostgresPlansRepo) ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]types.StoredPlan, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT `+planColumns+` FROM plans
		 JOIN favorites fav ON fav.plan_id = plans.id
		 WHERE fav.user_id = $1
		 ORDER BY fav.created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return scanPlans(rows)
}

// Like inserts the like row and bumps the counter in one transaction;
// a repeated like is a no-op.
func (r *PostgresPlansRepo) Like(ctx context.Context, userID, planID uuid.UUID) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin like tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"INSERT INTO likes (user_id, plan_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		userID, planID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return types.ErrNotFound
		}
		return fmt.Errorf("like plan: %w", err)
	}
	if tag.RowsAffected() == 1 {
		if _, err := tx.Exec(ctx,
			"UPDATE plans SET like_count = like_count + 1 WHERE id = $1", planID); err != nil {
			return fmt.Errorf("bump like count: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresPlansRepo) Unlike(ctx context.Context, userID, planID uuid.UUID) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unlike tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"DELETE FROM likes WHERE user_id = $1 AND plan_id = $2", userID, planID)
	if err != nil {
		return fmt.Errorf("unlike plan: %w", err)
	}
	if tag.RowsAffected() == 1 {
		if _, err := tx.Exec(ctx,
			"UPDATE plans SET like_count = GREATEST(like_count - 1, 0) WHERE id = $1", planID); err != nil {
			return fmt.Errorf("drop like count: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresPlansRepo) CountGenerationsToday(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM generation_records
		 WHERE user_id = $1 AND generated_at >= date_trunc('day', now())`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return count, nil
}

func (r *PostgresPlansRepo) RecordGeneration(ctx context.Context, userID uuid.UUID, destination string) error {
	_, err := r.pgpool.Exec(ctx,
		"INSERT INTO generation_records (user_id, destination) VALUES ($1, $2)",
		userID, destination)
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	return nil
}
