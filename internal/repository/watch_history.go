package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/actuallystonmai/progress-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

// The WHERE clause drops writes older than the stored row, which makes the
// statement return no rows.
const upsertProgressSQL = `INSERT INTO watch_progress (user_id, title_id, position_seconds, duration_seconds, completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, title_id) DO UPDATE SET
			position_seconds = EXCLUDED.position_seconds,
			duration_seconds = EXCLUDED.duration_seconds,
			completed        = watch_progress.completed OR EXCLUDED.completed,
			updated_at       = EXCLUDED.updated_at
		WHERE watch_progress.updated_at <= EXCLUDED.updated_at
		RETURNING user_id, title_id, position_seconds, duration_seconds, completed, updated_at`

func (r *Repository) GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error) {
	p := &domain.WatchProgress{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, title_id, position_seconds, duration_seconds, completed, updated_at
		FROM watch_progress
		WHERE user_id = $1 AND title_id = $2`,
		userID, titleID,
	).Scan(&p.UserID, &p.TitleID, &p.PositionSeconds, &p.DurationSeconds, &p.Completed, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query progress user=%s title=%s: %w", userID, titleID, err)
	}
	return p, nil
}

// UpsertProgress writes p keyed on (user_id, title_id). Completed is sticky, and
// a row with a newer updated_at wins; in that case nil is returned.
func (r *Repository) UpsertProgress(ctx context.Context, p domain.WatchProgress) (*domain.WatchProgress, error) {
	out := &domain.WatchProgress{}
	err := r.pool.QueryRow(ctx, upsertProgressSQL,
		p.UserID, p.TitleID, p.PositionSeconds, p.DurationSeconds, p.Completed, p.UpdatedAt,
	).Scan(&out.UserID, &out.TitleID, &out.PositionSeconds, &out.DurationSeconds, &out.Completed, &out.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("upsert progress user=%s title=%s: %w", p.UserID, p.TitleID, err)
	}
	return out, nil
}

func (r *Repository) ListContinueWatching(ctx context.Context, userID string, limit int) ([]domain.ContinueWatchingItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT wp.user_id, wp.title_id, wp.position_seconds, wp.duration_seconds, wp.completed, wp.updated_at,
			COALESCE(t.name, ''), COALESCE(t.genre, '')
		FROM watch_progress wp
		LEFT JOIN titles t ON t.id = wp.title_id
		WHERE wp.user_id = $1 AND wp.completed = FALSE AND wp.position_seconds > 0
		ORDER BY wp.updated_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query continue watching for user %s: %w", userID, err)
	}
	defer rows.Close()

	var items []domain.ContinueWatchingItem
	for rows.Next() {
		var item domain.ContinueWatchingItem
		p := &item.WatchProgress
		if err := rows.Scan(&p.UserID, &p.TitleID, &p.PositionSeconds, &p.DurationSeconds, &p.Completed, &p.UpdatedAt,
			&item.TitleName, &item.Genre); err != nil {
			return nil, fmt.Errorf("scan continue watching item: %w", err)
		}
		item.Percent = p.Percent()
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over continue watching items: %w", err)
	}
	return items, nil
}

func (r *Repository) ListWatchHistory(ctx context.Context, userID string, page, limit int) ([]domain.WatchProgress, error) {
	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, title_id, position_seconds, duration_seconds, completed, updated_at
		FROM watch_progress
		WHERE user_id = $1
		ORDER BY updated_at DESC, title_id
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("get watch history for user %s page %d: %w", userID, page, err)
	}
	defer rows.Close()

	var items []domain.WatchProgress
	for rows.Next() {
		var p domain.WatchProgress
		if err := rows.Scan(&p.UserID, &p.TitleID, &p.PositionSeconds, &p.DurationSeconds, &p.Completed, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan watch history item: %w", err)
		}
		items = append(items, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over watch history items: %w", err)
	}
	return items, nil
}

func (r *Repository) CountWatchHistory(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM watch_progress WHERE user_id = $1`, userID,
	).Scan(&total)

	if err != nil {
		return 0, fmt.Errorf("count watch history for user %s: %w", userID, err)
	}
	return total, nil
}
