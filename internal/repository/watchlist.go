package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/actuallystonmai/progress-service/internal/domain"
)

// AddToWatchlist is idempotent; re-adding a title keeps its original added_at.
func (r *Repository) AddToWatchlist(ctx context.Context, userID, titleID string, addedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO watchlist (user_id, title_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, title_id) DO NOTHING`,
		userID, titleID, addedAt,
	)
	if err != nil {
		return fmt.Errorf("add to watchlist user=%s title=%s: %w", userID, titleID, err)
	}
	return nil
}

func (r *Repository) RemoveFromWatchlist(ctx context.Context, userID, titleID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND title_id = $2`,
		userID, titleID,
	)
	if err != nil {
		return fmt.Errorf("remove from watchlist user=%s title=%s: %w", userID, titleID, err)
	}
	return nil
}

func (r *Repository) ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.user_id, w.title_id, COALESCE(t.name, ''), COALESCE(t.genre, ''), w.added_at
		FROM watchlist w
		LEFT JOIN titles t ON t.id = w.title_id
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC, w.title_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query watchlist for user %s: %w", userID, err)
	}
	defer rows.Close()

	var items []domain.WatchlistItem
	for rows.Next() {
		var item domain.WatchlistItem
		if err := rows.Scan(&item.UserID, &item.TitleID, &item.TitleName, &item.Genre, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan watchlist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over watchlist items: %w", err)
	}
	return items, nil
}
