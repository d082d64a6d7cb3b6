package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/actuallystonmai/progress-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) GetTitle(ctx context.Context, id string) (*domain.Title, error) {
	t := &domain.Title{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, genre, runtime_seconds, created_at
		FROM titles WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Genre, &t.RuntimeSeconds, &t.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query title id=%s: %w", id, err)
	}
	return t, nil
}

func (r *Repository) CountTitles(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM titles`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count titles: %w", err)
	}
	return total, nil
}
