package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/club-ladder/models"
)

type TrophyRepository interface {
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Trophy, error)
	DeleteBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error)
}

type postgresTrophyRepository struct {
	db *sql.DB
}

func NewPostgresTrophyRepository(db *sql.DB) TrophyRepository {
	return &postgresTrophyRepository{db: db}
}

func (r *postgresTrophyRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTrophyRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Trophy, error) {
	query := `SELECT id, season_id, player_id, title, created_at FROM trophy_cabinet WHERE season_id = $1 ORDER BY id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trophies for season %d: %w", seasonID, mapPQError(err, nil))
	}
	defer rows.Close()

	trophies := make([]*models.Trophy, 0)
	for rows.Next() {
		var t models.Trophy
		if err := rows.Scan(&t.ID, &t.SeasonID, &t.PlayerID, &t.Title, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trophy row: %w", err)
		}
		trophies = append(trophies, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trophy rows: %w", err)
	}
	return trophies, nil
}

func (r *postgresTrophyRepository) DeleteBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM trophy_cabinet WHERE season_id = $1`, seasonID)
	if err != nil {
		return 0, mapPQError(err, nil)
	}
	return affectedRows(result)
}
