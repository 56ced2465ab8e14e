package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/club-ladder/models"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchWeekConflict = errors.New("week number already exists for this season")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Match, error)
	CountBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int, error)
	DeleteBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches (season_id, week_number, match_date)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, match.SeasonID, match.WeekNumber, match.MatchDate).
		Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		return mapPQError(err, ErrMatchWeekConflict)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT id, season_id, week_number, match_date, created_at FROM matches WHERE id = $1`
	var m models.Match
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.SeasonID, &m.WeekNumber, &m.MatchDate, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, mapPQError(err, nil)
	}
	return &m, nil
}

func (r *postgresMatchRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Match, error) {
	query := `
		SELECT id, season_id, week_number, match_date, created_at
		FROM matches
		WHERE season_id = $1
		ORDER BY week_number ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for season %d: %w", seasonID, mapPQError(err, nil))
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.SeasonID, &m.WeekNumber, &m.MatchDate, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) CountBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int, error) {
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE season_id = $1`, seasonID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches for season %d: %w", seasonID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) DeleteBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM matches WHERE season_id = $1`, seasonID)
	if err != nil {
		return 0, mapPQError(err, nil)
	}
	return affectedRows(result)
}
