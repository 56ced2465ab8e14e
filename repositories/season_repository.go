package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/club-ladder/models"
)

var (
	ErrSeasonNotFound = errors.New("season not found")
)

type SeasonRepository interface {
	Create(ctx context.Context, exec SQLExecutor, season *models.Season) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error)
	GetActive(ctx context.Context, exec SQLExecutor) (*models.Season, error)
	List(ctx context.Context, exec SQLExecutor) ([]*models.Season, error)
	Complete(ctx context.Context, exec SQLExecutor, id int, endDate time.Time) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresSeasonRepository struct {
	db *sql.DB
}

func NewPostgresSeasonRepository(db *sql.DB) SeasonRepository {
	return &postgresSeasonRepository{db: db}
}

func (r *postgresSeasonRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const seasonColumns = `s.id, s.name, s.status, s.season_type, s.start_date, s.end_date,
		s.elo_enabled, s.elo_k_factor, s.elo_initial_rating, s.created_at`

func (r *postgresSeasonRepository) scanSeason(row rowScanner) (*models.Season, error) {
	var s models.Season
	var endDate sql.NullTime
	err := row.Scan(
		&s.ID, &s.Name, &s.Status, &s.Type, &s.StartDate, &endDate,
		&s.RatingEnabled, &s.KFactor, &s.InitialRating, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, mapPQError(err, nil)
	}
	if endDate.Valid {
		s.EndDate = &endDate.Time
	}
	return &s, nil
}

func (r *postgresSeasonRepository) Create(ctx context.Context, exec SQLExecutor, season *models.Season) error {
	query := `
		INSERT INTO seasons (name, status, season_type, start_date, elo_enabled, elo_k_factor, elo_initial_rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		season.Name, season.Status, season.Type, season.StartDate,
		season.RatingEnabled, season.KFactor, season.InitialRating,
	).Scan(&season.ID, &season.CreatedAt)
	if err != nil {
		return mapPQError(err, nil)
	}
	return nil
}

func (r *postgresSeasonRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons s WHERE s.id = $1`
	return r.scanSeason(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresSeasonRepository) GetActive(ctx context.Context, exec SQLExecutor) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons s
		WHERE s.status = $1
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT 1`
	return r.scanSeason(r.getExecutor(exec).QueryRowContext(ctx, query, models.SeasonStatusActive))
}

func (r *postgresSeasonRepository) List(ctx context.Context, exec SQLExecutor) ([]*models.Season, error) {
	query := `SELECT ` + seasonColumns + `,
		(SELECT COUNT(*) FROM season_players sp WHERE sp.season_id = s.id)
		FROM seasons s
		ORDER BY s.created_at DESC, s.id DESC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", mapPQError(err, nil))
	}
	defer rows.Close()

	seasons := make([]*models.Season, 0)
	for rows.Next() {
		var s models.Season
		var endDate sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Status, &s.Type, &s.StartDate, &endDate,
			&s.RatingEnabled, &s.KFactor, &s.InitialRating, &s.CreatedAt, &s.PlayerCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan season row: %w", err)
		}
		if endDate.Valid {
			s.EndDate = &endDate.Time
		}
		seasons = append(seasons, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating season rows: %w", err)
	}
	return seasons, nil
}

func (r *postgresSeasonRepository) Complete(ctx context.Context, exec SQLExecutor, id int, endDate time.Time) error {
	query := `UPDATE seasons SET status = $1, end_date = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, models.SeasonStatusCompleted, endDate, id)
	if err != nil {
		return mapPQError(err, nil)
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}

func (r *postgresSeasonRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM seasons WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return mapPQError(err, nil)
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}
