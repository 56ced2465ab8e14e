package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dosada05/club-ladder/models"
	"github.com/lib/pq"
)

type AvailabilityRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, a *models.Availability) error
	ListAvailablePlayerIDs(ctx context.Context, exec SQLExecutor, date time.Time) ([]int, error)
	ListByDates(ctx context.Context, exec SQLExecutor, dates []time.Time) ([]*models.Availability, error)
	DeleteByDates(ctx context.Context, exec SQLExecutor, dates []time.Time) (int64, error)
}

type postgresAvailabilityRepository struct {
	db *sql.DB
}

func NewPostgresAvailabilityRepository(db *sql.DB) AvailabilityRepository {
	return &postgresAvailabilityRepository{db: db}
}

func (r *postgresAvailabilityRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAvailabilityRepository) Upsert(ctx context.Context, exec SQLExecutor, a *models.Availability) error {
	query := `
		INSERT INTO availability (player_id, match_date, is_available)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, match_date) DO UPDATE SET is_available = EXCLUDED.is_available
		RETURNING id`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, a.PlayerID, a.MatchDate.Format("2006-01-02"), a.IsAvailable).Scan(&a.ID)
	if err != nil {
		return mapPQError(err, nil)
	}
	return nil
}

func (r *postgresAvailabilityRepository) ListAvailablePlayerIDs(ctx context.Context, exec SQLExecutor, date time.Time) ([]int, error) {
	query := `SELECT player_id FROM availability WHERE match_date = $1 AND is_available = TRUE ORDER BY player_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", mapPQError(err, nil))
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan availability row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating availability rows: %w", err)
	}
	return ids, nil
}

func (r *postgresAvailabilityRepository) ListByDates(ctx context.Context, exec SQLExecutor, dates []time.Time) ([]*models.Availability, error) {
	if len(dates) == 0 {
		return []*models.Availability{}, nil
	}
	query := `
		SELECT id, player_id, match_date, is_available
		FROM availability
		WHERE match_date = ANY($1::date[])
		ORDER BY match_date, player_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(dateStrings(dates)))
	if err != nil {
		return nil, fmt.Errorf("failed to list availability by dates: %w", mapPQError(err, nil))
	}
	defer rows.Close()

	out := make([]*models.Availability, 0)
	for rows.Next() {
		var a models.Availability
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.MatchDate, &a.IsAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan availability row: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating availability rows: %w", err)
	}
	return out, nil
}

// DeleteByDates removes availability rows matching any of the calendar dates,
// regardless of which season the dates were scheduled for.
func (r *postgresAvailabilityRepository) DeleteByDates(ctx context.Context, exec SQLExecutor, dates []time.Time) (int64, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM availability WHERE match_date = ANY($1::date[])`, pq.Array(dateStrings(dates)))
	if err != nil {
		return 0, mapPQError(err, nil)
	}
	return affectedRows(result)
}
