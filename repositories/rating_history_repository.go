package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/club-ladder/models"
	"github.com/lib/pq"
)

var (
	ErrRatingHistoryNotFound = errors.New("rating history not found")
)

// RatingHistoryRepository stores elo_history rows.
type RatingHistoryRepository interface {
	BatchCreate(ctx context.Context, exec SQLExecutor, rows []*models.RatingHistory) error
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.RatingHistory, error)
	LatestForPlayerExcludingSeason(ctx context.Context, exec SQLExecutor, playerID, excludedSeasonID int) (*models.RatingHistory, error)
	DeleteBySeasonPlayerIDs(ctx context.Context, exec SQLExecutor, seasonPlayerIDs []int) (int64, error)
}

type postgresRatingHistoryRepository struct {
	db *sql.DB
}

func NewPostgresRatingHistoryRepository(db *sql.DB) RatingHistoryRepository {
	return &postgresRatingHistoryRepository{db: db}
}

func (r *postgresRatingHistoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const ratingHistoryColumns = `eh.id, eh.season_player_id, eh.match_fixture_id, eh.old_rating, eh.new_rating,
		eh.rating_change, eh.k_factor, eh.opponent_avg_rating, eh.expected_score, eh.actual_score, eh.created_at`

func (r *postgresRatingHistoryRepository) scanRow(row rowScanner) (*models.RatingHistory, error) {
	var h models.RatingHistory
	var fixtureID sql.NullInt64
	err := row.Scan(
		&h.ID, &h.SeasonPlayerID, &fixtureID, &h.OldRating, &h.NewRating,
		&h.RatingChange, &h.KFactor, &h.OpponentAvgRating, &h.ExpectedScore, &h.ActualScore, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingHistoryNotFound
		}
		return nil, mapPQError(err, nil)
	}
	h.MatchFixtureID = nullIntPtr(fixtureID)
	return &h, nil
}

func (r *postgresRatingHistoryRepository) BatchCreate(ctx context.Context, exec SQLExecutor, rows []*models.RatingHistory) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO elo_history
		    (season_player_id, match_fixture_id, old_rating, new_rating, rating_change,
		     k_factor, opponent_avg_rating, expected_score, actual_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	for _, h := range rows {
		err := executor.QueryRowContext(ctx, query,
			h.SeasonPlayerID, h.MatchFixtureID, h.OldRating, h.NewRating, h.RatingChange,
			h.KFactor, h.OpponentAvgRating, h.ExpectedScore, h.ActualScore,
		).Scan(&h.ID, &h.CreatedAt)
		if err != nil {
			return fmt.Errorf("BatchCreate failed for season player %d: %w", h.SeasonPlayerID, mapPQError(err, nil))
		}
	}
	return nil
}

func (r *postgresRatingHistoryRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.RatingHistory, error) {
	query := `SELECT ` + ratingHistoryColumns + `
		FROM elo_history eh
		JOIN season_players sp ON sp.id = eh.season_player_id
		WHERE sp.season_id = $1
		ORDER BY eh.created_at, eh.id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating history for season %d: %w", seasonID, mapPQError(err, nil))
	}
	defer rows.Close()

	out := make([]*models.RatingHistory, 0)
	for rows.Next() {
		h, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating history row: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating history rows: %w", err)
	}
	return out, nil
}

// LatestForPlayerExcludingSeason returns the player's most recent rating
// change recorded in any season other than excludedSeasonID.
func (r *postgresRatingHistoryRepository) LatestForPlayerExcludingSeason(ctx context.Context, exec SQLExecutor, playerID, excludedSeasonID int) (*models.RatingHistory, error) {
	query := `SELECT ` + ratingHistoryColumns + `
		FROM elo_history eh
		JOIN season_players sp ON sp.id = eh.season_player_id
		WHERE sp.player_id = $1 AND sp.season_id <> $2
		ORDER BY eh.created_at DESC, eh.id DESC
		LIMIT 1`
	return r.scanRow(r.getExecutor(exec).QueryRowContext(ctx, query, playerID, excludedSeasonID))
}

func (r *postgresRatingHistoryRepository) DeleteBySeasonPlayerIDs(ctx context.Context, exec SQLExecutor, seasonPlayerIDs []int) (int64, error) {
	if len(seasonPlayerIDs) == 0 {
		return 0, nil
	}
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM elo_history WHERE season_player_id = ANY($1)`, pq.Array(seasonPlayerIDs))
	if err != nil {
		return 0, mapPQError(err, nil)
	}
	return affectedRows(result)
}
