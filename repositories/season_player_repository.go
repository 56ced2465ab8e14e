package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/club-ladder/models"
)

var (
	ErrSeasonPlayerNotFound = errors.New("season player not found")
	ErrSeasonPlayerConflict = errors.New("player already belongs to this season")
	// ErrSeasonPlayerStale: the row changed after it was read.
	ErrSeasonPlayerStale = errors.New("season player was modified concurrently")
)

type SeasonPlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, sp *models.SeasonPlayer) error
	BatchCreate(ctx context.Context, exec SQLExecutor, players []*models.SeasonPlayer) error
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonPlayer, error)
	ListByPlayerExcludingSeason(ctx context.Context, exec SQLExecutor, playerID, excludedSeasonID int) ([]*models.SeasonPlayer, error)
	UpdateStandings(ctx context.Context, exec SQLExecutor, players []*models.SeasonPlayer) error
	UpdateRating(ctx context.Context, exec SQLExecutor, id, rating, expectedVersion int) error
	DeleteBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error)
}

type postgresSeasonPlayerRepository struct {
	db *sql.DB
}

func NewPostgresSeasonPlayerRepository(db *sql.DB) SeasonPlayerRepository {
	return &postgresSeasonPlayerRepository{db: db}
}

func (r *postgresSeasonPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const seasonPlayerColumns = `sp.id, sp.season_id, sp.player_id, sp.rank, sp.previous_rank,
		sp.matches_played, sp.matches_won, sp.games_played, sp.games_won,
		sp.elo_rating, sp.version, sp.created_at, COALESCE(p.name, '')`

func (r *postgresSeasonPlayerRepository) scanSeasonPlayer(row rowScanner) (*models.SeasonPlayer, error) {
	var sp models.SeasonPlayer
	var rank, previousRank, rating sql.NullInt64
	err := row.Scan(
		&sp.ID, &sp.SeasonID, &sp.PlayerID, &rank, &previousRank,
		&sp.MatchesPlayed, &sp.MatchesWon, &sp.GamesPlayed, &sp.GamesWon,
		&rating, &sp.Version, &sp.CreatedAt, &sp.PlayerName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonPlayerNotFound
		}
		return nil, mapPQError(err, nil)
	}
	sp.Rank = nullIntPtr(rank)
	sp.PreviousRank = nullIntPtr(previousRank)
	sp.Rating = nullIntPtr(rating)
	return &sp, nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func (r *postgresSeasonPlayerRepository) Create(ctx context.Context, exec SQLExecutor, sp *models.SeasonPlayer) error {
	query := `
		INSERT INTO season_players
		    (season_id, player_id, rank, previous_rank, matches_played, matches_won, games_played, games_won, elo_rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, version, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		sp.SeasonID, sp.PlayerID, sp.Rank, sp.PreviousRank,
		sp.MatchesPlayed, sp.MatchesWon, sp.GamesPlayed, sp.GamesWon, sp.Rating,
	).Scan(&sp.ID, &sp.Version, &sp.CreatedAt)
	if err != nil {
		return mapPQError(err, ErrSeasonPlayerConflict)
	}
	return nil
}

// BatchCreate inserts players one by one; callers pass a transaction when
// the batch must be atomic.
func (r *postgresSeasonPlayerRepository) BatchCreate(ctx context.Context, exec SQLExecutor, players []*models.SeasonPlayer) error {
	for _, sp := range players {
		if err := r.Create(ctx, exec, sp); err != nil {
			return fmt.Errorf("BatchCreate failed for player %d: %w", sp.PlayerID, err)
		}
	}
	return nil
}

func (r *postgresSeasonPlayerRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.SeasonPlayer, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list season players: %w", mapPQError(err, nil))
	}
	defer rows.Close()

	players := make([]*models.SeasonPlayer, 0)
	for rows.Next() {
		sp, err := r.scanSeasonPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan season player row: %w", err)
		}
		players = append(players, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating season player rows: %w", err)
	}
	return players, nil
}

func (r *postgresSeasonPlayerRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonPlayer, error) {
	query := `SELECT ` + seasonPlayerColumns + `
		FROM season_players sp
		LEFT JOIN profiles p ON p.id = sp.player_id
		WHERE sp.season_id = $1
		ORDER BY sp.rank ASC NULLS LAST, sp.id ASC`
	return r.list(ctx, exec, query, seasonID)
}

func (r *postgresSeasonPlayerRepository) ListByPlayerExcludingSeason(ctx context.Context, exec SQLExecutor, playerID, excludedSeasonID int) ([]*models.SeasonPlayer, error) {
	query := `SELECT ` + seasonPlayerColumns + `
		FROM season_players sp
		LEFT JOIN profiles p ON p.id = sp.player_id
		WHERE sp.player_id = $1 AND sp.season_id <> $2
		ORDER BY sp.created_at DESC, sp.id DESC`
	return r.list(ctx, exec, query, playerID, excludedSeasonID)
}

func (r *postgresSeasonPlayerRepository) UpdateStandings(ctx context.Context, exec SQLExecutor, players []*models.SeasonPlayer) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE season_players
		SET rank = $1, previous_rank = $2, matches_played = $3, matches_won = $4,
		    games_played = $5, games_won = $6, version = version + 1
		WHERE id = $7`
	for _, sp := range players {
		result, err := executor.ExecContext(ctx, query,
			sp.Rank, sp.PreviousRank, sp.MatchesPlayed, sp.MatchesWon,
			sp.GamesPlayed, sp.GamesWon, sp.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update standings for season player %d: %w", sp.ID, mapPQError(err, nil))
		}
		if err := checkAffectedRows(result, ErrSeasonPlayerNotFound); err != nil {
			return err
		}
		sp.Version++
	}
	return nil
}

// UpdateRating writes rating only when the row still carries expectedVersion.
func (r *postgresSeasonPlayerRepository) UpdateRating(ctx context.Context, exec SQLExecutor, id, rating, expectedVersion int) error {
	query := `UPDATE season_players SET elo_rating = $1, version = version + 1 WHERE id = $2 AND version = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, rating, id, expectedVersion)
	if err != nil {
		return mapPQError(err, nil)
	}
	return checkAffectedRows(result, ErrSeasonPlayerStale)
}

func (r *postgresSeasonPlayerRepository) DeleteBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM season_players WHERE season_id = $1`, seasonID)
	if err != nil {
		return 0, mapPQError(err, nil)
	}
	return affectedRows(result)
}
