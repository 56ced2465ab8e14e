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
	ErrFixtureNotFound = errors.New("match fixture not found")
)

type FixtureRepository interface {
	BatchCreate(ctx context.Context, exec SQLExecutor, fixtures []*models.MatchFixture) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MatchFixture, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchFixture, error)
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.MatchFixture, error)
	ListIDsByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) ([]int, error)
	DeleteByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) (int64, error)
}

type postgresFixtureRepository struct {
	db *sql.DB
}

func NewPostgresFixtureRepository(db *sql.DB) FixtureRepository {
	return &postgresFixtureRepository{db: db}
}

func (r *postgresFixtureRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const fixtureColumns = `f.id, f.match_id, f.court_number, f.game_number,
		f.pair1_player1_id, f.pair1_player2_id, f.pair2_player1_id, f.pair2_player2_id,
		f.sitting_player_id, f.match_format, f.created_at, m.season_id`

func (r *postgresFixtureRepository) scanFixture(row rowScanner) (*models.MatchFixture, error) {
	var f models.MatchFixture
	var p11, p12, p21, p22, sitting sql.NullInt64
	err := row.Scan(
		&f.ID, &f.MatchID, &f.CourtNumber, &f.GameNumber,
		&p11, &p12, &p21, &p22, &sitting, &f.Format, &f.CreatedAt, &f.SeasonID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFixtureNotFound
		}
		return nil, mapPQError(err, nil)
	}
	f.Pair1Player1ID = nullIntPtr(p11)
	f.Pair1Player2ID = nullIntPtr(p12)
	f.Pair2Player1ID = nullIntPtr(p21)
	f.Pair2Player2ID = nullIntPtr(p22)
	f.SittingPlayerID = nullIntPtr(sitting)
	return &f, nil
}

func (r *postgresFixtureRepository) BatchCreate(ctx context.Context, exec SQLExecutor, fixtures []*models.MatchFixture) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_fixtures
		    (match_id, court_number, game_number, pair1_player1_id, pair1_player2_id,
		     pair2_player1_id, pair2_player2_id, sitting_player_id, match_format)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	for _, f := range fixtures {
		err := executor.QueryRowContext(ctx, query,
			f.MatchID, f.CourtNumber, f.GameNumber,
			f.Pair1Player1ID, f.Pair1Player2ID, f.Pair2Player1ID, f.Pair2Player2ID,
			f.SittingPlayerID, f.Format,
		).Scan(&f.ID, &f.CreatedAt)
		if err != nil {
			return fmt.Errorf("BatchCreate failed for court %d game %d: %w", f.CourtNumber, f.GameNumber, mapPQError(err, nil))
		}
	}
	return nil
}

func (r *postgresFixtureRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MatchFixture, error) {
	query := `SELECT ` + fixtureColumns + `
		FROM match_fixtures f
		JOIN matches m ON m.id = f.match_id
		WHERE f.id = $1`
	return r.scanFixture(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresFixtureRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.MatchFixture, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", mapPQError(err, nil))
	}
	defer rows.Close()

	fixtures := make([]*models.MatchFixture, 0)
	for rows.Next() {
		f, err := r.scanFixture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixture row: %w", err)
		}
		fixtures = append(fixtures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fixture rows: %w", err)
	}
	return fixtures, nil
}

func (r *postgresFixtureRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchFixture, error) {
	query := `SELECT ` + fixtureColumns + `
		FROM match_fixtures f
		JOIN matches m ON m.id = f.match_id
		WHERE f.match_id = $1
		ORDER BY f.court_number, f.game_number`
	return r.list(ctx, exec, query, matchID)
}

func (r *postgresFixtureRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.MatchFixture, error) {
	query := `SELECT ` + fixtureColumns + `
		FROM match_fixtures f
		JOIN matches m ON m.id = f.match_id
		WHERE m.season_id = $1
		ORDER BY m.week_number, f.court_number, f.game_number`
	return r.list(ctx, exec, query, seasonID)
}

func (r *postgresFixtureRepository) ListIDsByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) ([]int, error) {
	if len(matchIDs) == 0 {
		return []int{}, nil
	}
	rows, err := r.getExecutor(exec).QueryContext(ctx,
		`SELECT id FROM match_fixtures WHERE match_id = ANY($1) ORDER BY id`, pq.Array(matchIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list fixture ids: %w", mapPQError(err, nil))
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan fixture id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fixture ids: %w", err)
	}
	return ids, nil
}

func (r *postgresFixtureRepository) DeleteByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) (int64, error) {
	if len(matchIDs) == 0 {
		return 0, nil
	}
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM match_fixtures WHERE match_id = ANY($1)`, pq.Array(matchIDs))
	if err != nil {
		return 0, mapPQError(err, nil)
	}
	return affectedRows(result)
}
