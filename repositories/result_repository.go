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
	ErrResultNotFound = errors.New("match result not found")
)

// ResultRepository covers match_results and the per-fixture rows that hang
// off them (score_conflicts, score_challenges).
type ResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, result *models.MatchResult) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MatchResult, error)
	ListByFixture(ctx context.Context, exec SQLExecutor, fixtureID int) ([]*models.MatchResult, error)
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]models.MatchResult, error)
	SetVerified(ctx context.Context, exec SQLExecutor, id int) error
	CreateConflict(ctx context.Context, exec SQLExecutor, conflict *models.ScoreConflict) error

	DeleteChallengesByFixtureIDs(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (int64, error)
	DeleteConflictsByFixtureIDs(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (int64, error)
	DeleteByFixtureIDs(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (int64, error)
}

type postgresResultRepository struct {
	db *sql.DB
}

func NewPostgresResultRepository(db *sql.DB) ResultRepository {
	return &postgresResultRepository{db: db}
}

func (r *postgresResultRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresResultRepository) scanResult(row rowScanner) (*models.MatchResult, error) {
	var res models.MatchResult
	var submittedBy sql.NullInt64
	err := row.Scan(&res.ID, &res.FixtureID, &res.Pair1Score, &res.Pair2Score, &res.Verified, &submittedBy, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, mapPQError(err, nil)
	}
	res.SubmittedBy = nullIntPtr(submittedBy)
	return &res, nil
}

func (r *postgresResultRepository) Create(ctx context.Context, exec SQLExecutor, result *models.MatchResult) error {
	query := `
		INSERT INTO match_results (fixture_id, pair1_score, pair2_score, verified, submitted_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		result.FixtureID, result.Pair1Score, result.Pair2Score, result.Verified, result.SubmittedBy,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return mapPQError(err, nil)
	}
	return nil
}

func (r *postgresResultRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MatchResult, error) {
	query := `
		SELECT id, fixture_id, pair1_score, pair2_score, verified, submitted_by, created_at
		FROM match_results WHERE id = $1`
	return r.scanResult(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresResultRepository) ListByFixture(ctx context.Context, exec SQLExecutor, fixtureID int) ([]*models.MatchResult, error) {
	query := `
		SELECT id, fixture_id, pair1_score, pair2_score, verified, submitted_by, created_at
		FROM match_results
		WHERE fixture_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for fixture %d: %w", fixtureID, mapPQError(err, nil))
	}
	defer rows.Close()

	results := make([]*models.MatchResult, 0)
	for rows.Next() {
		res, err := r.scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	return results, nil
}

// ListBySeason returns every result whose fixture belongs to a match of the season.
func (r *postgresResultRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]models.MatchResult, error) {
	query := `
		SELECT mr.id, mr.fixture_id, mr.pair1_score, mr.pair2_score, mr.verified, mr.submitted_by, mr.created_at
		FROM match_results mr
		JOIN match_fixtures f ON f.id = mr.fixture_id
		JOIN matches m ON m.id = f.match_id
		WHERE m.season_id = $1
		ORDER BY mr.created_at ASC, mr.id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for season %d: %w", seasonID, mapPQError(err, nil))
	}
	defer rows.Close()

	results := make([]models.MatchResult, 0)
	for rows.Next() {
		res, err := r.scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	return results, nil
}

func (r *postgresResultRepository) SetVerified(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE match_results SET verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapPQError(err, nil)
	}
	return checkAffectedRows(result, ErrResultNotFound)
}

func (r *postgresResultRepository) CreateConflict(ctx context.Context, exec SQLExecutor, conflict *models.ScoreConflict) error {
	query := `
		INSERT INTO score_conflicts (fixture_id, first_submission_id, conflicting_pair1, conflicting_pair2, conflicting_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		conflict.FixtureID, conflict.FirstSubmissionID, conflict.Pair1Score, conflict.Pair2Score, conflict.UserID,
	).Scan(&conflict.ID, &conflict.CreatedAt)
	if err != nil {
		return mapPQError(err, nil)
	}
	return nil
}

func (r *postgresResultRepository) deleteByFixtureIDs(ctx context.Context, exec SQLExecutor, table string, fixtureIDs []int) (int64, error) {
	if len(fixtureIDs) == 0 {
		return 0, nil
	}
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM `+table+` WHERE fixture_id = ANY($1)`, pq.Array(fixtureIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, mapPQError(err, nil))
	}
	return affectedRows(result)
}

func (r *postgresResultRepository) DeleteChallengesByFixtureIDs(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (int64, error) {
	return r.deleteByFixtureIDs(ctx, exec, "score_challenges", fixtureIDs)
}

func (r *postgresResultRepository) DeleteConflictsByFixtureIDs(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (int64, error) {
	return r.deleteByFixtureIDs(ctx, exec, "score_conflicts", fixtureIDs)
}

func (r *postgresResultRepository) DeleteByFixtureIDs(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (int64, error) {
	return r.deleteByFixtureIDs(ctx, exec, "match_results", fixtureIDs)
}
