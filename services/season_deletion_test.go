package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/repositories"
	"github.com/Dosada05/club-ladder/storage"
)

var (
	seasonCols = []string{
		"id", "name", "status", "season_type", "start_date", "end_date",
		"elo_enabled", "elo_k_factor", "elo_initial_rating", "created_at",
	}
	seasonPlayerCols = []string{
		"id", "season_id", "player_id", "rank", "previous_rank",
		"matches_played", "matches_won", "games_played", "games_won",
		"elo_rating", "version", "created_at", "name",
	}
	matchCols   = []string{"id", "season_id", "week_number", "match_date", "created_at"}
	historyCols = []string{
		"id", "season_player_id", "match_fixture_id", "old_rating", "new_rating",
		"rating_change", "k_factor", "opponent_avg_rating", "expected_score", "actual_score", "created_at",
	}
	fixtureCols = []string{
		"id", "match_id", "court_number", "game_number",
		"pair1_player1_id", "pair1_player2_id", "pair2_player1_id", "pair2_player2_id",
		"sitting_player_id", "match_format", "created_at", "season_id",
	}
	resultCols = []string{"id", "fixture_id", "pair1_score", "pair2_score", "verified", "submitted_by", "created_at"}
)

var testTime = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) {
	p.mu.Lock()
	p.events = append(p.events, evs...)
	p.mu.Unlock()
}

func (p *recordingPublisher) topics() map[events.Topic]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[events.Topic]bool)
	for _, e := range p.events {
		out[e.Topic] = true
	}
	return out
}

func newServiceMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func deletionRepos(db *sql.DB) DeletionRepositories {
	return DeletionRepositories{
		Seasons:       repositories.NewPostgresSeasonRepository(db),
		Players:       repositories.NewPostgresSeasonPlayerRepository(db),
		Matches:       repositories.NewPostgresMatchRepository(db),
		Fixtures:      repositories.NewPostgresFixtureRepository(db),
		Results:       repositories.NewPostgresResultRepository(db),
		Availability:  repositories.NewPostgresAvailabilityRepository(db),
		RatingHistory: repositories.NewPostgresRatingHistoryRepository(db),
		Trophies:      repositories.NewPostgresTrophyRepository(db),
	}
}

func newDeletionService(db *sql.DB, deps Deps, archiver storage.SeasonArchiver) *seasonDeletionService {
	deps.DB = db
	svc := NewSeasonDeletionService(deps, deletionRepos(db), archiver).(*seasonDeletionService)
	svc.newRunID = func() string { return "run-1" }
	return svc
}

func expectSeasonLoad(mock sqlmock.Sqlmock, id int) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM seasons s WHERE s.id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(seasonCols).
			AddRow(id, "Spring", "active", "ladder", testTime, nil, true, 32, 1200, testTime))
}

func expectSeasonPlayers(mock sqlmock.Sqlmock, seasonID int, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN profiles p ON p.id = sp.player_id WHERE sp.season_id = $1")).
		WithArgs(seasonID).
		WillReturnRows(rows)
}

func TestDeleteSeason(t *testing.T) {
	ctx := context.Background()
	matchDate := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)

	db, mock := newServiceMock(t)
	pub := &recordingPublisher{}
	cache := NewStandingsCache(time.Hour, &fakeClock{now: testTime})
	svc := newDeletionService(db, Deps{Publisher: pub, Cache: cache, Clock: &fakeClock{now: testTime}}, nil)

	rank := 1
	cache.Set(5, []*models.SeasonPlayer{{ID: 11, Rank: &rank}})
	cache.Set(4, []*models.SeasonPlayer{{ID: 41, Rank: &rank}})
	cache.Set(9, []*models.SeasonPlayer{{ID: 90, Rank: &rank}})

	mock.ExpectBegin()
	expectSeasonLoad(mock, 5)
	expectSeasonPlayers(mock, 5, sqlmock.NewRows(seasonPlayerCols).
		AddRow(11, 5, 101, 1, nil, 3, 2, 18, 11, 1240, 4, testTime, "Ann").
		AddRow(12, 5, 102, 2, nil, 3, 1, 18, 7, 1160, 4, testTime, "Bob"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM elo_history WHERE season_player_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 6))

	mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(matchCols).AddRow(21, 5, 1, matchDate, testTime))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM match_fixtures WHERE match_id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31).AddRow(32))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM score_challenges WHERE fixture_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM score_conflicts WHERE fixture_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM match_results WHERE fixture_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM match_fixtures WHERE match_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability WHERE match_date = ANY($1::date[])")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matches WHERE season_id = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Player 101 has an older season and history outside season 5.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sp.player_id = $1 AND sp.season_id <> $2")).
		WithArgs(101, 5).
		WillReturnRows(sqlmock.NewRows(seasonPlayerCols).
			AddRow(41, 4, 101, 3, nil, 8, 5, 40, 22, 1240, 2, testTime, "Ann"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM elo_history eh JOIN season_players sp ON sp.id = eh.season_player_id WHERE sp.player_id = $1 AND sp.season_id <> $2")).
		WithArgs(101, 5).
		WillReturnRows(sqlmock.NewRows(historyCols).
			AddRow(70, 41, 33, 1198, 1210, 12, 32, 1190, 0.51, 1.0, testTime))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE season_players SET elo_rating = $1, version = version + 1 WHERE id = $2 AND version = $3")).
		WithArgs(1210, 41, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Player 102 only played season 5.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sp.player_id = $1 AND sp.season_id <> $2")).
		WithArgs(102, 5).
		WillReturnRows(sqlmock.NewRows(seasonPlayerCols))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM season_players WHERE season_id = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trophy_cabinet WHERE season_id = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seasons WHERE id = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := svc.DeleteSeason(ctx, 5, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}

	if report.RunID != "run-1" || report.SeasonName != "Spring" {
		t.Errorf("Unexpected report header %+v", report)
	}
	if report.RatingHistoryDeleted != 6 || report.ResultsDeleted != 2 || report.FixturesDeleted != 2 ||
		report.AvailabilityDeleted != 4 || report.MatchesDeleted != 1 || report.PlayersDeleted != 2 ||
		report.ConflictsDeleted != 1 {
		t.Errorf("Unexpected deletion counts %+v", report)
	}

	wantSteps := []string{
		StepLoadSeason, StepFetchPlayers, StepArchiveSnapshot, StepDeleteRatingHistory,
		StepDeleteMatchTree, StepRestoreRatings, StepDeleteSeasonRows, StepRefresh,
	}
	if len(report.Steps) != len(wantSteps) {
		t.Fatalf("Expected steps %v, got %v", wantSteps, report.Steps)
	}
	for i := range wantSteps {
		if report.Steps[i] != wantSteps[i] {
			t.Errorf("Expected step %d to be %s, got %s", i, wantSteps[i], report.Steps[i])
		}
	}

	if len(report.Restorations) != 2 {
		t.Fatalf("Expected 2 restorations, got %d", len(report.Restorations))
	}
	first := report.Restorations[0]
	if first.PlayerID != 101 || first.Source != RestoreFromHistory || first.Rating == nil || *first.Rating != 1210 || first.SeasonPlayersUpdated != 1 {
		t.Errorf("Unexpected restoration for player 101: %+v", first)
	}
	second := report.Restorations[1]
	if second.PlayerID != 102 || second.Source != RestoreNone || second.Rating != nil {
		t.Errorf("Unexpected restoration for player 102: %+v", second)
	}

	if _, ok := cache.Get(5); ok {
		t.Error("Expected deleted season to be evicted from cache")
	}
	if _, ok := cache.Get(4); ok {
		t.Error("Expected season with restored ratings to be evicted from cache")
	}
	if _, ok := cache.Get(9); !ok {
		t.Error("Expected unrelated season to stay cached")
	}

	topics := pub.topics()
	for _, topic := range []events.Topic{events.TopicSeasons, events.TopicPlayers, events.TopicAvailability, events.TopicFixtures, events.TopicResults} {
		if !topics[topic] {
			t.Errorf("Expected refresh event for %s", topic)
		}
	}
}

func TestDeleteSeasonRestoresFromCurrentRating(t *testing.T) {
	db, mock := newServiceMock(t)
	svc := newDeletionService(db, Deps{}, nil)

	mock.ExpectBegin()
	expectSeasonLoad(mock, 5)
	expectSeasonPlayers(mock, 5, sqlmock.NewRows(seasonPlayerCols).
		AddRow(11, 5, 101, 1, nil, 0, 0, 0, 0, 1300, 1, testTime, "Ann"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM elo_history")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(matchCols))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matches WHERE season_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE sp.player_id = $1 AND sp.season_id <> $2")).
		WithArgs(101, 5).
		WillReturnRows(sqlmock.NewRows(seasonPlayerCols).
			AddRow(41, 4, 101, 2, nil, 0, 0, 0, 0, nil, 1, testTime, "Ann").
			AddRow(42, 3, 101, 2, nil, 0, 0, 0, 0, 1180, 3, testTime, "Ann"))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY eh.created_at DESC, eh.id DESC")).
		WithArgs(101, 5).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE season_players SET elo_rating = $1")).
		WithArgs(1180, 41, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM season_players")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trophy_cabinet")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seasons WHERE id = $1")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := svc.DeleteSeason(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	r := report.Restorations[0]
	if r.Source != RestoreFromCurrent || r.Rating == nil || *r.Rating != 1180 || r.SeasonPlayersUpdated != 1 {
		t.Errorf("Unexpected restoration %+v", r)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestDeleteSeasonFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing season", func(t *testing.T) {
		db, mock := newServiceMock(t)
		svc := newDeletionService(db, Deps{}, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM seasons s WHERE s.id = $1")).
			WithArgs(404).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := svc.DeleteSeason(ctx, 404, "")
		if KindOf(err) != KindNotFound {
			t.Errorf("Expected not_found, got %q (%v)", KindOf(err), err)
		}
		var cascadeErr *CascadeError
		if errors.As(err, &cascadeErr) {
			t.Error("Expected a plain not found error, got a cascade error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("stale rating rolls back", func(t *testing.T) {
		db, mock := newServiceMock(t)
		pub := &recordingPublisher{}
		svc := newDeletionService(db, Deps{Publisher: pub}, nil)

		mock.ExpectBegin()
		expectSeasonLoad(mock, 5)
		expectSeasonPlayers(mock, 5, sqlmock.NewRows(seasonPlayerCols).
			AddRow(11, 5, 101, 1, nil, 0, 0, 0, 0, 1250, 1, testTime, "Ann"))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM elo_history")).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
			WillReturnRows(sqlmock.NewRows(matchCols))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matches WHERE season_id = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE sp.player_id = $1 AND sp.season_id <> $2")).
			WithArgs(101, 5).
			WillReturnRows(sqlmock.NewRows(seasonPlayerCols).
				AddRow(41, 4, 101, 2, nil, 0, 0, 0, 0, 1250, 7, testTime, "Ann"))
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY eh.created_at DESC, eh.id DESC")).
			WillReturnRows(sqlmock.NewRows(historyCols).
				AddRow(70, 41, nil, 1200, 1222, 22, 32, 1200, 0.5, 1.0, testTime))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE season_players SET elo_rating = $1")).
			WithArgs(1222, 41, 7).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := svc.DeleteSeason(ctx, 5, "")
		var cascadeErr *CascadeError
		if !errors.As(err, &cascadeErr) {
			t.Fatalf("Expected *CascadeError, got %T (%v)", err, err)
		}
		if cascadeErr.Step != StepRestoreRatings || cascadeErr.RunID != "run-1" || cascadeErr.SeasonID != 5 {
			t.Errorf("Unexpected cascade error %+v", cascadeErr)
		}
		if len(cascadeErr.Completed) != 5 {
			t.Errorf("Expected 5 completed steps, got %v", cascadeErr.Completed)
		}
		if !IsRetryable(err) {
			t.Errorf("Expected stale row to be retryable, kind %q", KindOf(err))
		}
		if !errors.Is(err, repositories.ErrSeasonPlayerStale) {
			t.Errorf("Expected ErrSeasonPlayerStale in chain, got %v", err)
		}
		if len(pub.topics()) != 0 {
			t.Error("Expected no refresh events after rollback")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("remaining references", func(t *testing.T) {
		db, mock := newServiceMock(t)
		svc := newDeletionService(db, Deps{}, nil)

		mock.ExpectBegin()
		expectSeasonLoad(mock, 5)
		expectSeasonPlayers(mock, 5, sqlmock.NewRows(seasonPlayerCols))
		mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
			WillReturnRows(sqlmock.NewRows(matchCols))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matches WHERE season_id = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM season_players")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trophy_cabinet")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seasons WHERE id = $1")).
			WillReturnError(&pq.Error{Code: "23503", Constraint: "challenges_season_id_fkey"})
		mock.ExpectRollback()

		_, err := svc.DeleteSeason(ctx, 5, "")
		var cascadeErr *CascadeError
		if !errors.As(err, &cascadeErr) {
			t.Fatalf("Expected *CascadeError, got %T (%v)", err, err)
		}
		if cascadeErr.Step != StepDeleteSeasonRows {
			t.Errorf("Expected failure at %s, got %s", StepDeleteSeasonRows, cascadeErr.Step)
		}
		if KindOf(err) != KindConstraint {
			t.Errorf("Expected constraint, got %q", KindOf(err))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("archived snapshot is discarded", func(t *testing.T) {
		db, mock := newServiceMock(t)
		uploader := storage.NewMemoryUploader()
		svc := newDeletionService(db, Deps{}, storage.NewSeasonArchiver(uploader))

		mock.ExpectBegin()
		expectSeasonLoad(mock, 5)
		expectSeasonPlayers(mock, 5, sqlmock.NewRows(seasonPlayerCols))
		mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
			WillReturnRows(sqlmock.NewRows(matchCols))
		mock.ExpectQuery(regexp.QuoteMeta("FROM match_fixtures f JOIN matches m ON m.id = f.match_id WHERE m.season_id = $1")).
			WillReturnRows(sqlmock.NewRows(fixtureCols))
		mock.ExpectQuery(regexp.QuoteMeta("FROM match_results mr")).
			WillReturnRows(sqlmock.NewRows(resultCols))
		mock.ExpectQuery(regexp.QuoteMeta("FROM elo_history eh JOIN season_players sp ON sp.id = eh.season_player_id WHERE sp.season_id = $1")).
			WillReturnRows(sqlmock.NewRows(historyCols))
		mock.ExpectQuery(regexp.QuoteMeta("FROM trophy_cabinet WHERE season_id = $1")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "season_id", "player_id", "title", "created_at"}))
		mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
			WillReturnRows(sqlmock.NewRows(matchCols))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matches WHERE season_id = $1")).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := svc.DeleteSeason(ctx, 5, "")
		var cascadeErr *CascadeError
		if !errors.As(err, &cascadeErr) {
			t.Fatalf("Expected *CascadeError, got %T (%v)", err, err)
		}
		if cascadeErr.Step != StepDeleteMatchTree || KindOf(err) != KindPartialFailure {
			t.Errorf("Unexpected cascade error step %s kind %s", cascadeErr.Step, KindOf(err))
		}
		if _, ok := uploader.Object(storage.SnapshotKey(5, "run-1")); ok {
			t.Error("Expected snapshot of rolled back deletion to be discarded")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})
}

func expectEmptySeasonTeardown(mock sqlmock.Sqlmock, seasonID int) {
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM season_players WHERE season_id = $1")).
		WithArgs(seasonID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trophy_cabinet WHERE season_id = $1")).
		WithArgs(seasonID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seasons WHERE id = $1")).
		WithArgs(seasonID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestDeleteSeasonCallDeadlines(t *testing.T) {
	db, mock := newServiceMock(t)
	svc := newDeletionService(db, Deps{CallTimeout: 100 * time.Millisecond}, nil)
	delay := 40 * time.Millisecond

	mock.ExpectBegin()
	expectSeasonLoad(mock, 5)
	expectSeasonPlayers(mock, 5, sqlmock.NewRows(seasonPlayerCols).
		AddRow(11, 5, 101, 1, nil, 0, 0, 0, 0, 1250, 1, testTime, "Ann"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM elo_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
		WillReturnRows(sqlmock.NewRows(matchCols))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matches WHERE season_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Each restore call fits the deadline; the whole step does not.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sp.player_id = $1 AND sp.season_id <> $2")).
		WithArgs(101, 5).
		WillDelayFor(delay).
		WillReturnRows(sqlmock.NewRows(seasonPlayerCols).
			AddRow(41, 4, 101, 2, nil, 0, 0, 0, 0, 1200, 3, testTime, "Ann"))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY eh.created_at DESC, eh.id DESC")).
		WithArgs(101, 5).
		WillDelayFor(delay).
		WillReturnRows(sqlmock.NewRows(historyCols).
			AddRow(70, 41, nil, 1210, 1230, 20, 32, 1200, 0.5, 1.0, testTime))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE season_players SET elo_rating = $1")).
		WithArgs(1230, 41, 3).
		WillDelayFor(delay).
		WillReturnResult(sqlmock.NewResult(0, 1))

	expectEmptySeasonTeardown(mock, 5)
	mock.ExpectCommit()

	report, err := svc.DeleteSeason(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if r := report.Restorations[0]; r.Source != RestoreFromHistory || r.SeasonPlayersUpdated != 1 {
		t.Errorf("Unexpected restoration %+v", r)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestDeleteSeasonRunID(t *testing.T) {
	ctx := context.Background()

	t.Run("caller run id", func(t *testing.T) {
		db, mock := newServiceMock(t)
		svc := newDeletionService(db, Deps{}, nil)
		runID := "3f1c9a52-6a43-4c36-9a53-0d3c1b0e7a10"

		mock.ExpectBegin()
		expectSeasonLoad(mock, 5)
		expectSeasonPlayers(mock, 5, sqlmock.NewRows(seasonPlayerCols))
		mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE season_id = $1")).
			WillReturnRows(sqlmock.NewRows(matchCols))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matches WHERE season_id = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		expectEmptySeasonTeardown(mock, 5)
		mock.ExpectCommit()

		report, err := svc.DeleteSeason(ctx, 5, runID)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if report.RunID != runID {
			t.Errorf("Expected run id %s, got %s", runID, report.RunID)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("caller run id on failure", func(t *testing.T) {
		db, mock := newServiceMock(t)
		svc := newDeletionService(db, Deps{}, nil)
		runID := "3f1c9a52-6a43-4c36-9a53-0d3c1b0e7a10"

		mock.ExpectBegin()
		expectSeasonLoad(mock, 5)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE sp.season_id = $1")).
			WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
		mock.ExpectRollback()

		_, err := svc.DeleteSeason(ctx, 5, runID)
		var cascadeErr *CascadeError
		if !errors.As(err, &cascadeErr) {
			t.Fatalf("Expected *CascadeError, got %T (%v)", err, err)
		}
		if cascadeErr.RunID != runID || cascadeErr.Step != StepFetchPlayers || !IsRetryable(err) {
			t.Errorf("Unexpected cascade error %+v (kind %s)", cascadeErr, KindOf(err))
		}
	})

	t.Run("malformed run id", func(t *testing.T) {
		db, mock := newServiceMock(t)
		svc := newDeletionService(db, Deps{}, nil)

		_, err := svc.DeleteSeason(ctx, 5, "../../etc")
		if !errors.Is(err, ErrInvalidRunID) || KindOf(err) != KindValidation {
			t.Errorf("Expected ErrInvalidRunID validation error, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Expected no queries: %v", err)
		}
	})
}
