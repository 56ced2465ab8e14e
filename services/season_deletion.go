package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/repositories"
	"github.com/Dosada05/club-ladder/storage"
)

// Cascade step names, in execution order.
const (
	StepLoadSeason          = "load_season"
	StepFetchPlayers        = "fetch_players"
	StepArchiveSnapshot     = "archive_snapshot"
	StepDeleteRatingHistory = "delete_rating_history"
	StepDeleteMatchTree     = "delete_match_tree"
	StepRestoreRatings      = "restore_ratings"
	StepDeleteSeasonRows    = "delete_season_rows"
	StepRefresh             = "refresh"
)

// Rating restoration sources.
const (
	RestoreFromHistory = "history"
	RestoreFromCurrent = "current"
	RestoreNone        = "none"
)

type RatingRestoration struct {
	PlayerID             int    `json:"player_id"`
	Source               string `json:"source"`
	Rating               *int   `json:"rating,omitempty"`
	SeasonPlayersUpdated int    `json:"season_players_updated"`
}

type DeletionReport struct {
	RunID                string              `json:"run_id"`
	SeasonID             int                 `json:"season_id"`
	SeasonName           string              `json:"season_name"`
	ArchiveKey           string              `json:"archive_key,omitempty"`
	RatingHistoryDeleted int64               `json:"rating_history_deleted"`
	ChallengesDeleted    int64               `json:"challenges_deleted"`
	ConflictsDeleted     int64               `json:"conflicts_deleted"`
	ResultsDeleted       int64               `json:"results_deleted"`
	FixturesDeleted      int64               `json:"fixtures_deleted"`
	AvailabilityDeleted  int64               `json:"availability_deleted"`
	MatchesDeleted       int64               `json:"matches_deleted"`
	PlayersDeleted       int64               `json:"players_deleted"`
	TrophiesDeleted      int64               `json:"trophies_deleted"`
	Restorations         []RatingRestoration `json:"restorations"`
	Steps                []string            `json:"steps"`
}

// SeasonSnapshot is what gets archived before a season is deleted.
type SeasonSnapshot struct {
	RunID         string                  `json:"run_id"`
	TakenAt       time.Time               `json:"taken_at"`
	Season        *models.Season          `json:"season"`
	Players       []*models.SeasonPlayer  `json:"players"`
	Matches       []*models.Match         `json:"matches"`
	Fixtures      []*models.MatchFixture  `json:"fixtures"`
	Results       []models.MatchResult    `json:"results"`
	RatingHistory []*models.RatingHistory `json:"rating_history"`
	Trophies      []*models.Trophy        `json:"trophies"`
	Availability  []*models.Availability  `json:"availability"`
}

type SeasonDeletionService interface {
	// DeleteSeason runs the cascade under runID; an empty runID mints a new
	// one. Retrying a failed run with the same runID reuses its archive key.
	DeleteSeason(ctx context.Context, seasonID int, runID string) (*DeletionReport, error)
}

type DeletionRepositories struct {
	Seasons       repositories.SeasonRepository
	Players       repositories.SeasonPlayerRepository
	Matches       repositories.MatchRepository
	Fixtures      repositories.FixtureRepository
	Results       repositories.ResultRepository
	Availability  repositories.AvailabilityRepository
	RatingHistory repositories.RatingHistoryRepository
	Trophies      repositories.TrophyRepository
}

type seasonDeletionService struct {
	Deps
	repos    DeletionRepositories
	archiver storage.SeasonArchiver
	newRunID func() string
}

// NewSeasonDeletionService builds the cascade. archiver may be nil to skip
// snapshots.
func NewSeasonDeletionService(deps Deps, repos DeletionRepositories, archiver storage.SeasonArchiver) SeasonDeletionService {
	return &seasonDeletionService{
		Deps:     deps.withDefaults(),
		repos:    repos,
		archiver: archiver,
		newRunID: uuid.NewString,
	}
}

type cascadeRun struct {
	svc       *seasonDeletionService
	tx        *sql.Tx
	seasonID  int
	report    *DeletionReport
	step      string
	completed []string

	season  *models.Season
	players []*models.SeasonPlayer
	matches []*models.Match
	touched map[int]bool
}

// do runs one step. Steps bound each repository call with call.
func (r *cascadeRun) do(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	r.step = step
	if err := fn(ctx); err != nil {
		return err
	}
	r.completed = append(r.completed, step)
	r.svc.Logger.DebugContext(ctx, "Cascade step done",
		slog.String("run_id", r.report.RunID), slog.Int("season_id", r.seasonID), slog.String("step", step))
	return nil
}

// call runs one round trip under its own deadline.
func (r *cascadeRun) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := r.svc.callContext(ctx)
	defer cancel()
	return fn(callCtx)
}

// DeleteSeason removes a season and everything scoped to it in a single
// serializable transaction, restoring each affected player's rating in
// their remaining seasons. Any failure rolls the whole cascade back.
func (s *seasonDeletionService) DeleteSeason(ctx context.Context, seasonID int, runID string) (*DeletionReport, error) {
	if runID == "" {
		runID = s.newRunID()
	} else if _, err := uuid.Parse(runID); err != nil {
		return nil, validationError("delete season", ErrInvalidRunID, "%q", runID)
	}
	report := &DeletionReport{RunID: runID, SeasonID: seasonID, Restorations: []RatingRestoration{}}
	run := &cascadeRun{svc: s, seasonID: seasonID, report: report, touched: make(map[int]bool)}

	logger := s.Logger.With(slog.String("run_id", report.RunID), slog.Int("season_id", seasonID))
	logger.InfoContext(ctx, "Season deletion started")

	err := withTx(ctx, s.DB, &sql.TxOptions{Isolation: sql.LevelSerializable}, s.Logger, func(tx *sql.Tx) error {
		run.tx = tx
		steps := []struct {
			name string
			fn   func(context.Context) error
		}{
			{StepLoadSeason, run.loadSeason},
			{StepFetchPlayers, run.fetchPlayers},
			{StepArchiveSnapshot, run.archiveSnapshot},
			{StepDeleteRatingHistory, run.deleteRatingHistory},
			{StepDeleteMatchTree, run.deleteMatchTree},
			{StepRestoreRatings, run.restoreRatings},
			{StepDeleteSeasonRows, run.deleteSeasonRows},
		}
		for _, st := range steps {
			if err := run.do(ctx, st.name, st.fn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if report.ArchiveKey != "" {
			if dErr := s.archiver.Discard(context.WithoutCancel(ctx), report.ArchiveKey); dErr != nil {
				logger.WarnContext(ctx, "Failed to discard snapshot of aborted deletion",
					slog.String("key", report.ArchiveKey), slog.Any("error", dErr))
			}
		}
		if run.step == StepLoadSeason && errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, handleRepositoryError("delete season", err)
		}
		cascadeErr := &CascadeError{
			RunID:     report.RunID,
			SeasonID:  seasonID,
			Step:      run.step,
			Completed: run.completed,
			Err:       err,
		}
		logger.ErrorContext(ctx, "Season deletion rolled back",
			slog.String("step", run.step), slog.String("kind", string(cascadeErr.Kind())), slog.Any("error", err))
		return nil, cascadeErr
	}

	report.Steps = append(run.completed, StepRefresh)
	invalidate := []int{seasonID}
	for id := range run.touched {
		invalidate = append(invalidate, id)
	}
	s.Cache.Invalidate(invalidate...)
	s.publish(ctx, seasonID, "season_deleted",
		events.TopicSeasons, events.TopicPlayers, events.TopicAvailability, events.TopicFixtures, events.TopicResults)

	logger.InfoContext(ctx, "Season deleted",
		slog.Int64("matches", report.MatchesDeleted),
		slog.Int64("fixtures", report.FixturesDeleted),
		slog.Int64("players", report.PlayersDeleted),
		slog.Int("restorations", len(report.Restorations)))
	return report, nil
}

func (r *cascadeRun) loadSeason(ctx context.Context) error {
	return r.call(ctx, func(ctx context.Context) error {
		season, err := r.svc.repos.Seasons.GetByID(ctx, r.tx, r.seasonID)
		if err != nil {
			return err
		}
		r.season = season
		r.report.SeasonName = season.Name
		return nil
	})
}

func (r *cascadeRun) fetchPlayers(ctx context.Context) error {
	return r.call(ctx, func(ctx context.Context) error {
		players, err := r.svc.repos.Players.ListBySeason(ctx, r.tx, r.seasonID)
		if err != nil {
			return err
		}
		r.players = players
		return nil
	})
}

func (r *cascadeRun) archiveSnapshot(ctx context.Context) error {
	if r.svc.archiver == nil {
		return nil
	}
	repos := r.svc.repos
	snap := SeasonSnapshot{
		RunID:   r.report.RunID,
		TakenAt: r.svc.Clock.Now().UTC(),
		Season:  r.season,
		Players: r.players,
	}
	loads := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			snap.Matches, err = repos.Matches.ListBySeason(ctx, r.tx, r.seasonID)
			return err
		},
		func(ctx context.Context) (err error) {
			snap.Fixtures, err = repos.Fixtures.ListBySeason(ctx, r.tx, r.seasonID)
			return err
		},
		func(ctx context.Context) (err error) {
			snap.Results, err = repos.Results.ListBySeason(ctx, r.tx, r.seasonID)
			return err
		},
		func(ctx context.Context) (err error) {
			snap.RatingHistory, err = repos.RatingHistory.ListBySeason(ctx, r.tx, r.seasonID)
			return err
		},
		func(ctx context.Context) (err error) {
			snap.Trophies, err = repos.Trophies.ListBySeason(ctx, r.tx, r.seasonID)
			return err
		},
		func(ctx context.Context) (err error) {
			snap.Availability, err = repos.Availability.ListByDates(ctx, r.tx, matchDates(snap.Matches))
			return err
		},
	}
	for _, load := range loads {
		if err := r.call(ctx, load); err != nil {
			return err
		}
	}

	return r.call(ctx, func(ctx context.Context) error {
		result, err := r.svc.archiver.Archive(ctx, r.seasonID, r.report.RunID, snap)
		if err != nil {
			return fmt.Errorf("failed to archive season snapshot: %w", err)
		}
		r.report.ArchiveKey = result.Key
		return nil
	})
}

func (r *cascadeRun) deleteRatingHistory(ctx context.Context) error {
	ids := make([]int, len(r.players))
	for i, sp := range r.players {
		ids[i] = sp.ID
	}
	return r.call(ctx, func(ctx context.Context) (err error) {
		r.report.RatingHistoryDeleted, err = r.svc.repos.RatingHistory.DeleteBySeasonPlayerIDs(ctx, r.tx, ids)
		return err
	})
}

func matchDates(matches []*models.Match) []time.Time {
	dates := make([]time.Time, len(matches))
	for i, m := range matches {
		dates[i] = m.MatchDate
	}
	return dates
}

// deleteMatchTree removes per-fixture rows, fixtures, availability for the
// season's match dates, then the matches. Availability is keyed by bare
// date, so another season's answers for the same date go too.
func (r *cascadeRun) deleteMatchTree(ctx context.Context) error {
	repos := r.svc.repos
	err := r.call(ctx, func(ctx context.Context) (err error) {
		r.matches, err = repos.Matches.ListBySeason(ctx, r.tx, r.seasonID)
		return err
	})
	if err != nil {
		return err
	}
	matchIDs := make([]int, len(r.matches))
	for i, m := range r.matches {
		matchIDs[i] = m.ID
	}

	var fixtureIDs []int
	rep := r.report
	calls := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			fixtureIDs, err = repos.Fixtures.ListIDsByMatchIDs(ctx, r.tx, matchIDs)
			return err
		},
		func(ctx context.Context) (err error) {
			rep.ChallengesDeleted, err = repos.Results.DeleteChallengesByFixtureIDs(ctx, r.tx, fixtureIDs)
			return err
		},
		func(ctx context.Context) (err error) {
			rep.ConflictsDeleted, err = repos.Results.DeleteConflictsByFixtureIDs(ctx, r.tx, fixtureIDs)
			return err
		},
		func(ctx context.Context) (err error) {
			rep.ResultsDeleted, err = repos.Results.DeleteByFixtureIDs(ctx, r.tx, fixtureIDs)
			return err
		},
		func(ctx context.Context) (err error) {
			rep.FixturesDeleted, err = repos.Fixtures.DeleteByMatchIDs(ctx, r.tx, matchIDs)
			return err
		},
		func(ctx context.Context) (err error) {
			rep.AvailabilityDeleted, err = repos.Availability.DeleteByDates(ctx, r.tx, matchDates(r.matches))
			return err
		},
		func(ctx context.Context) (err error) {
			rep.MatchesDeleted, err = repos.Matches.DeleteBySeason(ctx, r.tx, r.seasonID)
			return err
		},
	}
	for _, c := range calls {
		if err := r.call(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// restoreRatings resets each affected player's rating in their other seasons
// to the newest rating recorded outside this season, falling back to a
// rating already stored on one of those seasons.
func (r *cascadeRun) restoreRatings(ctx context.Context) error {
	repos := r.svc.repos
	seen := make(map[int]bool, len(r.players))
	for _, sp := range r.players {
		if seen[sp.PlayerID] {
			continue
		}
		seen[sp.PlayerID] = true

		var others []*models.SeasonPlayer
		err := r.call(ctx, func(ctx context.Context) (err error) {
			others, err = repos.Players.ListByPlayerExcludingSeason(ctx, r.tx, sp.PlayerID, r.seasonID)
			return err
		})
		if err != nil {
			return fmt.Errorf("player %d: %w", sp.PlayerID, err)
		}
		restoration := RatingRestoration{PlayerID: sp.PlayerID, Source: RestoreNone}
		if len(others) == 0 {
			r.report.Restorations = append(r.report.Restorations, restoration)
			continue
		}

		var latest *models.RatingHistory
		err = r.call(ctx, func(ctx context.Context) (err error) {
			latest, err = repos.RatingHistory.LatestForPlayerExcludingSeason(ctx, r.tx, sp.PlayerID, r.seasonID)
			return err
		})
		switch {
		case err == nil:
			restoration.Source = RestoreFromHistory
			restoration.Rating = intPtr(latest.NewRating)
		case errors.Is(err, repositories.ErrRatingHistoryNotFound):
			for _, other := range others {
				if other.Rating != nil {
					restoration.Source = RestoreFromCurrent
					restoration.Rating = intPtr(*other.Rating)
					break
				}
			}
		default:
			return fmt.Errorf("player %d: %w", sp.PlayerID, err)
		}

		if restoration.Rating != nil {
			for _, other := range others {
				if other.Rating != nil && *other.Rating == *restoration.Rating {
					continue
				}
				err := r.call(ctx, func(ctx context.Context) error {
					return repos.Players.UpdateRating(ctx, r.tx, other.ID, *restoration.Rating, other.Version)
				})
				if err != nil {
					return fmt.Errorf("player %d season %d: %w", sp.PlayerID, other.SeasonID, err)
				}
				restoration.SeasonPlayersUpdated++
				r.touched[other.SeasonID] = true
			}
		}
		r.svc.Logger.InfoContext(ctx, "Rating restored",
			slog.String("run_id", r.report.RunID),
			slog.Int("player_id", sp.PlayerID),
			slog.String("source", restoration.Source),
			slog.Int("rows_updated", restoration.SeasonPlayersUpdated))
		r.report.Restorations = append(r.report.Restorations, restoration)
	}
	return nil
}

func (r *cascadeRun) deleteSeasonRows(ctx context.Context) error {
	repos := r.svc.repos
	calls := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			r.report.PlayersDeleted, err = repos.Players.DeleteBySeason(ctx, r.tx, r.seasonID)
			return err
		},
		func(ctx context.Context) (err error) {
			r.report.TrophiesDeleted, err = repos.Trophies.DeleteBySeason(ctx, r.tx, r.seasonID)
			return err
		},
		func(ctx context.Context) error {
			return repos.Seasons.Delete(ctx, r.tx, r.seasonID)
		},
	}
	for _, c := range calls {
		if err := r.call(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
