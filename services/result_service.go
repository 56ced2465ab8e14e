package services

import (
	"context"
	"database/sql"
	"log/slog"
	"math"

	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/ladder"
	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/repositories"
)

type SubmitScoreInput struct {
	Pair1Score  int  `json:"pair1_score"`
	Pair2Score  int  `json:"pair2_score"`
	SubmittedBy *int `json:"submitted_by,omitempty"`
}

// SubmissionOutcome: Conflict is set when the submission disagreed with the
// recorded result, in which case Result is that recorded result.
type SubmissionOutcome struct {
	Result        *models.MatchResult     `json:"result"`
	Conflict      *models.ScoreConflict   `json:"conflict,omitempty"`
	RatingChanges []*models.RatingHistory `json:"rating_changes,omitempty"`
	Created       bool                    `json:"created"`
}

type ResultService interface {
	SubmitScore(ctx context.Context, fixtureID int, input SubmitScoreInput) (*SubmissionOutcome, error)
	VerifyResult(ctx context.Context, resultID int) (*models.MatchResult, error)
}

type resultService struct {
	Deps
	seasonRepo  repositories.SeasonRepository
	playerRepo  repositories.SeasonPlayerRepository
	fixtureRepo repositories.FixtureRepository
	resultRepo  repositories.ResultRepository
	historyRepo repositories.RatingHistoryRepository
	rankings    RankingService
}

func NewResultService(
	deps Deps,
	seasonRepo repositories.SeasonRepository,
	playerRepo repositories.SeasonPlayerRepository,
	fixtureRepo repositories.FixtureRepository,
	resultRepo repositories.ResultRepository,
	historyRepo repositories.RatingHistoryRepository,
	rankings RankingService,
) ResultService {
	return &resultService{
		Deps:        deps.withDefaults(),
		seasonRepo:  seasonRepo,
		playerRepo:  playerRepo,
		fixtureRepo: fixtureRepo,
		resultRepo:  resultRepo,
		historyRepo: historyRepo,
		rankings:    rankings,
	}
}

// SubmitScore stores the first score for a fixture. Later submissions that
// disagree are recorded as conflicts and leave the result untouched; an
// identical resubmission is a no-op.
func (s *resultService) SubmitScore(ctx context.Context, fixtureID int, input SubmitScoreInput) (*SubmissionOutcome, error) {
	const op = "submit score"
	if input.Pair1Score < 0 || input.Pair2Score < 0 || (input.Pair1Score == 0 && input.Pair2Score == 0) {
		return nil, validationError(op, ErrInvalidScore, "%d-%d", input.Pair1Score, input.Pair2Score)
	}

	outcome := &SubmissionOutcome{}
	var fixture *models.MatchFixture

	err := withTx(ctx, s.DB, nil, s.Logger, func(tx *sql.Tx) error {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()

		var err error
		fixture, err = s.fixtureRepo.GetByID(callCtx, tx, fixtureID)
		if err != nil {
			return err
		}
		existing, err := s.resultRepo.ListByFixture(callCtx, tx, fixtureID)
		if err != nil {
			return err
		}

		if len(existing) > 0 {
			plain := make([]models.MatchResult, len(existing))
			for i, r := range existing {
				plain[i] = *r
			}
			recorded := ladder.AuthoritativeResults(plain)[fixtureID]
			outcome.Result = &recorded
			if recorded.Pair1Score == input.Pair1Score && recorded.Pair2Score == input.Pair2Score {
				return nil
			}
			conflict := &models.ScoreConflict{
				FixtureID:         fixtureID,
				FirstSubmissionID: recorded.ID,
				Pair1Score:        input.Pair1Score,
				Pair2Score:        input.Pair2Score,
				UserID:            input.SubmittedBy,
			}
			if err := s.resultRepo.CreateConflict(callCtx, tx, conflict); err != nil {
				return err
			}
			outcome.Conflict = conflict
			return nil
		}

		result := &models.MatchResult{
			FixtureID:   fixtureID,
			Pair1Score:  input.Pair1Score,
			Pair2Score:  input.Pair2Score,
			SubmittedBy: input.SubmittedBy,
		}
		if err := s.resultRepo.Create(callCtx, tx, result); err != nil {
			return err
		}
		outcome.Result = result
		outcome.Created = true

		season, err := s.seasonRepo.GetByID(callCtx, tx, fixture.SeasonID)
		if err != nil {
			return err
		}
		if !season.RatingEnabled {
			return nil
		}
		outcome.RatingChanges, err = s.applyRating(callCtx, tx, season, fixture, result)
		return err
	})
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}

	switch {
	case outcome.Conflict != nil:
		s.Logger.WarnContext(ctx, "Score conflict recorded",
			slog.Int("fixture_id", fixtureID), slog.Int("recorded_result_id", outcome.Result.ID))
		s.publish(ctx, fixture.SeasonID, "score_conflict", events.TopicResults)
	case outcome.Created:
		s.Logger.InfoContext(ctx, "Score submitted",
			slog.Int("fixture_id", fixtureID), slog.Int("result_id", outcome.Result.ID),
			slog.Int("rating_changes", len(outcome.RatingChanges)))
		s.Cache.Invalidate(fixture.SeasonID)
		s.publish(ctx, fixture.SeasonID, "score_submitted", events.TopicResults, events.TopicPlayers)
		s.refreshRankings(ctx, fixture.SeasonID)
	}
	return outcome, nil
}

// refreshRankings recomputes standings after a committed result. A failure
// leaves the result in place; the scheduled recompute catches up.
func (s *resultService) refreshRankings(ctx context.Context, seasonID int) {
	if s.rankings == nil {
		return
	}
	if _, err := s.rankings.Recompute(ctx, seasonID); err != nil {
		s.Logger.WarnContext(ctx, "Rankings recompute after result failed",
			slog.Int("season_id", seasonID), slog.Any("error", err))
	}
}

// applyRating updates every participant's season rating by the team Elo
// change and appends one elo_history row per player.
func (s *resultService) applyRating(ctx context.Context, tx *sql.Tx, season *models.Season, fixture *models.MatchFixture, result *models.MatchResult) ([]*models.RatingHistory, error) {
	roster, err := s.playerRepo.ListBySeason(ctx, tx, season.ID)
	if err != nil {
		return nil, err
	}
	byPlayer := make(map[int]*models.SeasonPlayer, len(roster))
	for _, sp := range roster {
		byPlayer[sp.PlayerID] = sp
	}

	side1, ok1 := lookupSide(byPlayer, fixture.Side1())
	side2, ok2 := lookupSide(byPlayer, fixture.Side2())
	if !ok1 || !ok2 {
		s.Logger.WarnContext(ctx, "Skipping rating update, participant not in season",
			slog.Int("fixture_id", fixture.ID), slog.Int("season_id", season.ID))
		return nil, nil
	}

	ratings := func(side []*models.SeasonPlayer) []int {
		out := make([]int, len(side))
		for i, sp := range side {
			out[i] = sp.RatingOr(season.InitialRating)
		}
		return out
	}
	change := ladder.TeamChange(ratings(side1), ratings(side2), result.Pair1Score, result.Pair2Score, season.KFactor)

	history := make([]*models.RatingHistory, 0, len(side1)+len(side2))
	apply := func(side []*models.SeasonPlayer, delta int, ownAvg, oppAvg, actual float64) error {
		for _, sp := range side {
			old := sp.RatingOr(season.InitialRating)
			updated := ladder.ClampRating(old + delta)
			if err := s.playerRepo.UpdateRating(ctx, tx, sp.ID, updated, sp.Version); err != nil {
				return err
			}
			sp.Version++
			sp.Rating = intPtr(updated)
			history = append(history, &models.RatingHistory{
				SeasonPlayerID:    sp.ID,
				MatchFixtureID:    intPtr(fixture.ID),
				OldRating:         old,
				NewRating:         updated,
				RatingChange:      updated - old,
				KFactor:           season.KFactor,
				OpponentAvgRating: int(math.Round(oppAvg)),
				ExpectedScore:     ladder.ExpectedScore(ownAvg, oppAvg),
				ActualScore:       actual,
			})
		}
		return nil
	}
	if err := apply(side1, change.Side1Change, change.Side1AvgRating, change.Side2AvgRating, change.Side1Actual); err != nil {
		return nil, err
	}
	if err := apply(side2, change.Side2Change, change.Side2AvgRating, change.Side1AvgRating, change.Side2Actual); err != nil {
		return nil, err
	}
	if err := s.historyRepo.BatchCreate(ctx, tx, history); err != nil {
		return nil, err
	}
	return history, nil
}

func lookupSide(byPlayer map[int]*models.SeasonPlayer, ids []int) ([]*models.SeasonPlayer, bool) {
	if len(ids) == 0 {
		return nil, false
	}
	side := make([]*models.SeasonPlayer, 0, len(ids))
	for _, id := range ids {
		sp, ok := byPlayer[id]
		if !ok {
			return nil, false
		}
		side = append(side, sp)
	}
	return side, true
}

func (s *resultService) VerifyResult(ctx context.Context, resultID int) (*models.MatchResult, error) {
	const op = "verify result"
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	result, err := s.resultRepo.GetByID(callCtx, nil, resultID)
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}
	if result.Verified {
		return result, nil
	}
	fixture, err := s.fixtureRepo.GetByID(callCtx, nil, result.FixtureID)
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}
	if err := s.resultRepo.SetVerified(callCtx, nil, resultID); err != nil {
		return nil, handleRepositoryError(op, err)
	}
	result.Verified = true

	s.Cache.Invalidate(fixture.SeasonID)
	s.publish(ctx, fixture.SeasonID, "result_verified", events.TopicResults)
	s.refreshRankings(ctx, fixture.SeasonID)
	return result, nil
}
