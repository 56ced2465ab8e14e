package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/ladder"
	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/repositories"
)

type RankingService interface {
	Recompute(ctx context.Context, seasonID int) ([]*models.SeasonPlayer, error)
	Standings(ctx context.Context, seasonID int) ([]*models.SeasonPlayer, error)
	RecomputeActive(ctx context.Context) error
}

type rankingService struct {
	Deps
	seasonRepo  repositories.SeasonRepository
	playerRepo  repositories.SeasonPlayerRepository
	fixtureRepo repositories.FixtureRepository
	resultRepo  repositories.ResultRepository
}

func NewRankingService(
	deps Deps,
	seasonRepo repositories.SeasonRepository,
	playerRepo repositories.SeasonPlayerRepository,
	fixtureRepo repositories.FixtureRepository,
	resultRepo repositories.ResultRepository,
) RankingService {
	return &rankingService{
		Deps:        deps.withDefaults(),
		seasonRepo:  seasonRepo,
		playerRepo:  playerRepo,
		fixtureRepo: fixtureRepo,
		resultRepo:  resultRepo,
	}
}

func fillWinPercentage(players []*models.SeasonPlayer) {
	for _, sp := range players {
		sp.WinPercentage = ladder.WinPercentage(sp.GamesWon, sp.GamesPlayed)
	}
}

// scoredFixtures pairs each fixture with its authoritative result; fixtures
// without a result are skipped.
func scoredFixtures(fixtures []*models.MatchFixture, results []models.MatchResult) []ladder.ScoredFixture {
	chosen := ladder.AuthoritativeResults(results)
	scored := make([]ladder.ScoredFixture, 0, len(chosen))
	for _, f := range fixtures {
		r, ok := chosen[f.ID]
		if !ok {
			continue
		}
		scored = append(scored, ladder.ScoredFixture{
			Side1:      f.Side1(),
			Side2:      f.Side2(),
			Side1Score: r.Pair1Score,
			Side2Score: r.Pair2Score,
		})
	}
	return scored
}

// Recompute rebuilds every season player's statistics from the season's
// results and rewrites the ranking in one transaction.
func (s *rankingService) Recompute(ctx context.Context, seasonID int) ([]*models.SeasonPlayer, error) {
	const op = "recompute rankings"
	var ordered []*models.SeasonPlayer
	var scored int

	err := withTx(ctx, s.DB, nil, s.Logger, func(tx *sql.Tx) error {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()

		if _, err := s.seasonRepo.GetByID(callCtx, tx, seasonID); err != nil {
			return err
		}
		players, err := s.playerRepo.ListBySeason(callCtx, tx, seasonID)
		if err != nil {
			return err
		}
		fixtures, err := s.fixtureRepo.ListBySeason(callCtx, tx, seasonID)
		if err != nil {
			return err
		}
		results, err := s.resultRepo.ListBySeason(callCtx, tx, seasonID)
		if err != nil {
			return err
		}

		games := scoredFixtures(fixtures, results)
		scored = len(games)
		ordered = ladder.Recompute(players, games)
		return s.playerRepo.UpdateStandings(callCtx, tx, ordered)
	})
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}

	s.Cache.Invalidate(seasonID)
	s.Cache.Set(seasonID, ordered)
	s.Logger.InfoContext(ctx, "Rankings recomputed",
		slog.Int("season_id", seasonID), slog.Int("players", len(ordered)), slog.Int("scored_fixtures", scored))
	s.publish(ctx, seasonID, "rankings_updated", events.TopicPlayers)
	return ordered, nil
}

func (s *rankingService) Standings(ctx context.Context, seasonID int) ([]*models.SeasonPlayer, error) {
	const op = "get standings"
	if cached, ok := s.Cache.Get(seasonID); ok {
		return cached, nil
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	if _, err := s.seasonRepo.GetByID(ctx, nil, seasonID); err != nil {
		return nil, handleRepositoryError(op, err)
	}
	players, err := s.playerRepo.ListBySeason(ctx, nil, seasonID)
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}
	fillWinPercentage(players)
	s.Cache.Set(seasonID, players)
	return players, nil
}

// RecomputeActive recomputes the active season, if there is one.
func (s *rankingService) RecomputeActive(ctx context.Context) error {
	callCtx, cancel := s.callContext(ctx)
	season, err := s.seasonRepo.GetActive(callCtx, nil)
	cancel()
	if errors.Is(err, repositories.ErrSeasonNotFound) {
		return nil
	}
	if err != nil {
		return handleRepositoryError("recompute active season", err)
	}
	_, err = s.Recompute(ctx, season.ID)
	return err
}
