package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/repositories"
)

type CreateSeasonInput struct {
	Name             string            `json:"name"`
	Type             models.SeasonType `json:"season_type"`
	StartDate        *time.Time        `json:"start_date,omitempty"`
	RatingEnabled    bool              `json:"elo_enabled"`
	KFactor          int               `json:"elo_k_factor"`
	InitialRating    int               `json:"elo_initial_rating"`
	CarryOverPlayers bool              `json:"carry_over_players"`
}

// SeasonOverview is a season together with its standings and match weeks.
type SeasonOverview struct {
	Season    *models.Season         `json:"season"`
	Standings []*models.SeasonPlayer `json:"standings"`
	Matches   []*models.Match        `json:"matches"`
}

type SeasonService interface {
	List(ctx context.Context) ([]*models.Season, error)
	Active(ctx context.Context) (*models.Season, error)
	Create(ctx context.Context, input CreateSeasonInput) (*models.Season, error)
	Complete(ctx context.Context, seasonID int) (*models.Season, error)
	Overview(ctx context.Context, seasonID int) (*SeasonOverview, error)
}

type seasonService struct {
	Deps
	seasonRepo repositories.SeasonRepository
	playerRepo repositories.SeasonPlayerRepository
	matchRepo  repositories.MatchRepository
}

func NewSeasonService(
	deps Deps,
	seasonRepo repositories.SeasonRepository,
	playerRepo repositories.SeasonPlayerRepository,
	matchRepo repositories.MatchRepository,
) SeasonService {
	return &seasonService{
		Deps:       deps.withDefaults(),
		seasonRepo: seasonRepo,
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
	}
}

func (s *seasonService) List(ctx context.Context) ([]*models.Season, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	seasons, err := s.seasonRepo.List(ctx, nil)
	if err != nil {
		return nil, handleRepositoryError("list seasons", err)
	}
	return seasons, nil
}

// Active returns the current active season, creating a default ladder
// season when none exists.
func (s *seasonService) Active(ctx context.Context) (*models.Season, error) {
	callCtx, cancel := s.callContext(ctx)
	season, err := s.seasonRepo.GetActive(callCtx, nil)
	cancel()
	if err == nil {
		return season, nil
	}
	if !errors.Is(err, repositories.ErrSeasonNotFound) {
		return nil, handleRepositoryError("get active season", err)
	}

	s.Logger.InfoContext(ctx, "No active season, creating default")
	return s.Create(ctx, CreateSeasonInput{
		Name: fmt.Sprintf("Season %d", s.Clock.Now().Year()),
		Type: models.SeasonTypeLadder,
	})
}

func (s *seasonService) normalize(input *CreateSeasonInput) error {
	const op = "create season"
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return validationError(op, ErrSeasonNameMissing, "")
	}
	if input.Type == "" {
		input.Type = models.SeasonTypeLadder
	}
	if !input.Type.Valid() {
		return validationError(op, ErrInvalidSeasonType, "%q", input.Type)
	}
	if input.KFactor < 0 || input.InitialRating < 0 {
		return validationError(op, ErrInvalidRating, "")
	}
	if input.KFactor == 0 {
		input.KFactor = models.DefaultRatingKFactor
	}
	if input.InitialRating == 0 {
		input.InitialRating = models.DefaultInitialRating
	}
	return nil
}

// Create completes the current active season (if any) and opens a new one.
// With CarryOverPlayers the previous roster joins the new season keeping its
// rank and starting from zero statistics.
func (s *seasonService) Create(ctx context.Context, input CreateSeasonInput) (*models.Season, error) {
	const op = "create season"
	if err := s.normalize(&input); err != nil {
		return nil, err
	}

	startDate := today(s.Clock)
	if input.StartDate != nil {
		startDate = *input.StartDate
	}
	season := &models.Season{
		Name:          input.Name,
		Status:        models.SeasonStatusActive,
		Type:          input.Type,
		StartDate:     startDate,
		RatingEnabled: input.RatingEnabled,
		KFactor:       input.KFactor,
		InitialRating: input.InitialRating,
	}

	var previous *models.Season
	carried := 0
	err := withTx(ctx, s.DB, nil, s.Logger, func(tx *sql.Tx) error {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()

		current, err := s.seasonRepo.GetActive(callCtx, tx)
		switch {
		case err == nil:
			previous = current
			endDate := today(s.Clock)
			if err := s.seasonRepo.Complete(callCtx, tx, current.ID, endDate); err != nil {
				return fmt.Errorf("failed to complete season %d: %w", current.ID, err)
			}
			current.Status = models.SeasonStatusCompleted
			current.EndDate = &endDate
		case errors.Is(err, repositories.ErrSeasonNotFound):
		default:
			return err
		}

		if err := s.seasonRepo.Create(callCtx, tx, season); err != nil {
			return err
		}

		if !input.CarryOverPlayers || previous == nil {
			return nil
		}
		roster, err := s.playerRepo.ListBySeason(callCtx, tx, previous.ID)
		if err != nil {
			return err
		}
		newPlayers := make([]*models.SeasonPlayer, 0, len(roster))
		for _, prev := range roster {
			sp := &models.SeasonPlayer{
				SeasonID: season.ID,
				PlayerID: prev.PlayerID,
				Rank:     prev.Rank,
			}
			if season.RatingEnabled {
				sp.Rating = intPtr(season.InitialRating)
			}
			newPlayers = append(newPlayers, sp)
		}
		carried = len(newPlayers)
		season.PlayerCount = carried
		return s.playerRepo.BatchCreate(callCtx, tx, newPlayers)
	})
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}

	logAttrs := []any{slog.Int("season_id", season.ID), slog.Int("carried_players", carried)}
	if previous != nil {
		s.Cache.Invalidate(previous.ID)
		logAttrs = append(logAttrs, slog.Int("completed_season_id", previous.ID))
	}
	s.Logger.InfoContext(ctx, "Season created", logAttrs...)
	s.publish(ctx, season.ID, "created", events.TopicSeasons, events.TopicPlayers)
	return season, nil
}

func (s *seasonService) Complete(ctx context.Context, seasonID int) (*models.Season, error) {
	const op = "complete season"
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	season, err := s.seasonRepo.GetByID(ctx, nil, seasonID)
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}
	if season.Status == models.SeasonStatusCompleted {
		return season, nil
	}

	endDate := today(s.Clock)
	if err := s.seasonRepo.Complete(ctx, nil, seasonID, endDate); err != nil {
		return nil, handleRepositoryError(op, err)
	}
	season.Status = models.SeasonStatusCompleted
	season.EndDate = &endDate

	s.Cache.Invalidate(seasonID)
	s.publish(ctx, seasonID, "completed", events.TopicSeasons)
	return season, nil
}

// Overview loads the season, its standings and its match weeks in parallel.
func (s *seasonService) Overview(ctx context.Context, seasonID int) (*SeasonOverview, error) {
	const op = "season overview"
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	overview := &SeasonOverview{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		season, err := s.seasonRepo.GetByID(gCtx, nil, seasonID)
		if err != nil {
			return err
		}
		overview.Season = season
		return nil
	})

	g.Go(func() error {
		if cached, ok := s.Cache.Get(seasonID); ok {
			overview.Standings = cached
			return nil
		}
		players, err := s.playerRepo.ListBySeason(gCtx, nil, seasonID)
		if err != nil {
			return fmt.Errorf("failed to load standings: %w", err)
		}
		fillWinPercentage(players)
		s.Cache.Set(seasonID, players)
		overview.Standings = players
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListBySeason(gCtx, nil, seasonID)
		if err != nil {
			return fmt.Errorf("failed to load matches: %w", err)
		}
		overview.Matches = matches
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, handleRepositoryError(op, err)
	}
	overview.Season.PlayerCount = len(overview.Standings)
	return overview, nil
}
