package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/ladder"
	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/repositories"
)

type LayoutOption struct {
	Courts []int             `json:"courts"`
	Kind   ladder.LayoutKind `json:"kind"`
	Label  string            `json:"label"`
}

type LayoutOptions struct {
	MatchID          int            `json:"match_id"`
	AvailablePlayers int            `json:"available_players"`
	Options          []LayoutOption `json:"options"`
}

type MatchService interface {
	AddMatch(ctx context.Context, seasonID int, date time.Time) (*models.Match, error)
	LayoutOptions(ctx context.Context, matchID int) (*LayoutOptions, error)
	GenerateFixtures(ctx context.Context, matchID int, layout []int) ([]*models.MatchFixture, error)
	SetAvailability(ctx context.Context, playerID int, date time.Time, available bool) (*models.Availability, error)
}

type matchService struct {
	Deps
	seasonRepo       repositories.SeasonRepository
	playerRepo       repositories.SeasonPlayerRepository
	matchRepo        repositories.MatchRepository
	fixtureRepo      repositories.FixtureRepository
	availabilityRepo repositories.AvailabilityRepository
}

func NewMatchService(
	deps Deps,
	seasonRepo repositories.SeasonRepository,
	playerRepo repositories.SeasonPlayerRepository,
	matchRepo repositories.MatchRepository,
	fixtureRepo repositories.FixtureRepository,
	availabilityRepo repositories.AvailabilityRepository,
) MatchService {
	return &matchService{
		Deps:             deps.withDefaults(),
		seasonRepo:       seasonRepo,
		playerRepo:       playerRepo,
		matchRepo:        matchRepo,
		fixtureRepo:      fixtureRepo,
		availabilityRepo: availabilityRepo,
	}
}

// LayoutOptionsFor enumerates and labels every court layout for n players.
// n above ladder.MaxPlayers yields no options.
func LayoutOptionsFor(n int) []LayoutOption {
	layouts := ladder.Layouts(n)
	options := make([]LayoutOption, len(layouts))
	for i, l := range layouts {
		options[i] = LayoutOption{Courts: l, Kind: ladder.Classify(l), Label: ladder.Label(l, i)}
	}
	return options
}

// AddMatch schedules the next match week of an active season.
func (s *matchService) AddMatch(ctx context.Context, seasonID int, date time.Time) (*models.Match, error) {
	const op = "add match"
	if date.IsZero() {
		return nil, validationError(op, ErrMatchDateRequired, "")
	}

	match := &models.Match{SeasonID: seasonID, MatchDate: date}
	err := withTx(ctx, s.DB, nil, s.Logger, func(tx *sql.Tx) error {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()

		season, err := s.seasonRepo.GetByID(callCtx, tx, seasonID)
		if err != nil {
			return err
		}
		if season.Status != models.SeasonStatusActive {
			return validationError(op, ErrSeasonNotActive, "season %d is %s", seasonID, season.Status)
		}
		count, err := s.matchRepo.CountBySeason(callCtx, tx, seasonID)
		if err != nil {
			return err
		}
		match.WeekNumber = count + 1
		return s.matchRepo.Create(callCtx, tx, match)
	})
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}

	s.Logger.InfoContext(ctx, "Match week added",
		slog.Int("season_id", seasonID), slog.Int("match_id", match.ID), slog.Int("week", match.WeekNumber))
	s.publish(ctx, seasonID, "match_added", events.TopicFixtures)
	return match, nil
}

// availablePlayers returns the season players available on the match date,
// strongest first.
func (s *matchService) availablePlayers(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) ([]int, error) {
	roster, err := s.playerRepo.ListBySeason(ctx, exec, match.SeasonID)
	if err != nil {
		return nil, err
	}
	availableIDs, err := s.availabilityRepo.ListAvailablePlayerIDs(ctx, exec, match.MatchDate)
	if err != nil {
		return nil, err
	}
	available := make(map[int]bool, len(availableIDs))
	for _, id := range availableIDs {
		available[id] = true
	}

	players := make([]*models.SeasonPlayer, 0, len(roster))
	for _, sp := range roster {
		if available[sp.PlayerID] {
			players = append(players, sp)
		}
	}
	sort.SliceStable(players, func(i, j int) bool { return rankOf(players[i]) < rankOf(players[j]) })

	ids := make([]int, len(players))
	for i, sp := range players {
		ids[i] = sp.PlayerID
	}
	return ids, nil
}

func (s *matchService) LayoutOptions(ctx context.Context, matchID int) (*LayoutOptions, error) {
	const op = "layout options"
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}
	ids, err := s.availablePlayers(ctx, nil, match)
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}
	if len(ids) > ladder.MaxPlayers {
		return nil, validationError(op, ErrTooManyPlayers, "at most %d, found %d", ladder.MaxPlayers, len(ids))
	}
	return &LayoutOptions{
		MatchID:          matchID,
		AvailablePlayers: len(ids),
		Options:          LayoutOptionsFor(len(ids)),
	}, nil
}

// GenerateFixtures splits the available players into courts and stores the
// rotation for every court. layout may be nil to take the first option.
func (s *matchService) GenerateFixtures(ctx context.Context, matchID int, layout []int) ([]*models.MatchFixture, error) {
	const op = "generate fixtures"
	var stored []*models.MatchFixture
	var season *models.Season

	err := withTx(ctx, s.DB, nil, s.Logger, func(tx *sql.Tx) error {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()

		match, err := s.matchRepo.GetByID(callCtx, tx, matchID)
		if err != nil {
			return err
		}
		season, err = s.seasonRepo.GetByID(callCtx, tx, match.SeasonID)
		if err != nil {
			return err
		}
		existing, err := s.fixtureRepo.ListByMatch(callCtx, tx, matchID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return newError(KindConflict, op, ErrFixturesExist)
		}

		ids, err := s.availablePlayers(callCtx, tx, match)
		if err != nil {
			return err
		}
		if len(ids) < ladder.MinCourtSize {
			return validationError(op, ErrNotEnoughPlayers, "need at least %d, found %d", ladder.MinCourtSize, len(ids))
		}
		if len(ids) > ladder.MaxPlayers {
			return validationError(op, ErrTooManyPlayers, "at most %d, found %d", ladder.MaxPlayers, len(ids))
		}

		gen := ladder.GeneratorFor(season.Type)
		generated, err := gen.Generate(callCtx, ladder.GenerateFixturesParams{Season: season, PlayerIDs: ids, Layout: layout})
		if err != nil {
			return translateGeneratorError(op, err, layout, len(ids))
		}

		stored = make([]*models.MatchFixture, len(generated))
		for i, cf := range generated {
			stored[i] = toMatchFixture(matchID, season.ID, cf)
		}
		return s.fixtureRepo.BatchCreate(callCtx, tx, stored)
	})
	if err != nil {
		return nil, handleRepositoryError(op, err)
	}

	s.Logger.InfoContext(ctx, "Fixtures generated",
		slog.Int("match_id", matchID), slog.Int("fixtures", len(stored)), slog.String("season_type", string(season.Type)))
	s.publish(ctx, season.ID, "fixtures_generated", events.TopicFixtures)
	return stored, nil
}

func translateGeneratorError(op string, err error, layout []int, n int) error {
	switch {
	case errors.Is(err, ladder.ErrNotEnoughPlayers):
		return validationError(op, ErrNotEnoughPlayers, "%v", err)
	case errors.Is(err, ladder.ErrTooManyPlayers):
		return validationError(op, ErrTooManyPlayers, "%v", err)
	case errors.Is(err, ladder.ErrLayoutMismatch) && layout == nil:
		return validationError(op, ErrNoValidLayout, "%d players", n)
	case errors.Is(err, ladder.ErrLayoutMismatch):
		return validationError(op, ErrInvalidLayout, "%v for %d players", layout, n)
	}
	return err
}

func toMatchFixture(matchID, seasonID int, cf ladder.CourtFixture) *models.MatchFixture {
	f := &models.MatchFixture{
		MatchID:         matchID,
		SeasonID:        seasonID,
		CourtNumber:     cf.CourtNumber,
		GameNumber:      cf.GameNumber,
		SittingPlayerID: cf.SittingPlayerID,
		Format:          cf.Format,
	}
	slot := func(ids []int, i int) *int {
		if i < len(ids) {
			return intPtr(ids[i])
		}
		return nil
	}
	f.Pair1Player1ID = slot(cf.Pair1, 0)
	f.Pair1Player2ID = slot(cf.Pair1, 1)
	f.Pair2Player1ID = slot(cf.Pair2, 0)
	f.Pair2Player2ID = slot(cf.Pair2, 1)
	return f
}

func (s *matchService) SetAvailability(ctx context.Context, playerID int, date time.Time, available bool) (*models.Availability, error) {
	const op = "set availability"
	if date.IsZero() {
		return nil, validationError(op, ErrMatchDateRequired, "")
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	a := &models.Availability{PlayerID: playerID, MatchDate: date, IsAvailable: available}
	if err := s.availabilityRepo.Upsert(ctx, nil, a); err != nil {
		return nil, handleRepositoryError(op, err)
	}
	s.publish(ctx, 0, "availability_updated", events.TopicAvailability)
	return a, nil
}
