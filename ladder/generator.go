package ladder

import (
	"context"
	"fmt"

	"github.com/Dosada05/club-ladder/models"
)

// GenerateFixturesParams carries the rank-sorted available players of one
// match-week. Layout is only used by the rotation generator; nil selects the
// first valid layout.
type GenerateFixturesParams struct {
	Season    *models.Season
	PlayerIDs []int
	Layout    []int
}

type FixtureGenerator interface {
	Generate(ctx context.Context, params GenerateFixturesParams) ([]CourtFixture, error)

	GetName() string
}

// GeneratorFor picks the generator for a season type.
func GeneratorFor(seasonType models.SeasonType) FixtureGenerator {
	if seasonType == models.SeasonTypeSinglesChampionship {
		return NewSinglesRoundRobinGenerator()
	}
	return NewRotationGenerator()
}

type RotationGenerator struct{}

func NewRotationGenerator() FixtureGenerator {
	return &RotationGenerator{}
}

func (g *RotationGenerator) GetName() string {
	return "Rotation"
}

// Generate splits players into courts and emits each court's doubles rotation.
func (g *RotationGenerator) Generate(ctx context.Context, params GenerateFixturesParams) ([]CourtFixture, error) {
	n := len(params.PlayerIDs)
	if n < MinCourtSize {
		return nil, fmt.Errorf("%w: need at least %d, found %d", ErrNotEnoughPlayers, MinCourtSize, n)
	}
	if n > MaxPlayers {
		return nil, fmt.Errorf("%w: found %d", ErrTooManyPlayers, n)
	}

	layout := params.Layout
	if layout == nil {
		options := Layouts(n)
		if len(options) == 0 {
			return nil, fmt.Errorf("%w: no court layout seats %d players", ErrLayoutMismatch, n)
		}
		layout = options[0]
	} else if !ContainsLayout(n, layout) {
		return nil, fmt.Errorf("%w: %v is not a valid layout for %d players", ErrLayoutMismatch, layout, n)
	}

	courts, err := ApplyLayout(params.PlayerIDs, layout)
	if err != nil {
		return nil, err
	}

	fixtures := make([]CourtFixture, 0, n)
	for i, court := range courts {
		courtFixtures, err := ScheduleCourt(i+1, court)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, courtFixtures...)
	}
	return fixtures, nil
}

// SinglesRoundRobinGenerator pairs every available player against every
// other once. All games are on court 1.
type SinglesRoundRobinGenerator struct{}

func NewSinglesRoundRobinGenerator() FixtureGenerator {
	return &SinglesRoundRobinGenerator{}
}

func (g *SinglesRoundRobinGenerator) GetName() string {
	return "SinglesRoundRobin"
}

func (g *SinglesRoundRobinGenerator) Generate(ctx context.Context, params GenerateFixturesParams) ([]CourtFixture, error) {
	players := params.PlayerIDs
	if len(players) < 2 {
		return nil, fmt.Errorf("%w: need at least 2, found %d", ErrNotEnoughPlayers, len(players))
	}
	if len(players) > MaxPlayers {
		return nil, fmt.Errorf("%w: found %d", ErrTooManyPlayers, len(players))
	}

	fixtures := make([]CourtFixture, 0, len(players)*(len(players)-1)/2)
	game := 0
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			game++
			fixtures = append(fixtures, CourtFixture{
				CourtNumber: 1,
				GameNumber:  game,
				Pair1:       []int{players[i]},
				Pair2:       []int{players[j]},
				Format:      models.MatchFormatSingles,
			})
		}
	}
	return fixtures, nil
}
