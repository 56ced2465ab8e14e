package ladder

import (
	"errors"
	"fmt"

	"github.com/Dosada05/club-ladder/models"
)

var (
	ErrNotEnoughPlayers = errors.New("not enough players to generate fixtures")
	ErrCourtSize        = errors.New("court must hold 4 or 5 players")
)

// rotation indexes into a court roster.
type rotation struct {
	pair1   [2]int
	pair2   [2]int
	sitting int // -1 when nobody sits out
}

// Each player partners every other player exactly once.
var fourPlayerRotations = []rotation{
	{pair1: [2]int{0, 3}, pair2: [2]int{1, 2}, sitting: -1},
	{pair1: [2]int{0, 2}, pair2: [2]int{1, 3}, sitting: -1},
	{pair1: [2]int{0, 1}, pair2: [2]int{2, 3}, sitting: -1},
}

// Fixed table: every player sits out exactly once. Not a full round robin
// of the ten possible partnerships.
var fivePlayerRotations = []rotation{
	{pair1: [2]int{0, 1}, pair2: [2]int{2, 3}, sitting: 4},
	{pair1: [2]int{0, 2}, pair2: [2]int{1, 4}, sitting: 3},
	{pair1: [2]int{0, 3}, pair2: [2]int{2, 4}, sitting: 1},
	{pair1: [2]int{0, 4}, pair2: [2]int{1, 3}, sitting: 2},
	{pair1: [2]int{1, 2}, pair2: [2]int{3, 4}, sitting: 0},
}

// CourtFixture is one generated game, before it is stored.
type CourtFixture struct {
	CourtNumber     int
	GameNumber      int
	Pair1           []int
	Pair2           []int
	SittingPlayerID *int
	Format          models.MatchFormat
}

// ScheduleCourt emits the doubles rotation for one court of 4 or 5 player
// ids. Game numbers start at 1.
func ScheduleCourt(courtNumber int, players []int) ([]CourtFixture, error) {
	var table []rotation
	switch len(players) {
	case 4:
		table = fourPlayerRotations
	case 5:
		table = fivePlayerRotations
	default:
		return nil, fmt.Errorf("%w: court %d has %d", ErrCourtSize, courtNumber, len(players))
	}

	fixtures := make([]CourtFixture, 0, len(table))
	for i, r := range table {
		f := CourtFixture{
			CourtNumber: courtNumber,
			GameNumber:  i + 1,
			Pair1:       []int{players[r.pair1[0]], players[r.pair1[1]]},
			Pair2:       []int{players[r.pair2[0]], players[r.pair2[1]]},
			Format:      models.MatchFormatDoubles,
		}
		if r.sitting >= 0 {
			sitting := players[r.sitting]
			f.SittingPlayerID = &sitting
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

// GamesPerCourt is the number of fixtures a court of the given size plays.
func GamesPerCourt(size int) int {
	switch size {
	case 4:
		return len(fourPlayerRotations)
	case 5:
		return len(fivePlayerRotations)
	}
	return 0
}
