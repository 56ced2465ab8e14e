package ladder

import (
	"math"
	"sort"

	"github.com/Dosada05/club-ladder/models"
)

// ScoredFixture is a fixture paired with its authoritative result.
type ScoredFixture struct {
	Side1      []int
	Side2      []int
	Side1Score int
	Side2Score int
}

// AuthoritativeResults keeps one result per fixture: the verified one,
// otherwise the most recent. Among several verified results the most
// recent verified wins.
func AuthoritativeResults(results []models.MatchResult) map[int]models.MatchResult {
	chosen := make(map[int]models.MatchResult, len(results))
	for _, r := range results {
		cur, ok := chosen[r.FixtureID]
		if !ok || preferResult(r, cur) {
			chosen[r.FixtureID] = r
		}
	}
	return chosen
}

func preferResult(candidate, current models.MatchResult) bool {
	if candidate.Verified != current.Verified {
		return candidate.Verified
	}
	if !candidate.CreatedAt.Equal(current.CreatedAt) {
		return candidate.CreatedAt.After(current.CreatedAt)
	}
	return candidate.ID > current.ID
}

// WinPercentage is games won over games played, as a percentage rounded to
// one decimal. Zero games played yields 0.
func WinPercentage(gamesWon, gamesPlayed int) float64 {
	if gamesPlayed <= 0 {
		return 0
	}
	return math.Round(float64(gamesWon)/float64(gamesPlayed)*1000) / 10
}

// Recompute rebuilds every season player's aggregates from scratch, then
// re-ranks them. previous_rank takes the old rank of every player, including
// those who did not play. The input slice is updated in place and returned
// in the new rank order.
func Recompute(players []*models.SeasonPlayer, fixtures []ScoredFixture) []*models.SeasonPlayer {
	byPlayer := make(map[int]*models.SeasonPlayer, len(players))
	for _, sp := range players {
		sp.MatchesPlayed, sp.MatchesWon, sp.GamesPlayed, sp.GamesWon = 0, 0, 0, 0
		byPlayer[sp.PlayerID] = sp
	}

	for _, f := range fixtures {
		total := f.Side1Score + f.Side2Score
		credit := func(ids []int, own, other int) {
			for _, id := range ids {
				sp, ok := byPlayer[id]
				if !ok {
					continue
				}
				sp.MatchesPlayed++
				sp.GamesPlayed += total
				sp.GamesWon += own
				if own > other {
					sp.MatchesWon++
				}
			}
		}
		credit(f.Side1, f.Side1Score, f.Side2Score)
		credit(f.Side2, f.Side2Score, f.Side1Score)
	}

	ordered := make([]*models.SeasonPlayer, len(players))
	copy(ordered, players)
	// prior order: ranked players by rank, unranked after them
	sort.SliceStable(ordered, func(i, j int) bool {
		return rankKey(ordered[i]) < rankKey(ordered[j])
	})

	for _, sp := range ordered {
		sp.WinPercentage = WinPercentage(sp.GamesWon, sp.GamesPlayed)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.WinPercentage != b.WinPercentage {
			return a.WinPercentage > b.WinPercentage
		}
		return a.MatchesWon > b.MatchesWon
	})

	for i, sp := range ordered {
		sp.PreviousRank = sp.Rank
		rank := i + 1
		sp.Rank = &rank
	}
	return ordered
}

func rankKey(sp *models.SeasonPlayer) int {
	if sp.Rank == nil {
		return math.MaxInt
	}
	return *sp.Rank
}
