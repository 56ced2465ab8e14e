package models

import "time"

type MatchFormat string

const (
	MatchFormatSingles MatchFormat = "singles"
	MatchFormatDoubles MatchFormat = "doubles"
)

// Match is one match-week of a season.
type Match struct {
	ID         int       `json:"id" db:"id"`
	SeasonID   int       `json:"season_id" db:"season_id"`
	WeekNumber int       `json:"week_number" db:"week_number"`
	MatchDate  time.Time `json:"match_date" db:"match_date"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MatchFixture is one game on one court. Singles fixtures only use the
// first slot of each pair.
type MatchFixture struct {
	ID              int         `json:"id" db:"id"`
	MatchID         int         `json:"match_id" db:"match_id"`
	CourtNumber     int         `json:"court_number" db:"court_number"`
	GameNumber      int         `json:"game_number" db:"game_number"`
	Pair1Player1ID  *int        `json:"pair1_player1_id,omitempty" db:"pair1_player1_id"`
	Pair1Player2ID  *int        `json:"pair1_player2_id,omitempty" db:"pair1_player2_id"`
	Pair2Player1ID  *int        `json:"pair2_player1_id,omitempty" db:"pair2_player1_id"`
	Pair2Player2ID  *int        `json:"pair2_player2_id,omitempty" db:"pair2_player2_id"`
	SittingPlayerID *int        `json:"sitting_player_id,omitempty" db:"sitting_player_id"`
	Format          MatchFormat `json:"match_format" db:"match_format"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`

	SeasonID int `json:"season_id,omitempty" db:"-"`
}

// Side1 returns the player ids on the first side, skipping empty slots.
func (f *MatchFixture) Side1() []int {
	return compactIDs(f.Pair1Player1ID, f.Pair1Player2ID)
}

// Side2 returns the player ids on the second side, skipping empty slots.
func (f *MatchFixture) Side2() []int {
	return compactIDs(f.Pair2Player1ID, f.Pair2Player2ID)
}

func compactIDs(ids ...*int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}

// MatchResult is one submitted score for a fixture.
type MatchResult struct {
	ID          int       `json:"id" db:"id"`
	FixtureID   int       `json:"fixture_id" db:"fixture_id"`
	Pair1Score  int       `json:"pair1_score" db:"pair1_score"`
	Pair2Score  int       `json:"pair2_score" db:"pair2_score"`
	Verified    bool      `json:"verified" db:"verified"`
	SubmittedBy *int      `json:"submitted_by,omitempty" db:"submitted_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ScoreConflict records a later submission that disagreed with the stored result.
type ScoreConflict struct {
	ID                int       `json:"id" db:"id"`
	FixtureID         int       `json:"fixture_id" db:"fixture_id"`
	FirstSubmissionID int       `json:"first_submission_id" db:"first_submission_id"`
	Pair1Score        int       `json:"conflicting_pair1" db:"conflicting_pair1"`
	Pair2Score        int       `json:"conflicting_pair2" db:"conflicting_pair2"`
	UserID            *int      `json:"conflicting_user_id,omitempty" db:"conflicting_user_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Availability is a player's answer for one calendar date.
type Availability struct {
	ID          int       `json:"id" db:"id"`
	PlayerID    int       `json:"player_id" db:"player_id"`
	MatchDate   time.Time `json:"match_date" db:"match_date"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
}
