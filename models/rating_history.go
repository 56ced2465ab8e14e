package models

import "time"

// RatingHistory is one row of elo_history.
type RatingHistory struct {
	ID                int       `json:"id" db:"id"`
	SeasonPlayerID    int       `json:"season_player_id" db:"season_player_id"`
	MatchFixtureID    *int      `json:"match_fixture_id,omitempty" db:"match_fixture_id"`
	OldRating         int       `json:"old_rating" db:"old_rating"`
	NewRating         int       `json:"new_rating" db:"new_rating"`
	RatingChange      int       `json:"rating_change" db:"rating_change"`
	KFactor           int       `json:"k_factor" db:"k_factor"`
	OpponentAvgRating int       `json:"opponent_avg_rating" db:"opponent_avg_rating"`
	ExpectedScore     float64   `json:"expected_score" db:"expected_score"`
	ActualScore       float64   `json:"actual_score" db:"actual_score"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
