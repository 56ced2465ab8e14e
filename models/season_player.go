package models

import "time"

// SeasonPlayer is a player's standing inside one season.
type SeasonPlayer struct {
	ID            int       `json:"id" db:"id"`
	SeasonID      int       `json:"season_id" db:"season_id"`
	PlayerID      int       `json:"player_id" db:"player_id"`
	Rank          *int      `json:"rank,omitempty" db:"rank"`
	PreviousRank  *int      `json:"previous_rank,omitempty" db:"previous_rank"`
	MatchesPlayed int       `json:"matches_played" db:"matches_played"`
	MatchesWon    int       `json:"matches_won" db:"matches_won"`
	GamesPlayed   int       `json:"games_played" db:"games_played"`
	GamesWon      int       `json:"games_won" db:"games_won"`
	Rating        *int      `json:"elo_rating,omitempty" db:"elo_rating"`
	Version       int       `json:"-" db:"version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	PlayerName    string  `json:"name,omitempty" db:"-"`
	WinPercentage float64 `json:"win_percentage" db:"-"`
}

// RatingOr returns the stored rating or def when the player has none yet.
func (sp *SeasonPlayer) RatingOr(def int) int {
	if sp.Rating == nil || *sp.Rating == 0 {
		return def
	}
	return *sp.Rating
}
