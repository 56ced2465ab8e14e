package models

import "time"

// SeasonStatus представляет статусы сезона, соответствующие CHECK в БД.
type SeasonStatus string

const (
	SeasonStatusActive    SeasonStatus = "active"
	SeasonStatusCompleted SeasonStatus = "completed"
)

type SeasonType string

const (
	SeasonTypeLadder              SeasonType = "ladder"
	SeasonTypeLeague              SeasonType = "league"
	SeasonTypeSinglesChampionship SeasonType = "singles_championship"
)

func (t SeasonType) Valid() bool {
	switch t {
	case SeasonTypeLadder, SeasonTypeLeague, SeasonTypeSinglesChampionship:
		return true
	}
	return false
}

const (
	DefaultRatingKFactor = 32
	DefaultInitialRating = 1200
)

// Season представляет сезон лестницы.
type Season struct {
	ID            int          `json:"id" db:"id"`
	Name          string       `json:"name" db:"name"`
	Status        SeasonStatus `json:"status" db:"status"`
	Type          SeasonType   `json:"season_type" db:"season_type"`
	StartDate     time.Time    `json:"start_date" db:"start_date"`
	EndDate       *time.Time   `json:"end_date,omitempty" db:"end_date"`
	RatingEnabled bool         `json:"elo_enabled" db:"elo_enabled"`
	KFactor       int          `json:"elo_k_factor" db:"elo_k_factor"`
	InitialRating int          `json:"elo_initial_rating" db:"elo_initial_rating"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`

	// Заполняются сервисом
	PlayerCount int     `json:"player_count" db:"-"`
	Matches     []Match `json:"matches,omitempty" db:"-"`
}
