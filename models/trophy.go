package models

import "time"

type Trophy struct {
	ID        int       `json:"id" db:"id"`
	SeasonID  int       `json:"season_id" db:"season_id"`
	PlayerID  int       `json:"player_id" db:"player_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
