package models

import "time"

// Division is the unit of scheduling: each one gets its own bracket or table.
type Division struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournamentId" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Description  *string   `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`

	Teams   []Team  `json:"teams,omitempty" db:"-"`
	Matches []Match `json:"matches,omitempty" db:"-"`
}
