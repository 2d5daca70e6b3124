package models

import "time"

// Referee is match official staff registered for a tournament. Contact
// details are only shown to the organizer.
type Referee struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournamentId" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	Role         *string   `json:"role,omitempty" db:"role"`
	Country      *string   `json:"country,omitempty" db:"country"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
