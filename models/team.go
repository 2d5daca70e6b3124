package models

import "time"

type Team struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournamentId" db:"tournament_id"`
	DivisionID   *int      `json:"divisionId,omitempty" db:"division_id"`
	Name         string    `json:"name" db:"name"`
	ShortName    *string   `json:"shortName,omitempty" db:"short_name"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`

	// Record is derived from completed matches and rewritten on every recompute.
	TeamRecord

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logoUrl,omitempty" db:"-"`

	Players []Player `json:"players,omitempty" db:"-"`
}

type TeamRecord struct {
	Played       int `json:"played" db:"played"`
	Wins         int `json:"wins" db:"wins"`
	Losses       int `json:"losses" db:"losses"`
	Draws        int `json:"draws" db:"draws"`
	Points       int `json:"points" db:"points"`
	ScoreFor     int `json:"scoreFor" db:"score_for"`
	ScoreAgainst int `json:"scoreAgainst" db:"score_against"`
}

func (r TeamRecord) Differential() int {
	return r.ScoreFor - r.ScoreAgainst
}
