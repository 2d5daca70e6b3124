package models

import "time"

type Player struct {
	ID           int       `json:"id" db:"id"`
	TeamID       int       `json:"teamId" db:"team_id"`
	Name         string    `json:"name" db:"name"`
	JerseyNumber *int      `json:"jerseyNumber,omitempty" db:"jersey_number"`
	Position     *string   `json:"position,omitempty" db:"position"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`

	PlayerStats
}

// PlayerStats are running totals; updates add to them instead of overwriting.
type PlayerStats struct {
	GamesPlayed int `json:"gamesPlayed" db:"games_played"`
	Goals       int `json:"goals" db:"goals"`
	Assists     int `json:"assists" db:"assists"`
	YellowCards int `json:"yellowCards" db:"yellow_cards"`
	RedCards    int `json:"redCards" db:"red_cards"`
}

func (s PlayerStats) Add(delta PlayerStats) PlayerStats {
	return PlayerStats{
		GamesPlayed: s.GamesPlayed + delta.GamesPlayed,
		Goals:       s.Goals + delta.Goals,
		Assists:     s.Assists + delta.Assists,
		YellowCards: s.YellowCards + delta.YellowCards,
		RedCards:    s.RedCards + delta.RedCards,
	}
}

// Points is goals plus assists, the scorer table ordering key.
func (s PlayerStats) Points() int {
	return s.Goals + s.Assists
}

// TopScorer is a row of a tournament's scorer table.
type TopScorer struct {
	Player
	TeamName string `json:"teamName"`
	Points   int    `json:"points"`
}
