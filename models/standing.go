package models

// Standing is one row of a division (or group) table.
type Standing struct {
	Rank     int     `json:"rank"`
	Group    *string `json:"group,omitempty"`
	TeamID   int     `json:"teamId"`
	TeamName string  `json:"teamName"`

	TeamRecord
	Differential int `json:"differential"`
}

// BracketView is the read model returned for a division's bracket page.
type BracketView struct {
	Division  Division              `json:"division"`
	Format    TournamentFormat      `json:"format"`
	Stages    map[Stage][][]Match   `json:"stages"`
	Standings []Standing            `json:"standings,omitempty"`
	Groups    map[string][]Standing `json:"groups,omitempty"`
	Champion  *Team                 `json:"champion,omitempty"`
}
