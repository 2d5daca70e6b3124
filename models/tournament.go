package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	TournamentUpcoming   TournamentStatus = "UPCOMING"
	TournamentInProgress TournamentStatus = "IN_PROGRESS"
	TournamentCompleted  TournamentStatus = "COMPLETED"
	TournamentCancelled  TournamentStatus = "CANCELLED"
)

// IsTerminal reports whether no further edits to the tournament's schedule are allowed.
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

type TournamentFormat string

const (
	FormatRoundRobin        TournamentFormat = "ROUND_ROBIN"
	FormatSingleElimination TournamentFormat = "SINGLE_ELIMINATION"
	FormatDoubleElimination TournamentFormat = "DOUBLE_ELIMINATION"
	FormatGroupKnockout     TournamentFormat = "GROUP_KNOCKOUT"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatRoundRobin, FormatSingleElimination, FormatDoubleElimination, FormatGroupKnockout:
		return true
	}
	return false
}

// Tournament представляет турнир.
type Tournament struct {
	ID          int                `json:"id" db:"id"`
	Name        string             `json:"name" db:"name"`
	Description *string            `json:"description,omitempty" db:"description"`
	Location    *string            `json:"location,omitempty" db:"location"`
	Format      TournamentFormat   `json:"format" db:"format"`
	Status      TournamentStatus   `json:"status" db:"status"`
	StartDate   time.Time          `json:"startDate" db:"start_date"`
	EndDate     *time.Time         `json:"endDate,omitempty" db:"end_date"`
	OrganizerID int                `json:"organizerId" db:"organizer_id"`
	Settings    TournamentSettings `json:"settings" db:"settings"`
	CreatedAt   time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" db:"updated_at"`

	Divisions []Division `json:"divisions,omitempty" db:"-"`
}

// TournamentSettings is stored as a JSONB document next to the tournament row.
type TournamentSettings struct {
	Scoring *ScoringRules   `json:"scoring,omitempty" yaml:"scoring"`
	Format  *FormatSettings `json:"format,omitempty" yaml:"format"`
}

// Value stores the settings as JSON.
func (s TournamentSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *TournamentSettings) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = TournamentSettings{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TournamentSettings", src)
	}
	return json.Unmarshal(data, s)
}

// ScoringRules are the standings points awarded per result.
type ScoringRules struct {
	Win  int `json:"win" yaml:"win"`
	Draw int `json:"draw" yaml:"draw"`
	Loss int `json:"loss" yaml:"loss"`
}

func DefaultScoringRules() ScoringRules {
	return ScoringRules{Win: 3, Draw: 1, Loss: 0}
}

// FormatSettings tune the schedule generators.
type FormatSettings struct {
	// Legs is 1 for a single round robin and 2 for home and away.
	Legs               int  `json:"legs" yaml:"legs"`
	GroupCount         int  `json:"groupCount" yaml:"group_count"`
	QualifiersPerGroup int  `json:"qualifiersPerGroup" yaml:"qualifiers_per_group"`
	GrandFinalReset    bool `json:"grandFinalReset" yaml:"grand_final_reset"`
}

func DefaultFormatSettings() FormatSettings {
	return FormatSettings{Legs: 1, QualifiersPerGroup: 2, GrandFinalReset: true}
}

// ResolveScoring returns the tournament override or the fallback.
func (t *Tournament) ResolveScoring(fallback ScoringRules) ScoringRules {
	if t != nil && t.Settings.Scoring != nil {
		return *t.Settings.Scoring
	}
	return fallback
}

func (t *Tournament) ResolveFormat(fallback FormatSettings) FormatSettings {
	if t != nil && t.Settings.Format != nil {
		return *t.Settings.Format
	}
	return fallback
}
