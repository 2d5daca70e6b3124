package models

import "time"

type MatchStatus string

const (
	MatchPending    MatchStatus = "PENDING"
	MatchScheduled  MatchStatus = "SCHEDULED"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
	MatchCancelled  MatchStatus = "CANCELLED"
)

// Stage says which part of a division's schedule a match belongs to.
type Stage string

const (
	StageLeague  Stage = "LEAGUE"
	StageGroup   Stage = "GROUP"
	StageWinners Stage = "WINNERS"
	StageLosers  Stage = "LOSERS"
	StageFinals  Stage = "FINALS"
)

// AllowsDraw is true only for table stages; knockout matches need a winner.
func (s Stage) AllowsDraw() bool {
	return s == StageLeague || s == StageGroup
}

type Match struct {
	ID           int     `json:"id" db:"id"`
	TournamentID int     `json:"tournamentId" db:"tournament_id"`
	DivisionID   int     `json:"divisionId" db:"division_id"`
	BracketUID   string  `json:"bracketUid" db:"bracket_uid"`
	Stage        Stage   `json:"stage" db:"stage"`
	GroupName    *string `json:"group,omitempty" db:"group_name"`
	Round        int     `json:"round" db:"round"`
	OrderInRound int     `json:"orderInRound" db:"order_in_round"`
	Sequence     int     `json:"sequence" db:"sequence"`

	Team1ID *int `json:"team1Id" db:"team1_id"`
	Team2ID *int `json:"team2Id" db:"team2_id"`
	// Team1Source/Team2Source are empty for fixed slots, otherwise
	// "W:<uid>", "L:<uid>" or "G:<group>:<rank>".
	Team1Source string `json:"team1Source,omitempty" db:"team1_source"`
	Team2Source string `json:"team2Source,omitempty" db:"team2_source"`

	NextMatchID   *int    `json:"nextMatchId,omitempty" db:"next_match_id"`
	NextMatchUID  *string `json:"nextMatchUid,omitempty" db:"next_match_uid"`
	NextSlot      int     `json:"nextSlot,omitempty" db:"next_slot"`
	LoserMatchID  *int    `json:"loserMatchId,omitempty" db:"loser_match_id"`
	LoserMatchUID *string `json:"loserMatchUid,omitempty" db:"loser_match_uid"`
	LoserSlot     int     `json:"loserSlot,omitempty" db:"loser_slot"`
	IsResetMatch  bool    `json:"isResetMatch,omitempty" db:"is_reset_match"`

	ScheduledTime *time.Time  `json:"scheduledTime,omitempty" db:"scheduled_time"`
	Venue         *string     `json:"venue,omitempty" db:"venue"`
	Status        MatchStatus `json:"status" db:"status"`
	Team1Score    *int        `json:"team1Score" db:"team1_score"`
	Team2Score    *int        `json:"team2Score" db:"team2_score"`
	WinnerID      *int        `json:"winnerId" db:"winner_id"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time   `json:"updatedAt" db:"updated_at"`

	Team1 *Team `json:"team1,omitempty" db:"-"`
	Team2 *Team `json:"team2,omitempty" db:"-"`
}

func (m *Match) HasTeams() bool {
	return m.Team1ID != nil && m.Team2ID != nil
}

func (m *Match) HasResult() bool {
	return m.Team1Score != nil && m.Team2Score != nil
}

// LoserID is nil until the match is decided.
func (m *Match) LoserID() *int {
	if m.WinnerID == nil || !m.HasTeams() {
		return nil
	}
	if *m.WinnerID == *m.Team1ID {
		return m.Team2ID
	}
	return m.Team1ID
}

// ClearResult drops scores and winner and returns the match to a playable state.
func (m *Match) ClearResult() {
	m.Team1Score = nil
	m.Team2Score = nil
	m.WinnerID = nil
	m.CompletedAt = nil
	if m.Status == MatchCompleted || m.Status == MatchInProgress {
		if m.ScheduledTime != nil {
			m.Status = MatchScheduled
		} else {
			m.Status = MatchPending
		}
	}
}

// Clone returns a deep copy that can be mutated without touching the original.
func (m *Match) Clone() *Match {
	c := *m
	c.GroupName = cloneString(m.GroupName)
	c.Team1ID = cloneInt(m.Team1ID)
	c.Team2ID = cloneInt(m.Team2ID)
	c.NextMatchID = cloneInt(m.NextMatchID)
	c.NextMatchUID = cloneString(m.NextMatchUID)
	c.LoserMatchID = cloneInt(m.LoserMatchID)
	c.LoserMatchUID = cloneString(m.LoserMatchUID)
	c.Venue = cloneString(m.Venue)
	c.Team1Score = cloneInt(m.Team1Score)
	c.Team2Score = cloneInt(m.Team2Score)
	c.WinnerID = cloneInt(m.WinnerID)
	if m.ScheduledTime != nil {
		t := *m.ScheduledTime
		c.ScheduledTime = &t
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	c.Team1, c.Team2 = nil, nil
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr and StringPtr are small helpers for optional fields.
func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }

// SameInt compares two optional ints by value.
func SameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
