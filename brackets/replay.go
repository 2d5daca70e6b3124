package brackets

import (
	"sort"

	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/standings"
)

// Replay recomputes every derived part of a division's schedule from the
// fixed team slots and the scores on record. Sourced slots are refilled from
// scratch in Sequence order, so editing an earlier result is undone
// downstream without any incremental bookkeeping. A completed match whose
// teams changed loses its result. Matches are updated in place; the returned
// slice holds the ones that changed.
func Replay(matches []*models.Match, teams map[int]*models.Team, rules models.ScoringRules) []*models.Match {
	ordered := make([]*models.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	byUID := make(map[string]*models.Match, len(ordered))
	before := make(map[*models.Match]models.Match, len(ordered))
	for _, m := range ordered {
		byUID[m.BracketUID] = m
		before[m] = *m.Clone()
	}

	var (
		groupTables   map[string][]models.Standing
		groupComplete map[string]bool
	)

	resolve := func(raw string) *int {
		src, ok := ParseSource(raw)
		if !ok {
			return nil
		}
		switch src.Kind {
		case SourceWinner, SourceLoser:
			up := byUID[src.MatchUID]
			if up == nil || up.Status != models.MatchCompleted {
				return nil
			}
			if src.Kind == SourceWinner {
				return up.WinnerID
			}
			return up.LoserID()
		case SourceGroup:
			if groupTables == nil {
				groupTables, groupComplete = standings.GroupTables(teams, ordered, rules)
			}
			table := groupTables[src.Group]
			if !groupComplete[src.Group] || src.Rank > len(table) {
				return nil
			}
			return models.IntPtr(table[src.Rank-1].TeamID)
		}
		return nil
	}

	for _, m := range ordered {
		prev1, prev2 := m.Team1ID, m.Team2ID
		if m.Team1Source != "" {
			m.Team1ID = resolve(m.Team1Source)
		}
		if m.Team2Source != "" {
			m.Team2ID = resolve(m.Team2Source)
		}
		if !models.SameInt(prev1, m.Team1ID) || !models.SameInt(prev2, m.Team2ID) {
			m.ClearResult()
		}

		if m.IsResetMatch {
			replayReset(m, byUID)
		}

		switch {
		case m.Status == models.MatchCancelled:
		case m.HasResult() && m.HasTeams():
			m.WinnerID = DecideWinner(m)
			m.Status = models.MatchCompleted
		case m.HasResult():
			m.ClearResult()
		case m.Status == models.MatchCompleted || (m.Status == models.MatchInProgress && !m.HasTeams()):
			m.ClearResult()
			m.Status = idleStatus(m)
		}
	}

	var changed []*models.Match
	for _, m := range ordered {
		if !sameState(before[m], m) {
			changed = append(changed, m)
		}
	}
	return changed
}

// replayReset cancels the second grand final when the winners bracket
// champion, who always holds slot 1 of the first final, won it.
func replayReset(m *models.Match, byUID map[string]*models.Match) {
	src, ok := ParseSource(m.Team1Source)
	if !ok {
		return
	}
	first := byUID[src.MatchUID]
	decided := first != nil && first.Status == models.MatchCompleted && first.WinnerID != nil
	if decided && models.SameInt(first.WinnerID, first.Team1ID) {
		m.ClearResult()
		m.Status = models.MatchCancelled
		return
	}
	if m.Status == models.MatchCancelled {
		m.Status = idleStatus(m)
	}
}

func idleStatus(m *models.Match) models.MatchStatus {
	if m.ScheduledTime != nil {
		return models.MatchScheduled
	}
	return models.MatchPending
}

// DecideWinner returns the team with the higher score, or nil on a tie.
func DecideWinner(m *models.Match) *int {
	if !m.HasResult() || !m.HasTeams() {
		return nil
	}
	switch {
	case *m.Team1Score > *m.Team2Score:
		return models.IntPtr(*m.Team1ID)
	case *m.Team2Score > *m.Team1Score:
		return models.IntPtr(*m.Team2ID)
	}
	return nil
}

// Champion returns the overall winner once the final deciding match is done.
// League and group tables have no champion here; rank them instead.
func Champion(matches []*models.Match) *int {
	byUID := make(map[string]*models.Match, len(matches))
	var final, reset *models.Match
	for _, m := range matches {
		byUID[m.BracketUID] = m
		if m.Stage.AllowsDraw() {
			continue
		}
		switch {
		case m.IsResetMatch:
			reset = m
		case m.NextMatchUID == nil:
			final = m
		}
	}

	if reset != nil {
		switch reset.Status {
		case models.MatchCompleted:
			return reset.WinnerID
		case models.MatchCancelled:
			if src, ok := ParseSource(reset.Team1Source); ok {
				if first := byUID[src.MatchUID]; first != nil {
					return first.WinnerID
				}
			}
		}
		return nil
	}
	if final != nil && final.Status == models.MatchCompleted {
		return final.WinnerID
	}
	return nil
}

func sameState(a models.Match, b *models.Match) bool {
	return models.SameInt(a.Team1ID, b.Team1ID) &&
		models.SameInt(a.Team2ID, b.Team2ID) &&
		models.SameInt(a.Team1Score, b.Team1Score) &&
		models.SameInt(a.Team2Score, b.Team2Score) &&
		models.SameInt(a.WinnerID, b.WinnerID) &&
		a.Status == b.Status
}
