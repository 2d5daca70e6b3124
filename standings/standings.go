// Package standings folds match results into team records and ranks them.
//
// Teams are ranked by points, then wins, then score differential, then name
// (case-insensitive) and finally id, so every ordering is total.
package standings

import (
	"sort"
	"strings"

	"github.com/Mabdi59/tournapro/models"
)

// Compute resets the record of every team and folds each completed match in
// once. Matches that are not completed, are cancelled, or involve a team not
// in teams are skipped. It returns the ranked table; teams are updated in place.
func Compute(teams []*models.Team, matches []*models.Match, rules models.ScoringRules) []models.Standing {
	byID := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		t.TeamRecord = models.TeamRecord{}
		byID[t.ID] = t
	}

	for _, m := range matches {
		if m.Status != models.MatchCompleted || !m.HasResult() || !m.HasTeams() {
			continue
		}
		t1, ok1 := byID[*m.Team1ID]
		t2, ok2 := byID[*m.Team2ID]
		if !ok1 || !ok2 {
			continue
		}
		s1, s2 := *m.Team1Score, *m.Team2Score
		apply(&t1.TeamRecord, s1, s2, rules)
		apply(&t2.TeamRecord, s2, s1, rules)
	}

	return Rank(teams)
}

func apply(r *models.TeamRecord, own, other int, rules models.ScoringRules) {
	r.Played++
	r.ScoreFor += own
	r.ScoreAgainst += other
	switch {
	case own > other:
		r.Wins++
		r.Points += rules.Win
	case own < other:
		r.Losses++
		r.Points += rules.Loss
	default:
		r.Draws++
		r.Points += rules.Draw
	}
}

// Rank orders teams by their current records without touching them.
func Rank(teams []*models.Team) []models.Standing {
	ordered := make([]*models.Team, len(teams))
	copy(ordered, teams)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Less(ordered[i], ordered[j])
	})

	table := make([]models.Standing, 0, len(ordered))
	for i, t := range ordered {
		table = append(table, models.Standing{
			Rank:         i + 1,
			TeamID:       t.ID,
			TeamName:     t.Name,
			TeamRecord:   t.TeamRecord,
			Differential: t.Differential(),
		})
	}
	return table
}

// Less reports whether a ranks above b.
func Less(a, b *models.Team) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if da, db := a.Differential(), b.Differential(); da != db {
		return da > db
	}
	if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
		return na < nb
	}
	return a.ID < b.ID
}

// GroupTables ranks each group using only that group's matches. complete
// reports, per group, whether every match in it has been played or cancelled.
func GroupTables(teams map[int]*models.Team, matches []*models.Match, rules models.ScoringRules) (tables map[string][]models.Standing, complete map[string]bool) {
	type groupData struct {
		teams   []*models.Team
		seen    map[int]bool
		matches []*models.Match
		done    bool
	}
	groups := make(map[string]*groupData)
	for _, m := range matches {
		if m.Stage != models.StageGroup || m.GroupName == nil {
			continue
		}
		g := groups[*m.GroupName]
		if g == nil {
			g = &groupData{seen: make(map[int]bool), done: true}
			groups[*m.GroupName] = g
		}
		g.matches = append(g.matches, m)
		if m.Status != models.MatchCompleted && m.Status != models.MatchCancelled {
			g.done = false
		}
		for _, id := range []*int{m.Team1ID, m.Team2ID} {
			if id == nil || g.seen[*id] {
				continue
			}
			g.seen[*id] = true
			if t, ok := teams[*id]; ok {
				// work on copies so division-wide records are left alone
				c := *t
				g.teams = append(g.teams, &c)
			}
		}
	}

	tables = make(map[string][]models.Standing, len(groups))
	complete = make(map[string]bool, len(groups))
	for name, g := range groups {
		table := Compute(g.teams, g.matches, rules)
		for i := range table {
			table[i].Group = models.StringPtr(name)
		}
		tables[name] = table
		complete[name] = g.done
	}
	return tables, complete
}
