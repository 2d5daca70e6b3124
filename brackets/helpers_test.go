package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/Mabdi59/tournapro/models"
)

// seededTeams returns n teams with ids 1..n in seed order.
func seededTeams(n int) []*models.Team {
	faker := gofakeit.New(uint64(n))
	teams := make([]*models.Team, 0, n)
	for i := 1; i <= n; i++ {
		teams = append(teams, &models.Team{ID: i, Name: fmt.Sprintf("%s %d", faker.Company(), i)})
	}
	return teams
}

func teamIndex(teams []*models.Team) map[int]*models.Team {
	idx := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		idx[t.ID] = t
	}
	return idx
}

func generate(t *testing.T, g BracketGenerator, teams []*models.Team, settings models.FormatSettings) []*models.Match {
	t.Helper()
	matches, err := g.GenerateBracket(context.Background(), GenerateParams{
		TournamentID: 1,
		DivisionID:   1,
		Teams:        teams,
		Settings:     settings,
	})
	require.NoError(t, err)
	return matches
}

func byUID(matches []*models.Match) map[string]*models.Match {
	idx := make(map[string]*models.Match, len(matches))
	for _, m := range matches {
		idx[m.BracketUID] = m
	}
	return idx
}

// playOut keeps entering results until nothing is playable. pick returns the
// winning slot (1 or 2) for a match.
func playOut(t *testing.T, matches []*models.Match, teams []*models.Team, pick func(*models.Match) int) {
	t.Helper()
	idx := teamIndex(teams)
	for guard := 0; guard < 10*len(matches)+10; guard++ {
		next := nextPlayable(matches)
		if next == nil {
			return
		}
		s1, s2 := 1, 0
		if pick(next) == 2 {
			s1, s2 = 0, 1
		}
		next.Team1Score, next.Team2Score = &s1, &s2
		next.Status = models.MatchCompleted
		Replay(matches, idx, models.DefaultScoringRules())
	}
	t.Fatal("bracket did not finish")
}

func nextPlayable(matches []*models.Match) *models.Match {
	var best *models.Match
	for _, m := range matches {
		if !m.HasTeams() || m.Status == models.MatchCompleted || m.Status == models.MatchCancelled {
			continue
		}
		if best == nil || m.Sequence < best.Sequence {
			best = m
		}
	}
	return best
}

func lossCounts(matches []*models.Match) (losses map[int]int, played int) {
	losses = make(map[int]int)
	for _, m := range matches {
		if m.Status != models.MatchCompleted {
			continue
		}
		played++
		if l := m.LoserID(); l != nil {
			losses[*l]++
		}
	}
	return losses, played
}
