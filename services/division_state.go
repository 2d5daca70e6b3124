package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
)

// divisionState is everything a schedule mutation needs, loaded at once.
type divisionState struct {
	tournament *models.Tournament
	division   *models.Division
	teams      []*models.Team
	matches    []*models.Match
}

// loadDivisionState reads the division and, in parallel, its tournament,
// teams and matches. A division of another tournament is reported as missing.
func loadDivisionState(ctx context.Context, store *repositories.Store, tournamentID, divisionID int) (*divisionState, error) {
	division, err := store.Divisions.GetByID(ctx, divisionID)
	if err != nil {
		return nil, handleRepositoryError(err, "get division")
	}
	if division.TournamentID != tournamentID {
		return nil, ErrDivisionNotFound
	}

	state := &divisionState{division: division}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := store.Tournaments.GetByID(gCtx, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "get tournament")
		}
		state.tournament = t
		return nil
	})
	g.Go(func() error {
		teams, err := store.Teams.ListByDivision(gCtx, divisionID)
		if err != nil {
			return handleRepositoryError(err, fmt.Sprintf("list teams of division %d", divisionID))
		}
		state.teams = teams
		return nil
	})
	g.Go(func() error {
		matches, err := store.Matches.ListByDivision(gCtx, divisionID)
		if err != nil {
			return handleRepositoryError(err, fmt.Sprintf("list matches of division %d", divisionID))
		}
		state.matches = matches
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *divisionState) teamIndex() map[int]*models.Team {
	return indexTeams(s.teams)
}

// working returns mutable copies of the division's teams and matches so a
// failed computation never leaks into the loaded state.
func (s *divisionState) working() (teams []*models.Team, matches []*models.Match) {
	teams = make([]*models.Team, 0, len(s.teams))
	for _, t := range s.teams {
		c := *t
		teams = append(teams, &c)
	}
	matches = make([]*models.Match, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, m.Clone())
	}
	return teams, matches
}

// attachTeams fills the Team1/Team2 views used by API responses.
func attachTeams(matches []*models.Match, teams map[int]*models.Team) {
	for _, m := range matches {
		m.Team1, m.Team2 = nil, nil
		if m.Team1ID != nil {
			m.Team1 = teams[*m.Team1ID]
		}
		if m.Team2ID != nil {
			m.Team2 = teams[*m.Team2ID]
		}
	}
}

func changedTeams(before, after []*models.Team) []*models.Team {
	prev := make(map[int]models.TeamRecord, len(before))
	for _, t := range before {
		prev[t.ID] = t.TeamRecord
	}
	var out []*models.Team
	for _, t := range after {
		if prev[t.ID] != t.TeamRecord {
			out = append(out, t)
		}
	}
	return out
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
