package services

import (
	"context"
	"sort"

	"github.com/Mabdi59/tournapro/brackets"
	"github.com/Mabdi59/tournapro/config"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
	"github.com/Mabdi59/tournapro/standings"
	"github.com/Mabdi59/tournapro/storage"
)

type StandingsService interface {
	// DivisionStandings ranks the division. Group stages are returned group
	// by group with Group set on every row.
	DivisionStandings(ctx context.Context, tournamentID, divisionID int) (*models.Division, []models.Standing, error)
	Bracket(ctx context.Context, tournamentID, divisionID int) (*models.BracketView, error)
}

type standingsService struct {
	store    *repositories.Store
	uploader storage.FileUploader
	defaults config.Defaults
}

func NewStandingsService(store *repositories.Store, uploader storage.FileUploader, defaults config.Defaults) StandingsService {
	return &standingsService{store: store, uploader: uploader, defaults: defaults}
}

// Tables are always derived from the matches on record, never from the
// stored team records, so a read can never show a half-applied result.
func (s *standingsService) DivisionStandings(ctx context.Context, tournamentID, divisionID int) (*models.Division, []models.Standing, error) {
	state, err := loadDivisionState(ctx, s.store, tournamentID, divisionID)
	if err != nil {
		return nil, nil, err
	}
	rules := state.tournament.ResolveScoring(s.defaults.Scoring)

	if state.tournament.Format == models.FormatGroupKnockout {
		tables, _ := standings.GroupTables(state.teamIndex(), state.matches, rules)
		return state.division, flattenGroups(tables), nil
	}
	teams, _ := state.working()
	return state.division, standings.Compute(teams, state.matches, rules), nil
}

func (s *standingsService) Bracket(ctx context.Context, tournamentID, divisionID int) (*models.BracketView, error) {
	state, err := loadDivisionState(ctx, s.store, tournamentID, divisionID)
	if err != nil {
		return nil, err
	}
	rules := state.tournament.ResolveScoring(s.defaults.Scoring)
	for _, t := range state.teams {
		populateTeamLogoURL(t, s.uploader)
	}
	teamIdx := state.teamIndex()
	attachTeams(state.matches, teamIdx)

	view := &models.BracketView{
		Division: *state.division,
		Format:   state.tournament.Format,
		Stages:   make(map[models.Stage][][]models.Match),
	}
	for _, m := range state.matches {
		rounds := view.Stages[m.Stage]
		for len(rounds) < m.Round {
			rounds = append(rounds, nil)
		}
		rounds[m.Round-1] = append(rounds[m.Round-1], *m)
		view.Stages[m.Stage] = rounds
	}

	switch state.tournament.Format {
	case models.FormatRoundRobin:
		teams, _ := state.working()
		view.Standings = standings.Compute(teams, state.matches, rules)
		if len(state.matches) > 0 && allPlayed(state.matches) && len(view.Standings) > 0 {
			view.Champion = teamIdx[view.Standings[0].TeamID]
		}
	case models.FormatGroupKnockout:
		view.Groups, _ = standings.GroupTables(teamIdx, state.matches, rules)
		fallthrough
	default:
		if id := brackets.Champion(state.matches); id != nil {
			view.Champion = teamIdx[*id]
		}
	}
	return view, nil
}

func allPlayed(matches []*models.Match) bool {
	for _, m := range matches {
		if m.Status != models.MatchCompleted && m.Status != models.MatchCancelled {
			return false
		}
	}
	return true
}

func flattenGroups(tables map[string][]models.Standing) []models.Standing {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []models.Standing
	for _, name := range names {
		out = append(out, tables[name]...)
	}
	return out
}
