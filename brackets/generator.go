package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Mabdi59/tournapro/models"
)

var (
	ErrInsufficientTeams = errors.New("at least two teams are required to generate a schedule")
	ErrUnsupportedFormat = errors.New("unsupported tournament format")
)

// GenerateParams carries the division being scheduled. Teams are in seed order.
type GenerateParams struct {
	TournamentID int
	DivisionID   int
	Teams        []*models.Team
	Settings     models.FormatSettings
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateParams) ([]*models.Match, error)

	GetName() string
}

// ForFormat picks the generator for a tournament format.
func ForFormat(format models.TournamentFormat) (BracketGenerator, error) {
	switch format {
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.FormatDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case models.FormatGroupKnockout:
		return NewGroupKnockoutGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func teamIDs(teams []*models.Team) []int {
	ids := make([]int, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	return ids
}

func stageRank(s models.Stage) int {
	switch s {
	case models.StageLeague, models.StageGroup:
		return 0
	case models.StageWinners:
		return 1
	case models.StageLosers:
		return 2
	default:
		return 3
	}
}

// finalize stamps division scoping and assigns Sequence so that every match
// comes after the matches its slots depend on.
func finalize(params GenerateParams, matches []*models.Match) []*models.Match {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if ra, rb := stageRank(a.Stage), stageRank(b.Stage); ra != rb {
			return ra < rb
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		ga, gb := "", ""
		if a.GroupName != nil {
			ga = *a.GroupName
		}
		if b.GroupName != nil {
			gb = *b.GroupName
		}
		if ga != gb {
			return ga < gb
		}
		return a.OrderInRound < b.OrderInRound
	})
	for i, m := range matches {
		m.Sequence = i + 1
		m.TournamentID = params.TournamentID
		m.DivisionID = params.DivisionID
		if m.Status == "" {
			m.Status = models.MatchPending
		}
	}
	return matches
}
