package brackets

import (
	"context"
	"fmt"

	"github.com/Mabdi59/tournapro/models"
)

const byeSlot = -1

// Pairing is one fixture of a round: Home plays in slot 1, Away in slot 2.
type Pairing struct {
	Home int
	Away int
}

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket creates matches for a round-robin division.
// For a single round-robin, each team plays every other team once.
// For a double round-robin, the second leg mirrors the first with sides swapped.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateParams) ([]*models.Match, error) {
	matches, err := roundRobinMatches(teamIDs(params.Teams), params.Settings.Legs, models.StageLeague, nil)
	if err != nil {
		return nil, err
	}
	return finalize(params, matches), nil
}

// RoundRobinRounds pairs teams with the circle method. The first team stays
// fixed while the rest rotate one position per round. With an odd number of
// teams a bye is added and whoever draws it sits the round out.
func RoundRobinRounds(ids []int) ([][]Pairing, error) {
	if len(ids) < 2 {
		return nil, ErrInsufficientTeams
	}

	ring := make([]int, len(ids), len(ids)+1)
	copy(ring, ids)
	if len(ring)%2 == 1 {
		ring = append(ring, byeSlot)
	}
	n := len(ring)

	rounds := make([][]Pairing, 0, n-1)
	for r := 0; r < n-1; r++ {
		round := make([]Pairing, 0, n/2)
		for i := 0; i < n/2; i++ {
			home, away := ring[i], ring[n-1-i]
			if home == byeSlot || away == byeSlot {
				continue
			}
			// the fixed team would otherwise always be at home
			if i == 0 && r%2 == 1 {
				home, away = away, home
			}
			round = append(round, Pairing{Home: home, Away: away})
		}
		rounds = append(rounds, round)

		last := ring[n-1]
		copy(ring[2:], ring[1:n-1])
		ring[1] = last
	}
	return rounds, nil
}

// roundRobinMatches turns the pairings into matches. group is nil for a
// league table and set for a group stage.
func roundRobinMatches(ids []int, legs int, stage models.Stage, group *string) ([]*models.Match, error) {
	rounds, err := RoundRobinRounds(ids)
	if err != nil {
		return nil, err
	}
	if legs < 1 {
		legs = 1
	}
	if legs > 2 {
		return nil, fmt.Errorf("round robin supports one or two legs, got %d", legs)
	}

	prefix := "RR"
	if group != nil {
		prefix = "G" + *group
	}

	matches := make([]*models.Match, 0, legs*len(rounds)*len(ids)/2)
	for leg := 0; leg < legs; leg++ {
		for r, round := range rounds {
			roundNo := leg*len(rounds) + r + 1
			for i, p := range round {
				home, away := p.Home, p.Away
				if leg == 1 {
					home, away = away, home
				}
				m := &models.Match{
					BracketUID:   fmt.Sprintf("%s-R%d-M%d", prefix, roundNo, i+1),
					Stage:        stage,
					Round:        roundNo,
					OrderInRound: i + 1,
					Team1ID:      models.IntPtr(home),
					Team2ID:      models.IntPtr(away),
					Status:       models.MatchPending,
				}
				if group != nil {
					m.GroupName = models.StringPtr(*group)
				}
				matches = append(matches, m)
			}
		}
	}
	return matches, nil
}
