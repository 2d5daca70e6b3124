package brackets

import (
	"context"
	"fmt"

	"github.com/Mabdi59/tournapro/models"
)

const maxGroups = 26

// Group is one pool of a group stage.
type Group struct {
	Name    string
	TeamIDs []int
}

type GroupKnockoutGenerator struct{}

func NewGroupKnockoutGenerator() BracketGenerator {
	return &GroupKnockoutGenerator{}
}

func (g *GroupKnockoutGenerator) GetName() string {
	return "GroupKnockout"
}

// GenerateBracket plays a round robin inside each group and feeds the top
// finishers into a single-elimination knockout. Knockout slots reference
// group placements and stay empty until the group has finished.
func (g *GroupKnockoutGenerator) GenerateBracket(ctx context.Context, params GenerateParams) ([]*models.Match, error) {
	ids := teamIDs(params.Teams)
	if len(ids) < 2 {
		return nil, ErrInsufficientTeams
	}

	groups := SnakeGroups(ids, params.Settings.GroupCount)
	qualifiers := qualifiersPerGroup(groups, params.Settings.QualifiersPerGroup)

	var matches []*models.Match
	for _, grp := range groups {
		if len(grp.TeamIDs) < 2 {
			return nil, fmt.Errorf("group %s has fewer than two teams: %w", grp.Name, ErrInsufficientTeams)
		}
		name := grp.Name
		gm, err := roundRobinMatches(grp.TeamIDs, params.Settings.Legs, models.StageGroup, &name)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", grp.Name, err)
		}
		matches = append(matches, gm...)
	}

	b := &bracketDraft{}
	draftWinnersBracket(b, knockoutSeeds(groups, qualifiers))
	matches = append(matches, b.collapse()...)
	return finalize(params, matches), nil
}

// knockoutSeeds seeds the winners of every group first, then the runners-up,
// and so on. Inside each rank the group order is searched so that nobody opens
// the knockout against a team from their own group, preferring A, B, C...
// With a single group that cannot be avoided and the plain order is used.
func knockoutSeeds(groups []Group, qualifiers int) []entrant {
	n := len(groups) * qualifiers
	partner := openingPartners(bracketSize(n), n)

	// seed -> index into groups
	order := make([]int, n+1)
	used := make([][]bool, qualifiers)
	for r := range used {
		used[r] = make([]bool, len(groups))
	}

	budget := 1 << 16
	var place func(seed int) bool
	place = func(seed int) bool {
		if seed > n {
			return true
		}
		budget--
		if budget < 0 {
			return false
		}
		rank := (seed - 1) / len(groups)
		for g := range groups {
			if used[rank][g] {
				continue
			}
			if p := partner[seed]; p > 0 && p < seed && order[p] == g {
				continue
			}
			used[rank][g], order[seed] = true, g
			if place(seed + 1) {
				return true
			}
			used[rank][g] = false
		}
		return false
	}
	if !place(1) {
		for seed := 1; seed <= n; seed++ {
			order[seed] = (seed - 1) % len(groups)
		}
	}

	seeds := make([]entrant, 0, n)
	for seed := 1; seed <= n; seed++ {
		rank := (seed-1)/len(groups) + 1
		seeds = append(seeds, sourceEntrant(GroupPlace(groups[order[seed]].Name, rank)))
	}
	return seeds
}

// openingPartners maps each seed to the seed it meets in its first match once
// byes are collapsed. 0 means the first opponent comes out of another match.
func openingPartners(size, n int) []int {
	const bye, played = 0, -1

	partner := make([]int, n+1)
	nodes := SeedPositions(size)
	for i, seed := range nodes {
		if seed > n {
			nodes[i] = bye
		}
	}
	for len(nodes) > 1 {
		next := make([]int, 0, len(nodes)/2)
		for i := 0; i < len(nodes); i += 2 {
			a, c := nodes[i], nodes[i+1]
			switch {
			case a == bye:
				next = append(next, c)
			case c == bye:
				next = append(next, a)
			default:
				if a > 0 && c > 0 {
					partner[a], partner[c] = c, a
				}
				next = append(next, played)
			}
		}
		nodes = next
	}
	return partner
}

// SnakeGroups spreads seeded teams over groups A, B, C... going forward on
// even passes and backward on odd ones, so each group gets a similar mix of
// seeds. groupCount <= 0 picks one group per four teams.
func SnakeGroups(ids []int, groupCount int) []Group {
	if groupCount <= 0 {
		groupCount = max(1, len(ids)/4)
	}
	groupCount = min(groupCount, max(1, len(ids)/2), maxGroups)

	groups := make([]Group, groupCount)
	for i := range groups {
		groups[i].Name = string(rune('A' + i))
	}
	for i, id := range ids {
		pass, col := i/groupCount, i%groupCount
		if pass%2 == 1 {
			col = groupCount - 1 - col
		}
		groups[col].TeamIDs = append(groups[col].TeamIDs, id)
	}
	return groups
}

func qualifiersPerGroup(groups []Group, requested int) int {
	if requested <= 0 {
		requested = 2
	}
	smallest := len(groups[0].TeamIDs)
	for _, g := range groups[1:] {
		smallest = min(smallest, len(g.TeamIDs))
	}
	q := min(requested, smallest)
	if len(groups)*q < 2 {
		q = 2
	}
	return q
}
