package brackets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabdi59/tournapro/models"
)

func TestSnakeGroups(t *testing.T) {
	groups := SnakeGroups([]int{1, 2, 3, 4, 5, 6, 7, 8}, 2)
	require.Len(t, groups, 2)
	assert.Equal(t, Group{Name: "A", TeamIDs: []int{1, 4, 5, 8}}, groups[0])
	assert.Equal(t, Group{Name: "B", TeamIDs: []int{2, 3, 6, 7}}, groups[1])

	// defaults to one group per four teams, never fewer than two teams a group
	assert.Len(t, SnakeGroups(make([]int, 12), 0), 3)
	assert.Len(t, SnakeGroups(make([]int, 5), 4), 2)
	assert.Len(t, SnakeGroups(make([]int, 3), 0), 1)
}

// TestGroupKnockout_Flow plays the group stage and checks the knockout fills
// from the final tables only after each group is complete.
func TestGroupKnockout_Flow(t *testing.T) {
	teams := seededTeams(8)
	settings := models.DefaultFormatSettings()
	settings.GroupCount = 2
	matches := generate(t, NewGroupKnockoutGenerator(), teams, settings)

	var group, knockout []*models.Match
	for _, m := range matches {
		if m.Stage == models.StageGroup {
			group = append(group, m)
		} else {
			knockout = append(knockout, m)
		}
	}
	require.Len(t, group, 12)
	require.Len(t, knockout, 3)
	for _, m := range knockout {
		assert.Greater(t, m.Sequence, group[len(group)-1].Sequence)
	}

	idx := byUID(matches)
	semi1 := idx["WB-R1-M1"]
	assert.Equal(t, "G:A:1", semi1.Team1Source)
	assert.Equal(t, "G:B:2", semi1.Team2Source)

	// lower id wins every group match
	idxTeams := teamIndex(teams)
	for _, m := range group {
		if m.GroupName != nil && *m.GroupName == "A" {
			if *m.Team1ID < *m.Team2ID {
				enter(m, 1, 0)
			} else {
				enter(m, 0, 1)
			}
		}
	}
	Replay(matches, idxTeams, models.DefaultScoringRules())
	require.NotNil(t, semi1.Team1ID)
	assert.Equal(t, 1, *semi1.Team1ID)
	assert.Nil(t, semi1.Team2ID, "group B is not finished")

	for _, m := range group {
		if *m.GroupName == "B" {
			if *m.Team1ID < *m.Team2ID {
				enter(m, 1, 0)
			} else {
				enter(m, 0, 1)
			}
		}
	}
	Replay(matches, idxTeams, models.DefaultScoringRules())
	require.True(t, semi1.HasTeams())
	assert.Equal(t, 3, *semi1.Team2ID)

	semi2 := idx["WB-R1-M2"]
	require.True(t, semi2.HasTeams())
	assert.Equal(t, 2, *semi2.Team1ID)
	assert.Equal(t, 4, *semi2.Team2ID)
}

func TestGroupKnockout_NoSameGroupOpeners(t *testing.T) {
	for groups := 2; groups <= 6; groups++ {
		for qualifiers := 1; qualifiers <= 3; qualifiers++ {
			t.Run(fmt.Sprintf("%d groups top %d", groups, qualifiers), func(t *testing.T) {
				settings := models.DefaultFormatSettings()
				settings.GroupCount = groups
				settings.QualifiersPerGroup = qualifiers
				matches := generate(t, NewGroupKnockoutGenerator(), seededTeams(groups*4), settings)
				assertNoSameGroupOpeners(t, matches)
			})
		}
	}

	// defaults: 12 teams, 3 groups, 6 qualifiers in an 8 line bracket
	matches := generate(t, NewGroupKnockoutGenerator(), seededTeams(12), models.DefaultFormatSettings())
	assertNoSameGroupOpeners(t, matches)
	idx := byUID(matches)
	assert.Equal(t, "G:A:1", idx["WB-R2-M1"].Team1Source, "top seed skips the first round")
	assert.Equal(t, "G:B:1", idx["WB-R2-M2"].Team1Source)
}

func assertNoSameGroupOpeners(t *testing.T, matches []*models.Match) {
	t.Helper()
	var openers int
	for _, m := range matches {
		if m.Stage == models.StageGroup {
			continue
		}
		s1, ok1 := ParseSource(m.Team1Source)
		s2, ok2 := ParseSource(m.Team2Source)
		if !ok1 || !ok2 || s1.Kind != SourceGroup || s2.Kind != SourceGroup {
			continue
		}
		openers++
		assert.NotEqual(t, s1.Group, s2.Group, "%s: %s vs %s", m.BracketUID, m.Team1Source, m.Team2Source)
	}
	assert.Positive(t, openers)
}

func TestOpeningPartners(t *testing.T) {
	// 6 entrants in 8 lines: seeds 1 and 2 have byes
	assert.Equal(t, []int{0, 0, 0, 6, 5, 4, 3}, openingPartners(8, 6))
	// 5 entrants: seed 2 and 3 meet after both had byes
	assert.Equal(t, []int{0, 0, 3, 2, 5, 4}, openingPartners(8, 5))
	assert.Equal(t, []int{0, 4, 3, 2, 1}, openingPartners(4, 4))
}
