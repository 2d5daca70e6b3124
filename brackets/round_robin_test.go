package brackets

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabdi59/tournapro/models"
)

// TestRoundRobinRounds_FourTeams checks the exact circle-method layout.
func TestRoundRobinRounds_FourTeams(t *testing.T) {
	rounds, err := RoundRobinRounds([]int{1, 2, 3, 4})
	require.NoError(t, err)

	want := [][]Pairing{
		{{Home: 1, Away: 4}, {Home: 2, Away: 3}},
		{{Home: 3, Away: 1}, {Home: 4, Away: 2}},
		{{Home: 1, Away: 2}, {Home: 3, Away: 4}},
	}
	if diff := cmp.Diff(want, rounds); diff != "" {
		t.Errorf("RoundRobinRounds() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundRobinRounds_InsufficientTeams(t *testing.T) {
	for _, ids := range [][]int{nil, {7}} {
		_, err := RoundRobinRounds(ids)
		assert.ErrorIs(t, err, ErrInsufficientTeams)
	}
}

// TestRoundRobinRounds_Properties walks many sizes and checks counts, byes
// and that every pair meets exactly once.
func TestRoundRobinRounds_Properties(t *testing.T) {
	for n := 2; n <= 13; n++ {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			ids := make([]int, n)
			for i := range ids {
				ids[i] = i + 1
			}
			rounds, err := RoundRobinRounds(ids)
			require.NoError(t, err)

			wantRounds := n - 1
			if n%2 == 1 {
				wantRounds = n
			}
			assert.Len(t, rounds, wantRounds)

			met := make(map[[2]int]int)
			byes := make(map[int]int)
			total := 0
			for _, round := range rounds {
				seen := make(map[int]bool)
				for _, p := range round {
					assert.False(t, seen[p.Home], "team %d twice in a round", p.Home)
					assert.False(t, seen[p.Away], "team %d twice in a round", p.Away)
					seen[p.Home], seen[p.Away] = true, true
					key := [2]int{min(p.Home, p.Away), max(p.Home, p.Away)}
					met[key]++
					total++
				}
				for _, id := range ids {
					if !seen[id] {
						byes[id]++
					}
				}
			}

			assert.Equal(t, n*(n-1)/2, total)
			for _, count := range met {
				assert.Equal(t, 1, count)
			}
			if n%2 == 1 {
				for _, id := range ids {
					assert.Equal(t, 1, byes[id], "team %d bye count", id)
				}
			} else {
				assert.Empty(t, byes)
			}
		})
	}
}

func TestRoundRobinGenerator_TwoTeams(t *testing.T) {
	matches := generate(t, NewRoundRobinGenerator(), seededTeams(2), models.DefaultFormatSettings())
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Round)
	assert.Equal(t, models.MatchPending, matches[0].Status)
}

func TestRoundRobinGenerator_Output(t *testing.T) {
	teams := seededTeams(5)
	matches := generate(t, NewRoundRobinGenerator(), teams, models.DefaultFormatSettings())
	require.Len(t, matches, 10)

	uids := make(map[string]bool)
	for i, m := range matches {
		assert.Equal(t, i+1, m.Sequence)
		assert.Equal(t, models.StageLeague, m.Stage)
		assert.Equal(t, models.MatchPending, m.Status)
		assert.Nil(t, m.Team1Score)
		assert.Nil(t, m.Team2Score)
		assert.Nil(t, m.WinnerID)
		assert.Empty(t, m.Team1Source)
		assert.Equal(t, 1, m.DivisionID)
		assert.GreaterOrEqual(t, m.Round, 1)
		assert.LessOrEqual(t, m.Round, 5)
		assert.False(t, uids[m.BracketUID], "duplicate uid %s", m.BracketUID)
		uids[m.BracketUID] = true
	}

	again := generate(t, NewRoundRobinGenerator(), teams, models.DefaultFormatSettings())
	if diff := cmp.Diff(matches, again); diff != "" {
		t.Errorf("generation is not deterministic (-first +second):\n%s", diff)
	}
}

func TestRoundRobinGenerator_TwoLegs(t *testing.T) {
	settings := models.DefaultFormatSettings()
	settings.Legs = 2
	matches := generate(t, NewRoundRobinGenerator(), seededTeams(4), settings)
	require.Len(t, matches, 12)

	first := make(map[[2]int]bool)
	for _, m := range matches {
		if m.Round <= 3 {
			first[[2]int{*m.Team1ID, *m.Team2ID}] = true
		}
	}
	for _, m := range matches {
		if m.Round > 3 {
			assert.True(t, first[[2]int{*m.Team2ID, *m.Team1ID}], "second leg %s is not a mirror", m.BracketUID)
		}
	}
	assert.Equal(t, 6, matches[len(matches)-1].Round)
}
