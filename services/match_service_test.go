package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
)

func TestGenerateSchedule_SingleEliminationToChampion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, teams := h.setup(t, models.FormatSingleElimination, models.TournamentSettings{}, 4)

	matches, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.NotZero(t, m.ID)
		assert.Equal(t, models.MatchPending, m.Status)
	}

	generated := h.published.ofType(events.MatchUpdate)
	require.Len(t, generated, 1)
	assert.Equal(t, events.ActionGenerated, generated[0].Action)
	assert.Equal(t, div.ID, *generated[0].DivisionID)

	h.playOut(t, tour.ID, div.ID, lowerIDWins)

	view, err := h.standings.Bracket(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Champion)
	assert.Equal(t, teams[0].ID, view.Champion.ID)
	assert.Len(t, view.Stages[models.StageWinners], 2)

	// Next-match links are stored as ids as well as uids.
	for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
		if m.NextMatchUID != nil {
			assert.NotNil(t, m.NextMatchID, m.BracketUID)
		}
	}
}

func TestGenerateSchedule_DoubleEliminationLossCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, teams := h.setup(t, models.FormatDoubleElimination, models.TournamentSettings{}, 4)

	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)
	h.playOut(t, tour.ID, div.ID, lowerIDWins)

	losses := make(map[int]int)
	played := 0
	for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
		if m.Status != models.MatchCompleted {
			continue
		}
		played++
		losses[*m.LoserID()]++
	}
	assert.Equal(t, 2*len(teams)-2, played)
	assert.Zero(t, losses[teams[0].ID])
	for _, team := range teams[1:] {
		assert.Equal(t, 2, losses[team.ID], team.Name)
	}

	view, err := h.standings.Bracket(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Champion)
	assert.Equal(t, teams[0].ID, view.Champion.ID)
}

func TestGenerateSchedule_Refusals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 1)

	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	assert.ErrorIs(t, err, ErrInsufficientTeams)

	_, err = h.schedules.GenerateSchedule(ctx, organizerID+1, tour.ID, div.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	_, err = h.schedules.GenerateSchedule(ctx, organizerID, tour.ID+100, div.ID)
	assert.ErrorIs(t, err, ErrDivisionNotFound)

	_, err = h.tournaments.UpdateStatus(ctx, organizerID, tour.ID, models.TournamentCancelled)
	require.NoError(t, err)
	_, err = h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	assert.ErrorIs(t, err, ErrTournamentNotEditable)
}

type failingSchedules struct {
	repositories.ScheduleRepository
}

func (failingSchedules) ReplaceDivisionSchedule(context.Context, int, []*models.Match, []*models.Team) error {
	return errors.New("disk full")
}

// TestGenerateSchedule_FailureKeepsPriorSchedule regenerates with a store that
// fails the write and checks the existing schedule and records survive.
func TestGenerateSchedule_FailureKeepsPriorSchedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 4)

	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)
	h.playOut(t, tour.ID, div.ID, lowerIDWins)
	before := h.divisionMatches(t, tour.ID, div.ID)
	_, tableBefore, err := h.standings.DivisionStandings(ctx, tour.ID, div.ID)
	require.NoError(t, err)

	broken := *h.store
	broken.Schedules = failingSchedules{h.store.Schedules}
	hb := buildHarness(&broken, nil)

	_, err = hb.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.Error(t, err)

	after := h.divisionMatches(t, tour.ID, div.ID)
	assert.Empty(t, cmp.Diff(before, after))
	_, tableAfter, err := h.standings.DivisionStandings(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(tableBefore, tableAfter))
}

func TestSubmitResult_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatSingleElimination, models.TournamentSettings{}, 4)
	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)

	var semi, final *models.Match
	for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
		if m.Round == 1 && semi == nil {
			semi = m
		}
		if m.NextMatchUID == nil {
			final = m
		}
	}
	require.NotNil(t, semi)
	require.NotNil(t, final)

	tests := []struct {
		name    string
		userID  int
		matchID int
		input   SubmitResultInput
		wantErr error
	}{
		{"missing score", organizerID, semi.ID, SubmitResultInput{Team1Score: models.IntPtr(1)}, ErrValidationFailed},
		{"negative score", organizerID, semi.ID, score(-1, 2), ErrInvalidScore},
		{"draw in knockout", organizerID, semi.ID, score(1, 1), ErrDrawNotAllowed},
		{"teams unknown", organizerID, final.ID, score(1, 0), ErrTeamsNotSet},
		{"not organizer", organizerID + 1, semi.ID, score(1, 0), ErrForbiddenOperation},
		{"unknown match", organizerID, 9999, score(1, 0), ErrMatchNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.matches.SubmitResult(ctx, tt.userID, tour.ID, tt.matchID, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Nothing above may have touched the match.
	stored, err := h.matches.GetMatch(ctx, tour.ID, semi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, stored.Status)
	assert.Nil(t, stored.Team1Score)
	assert.Nil(t, stored.WinnerID)
}

// TestSubmitResult_ResubmissionRecomputes overwrites a league result and
// checks the table equals one built from the final score alone.
func TestSubmitResult_ResubmissionRecomputes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 4)
	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)

	first := h.divisionMatches(t, tour.ID, div.ID)[0]
	pair := []int{*first.Team1ID, *first.Team2ID}
	before := len(h.published.ofType(events.TeamUpdate))

	_, err = h.matches.SubmitResult(ctx, organizerID, tour.ID, first.ID, score(3, 0))
	require.NoError(t, err)
	assertTeamRecordEvents(t, h.published.ofType(events.TeamUpdate)[before:], pair)
	before = len(h.published.ofType(events.TeamUpdate))

	m, err := h.matches.SubmitResult(ctx, organizerID, tour.ID, first.ID, score(1, 1))
	require.NoError(t, err)
	assert.Nil(t, m.WinnerID)
	assert.Equal(t, models.MatchCompleted, m.Status)

	updates := h.published.ofType(events.TeamUpdate)[before:]
	assertTeamRecordEvents(t, updates, pair)
	for _, e := range updates {
		team, ok := e.Payload.(*models.Team)
		require.True(t, ok)
		assert.Equal(t, 1, team.Draws, "event carries the recomputed record")
	}

	_, table, err := h.standings.DivisionStandings(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	for _, row := range table {
		switch row.TeamID {
		case *first.Team1ID, *first.Team2ID:
			assert.Equal(t, models.TeamRecord{Played: 1, Draws: 1, Points: 1, ScoreFor: 1, ScoreAgainst: 1}, row.TeamRecord)
		default:
			assert.Zero(t, row.Played)
		}
	}

	// Stored records follow the same recompute.
	team, err := h.teams.GetTeam(ctx, tour.ID, *first.Team1ID)
	require.NoError(t, err)
	assert.Equal(t, 1, team.Draws)
	assert.Zero(t, team.Wins)

	// Regenerating wipes the records of both teams and says so.
	before = len(h.published.ofType(events.TeamUpdate))
	_, err = h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)
	resets := h.published.ofType(events.TeamUpdate)[before:]
	assertTeamRecordEvents(t, resets, pair)
	for _, e := range resets {
		assert.Zero(t, e.Payload.(*models.Team).TeamRecord)
	}
}

// assertTeamRecordEvents checks one TEAM_UPDATE per team, in any order.
func assertTeamRecordEvents(t *testing.T, got []events.Event, teamIDs []int) {
	t.Helper()
	ids := make([]int, 0, len(got))
	for _, e := range got {
		assert.Equal(t, events.ActionUpdated, e.Action)
		require.NotNil(t, e.DivisionID)
		ids = append(ids, e.EntityID)
	}
	assert.ElementsMatch(t, teamIDs, ids)
}

func TestClearResult_UndoesDownstream(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatSingleElimination, models.TournamentSettings{}, 4)
	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)
	h.playOut(t, tour.ID, div.ID, lowerIDWins)

	var semi *models.Match
	for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
		if m.Round == 1 {
			semi = m
			break
		}
	}
	cleared, err := h.matches.ClearResult(ctx, organizerID, tour.ID, semi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, cleared.Status)
	assert.Nil(t, cleared.Team1Score)

	for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
		if m.NextMatchUID == nil {
			assert.False(t, m.HasTeams())
			assert.Nil(t, m.WinnerID)
			assert.NotEqual(t, models.MatchCompleted, m.Status)
		}
	}
	view, err := h.standings.Bracket(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Champion)
}

func TestGroupKnockout_PlaceholdersResolve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	settings := models.TournamentSettings{Format: &models.FormatSettings{Legs: 1, GroupCount: 2, QualifiersPerGroup: 2}}
	tour, div, teams := h.setup(t, models.FormatGroupKnockout, settings, 8)

	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)

	knockout := func() []*models.Match {
		var out []*models.Match
		for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
			if m.Stage == models.StageWinners {
				out = append(out, m)
			}
		}
		return out
	}
	for _, m := range knockout() {
		assert.Nil(t, m.Team1ID)
		assert.Nil(t, m.Team2ID)
	}

	for guard := 0; guard < 100; guard++ {
		var next *models.Match
		for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
			if m.Stage == models.StageGroup && m.Status != models.MatchCompleted {
				next = m
				break
			}
		}
		if next == nil {
			break
		}
		s1, s2 := lowerIDWins(next)
		_, err := h.matches.SubmitResult(ctx, organizerID, tour.ID, next.ID, score(s1, s2))
		require.NoError(t, err)
	}

	var semis int
	for _, m := range knockout() {
		if m.Round == 1 {
			semis++
			assert.True(t, m.HasTeams(), m.BracketUID)
		}
	}
	assert.Equal(t, 2, semis)

	_, table, err := h.standings.DivisionStandings(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	require.Len(t, table, len(teams))
	assert.Equal(t, "A", *table[0].Group)
	assert.Equal(t, teams[0].ID, table[0].TeamID)
}

func TestScheduleMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 2)
	matches, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)
	id := matches[0].ID

	_, err = h.matches.ScheduleMatch(ctx, organizerID, tour.ID, id, ScheduleMatchInput{ScheduledTime: models.StringPtr("next tuesday")})
	assert.ErrorIs(t, err, ErrInvalidScheduleTime)

	m, err := h.matches.ScheduleMatch(ctx, organizerID, tour.ID, id, ScheduleMatchInput{
		ScheduledTime: models.StringPtr("2026-06-01T14:30:00+02:00"),
		Venue:         models.StringPtr("  Court 3 "),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchScheduled, m.Status)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC), *m.ScheduledTime)
	assert.Equal(t, "Court 3", *m.Venue)

	// Venue only: time stays.
	m, err = h.matches.ScheduleMatch(ctx, organizerID, tour.ID, id, ScheduleMatchInput{Venue: models.StringPtr("Court 1")})
	require.NoError(t, err)
	assert.NotNil(t, m.ScheduledTime)

	m, err = h.matches.ScheduleMatch(ctx, organizerID, tour.ID, id, ScheduleMatchInput{ScheduledTime: models.StringPtr("")})
	require.NoError(t, err)
	assert.Nil(t, m.ScheduledTime)
	assert.Equal(t, models.MatchPending, m.Status)
}

func TestStartMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatSingleElimination, models.TournamentSettings{}, 4)
	_, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)

	var semi, final *models.Match
	for _, m := range h.divisionMatches(t, tour.ID, div.ID) {
		if m.Round == 1 && semi == nil {
			semi = m
		}
		if m.NextMatchUID == nil {
			final = m
		}
	}

	_, err = h.matches.StartMatch(ctx, organizerID, tour.ID, final.ID)
	assert.ErrorIs(t, err, ErrTeamsNotSet)

	m, err := h.matches.StartMatch(ctx, organizerID, tour.ID, semi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchInProgress, m.Status)

	_, err = h.matches.SubmitResult(ctx, organizerID, tour.ID, semi.ID, score(2, 0))
	require.NoError(t, err)
	_, err = h.matches.StartMatch(ctx, organizerID, tour.ID, semi.ID)
	assert.ErrorIs(t, err, ErrMatchNotPlayable)
}

// TestSubmitResult_ConcurrentSubmitsSerialize fires every league result at
// once and checks no update was lost.
func TestSubmitResult_ConcurrentSubmitsSerialize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, teams := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 6)
	matches, err := h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, len(matches))
	for _, m := range matches {
		wg.Add(1)
		go func(m *models.Match) {
			defer wg.Done()
			s1, s2 := lowerIDWins(m)
			_, err := h.matches.SubmitResult(ctx, organizerID, tour.ID, m.ID, score(s1, s2))
			errs <- err
		}(m)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, table, err := h.standings.DivisionStandings(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	for i, row := range table {
		assert.Equal(t, teams[i].ID, row.TeamID)
		assert.Equal(t, len(teams)-1, row.Played)
		assert.Equal(t, len(teams)-1-i, row.Wins)
	}
}
