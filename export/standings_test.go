package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Mabdi59/tournapro/models"
)

func TestWriteStandings(t *testing.T) {
	lions := &models.Team{ID: 1, Name: "Lions"}
	when := time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)
	table := []models.Standing{
		{Rank: 1, TeamID: 1, TeamName: "Lions", TeamRecord: models.TeamRecord{Played: 1, Wins: 1, Points: 3, ScoreFor: 2}, Differential: 2},
		{Rank: 2, TeamID: 2, TeamName: "Tigers", TeamRecord: models.TeamRecord{Played: 1, Losses: 1, ScoreAgainst: 2}, Differential: -2},
	}
	matches := []*models.Match{
		{
			Sequence: 1, Stage: models.StageWinners, Round: 1, Status: models.MatchCompleted,
			Team1: lions, Team2: &models.Team{ID: 2, Name: "Tigers"},
			Team1Score: models.IntPtr(2), Team2Score: models.IntPtr(0),
			ScheduledTime: &when, Venue: models.StringPtr("Court 1"),
		},
		{Sequence: 2, Stage: models.StageWinners, Round: 2, Status: models.MatchPending, Team1: lions, Team2Source: "W:WB-R1-M2"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStandings(&buf, &models.Division{Name: "Open"}, table, matches))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{standingsSheet, matchesSheet}, f.GetSheetList())

	rows, err := f.GetRows(standingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Open standings", rows[0][0])
	assert.Equal(t, "Rank", rows[1][0])
	assert.Equal(t, []string{"1", "", "Lions", "1", "1", "0", "0", "2", "0", "2", "3"}, rows[2])
	assert.Equal(t, "-2", rows[3][9])

	rows, err = f.GetRows(matchesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2 - 0", rows[1][6])
	assert.Equal(t, "2026-06-01 14:00", rows[1][8])
	assert.Equal(t, "TBD (W:WB-R1-M2)", rows[2][5])
}
