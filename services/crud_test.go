package services

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
	"github.com/Mabdi59/tournapro/storage"
)

func TestTournamentService_CreateValidation(t *testing.T) {
	h := newHarness(t)
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := h.tournaments.CreateTournament(context.Background(), organizerID, CreateTournamentInput{
		Name:      "  ",
		Format:    "SWISS",
		StartDate: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   &end,
		Settings:  models.TournamentSettings{Scoring: &models.ScoringRules{Win: 1, Draw: 3}},
	})
	require.ErrorIs(t, err, ErrValidationFailed)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	keys := make([]string, 0, len(verr.Fields))
	for k := range verr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"endDate", "format", "name", "settings.scoring"}, keys)
}

func TestTournamentService_Lifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 2)
	assert.Equal(t, models.TournamentUpcoming, tour.Status)

	got, err := h.tournaments.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, got.Divisions, 1)
	assert.Equal(t, div.ID, got.Divisions[0].ID)

	_, err = h.tournaments.UpdateTournament(ctx, organizerID+1, tour.ID, UpdateTournamentInput{Name: models.StringPtr("Mine now")})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	updated, err := h.tournaments.UpdateTournament(ctx, organizerID, tour.ID, UpdateTournamentInput{
		Name:     models.StringPtr("Summer Classic"),
		Settings: &models.TournamentSettings{Scoring: &models.ScoringRules{Win: 2, Draw: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Summer Classic", updated.Name)
	assert.Equal(t, 2, updated.Settings.Scoring.Win)

	_, err = h.tournaments.UpdateStatus(ctx, organizerID, tour.ID, models.TournamentCompleted)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
	_, err = h.tournaments.UpdateStatus(ctx, organizerID, tour.ID, "PAUSED")
	assert.ErrorIs(t, err, ErrTournamentInvalidStatus)

	for _, next := range []models.TournamentStatus{models.TournamentInProgress, models.TournamentCompleted} {
		got, err := h.tournaments.UpdateStatus(ctx, organizerID, tour.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, got.Status)
	}

	_, err = h.tournaments.UpdateTournament(ctx, organizerID, tour.ID, UpdateTournamentInput{Name: models.StringPtr("Late edit")})
	assert.ErrorIs(t, err, ErrTournamentNotEditable)

	updates := h.published.ofType(events.TournamentUpdate)
	assert.NotEmpty(t, updates)

	require.NoError(t, h.tournaments.DeleteTournament(ctx, organizerID, tour.ID))
	_, err = h.tournaments.GetTournament(ctx, tour.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	_, err = h.divisions.GetDivision(ctx, tour.ID, div.ID)
	assert.ErrorIs(t, err, ErrDivisionNotFound)
}

func TestTournamentService_ListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 0)
	se, _, _ := h.setup(t, models.FormatSingleElimination, models.TournamentSettings{}, 0)

	format := models.FormatSingleElimination
	list, err := h.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{Format: &format})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, se.ID, list[0].ID)

	list, err = h.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{OrganizerID: models.IntPtr(organizerID)})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDivisionService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, teams := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 3)

	_, err := h.divisions.CreateDivision(ctx, organizerID, tour.ID, DivisionInput{Name: "Open"})
	assert.ErrorIs(t, err, ErrDivisionNameConflict)
	_, err = h.divisions.CreateDivision(ctx, organizerID, tour.ID, DivisionInput{})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)

	overview, err := h.divisions.GetDivision(ctx, tour.ID, div.ID)
	require.NoError(t, err)
	assert.Len(t, overview.Teams, 3)
	assert.Len(t, overview.Matches, 3)
	assert.NotNil(t, overview.Matches[0].Team1)

	renamed, err := h.divisions.UpdateDivision(ctx, organizerID, tour.ID, div.ID, DivisionInput{Name: "Premier"})
	require.NoError(t, err)
	assert.Equal(t, "Premier", renamed.Name)

	require.NoError(t, h.divisions.DeleteDivision(ctx, organizerID, tour.ID, div.ID))

	// Teams survive without a division; the schedule is gone.
	remaining, err := h.teams.ListTeams(ctx, tour.ID, nil)
	require.NoError(t, err)
	require.Len(t, remaining, len(teams))
	for _, team := range remaining {
		assert.Nil(t, team.DivisionID)
	}
	require.NoError(t, h.teams.DeleteTeam(ctx, organizerID, tour.ID, teams[0].ID))
}

func TestTeamService_Registration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, teams := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 2)

	registered := h.published.ofType(events.RegistrationUpdate)
	require.Len(t, registered, 2)
	assert.Equal(t, teams[1].ID, registered[1].EntityID)

	_, err := h.teams.CreateTeam(ctx, organizerID, tour.ID, CreateTeamInput{Name: strings.ToUpper(teams[0].Name)})
	assert.ErrorIs(t, err, ErrTeamNameConflict)

	_, err = h.teams.BulkCreateTeams(ctx, organizerID, tour.ID, []CreateTeamInput{{Name: "Comets"}, {Name: "comets"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "teams[1].name")

	other, _, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 0)
	_, err = h.teams.CreateTeam(ctx, organizerID, other.ID, CreateTeamInput{Name: "Strays", DivisionID: models.IntPtr(div.ID)})
	assert.ErrorIs(t, err, ErrDivisionNotFound)

	_, err = h.teams.GetTeam(ctx, other.ID, teams[0].ID)
	assert.ErrorIs(t, err, ErrTeamNotFound)

	inDivision, err := h.teams.ListTeams(ctx, tour.ID, models.IntPtr(div.ID))
	require.NoError(t, err)
	assert.Len(t, inDivision, 2)
}

func TestTeamService_ScheduledTeamsAreLocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, div, teams := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 3)
	second, err := h.divisions.CreateDivision(ctx, organizerID, tour.ID, DivisionInput{Name: "Masters"})
	require.NoError(t, err)

	// Before a schedule exists teams move freely.
	moved, err := h.teams.UpdateTeam(ctx, organizerID, tour.ID, teams[2].ID, UpdateTeamInput{DivisionID: models.IntPtr(second.ID)})
	require.NoError(t, err)
	assert.Equal(t, second.ID, *moved.DivisionID)
	_, err = h.teams.UpdateTeam(ctx, organizerID, tour.ID, teams[2].ID, UpdateTeamInput{DivisionID: models.IntPtr(div.ID)})
	require.NoError(t, err)

	_, err = h.schedules.GenerateSchedule(ctx, organizerID, tour.ID, div.ID)
	require.NoError(t, err)

	_, err = h.teams.UpdateTeam(ctx, organizerID, tour.ID, teams[0].ID, UpdateTeamInput{DivisionID: models.IntPtr(second.ID)})
	assert.ErrorIs(t, err, ErrTeamScheduled)
	_, err = h.teams.UpdateTeam(ctx, organizerID, tour.ID, teams[0].ID, UpdateTeamInput{DivisionID: models.IntPtr(0)})
	assert.ErrorIs(t, err, ErrTeamScheduled)
	err = h.teams.DeleteTeam(ctx, organizerID, tour.ID, teams[0].ID)
	assert.ErrorIs(t, err, ErrTeamScheduled)

	// Renaming is still fine.
	renamed, err := h.teams.UpdateTeam(ctx, organizerID, tour.ID, teams[0].ID, UpdateTeamInput{Name: models.StringPtr("Renamed FC")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed FC", renamed.Name)
	assert.Equal(t, div.ID, *renamed.DivisionID)
}

func TestTeamService_UploadLogo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, _, teams := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 1)
	png := []byte("\x89PNG\r\n\x1a\nfake")

	_, err := h.teams.UploadTeamLogo(ctx, organizerID, tour.ID, teams[0].ID, "image/gif", bytes.NewReader(png))
	assert.ErrorIs(t, err, ErrInvalidLogoType)

	_, err = h.teams.UploadTeamLogo(ctx, organizerID, tour.ID, teams[0].ID, "image/png", bytes.NewReader(make([]byte, storage.MaxLogoSize+1)))
	assert.ErrorIs(t, err, ErrLogoTooLarge)

	team, err := h.teams.UploadTeamLogo(ctx, organizerID, tour.ID, teams[0].ID, "image/png", bytes.NewReader(png))
	require.NoError(t, err)
	require.NotNil(t, team.LogoURL)
	assert.True(t, strings.HasPrefix(*team.LogoURL, "https://cdn.example.com/tournaments/"))
	firstKey := *team.LogoKey
	contentType, data, ok := h.uploader.Object(firstKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, png, data)

	// A replacement removes the previous object.
	team, err = h.teams.UploadTeamLogo(ctx, organizerID, tour.ID, teams[0].ID, "image/webp", bytes.NewReader([]byte("RIFFwebp")))
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, *team.LogoKey)
	_, _, ok = h.uploader.Object(firstKey)
	assert.False(t, ok)

	got, err := h.teams.GetTeam(ctx, tour.ID, teams[0].ID)
	require.NoError(t, err)
	assert.Equal(t, team.LogoURL, got.LogoURL)

	disabled := buildHarness(h.store, nil)
	_, err = disabled.teams.UploadTeamLogo(ctx, organizerID, tour.ID, teams[0].ID, "image/png", bytes.NewReader(png))
	assert.ErrorIs(t, err, ErrLogoStorageDisabled)
}

func TestPlayerService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, _, teams := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 2)

	_, err := h.players.CreatePlayer(ctx, organizerID, tour.ID, teams[0].ID, PlayerInput{Name: "Ana", Email: models.StringPtr("not-an-email")})
	assert.ErrorIs(t, err, ErrValidationFailed)

	roster, err := h.players.BulkCreatePlayers(ctx, organizerID, tour.ID, teams[0].ID, []PlayerInput{
		{Name: h.faker.Name(), JerseyNumber: models.IntPtr(9)},
		{Name: h.faker.Name(), JerseyNumber: models.IntPtr(10)},
	})
	require.NoError(t, err)
	require.Len(t, roster, 2)
	keeper, err := h.players.CreatePlayer(ctx, organizerID, tour.ID, teams[1].ID, PlayerInput{Name: h.faker.Name(), Position: models.StringPtr("GK")})
	require.NoError(t, err)

	p, err := h.players.AddStats(ctx, organizerID, tour.ID, roster[0].ID, models.PlayerStats{GamesPlayed: 1, Goals: 2})
	require.NoError(t, err)
	p, err = h.players.AddStats(ctx, organizerID, tour.ID, roster[0].ID, models.PlayerStats{GamesPlayed: 1, Goals: 1, Assists: 1})
	require.NoError(t, err)
	assert.Equal(t, models.PlayerStats{GamesPlayed: 2, Goals: 3, Assists: 1}, p.PlayerStats)

	_, err = h.players.AddStats(ctx, organizerID, tour.ID, roster[1].ID, models.PlayerStats{Goals: -1})
	assert.ErrorIs(t, err, ErrNegativeStats)
	_, err = h.players.AddStats(ctx, organizerID, tour.ID, keeper.ID, models.PlayerStats{Assists: 2})
	require.NoError(t, err)

	scorers, err := h.players.TopScorers(ctx, tour.ID, 0)
	require.NoError(t, err)
	require.Len(t, scorers, 3)
	assert.Equal(t, roster[0].ID, scorers[0].ID)
	assert.Equal(t, 4, scorers[0].Points)
	assert.Equal(t, teams[0].Name, scorers[0].TeamName)
	assert.Equal(t, keeper.ID, scorers[1].ID)

	other, _, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 0)
	_, err = h.players.UpdatePlayer(ctx, organizerID, other.ID, roster[0].ID, PlayerInput{Name: "Moved"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	updated, err := h.players.UpdatePlayer(ctx, organizerID, tour.ID, roster[0].ID, PlayerInput{Name: "Captain", JerseyNumber: models.IntPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, "Captain", updated.Name)
	assert.Equal(t, 3, updated.Goals)

	require.NoError(t, h.players.DeletePlayer(ctx, organizerID, tour.ID, roster[1].ID))
	list, err := h.players.ListPlayers(ctx, tour.ID, teams[0].ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 7, *list[0].JerseyNumber)

	assert.Len(t, h.published.ofType(events.PlayerUpdate), 8)
}

func TestRefereeService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tour, _, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 0)

	_, err := h.referees.CreateReferee(ctx, organizerID, tour.ID, RefereeInput{Name: " ", Email: models.StringPtr("nope")})
	require.ErrorIs(t, err, ErrValidationFailed)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")

	_, err = h.referees.CreateReferee(ctx, organizerID+1, tour.ID, RefereeInput{Name: h.faker.Name()})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	_, err = h.referees.BulkCreateReferees(ctx, organizerID, tour.ID, []RefereeInput{{Name: "Ok"}, {Name: ""}})
	require.ErrorIs(t, err, ErrValidationFailed)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "referees[1].name")

	crew, err := h.referees.BulkCreateReferees(ctx, organizerID, tour.ID, []RefereeInput{
		{Name: "Mira Stone", Country: models.StringPtr("NZ")},
		{Name: "  Caleb Ortiz ", Email: models.StringPtr("caleb@example.com"), Role: models.StringPtr("Fourth official")},
	})
	require.NoError(t, err)
	require.Len(t, crew, 2)
	assert.Equal(t, "Caleb Ortiz", crew[1].Name)

	_, err = h.referees.ListReferees(ctx, organizerID+1, tour.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
	list, err := h.referees.ListReferees(ctx, organizerID, tour.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, crew[1].ID, list[0].ID)

	other, _, _ := h.setup(t, models.FormatRoundRobin, models.TournamentSettings{}, 0)
	_, err = h.referees.UpdateReferee(ctx, organizerID, other.ID, crew[0].ID, RefereeInput{Name: "Moved"})
	assert.ErrorIs(t, err, ErrRefereeNotFound)
	assert.ErrorIs(t, h.referees.DeleteReferee(ctx, organizerID, other.ID, crew[0].ID), ErrRefereeNotFound)
	_, err = h.referees.UpdateReferee(ctx, organizerID+1, tour.ID, crew[0].ID, RefereeInput{Name: "Mine"})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	updated, err := h.referees.UpdateReferee(ctx, organizerID, tour.ID, crew[0].ID, RefereeInput{Name: "Mira Stone-Hale", Country: models.StringPtr("AU")})
	require.NoError(t, err)
	assert.Equal(t, "Mira Stone-Hale", updated.Name)
	require.NotNil(t, updated.Country)
	assert.Equal(t, "AU", *updated.Country)

	require.NoError(t, h.referees.DeleteReferee(ctx, organizerID, tour.ID, crew[1].ID))
	_, err = h.referees.UpdateReferee(ctx, organizerID, tour.ID, crew[1].ID, RefereeInput{Name: "Gone"})
	assert.ErrorIs(t, err, ErrRefereeNotFound)

	list, err = h.referees.ListReferees(ctx, organizerID, tour.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, crew[0].ID, list[0].ID)

	published := h.published.ofType(events.RegistrationUpdate)
	require.Len(t, published, 4)
	actions := make([]events.Action, 0, len(published))
	for _, e := range published {
		assert.Equal(t, tour.ID, e.TournamentID)
		assert.Nil(t, e.DivisionID)
		payload, ok := e.Payload.(models.Referee)
		require.True(t, ok)
		assert.Nil(t, payload.Email, "contact details stay off the public channel")
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []events.Action{events.ActionCreated, events.ActionCreated, events.ActionUpdated, events.ActionDeleted}, actions)
}
