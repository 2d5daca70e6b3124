package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
	"github.com/Mabdi59/tournapro/storage"
)

type TeamService interface {
	CreateTeam(ctx context.Context, organizerID, tournamentID int, input CreateTeamInput) (*models.Team, error)
	// BulkCreateTeams registers every team or none of them.
	BulkCreateTeams(ctx context.Context, organizerID, tournamentID int, inputs []CreateTeamInput) ([]*models.Team, error)
	GetTeam(ctx context.Context, tournamentID, teamID int) (*models.Team, error)
	ListTeams(ctx context.Context, tournamentID int, divisionID *int) ([]*models.Team, error)
	UpdateTeam(ctx context.Context, organizerID, tournamentID, teamID int, input UpdateTeamInput) (*models.Team, error)
	DeleteTeam(ctx context.Context, organizerID, tournamentID, teamID int) error
	UploadTeamLogo(ctx context.Context, organizerID, tournamentID, teamID int, contentType string, file io.Reader) (*models.Team, error)
}

type CreateTeamInput struct {
	Name       string  `json:"name"`
	ShortName  *string `json:"shortName"`
	DivisionID *int    `json:"divisionId"`
}

// UpdateTeamInput is a partial update. DivisionID 0 removes the team from
// its division.
type UpdateTeamInput struct {
	Name       *string `json:"name"`
	ShortName  *string `json:"shortName"`
	DivisionID *int    `json:"divisionId"`
}

type teamService struct {
	store     *repositories.Store
	locker    DivisionLocker
	uploader  storage.FileUploader
	publisher events.Publisher
	logger    *slog.Logger
}

func NewTeamService(
	store *repositories.Store,
	locker DivisionLocker,
	uploader storage.FileUploader,
	publisher events.Publisher,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		store:     store,
		locker:    locker,
		uploader:  uploader,
		publisher: publisher,
		logger:    logger,
	}
}

func validateTeamName(v validator, field, name string) {
	v.check(name != "", field, "is required")
	v.check(len(name) <= 100, field, "must be at most 100 characters")
}

// checkDivision makes sure a division reference points into the tournament.
func (s *teamService) checkDivision(ctx context.Context, tournamentID int, divisionID *int) error {
	if divisionID == nil {
		return nil
	}
	d, err := s.store.Divisions.GetByID(ctx, *divisionID)
	if err != nil {
		return handleRepositoryError(err, "get division")
	}
	if d.TournamentID != tournamentID {
		return ErrDivisionNotFound
	}
	return nil
}

func (s *teamService) scoped(ctx context.Context, tournamentID, teamID int) (*models.Team, error) {
	t, err := s.store.Teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, handleRepositoryError(err, "get team")
	}
	if t.TournamentID != tournamentID {
		return nil, ErrTeamNotFound
	}
	return t, nil
}

func newTeam(tournamentID int, in CreateTeamInput, v validator, field string) *models.Team {
	name := strings.TrimSpace(in.Name)
	validateTeamName(v, field+"name", name)
	if in.DivisionID != nil && *in.DivisionID <= 0 {
		in.DivisionID = nil
	}
	return &models.Team{
		TournamentID: tournamentID,
		DivisionID:   in.DivisionID,
		Name:         name,
		ShortName:    trimOptional(in.ShortName),
	}
}

func (s *teamService) CreateTeam(ctx context.Context, organizerID, tournamentID int, input CreateTeamInput) (*models.Team, error) {
	v := validator{}
	team := newTeam(tournamentID, input, v, "")
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	if err := s.checkDivision(ctx, tournamentID, team.DivisionID); err != nil {
		return nil, err
	}

	if err := s.store.Teams.Create(ctx, team); err != nil {
		return nil, handleRepositoryError(err, "create team")
	}
	s.logger.InfoContext(ctx, "Team registered", slog.Int("tournament_id", tournamentID), slog.Int("team_id", team.ID))
	s.announce(ctx, events.RegistrationUpdate, events.ActionCreated, team)
	return team, nil
}

func (s *teamService) BulkCreateTeams(ctx context.Context, organizerID, tournamentID int, inputs []CreateTeamInput) ([]*models.Team, error) {
	v := validator{}
	v.check(len(inputs) > 0, "teams", "at least one team is required")

	teams := make([]*models.Team, 0, len(inputs))
	seen := make(map[string]int, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("teams[%d].", i)
		team := newTeam(tournamentID, in, v, field)
		key := strings.ToLower(team.Name)
		if prev, dup := seen[key]; dup && key != "" {
			v.check(false, field+"name", fmt.Sprintf("duplicates teams[%d].name", prev))
		}
		seen[key] = i
		teams = append(teams, team)
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}

	checked := make(map[int]bool)
	for _, t := range teams {
		if t.DivisionID == nil || checked[*t.DivisionID] {
			continue
		}
		if err := s.checkDivision(ctx, tournamentID, t.DivisionID); err != nil {
			return nil, err
		}
		checked[*t.DivisionID] = true
	}

	if err := s.store.Teams.CreateBatch(ctx, teams); err != nil {
		return nil, handleRepositoryError(err, "create teams")
	}
	s.logger.InfoContext(ctx, "Teams registered", slog.Int("tournament_id", tournamentID), slog.Int("count", len(teams)))
	for _, t := range teams {
		s.announce(ctx, events.RegistrationUpdate, events.ActionCreated, t)
	}
	return teams, nil
}

// GetTeam returns the team with its roster.
func (s *teamService) GetTeam(ctx context.Context, tournamentID, teamID int) (*models.Team, error) {
	var (
		team    *models.Team
		players []*models.Player
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		team, err = s.scoped(gCtx, tournamentID, teamID)
		return err
	})
	g.Go(func() error {
		var err error
		players, err = s.store.Players.ListByTeam(gCtx, teamID)
		return handleRepositoryError(err, "list players")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	team.Players = make([]models.Player, 0, len(players))
	for _, p := range players {
		team.Players = append(team.Players, *p)
	}
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context, tournamentID int, divisionID *int) ([]*models.Team, error) {
	if _, err := s.store.Tournaments.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}

	var (
		teams []*models.Team
		err   error
	)
	if divisionID != nil {
		if err := s.checkDivision(ctx, tournamentID, divisionID); err != nil {
			return nil, err
		}
		teams, err = s.store.Teams.ListByDivision(ctx, *divisionID)
	} else {
		teams, err = s.store.Teams.ListByTournament(ctx, tournamentID)
	}
	if err != nil {
		return nil, handleRepositoryError(err, "list teams")
	}
	for _, t := range teams {
		populateTeamLogoURL(t, s.uploader)
	}
	return teams, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, organizerID, tournamentID, teamID int, input UpdateTeamInput) (*models.Team, error) {
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	team, err := s.scoped(ctx, tournamentID, teamID)
	if err != nil {
		return nil, err
	}

	v := validator{}
	if input.Name != nil {
		team.Name = strings.TrimSpace(*input.Name)
		validateTeamName(v, "name", team.Name)
	}
	if input.ShortName != nil {
		team.ShortName = trimOptional(input.ShortName)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	moving := false
	if input.DivisionID != nil {
		var target *int
		if *input.DivisionID > 0 {
			target = models.IntPtr(*input.DivisionID)
		}
		moving = !sameDivision(team.DivisionID, target)
		if moving {
			if err := s.checkDivision(ctx, tournamentID, target); err != nil {
				return nil, err
			}
		}
		team.DivisionID = target
	}

	if moving {
		err = s.moveTeam(ctx, team)
	} else {
		err = handleRepositoryError(s.store.Teams.Update(ctx, team), "update team")
	}
	if err != nil {
		return nil, err
	}

	populateTeamLogoURL(team, s.uploader)
	s.announce(ctx, events.TeamUpdate, events.ActionUpdated, team)
	return team, nil
}

// moveTeam changes a team's division while holding the lock of the division
// it leaves, so a concurrent schedule generation cannot pick it up halfway.
func (s *teamService) moveTeam(ctx context.Context, team *models.Team) error {
	current, err := s.store.Teams.GetByID(ctx, team.ID)
	if err != nil {
		return handleRepositoryError(err, "get team")
	}
	if current.DivisionID != nil {
		unlock, err := s.locker.Lock(ctx, *current.DivisionID)
		if err != nil {
			return err
		}
		defer unlock()
	}

	scheduled, err := s.store.Matches.CountByTeam(ctx, team.ID)
	if err != nil {
		return handleRepositoryError(err, "count team matches")
	}
	if scheduled > 0 {
		return ErrTeamScheduled
	}
	return handleRepositoryError(s.store.Teams.Update(ctx, team), "update team")
}

func (s *teamService) DeleteTeam(ctx context.Context, organizerID, tournamentID, teamID int) error {
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return err
	}
	team, err := s.scoped(ctx, tournamentID, teamID)
	if err != nil {
		return err
	}
	if err := s.store.Teams.Delete(ctx, teamID); err != nil {
		return handleRepositoryError(err, "delete team")
	}

	if team.LogoKey != nil && s.uploader != nil {
		s.removeLogo(ctx, *team.LogoKey)
	}
	s.announce(ctx, events.TeamUpdate, events.ActionDeleted, team)
	return nil
}

func (s *teamService) UploadTeamLogo(ctx context.Context, organizerID, tournamentID, teamID int, contentType string, file io.Reader) (*models.Team, error) {
	if s.uploader == nil {
		return nil, ErrLogoStorageDisabled
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	team, err := s.scoped(ctx, tournamentID, teamID)
	if err != nil {
		return nil, err
	}

	key, err := storage.TeamLogoKey(tournamentID, teamID, contentType, nowUTC())
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedContentType) {
			return nil, ErrInvalidLogoType
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxLogoSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read logo: %w", err)
	}
	if len(data) > storage.MaxLogoSize {
		return nil, ErrLogoTooLarge
	}

	if _, err := s.uploader.Upload(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to upload logo for team %d: %w", teamID, err)
	}
	if err := s.store.Teams.UpdateLogoKey(ctx, teamID, &key); err != nil {
		// Не оставляем осиротевший файл в хранилище.
		s.removeLogo(ctx, key)
		return nil, handleRepositoryError(err, "update team logo")
	}

	if team.LogoKey != nil && *team.LogoKey != key {
		s.removeLogo(ctx, *team.LogoKey)
	}
	team.LogoKey = &key
	populateTeamLogoURL(team, s.uploader)

	s.announce(ctx, events.TeamUpdate, events.ActionUpdated, team)
	return team, nil
}

func (s *teamService) removeLogo(ctx context.Context, key string) {
	if err := s.uploader.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete team logo", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *teamService) announce(ctx context.Context, typ events.Type, action events.Action, t *models.Team) {
	publish(ctx, s.publisher, events.Event{
		Type:         typ,
		Action:       action,
		TournamentID: t.TournamentID,
		DivisionID:   t.DivisionID,
		EntityID:     t.ID,
		Payload:      t,
	})
}

func sameDivision(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
