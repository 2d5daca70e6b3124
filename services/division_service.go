package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
	"github.com/Mabdi59/tournapro/storage"
)

type DivisionService interface {
	CreateDivision(ctx context.Context, organizerID, tournamentID int, input DivisionInput) (*models.Division, error)
	// GetDivision returns the division with its teams and matches.
	GetDivision(ctx context.Context, tournamentID, divisionID int) (*models.Division, error)
	ListDivisions(ctx context.Context, tournamentID int) ([]models.Division, error)
	UpdateDivision(ctx context.Context, organizerID, tournamentID, divisionID int, input DivisionInput) (*models.Division, error)
	DeleteDivision(ctx context.Context, organizerID, tournamentID, divisionID int) error
}

type DivisionInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type divisionService struct {
	store     *repositories.Store
	locker    DivisionLocker
	uploader  storage.FileUploader
	publisher events.Publisher
	logger    *slog.Logger
}

func NewDivisionService(
	store *repositories.Store,
	locker DivisionLocker,
	uploader storage.FileUploader,
	publisher events.Publisher,
	logger *slog.Logger,
) DivisionService {
	return &divisionService{
		store:     store,
		locker:    locker,
		uploader:  uploader,
		publisher: publisher,
		logger:    logger,
	}
}

func (in DivisionInput) validate() (string, error) {
	name := strings.TrimSpace(in.Name)
	v := validator{}
	v.check(name != "", "name", "is required")
	v.check(len(name) <= 100, "name", "must be at most 100 characters")
	return name, v.err()
}

// ownedTournament loads the tournament and checks that userID organizes it.
func ownedTournament(ctx context.Context, store *repositories.Store, userID, tournamentID int) (*models.Tournament, error) {
	t, err := store.Tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	if err := requireOrganizer(t, userID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *divisionService) scoped(ctx context.Context, tournamentID, divisionID int) (*models.Division, error) {
	d, err := s.store.Divisions.GetByID(ctx, divisionID)
	if err != nil {
		return nil, handleRepositoryError(err, "get division")
	}
	if d.TournamentID != tournamentID {
		return nil, ErrDivisionNotFound
	}
	return d, nil
}

func (s *divisionService) CreateDivision(ctx context.Context, organizerID, tournamentID int, input DivisionInput) (*models.Division, error) {
	name, err := input.validate()
	if err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}

	d := &models.Division{
		TournamentID: tournamentID,
		Name:         name,
		Description:  trimOptional(input.Description),
	}
	if err := s.store.Divisions.Create(ctx, d); err != nil {
		return nil, handleRepositoryError(err, "create division")
	}
	s.logger.InfoContext(ctx, "Division created", slog.Int("tournament_id", tournamentID), slog.Int("division_id", d.ID))
	s.announce(ctx, d, events.ActionCreated)
	return d, nil
}

func (s *divisionService) GetDivision(ctx context.Context, tournamentID, divisionID int) (*models.Division, error) {
	state, err := loadDivisionState(ctx, s.store, tournamentID, divisionID)
	if err != nil {
		return nil, err
	}
	idx := state.teamIndex()
	for _, t := range state.teams {
		populateTeamLogoURL(t, s.uploader)
	}
	attachTeams(state.matches, idx)

	d := state.division
	d.Teams = make([]models.Team, 0, len(state.teams))
	for _, t := range state.teams {
		d.Teams = append(d.Teams, *t)
	}
	d.Matches = make([]models.Match, 0, len(state.matches))
	for _, m := range state.matches {
		d.Matches = append(d.Matches, *m)
	}
	return d, nil
}

func (s *divisionService) ListDivisions(ctx context.Context, tournamentID int) ([]models.Division, error) {
	if _, err := s.store.Tournaments.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	list, err := s.store.Divisions.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "list divisions")
	}
	return list, nil
}

func (s *divisionService) UpdateDivision(ctx context.Context, organizerID, tournamentID, divisionID int, input DivisionInput) (*models.Division, error) {
	name, err := input.validate()
	if err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	d, err := s.scoped(ctx, tournamentID, divisionID)
	if err != nil {
		return nil, err
	}

	d.Name = name
	d.Description = trimOptional(input.Description)
	if err := s.store.Divisions.Update(ctx, d); err != nil {
		return nil, handleRepositoryError(err, "update division")
	}
	s.announce(ctx, d, events.ActionUpdated)
	return d, nil
}

// DeleteDivision removes the division together with its matches. Its teams
// stay registered in the tournament without a division.
func (s *divisionService) DeleteDivision(ctx context.Context, organizerID, tournamentID, divisionID int) error {
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return err
	}
	d, err := s.scoped(ctx, tournamentID, divisionID)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, divisionID)
	if err != nil {
		return err
	}
	err = s.store.Divisions.Delete(ctx, divisionID)
	unlock()
	if err != nil {
		return handleRepositoryError(err, "delete division")
	}

	s.logger.InfoContext(ctx, "Division deleted", slog.Int("tournament_id", tournamentID), slog.Int("division_id", divisionID))
	s.announce(ctx, d, events.ActionDeleted)
	return nil
}

func (s *divisionService) announce(ctx context.Context, d *models.Division, action events.Action) {
	publish(ctx, s.publisher, events.Event{
		Type:         events.TournamentUpdate,
		Action:       action,
		TournamentID: d.TournamentID,
		DivisionID:   models.IntPtr(d.ID),
		EntityID:     d.ID,
		Payload:      d,
	})
}
