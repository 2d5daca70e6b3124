package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
)

type TournamentService interface {
	CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateTournament(ctx context.Context, organizerID, id int, input UpdateTournamentInput) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, organizerID, id int, status models.TournamentStatus) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, organizerID, id int) error
}

type CreateTournamentInput struct {
	Name        string                    `json:"name"`
	Description *string                   `json:"description"`
	Location    *string                   `json:"location"`
	Format      models.TournamentFormat   `json:"format"`
	StartDate   time.Time                 `json:"startDate"`
	EndDate     *time.Time                `json:"endDate"`
	Settings    models.TournamentSettings `json:"settings"`
}

// UpdateTournamentInput: nil fields are left unchanged.
type UpdateTournamentInput struct {
	Name        *string                    `json:"name"`
	Description *string                    `json:"description"`
	Location    *string                    `json:"location"`
	Format      *models.TournamentFormat   `json:"format"`
	StartDate   *time.Time                 `json:"startDate"`
	EndDate     *time.Time                 `json:"endDate"`
	Settings    *models.TournamentSettings `json:"settings"`
}

type tournamentService struct {
	store     *repositories.Store
	publisher events.Publisher
	logger    *slog.Logger
}

func NewTournamentService(store *repositories.Store, publisher events.Publisher, logger *slog.Logger) TournamentService {
	return &tournamentService{store: store, publisher: publisher, logger: logger}
}

func validateSettings(v validator, s models.TournamentSettings) {
	if sc := s.Scoring; sc != nil {
		v.check(sc.Win >= sc.Draw && sc.Draw >= sc.Loss, "settings.scoring", "win >= draw >= loss is required")
	}
	if f := s.Format; f != nil {
		v.check(f.Legs >= 0 && f.Legs <= 2, "settings.format.legs", "must be 1 or 2")
		v.check(f.GroupCount >= 0, "settings.format.groupCount", "must not be negative")
		v.check(f.QualifiersPerGroup >= 0, "settings.format.qualifiersPerGroup", "must not be negative")
	}
}

func validateDates(v validator, start time.Time, end *time.Time) {
	v.check(!start.IsZero(), "startDate", "is required")
	if end != nil && !start.IsZero() {
		v.check(!end.Before(start), "endDate", ErrTournamentInvalidDateRange.Error())
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)

	v := validator{}
	v.check(name != "", "name", "is required")
	v.check(len(name) <= 200, "name", "must be at most 200 characters")
	v.check(input.Format.Valid(), "format", "must be one of ROUND_ROBIN, SINGLE_ELIMINATION, DOUBLE_ELIMINATION, GROUP_KNOCKOUT")
	validateDates(v, input.StartDate, input.EndDate)
	validateSettings(v, input.Settings)
	if err := v.err(); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:        name,
		Description: trimOptional(input.Description),
		Location:    trimOptional(input.Location),
		Format:      input.Format,
		Status:      models.TournamentUpcoming,
		StartDate:   input.StartDate.UTC(),
		EndDate:     input.EndDate,
		OrganizerID: organizerID,
		Settings:    input.Settings,
	}
	if err := s.store.Tournaments.Create(ctx, t); err != nil {
		return nil, handleRepositoryError(err, "create tournament")
	}

	s.logger.InfoContext(ctx, "Tournament created", slog.Int("tournament_id", t.ID), slog.Int("organizer_id", organizerID))
	s.announce(ctx, t, events.ActionCreated)
	return t, nil
}

// GetTournament returns the tournament with its divisions.
func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	var (
		t         *models.Tournament
		divisions []models.Division
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.store.Tournaments.GetByID(gCtx, id)
		return handleRepositoryError(err, "get tournament")
	})
	g.Go(func() error {
		var err error
		divisions, err = s.store.Divisions.ListByTournament(gCtx, id)
		return handleRepositoryError(err, "list divisions")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	t.Divisions = divisions
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	list, err := s.store.Tournaments.List(ctx, filter)
	if err != nil {
		return nil, handleRepositoryError(err, "list tournaments")
	}
	return list, nil
}

func (s *tournamentService) loadOwned(ctx context.Context, organizerID, id int) (*models.Tournament, error) {
	t, err := s.store.Tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	if err := requireOrganizer(t, organizerID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) UpdateTournament(ctx context.Context, organizerID, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	t, err := s.loadOwned(ctx, organizerID, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, ErrTournamentNotEditable
	}

	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		t.Description = trimOptional(input.Description)
	}
	if input.Location != nil {
		t.Location = trimOptional(input.Location)
	}
	if input.Format != nil {
		t.Format = *input.Format
	}
	if input.StartDate != nil {
		t.StartDate = input.StartDate.UTC()
	}
	if input.EndDate != nil {
		t.EndDate = input.EndDate
	}
	if input.Settings != nil {
		t.Settings = *input.Settings
	}

	v := validator{}
	v.check(t.Name != "", "name", "is required")
	v.check(t.Format.Valid(), "format", "is not a supported format")
	validateDates(v, t.StartDate, t.EndDate)
	validateSettings(v, t.Settings)
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := s.store.Tournaments.Update(ctx, t); err != nil {
		return nil, handleRepositoryError(err, "update tournament")
	}
	s.announce(ctx, t, events.ActionUpdated)
	return t, nil
}

var allowedTransitions = map[models.TournamentStatus][]models.TournamentStatus{
	models.TournamentUpcoming:   {models.TournamentInProgress, models.TournamentCancelled},
	models.TournamentInProgress: {models.TournamentCompleted, models.TournamentCancelled},
	models.TournamentCompleted:  {},
	models.TournamentCancelled:  {},
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

func (s *tournamentService) UpdateStatus(ctx context.Context, organizerID, id int, status models.TournamentStatus) (*models.Tournament, error) {
	if _, known := allowedTransitions[status]; !known {
		return nil, ErrTournamentInvalidStatus
	}
	t, err := s.loadOwned(ctx, organizerID, id)
	if err != nil {
		return nil, err
	}
	if !isValidStatusTransition(t.Status, status) {
		return nil, ErrTournamentInvalidStatusTransition
	}
	if t.Status == status {
		return t, nil
	}

	if err := s.store.Tournaments.UpdateStatus(ctx, id, status); err != nil {
		return nil, handleRepositoryError(err, "update tournament status")
	}
	t.Status = status

	s.logger.InfoContext(ctx, "Tournament status changed", slog.Int("tournament_id", id), slog.String("status", string(status)))
	s.announce(ctx, t, events.ActionUpdated)
	return t, nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, organizerID, id int) error {
	t, err := s.loadOwned(ctx, organizerID, id)
	if err != nil {
		return err
	}
	if err := s.store.Tournaments.Delete(ctx, id); err != nil {
		return handleRepositoryError(err, "delete tournament")
	}
	s.announce(ctx, t, events.ActionDeleted)
	return nil
}

func (s *tournamentService) announce(ctx context.Context, t *models.Tournament, action events.Action) {
	publish(ctx, s.publisher, events.Event{
		Type:         events.TournamentUpdate,
		Action:       action,
		TournamentID: t.ID,
		EntityID:     t.ID,
		Payload:      t,
	})
}
