package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
)

// RefereeService manages the officials of a tournament. Every operation,
// listing included, is for the organizer only since referees carry contact
// details.
type RefereeService interface {
	CreateReferee(ctx context.Context, organizerID, tournamentID int, input RefereeInput) (*models.Referee, error)
	BulkCreateReferees(ctx context.Context, organizerID, tournamentID int, inputs []RefereeInput) ([]*models.Referee, error)
	ListReferees(ctx context.Context, organizerID, tournamentID int) ([]*models.Referee, error)
	UpdateReferee(ctx context.Context, organizerID, tournamentID, refereeID int, input RefereeInput) (*models.Referee, error)
	DeleteReferee(ctx context.Context, organizerID, tournamentID, refereeID int) error
}

type RefereeInput struct {
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Role    *string `json:"role"`
	Country *string `json:"country"`
}

type refereeService struct {
	store     *repositories.Store
	publisher events.Publisher
	logger    *slog.Logger
}

func NewRefereeService(store *repositories.Store, publisher events.Publisher, logger *slog.Logger) RefereeService {
	return &refereeService{store: store, publisher: publisher, logger: logger}
}

func (in RefereeInput) toModel(v validator, prefix string, tournamentID int) *models.Referee {
	r := &models.Referee{
		TournamentID: tournamentID,
		Name:         strings.TrimSpace(in.Name),
		Email:        trimOptional(in.Email),
		Phone:        trimOptional(in.Phone),
		Role:         trimOptional(in.Role),
		Country:      trimOptional(in.Country),
	}
	v.check(r.Name != "", prefix+"name", "is required")
	v.check(len(r.Name) <= 100, prefix+"name", "must be at most 100 characters")
	if r.Email != nil {
		_, err := mail.ParseAddress(*r.Email)
		v.check(err == nil, prefix+"email", "must be a valid email address")
	}
	return r
}

// scoped loads a referee of the tournament; one from another tournament is
// reported as missing.
func (s *refereeService) scoped(ctx context.Context, organizerID, tournamentID, refereeID int) (*models.Referee, error) {
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	r, err := s.store.Referees.GetByID(ctx, refereeID)
	if err != nil {
		return nil, handleRepositoryError(err, "get referee")
	}
	if r.TournamentID != tournamentID {
		return nil, ErrRefereeNotFound
	}
	return r, nil
}

func (s *refereeService) CreateReferee(ctx context.Context, organizerID, tournamentID int, input RefereeInput) (*models.Referee, error) {
	v := validator{}
	r := input.toModel(v, "", tournamentID)
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}

	if err := s.store.Referees.Create(ctx, r); err != nil {
		return nil, handleRepositoryError(err, "create referee")
	}
	s.announce(ctx, r, events.ActionCreated)
	return r, nil
}

func (s *refereeService) BulkCreateReferees(ctx context.Context, organizerID, tournamentID int, inputs []RefereeInput) ([]*models.Referee, error) {
	v := validator{}
	v.check(len(inputs) > 0, "referees", "at least one referee is required")
	referees := make([]*models.Referee, 0, len(inputs))
	for i, in := range inputs {
		referees = append(referees, in.toModel(v, fmt.Sprintf("referees[%d].", i), tournamentID))
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}

	if err := s.store.Referees.CreateBatch(ctx, referees); err != nil {
		return nil, handleRepositoryError(err, "create referees")
	}
	s.logger.InfoContext(ctx, "Referees imported", slog.Int("tournament_id", tournamentID), slog.Int("count", len(referees)))
	for _, r := range referees {
		s.announce(ctx, r, events.ActionCreated)
	}
	return referees, nil
}

func (s *refereeService) ListReferees(ctx context.Context, organizerID, tournamentID int) ([]*models.Referee, error) {
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	referees, err := s.store.Referees.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "list referees")
	}
	return referees, nil
}

func (s *refereeService) UpdateReferee(ctx context.Context, organizerID, tournamentID, refereeID int, input RefereeInput) (*models.Referee, error) {
	v := validator{}
	next := input.toModel(v, "", tournamentID)
	if err := v.err(); err != nil {
		return nil, err
	}
	r, err := s.scoped(ctx, organizerID, tournamentID, refereeID)
	if err != nil {
		return nil, err
	}

	r.Name, r.Email, r.Phone, r.Role, r.Country = next.Name, next.Email, next.Phone, next.Role, next.Country
	if err := s.store.Referees.Update(ctx, r); err != nil {
		return nil, handleRepositoryError(err, "update referee")
	}
	s.announce(ctx, r, events.ActionUpdated)
	return r, nil
}

func (s *refereeService) DeleteReferee(ctx context.Context, organizerID, tournamentID, refereeID int) error {
	r, err := s.scoped(ctx, organizerID, tournamentID, refereeID)
	if err != nil {
		return err
	}
	if err := s.store.Referees.Delete(ctx, refereeID); err != nil {
		return handleRepositoryError(err, "delete referee")
	}
	s.announce(ctx, r, events.ActionDeleted)
	return nil
}

// Referee changes go out as registration updates without contact details;
// the lobby is public.
func (s *refereeService) announce(ctx context.Context, r *models.Referee, action events.Action) {
	publish(ctx, s.publisher, events.Event{
		Type:         events.RegistrationUpdate,
		Action:       action,
		TournamentID: r.TournamentID,
		EntityID:     r.ID,
		Payload: models.Referee{
			ID:           r.ID,
			TournamentID: r.TournamentID,
			Name:         r.Name,
			Role:         r.Role,
			Country:      r.Country,
			CreatedAt:    r.CreatedAt,
		},
	})
}
