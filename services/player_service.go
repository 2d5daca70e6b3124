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

const defaultTopScorersLimit = 10

type PlayerService interface {
	CreatePlayer(ctx context.Context, organizerID, tournamentID, teamID int, input PlayerInput) (*models.Player, error)
	BulkCreatePlayers(ctx context.Context, organizerID, tournamentID, teamID int, inputs []PlayerInput) ([]*models.Player, error)
	ListPlayers(ctx context.Context, tournamentID, teamID int) ([]*models.Player, error)
	UpdatePlayer(ctx context.Context, organizerID, tournamentID, playerID int, input PlayerInput) (*models.Player, error)
	DeletePlayer(ctx context.Context, organizerID, tournamentID, playerID int) error
	// AddStats adds delta to the player's running totals.
	AddStats(ctx context.Context, organizerID, tournamentID, playerID int, delta models.PlayerStats) (*models.Player, error)
	TopScorers(ctx context.Context, tournamentID, limit int) ([]models.TopScorer, error)
}

type PlayerInput struct {
	Name         string  `json:"name"`
	JerseyNumber *int    `json:"jerseyNumber"`
	Position     *string `json:"position"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
}

type playerService struct {
	store     *repositories.Store
	publisher events.Publisher
	logger    *slog.Logger
}

func NewPlayerService(store *repositories.Store, publisher events.Publisher, logger *slog.Logger) PlayerService {
	return &playerService{store: store, publisher: publisher, logger: logger}
}

func (in PlayerInput) toModel(v validator, prefix string, teamID int) *models.Player {
	p := &models.Player{
		TeamID:       teamID,
		Name:         strings.TrimSpace(in.Name),
		JerseyNumber: in.JerseyNumber,
		Position:     trimOptional(in.Position),
		Email:        trimOptional(in.Email),
		Phone:        trimOptional(in.Phone),
	}
	v.check(p.Name != "", prefix+"name", "is required")
	v.check(len(p.Name) <= 100, prefix+"name", "must be at most 100 characters")
	if p.JerseyNumber != nil {
		v.check(*p.JerseyNumber >= 0 && *p.JerseyNumber <= 999, prefix+"jerseyNumber", "must be between 0 and 999")
	}
	if p.Email != nil {
		_, err := mail.ParseAddress(*p.Email)
		v.check(err == nil, prefix+"email", "must be a valid email address")
	}
	return p
}

// teamOf loads the team and checks it is registered in the tournament.
func (s *playerService) teamOf(ctx context.Context, tournamentID, teamID int) (*models.Team, error) {
	team, err := s.store.Teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, handleRepositoryError(err, "get team")
	}
	if team.TournamentID != tournamentID {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

// scoped resolves a player through its team so a player id from another
// tournament is reported as missing.
func (s *playerService) scoped(ctx context.Context, organizerID, tournamentID, playerID int) (*models.Player, *models.Team, error) {
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, nil, err
	}
	p, err := s.store.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, nil, handleRepositoryError(err, "get player")
	}
	team, err := s.store.Teams.GetByID(ctx, p.TeamID)
	if err != nil {
		return nil, nil, handleRepositoryError(err, "get team")
	}
	if team.TournamentID != tournamentID {
		return nil, nil, ErrPlayerNotFound
	}
	return p, team, nil
}

func (s *playerService) CreatePlayer(ctx context.Context, organizerID, tournamentID, teamID int, input PlayerInput) (*models.Player, error) {
	v := validator{}
	p := input.toModel(v, "", teamID)
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	team, err := s.teamOf(ctx, tournamentID, teamID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Players.Create(ctx, p); err != nil {
		return nil, handleRepositoryError(err, "create player")
	}
	s.announce(ctx, team, p, events.ActionCreated)
	return p, nil
}

func (s *playerService) BulkCreatePlayers(ctx context.Context, organizerID, tournamentID, teamID int, inputs []PlayerInput) ([]*models.Player, error) {
	v := validator{}
	v.check(len(inputs) > 0, "players", "at least one player is required")
	players := make([]*models.Player, 0, len(inputs))
	for i, in := range inputs {
		players = append(players, in.toModel(v, fmt.Sprintf("players[%d].", i), teamID))
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := ownedTournament(ctx, s.store, organizerID, tournamentID); err != nil {
		return nil, err
	}
	team, err := s.teamOf(ctx, tournamentID, teamID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Players.CreateBatch(ctx, players); err != nil {
		return nil, handleRepositoryError(err, "create players")
	}
	s.logger.InfoContext(ctx, "Roster imported", slog.Int("team_id", teamID), slog.Int("count", len(players)))
	for _, p := range players {
		s.announce(ctx, team, p, events.ActionCreated)
	}
	return players, nil
}

func (s *playerService) ListPlayers(ctx context.Context, tournamentID, teamID int) ([]*models.Player, error) {
	if _, err := s.teamOf(ctx, tournamentID, teamID); err != nil {
		return nil, err
	}
	players, err := s.store.Players.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, handleRepositoryError(err, "list players")
	}
	return players, nil
}

func (s *playerService) UpdatePlayer(ctx context.Context, organizerID, tournamentID, playerID int, input PlayerInput) (*models.Player, error) {
	v := validator{}
	next := input.toModel(v, "", 0)
	if err := v.err(); err != nil {
		return nil, err
	}
	p, team, err := s.scoped(ctx, organizerID, tournamentID, playerID)
	if err != nil {
		return nil, err
	}

	p.Name = next.Name
	p.JerseyNumber = next.JerseyNumber
	p.Position = next.Position
	p.Email = next.Email
	p.Phone = next.Phone
	if err := s.store.Players.Update(ctx, p); err != nil {
		return nil, handleRepositoryError(err, "update player")
	}
	s.announce(ctx, team, p, events.ActionUpdated)
	return p, nil
}

func (s *playerService) DeletePlayer(ctx context.Context, organizerID, tournamentID, playerID int) error {
	p, team, err := s.scoped(ctx, organizerID, tournamentID, playerID)
	if err != nil {
		return err
	}
	if err := s.store.Players.Delete(ctx, playerID); err != nil {
		return handleRepositoryError(err, "delete player")
	}
	s.announce(ctx, team, p, events.ActionDeleted)
	return nil
}

func (s *playerService) AddStats(ctx context.Context, organizerID, tournamentID, playerID int, delta models.PlayerStats) (*models.Player, error) {
	p, team, err := s.scoped(ctx, organizerID, tournamentID, playerID)
	if err != nil {
		return nil, err
	}
	if delta == (models.PlayerStats{}) {
		return p, nil
	}

	totals, err := s.store.Players.AddStats(ctx, playerID, delta)
	if err != nil {
		return nil, handleRepositoryError(err, "add player stats")
	}
	p.PlayerStats = totals

	s.logger.InfoContext(ctx, "Player stats updated",
		slog.Int("player_id", playerID),
		slog.Int("goals", totals.Goals),
		slog.Int("assists", totals.Assists),
	)
	s.announce(ctx, team, p, events.ActionUpdated)
	return p, nil
}

func (s *playerService) TopScorers(ctx context.Context, tournamentID, limit int) ([]models.TopScorer, error) {
	if _, err := s.store.Tournaments.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	if limit <= 0 || limit > 100 {
		limit = defaultTopScorersLimit
	}
	scorers, err := s.store.Players.TopScorers(ctx, tournamentID, limit)
	if err != nil {
		return nil, handleRepositoryError(err, "list top scorers")
	}
	return scorers, nil
}

func (s *playerService) announce(ctx context.Context, team *models.Team, p *models.Player, action events.Action) {
	publish(ctx, s.publisher, events.Event{
		Type:         events.PlayerUpdate,
		Action:       action,
		TournamentID: team.TournamentID,
		DivisionID:   team.DivisionID,
		EntityID:     p.ID,
		Payload:      p,
	})
}
