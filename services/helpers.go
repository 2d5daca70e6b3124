package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
	"github.com/Mabdi59/tournapro/storage"
)

// --- Общие хелперы ---

var repositoryErrors = []struct {
	repo    error
	service error
}{
	{repositories.ErrTournamentNotFound, ErrTournamentNotFound},
	{repositories.ErrDivisionNotFound, ErrDivisionNotFound},
	{repositories.ErrDivisionNameConflict, ErrDivisionNameConflict},
	{repositories.ErrDivisionInvalidTournament, ErrTournamentNotFound},
	{repositories.ErrTeamNotFound, ErrTeamNotFound},
	{repositories.ErrTeamNameConflict, ErrTeamNameConflict},
	{repositories.ErrTeamInvalidDivision, ErrDivisionNotFound},
	{repositories.ErrTeamInUse, ErrTeamScheduled},
	{repositories.ErrMatchNotFound, ErrMatchNotFound},
	{repositories.ErrPlayerNotFound, ErrPlayerNotFound},
	{repositories.ErrPlayerInvalidTeam, ErrTeamNotFound},
	{repositories.ErrPlayerStatsNegative, ErrNegativeStats},
	{repositories.ErrRefereeNotFound, ErrRefereeNotFound},
	{repositories.ErrRefereeInvalidTournament, ErrTournamentNotFound},
}

// handleRepositoryError translates repository sentinels into service ones and
// wraps anything else with the operation name.
func handleRepositoryError(err error, op string) error {
	if err == nil {
		return nil
	}
	for _, e := range repositoryErrors {
		if errors.Is(err, e.repo) {
			return e.service
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireOrganizer(t *models.Tournament, userID int) error {
	if t.OrganizerID != userID {
		return ErrForbiddenOperation
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func populateTeamLogoURL(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*team.LogoKey)
		if url != "" {
			team.LogoURL = &url
		}
	}
}

func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	// The request may already be finishing; subscribers must not see a cancelled context.
	p.Publish(context.WithoutCancel(ctx), e)
}

// announceTeams tells live views that team records moved.
func announceTeams(ctx context.Context, p events.Publisher, teams []*models.Team) {
	for _, t := range teams {
		publish(ctx, p, events.Event{
			Type:         events.TeamUpdate,
			Action:       events.ActionUpdated,
			TournamentID: t.TournamentID,
			DivisionID:   t.DivisionID,
			EntityID:     t.ID,
			Payload:      t,
		})
	}
}
