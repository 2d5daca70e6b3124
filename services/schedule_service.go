package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mabdi59/tournapro/brackets"
	"github.com/Mabdi59/tournapro/config"
	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/metrics"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
)

type ScheduleService interface {
	// GenerateSchedule builds a fresh schedule for the division and replaces
	// the previous one. On failure the previous schedule is left untouched.
	GenerateSchedule(ctx context.Context, organizerID, tournamentID, divisionID int) ([]*models.Match, error)
}

type scheduleService struct {
	store     *repositories.Store
	locker    DivisionLocker
	publisher events.Publisher
	defaults  config.Defaults
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewScheduleService(
	store *repositories.Store,
	locker DivisionLocker,
	publisher events.Publisher,
	defaults config.Defaults,
	logger *slog.Logger,
	m *metrics.Metrics,
	tracer trace.Tracer,
) ScheduleService {
	return &scheduleService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
	}
}

func (s *scheduleService) GenerateSchedule(ctx context.Context, organizerID, tournamentID, divisionID int) ([]*models.Match, error) {
	ctx, span := s.tracer.Start(ctx, "ScheduleService.GenerateSchedule", trace.WithAttributes(
		attribute.Int("tournament.id", tournamentID),
		attribute.Int("division.id", divisionID),
	))
	defer span.End()

	matches, reset, format, err := s.generate(ctx, organizerID, tournamentID, divisionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.SchedulesGenerated.WithLabelValues(string(format), "error").Inc()
		return nil, err
	}
	s.metrics.SchedulesGenerated.WithLabelValues(string(format), "ok").Inc()

	s.logger.InfoContext(ctx, "Schedule generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("division_id", divisionID),
		slog.String("format", string(format)),
		slog.Int("matches", len(matches)),
	)

	publish(ctx, s.publisher, events.Event{
		Type:         events.MatchUpdate,
		Action:       events.ActionGenerated,
		TournamentID: tournamentID,
		DivisionID:   models.IntPtr(divisionID),
		EntityID:     divisionID,
		Payload:      matches,
	})
	announceTeams(ctx, s.publisher, reset)
	return matches, nil
}

// generate runs under the division lock; the lock is released before the
// caller publishes. Besides the new matches it returns the teams whose
// records were cleared.
func (s *scheduleService) generate(ctx context.Context, organizerID, tournamentID, divisionID int) ([]*models.Match, []*models.Team, models.TournamentFormat, error) {
	unlock, err := s.locker.Lock(ctx, divisionID)
	if err != nil {
		return nil, nil, "", err
	}
	defer unlock()

	state, err := loadDivisionState(ctx, s.store, tournamentID, divisionID)
	if err != nil {
		return nil, nil, "", err
	}
	t := state.tournament
	if err := requireOrganizer(t, organizerID); err != nil {
		return nil, nil, t.Format, err
	}
	if t.Status.IsTerminal() {
		return nil, nil, t.Format, ErrTournamentNotEditable
	}

	generator, err := brackets.ForFormat(t.Format)
	if err != nil {
		return nil, nil, t.Format, err
	}

	start := time.Now()
	matches, err := generator.GenerateBracket(ctx, brackets.GenerateParams{
		TournamentID: tournamentID,
		DivisionID:   divisionID,
		Teams:        state.teams,
		Settings:     t.ResolveFormat(s.defaults.Format),
	})
	if err != nil {
		if errors.Is(err, brackets.ErrInsufficientTeams) {
			return nil, nil, t.Format, ErrInsufficientTeams
		}
		return nil, nil, t.Format, fmt.Errorf("failed to generate %s schedule for division %d: %w", generator.GetName(), divisionID, err)
	}

	var reset []*models.Team
	for _, team := range state.teams {
		if team.TeamRecord != (models.TeamRecord{}) {
			reset = append(reset, team)
		}
	}
	if err := s.store.Schedules.ReplaceDivisionSchedule(ctx, divisionID, matches, state.teams); err != nil {
		return nil, nil, t.Format, handleRepositoryError(err, "replace division schedule")
	}
	s.metrics.GenerationDuration.WithLabelValues(string(t.Format)).Observe(time.Since(start).Seconds())

	attachTeams(matches, state.teamIndex())
	return matches, reset, t.Format, nil
}
