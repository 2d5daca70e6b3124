package services

import (
	"context"
	"log/slog"
	"strings"
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
	"github.com/Mabdi59/tournapro/standings"
)

type MatchService interface {
	GetMatch(ctx context.Context, tournamentID, matchID int) (*models.Match, error)
	ListDivisionMatches(ctx context.Context, tournamentID, divisionID int) ([]*models.Match, error)
	SubmitResult(ctx context.Context, organizerID, tournamentID, matchID int, input SubmitResultInput) (*models.Match, error)
	ClearResult(ctx context.Context, organizerID, tournamentID, matchID int) (*models.Match, error)
	ScheduleMatch(ctx context.Context, organizerID, tournamentID, matchID int, input ScheduleMatchInput) (*models.Match, error)
	StartMatch(ctx context.Context, organizerID, tournamentID, matchID int) (*models.Match, error)
}

type SubmitResultInput struct {
	Team1Score *int `json:"team1Score"`
	Team2Score *int `json:"team2Score"`
}

// ScheduleMatchInput uses pointers so absent fields are left as they are. An
// empty string clears the field.
type ScheduleMatchInput struct {
	ScheduledTime *string `json:"scheduledTime"`
	Venue         *string `json:"venue"`
}

type matchService struct {
	store     *repositories.Store
	locker    DivisionLocker
	publisher events.Publisher
	defaults  config.Defaults
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewMatchService(
	store *repositories.Store,
	locker DivisionLocker,
	publisher events.Publisher,
	defaults config.Defaults,
	logger *slog.Logger,
	m *metrics.Metrics,
	tracer trace.Tracer,
) MatchService {
	return &matchService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
	}
}

func (s *matchService) getScoped(ctx context.Context, tournamentID, matchID int) (*models.Match, error) {
	m, err := s.store.Matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "get match")
	}
	if m.TournamentID != tournamentID {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

func (s *matchService) GetMatch(ctx context.Context, tournamentID, matchID int) (*models.Match, error) {
	m, err := s.getScoped(ctx, tournamentID, matchID)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.Teams.ListByDivision(ctx, m.DivisionID)
	if err != nil {
		return nil, handleRepositoryError(err, "list division teams")
	}
	attachTeams([]*models.Match{m}, indexTeams(teams))
	return m, nil
}

func (s *matchService) ListDivisionMatches(ctx context.Context, tournamentID, divisionID int) ([]*models.Match, error) {
	state, err := loadDivisionState(ctx, s.store, tournamentID, divisionID)
	if err != nil {
		return nil, err
	}
	attachTeams(state.matches, state.teamIndex())
	return state.matches, nil
}

func (s *matchService) SubmitResult(ctx context.Context, organizerID, tournamentID, matchID int, input SubmitResultInput) (*models.Match, error) {
	ctx, span := s.tracer.Start(ctx, "MatchService.SubmitResult", trace.WithAttributes(
		attribute.Int("tournament.id", tournamentID),
		attribute.Int("match.id", matchID),
	))
	defer span.End()

	v := validator{}
	v.check(input.Team1Score != nil, "team1Score", "is required")
	v.check(input.Team2Score != nil, "team2Score", "is required")
	if err := v.err(); err != nil {
		return nil, err
	}
	s1, s2 := *input.Team1Score, *input.Team2Score
	if s1 < 0 || s2 < 0 {
		return nil, ErrInvalidScore
	}

	var stage models.Stage
	result, changed, teams, err := s.mutate(ctx, organizerID, tournamentID, matchID, func(target *models.Match) error {
		stage = target.Stage
		if target.Status == models.MatchCancelled {
			return ErrMatchNotPlayable
		}
		if !target.HasTeams() {
			return ErrTeamsNotSet
		}
		if s1 == s2 && !target.Stage.AllowsDraw() {
			return ErrDrawNotAllowed
		}
		completedAt := nowUTC()
		target.Team1Score = models.IntPtr(s1)
		target.Team2Score = models.IntPtr(s2)
		target.WinnerID = brackets.DecideWinner(target)
		target.Status = models.MatchCompleted
		target.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ResultsSubmitted.WithLabelValues(string(stage), "rejected").Inc()
		return nil, err
	}
	s.metrics.ResultsSubmitted.WithLabelValues(string(stage), "ok").Inc()

	s.logger.InfoContext(ctx, "Match result submitted",
		slog.Int("match_id", matchID),
		slog.Int("division_id", result.DivisionID),
		slog.Int("team1_score", s1),
		slog.Int("team2_score", s2),
		slog.Int("matches_changed", len(changed)),
		slog.Int("teams_changed", len(teams)),
	)
	s.announce(ctx, changed)
	announceTeams(ctx, s.publisher, teams)
	return result, nil
}

func (s *matchService) ClearResult(ctx context.Context, organizerID, tournamentID, matchID int) (*models.Match, error) {
	result, changed, teams, err := s.mutate(ctx, organizerID, tournamentID, matchID, func(target *models.Match) error {
		if target.Status == models.MatchCancelled {
			return ErrMatchNotPlayable
		}
		target.ClearResult()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, changed)
	announceTeams(ctx, s.publisher, teams)
	return result, nil
}

// mutate applies change to a working copy of the target match, replays the
// division's bracket, recomputes standings and stores every row that moved.
// It holds the division lock for the whole read-compute-write cycle and
// returns the matches and teams it stored.
func (s *matchService) mutate(ctx context.Context, organizerID, tournamentID, matchID int, change func(*models.Match) error) (*models.Match, []*models.Match, []*models.Team, error) {
	m, err := s.getScoped(ctx, tournamentID, matchID)
	if err != nil {
		return nil, nil, nil, err
	}

	unlock, err := s.locker.Lock(ctx, m.DivisionID)
	if err != nil {
		return nil, nil, nil, err
	}
	defer unlock()

	state, err := loadDivisionState(ctx, s.store, tournamentID, m.DivisionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := requireOrganizer(state.tournament, organizerID); err != nil {
		return nil, nil, nil, err
	}

	teams, matches := state.working()
	var target *models.Match
	for _, wm := range matches {
		if wm.ID == matchID {
			target = wm
			break
		}
	}
	if target == nil {
		return nil, nil, nil, ErrMatchNotFound
	}
	if err := change(target); err != nil {
		return nil, nil, nil, err
	}

	rules := state.tournament.ResolveScoring(s.defaults.Scoring)
	teamIdx := indexTeams(teams)
	changed := brackets.Replay(matches, teamIdx, rules)
	changed = includeMatch(changed, target)
	standings.Compute(teams, matches, rules)

	moved := changedTeams(state.teams, teams)
	if err := s.store.Schedules.SaveDivisionState(ctx, changed, moved); err != nil {
		return nil, nil, nil, handleRepositoryError(err, "save division state")
	}

	attachTeams(changed, teamIdx)
	return target, changed, moved, nil
}

func (s *matchService) ScheduleMatch(ctx context.Context, organizerID, tournamentID, matchID int, input ScheduleMatchInput) (*models.Match, error) {
	var when *time.Time
	if input.ScheduledTime != nil {
		if raw := strings.TrimSpace(*input.ScheduledTime); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, ErrInvalidScheduleTime
			}
			parsed = parsed.UTC()
			when = &parsed
		}
	}

	m, err := s.updateMetadata(ctx, organizerID, tournamentID, matchID, func(m *models.Match) error {
		if input.ScheduledTime != nil {
			m.ScheduledTime = when
		}
		if input.Venue != nil {
			m.Venue = trimOptional(input.Venue)
		}
		switch {
		case m.Status == models.MatchPending && m.ScheduledTime != nil:
			m.Status = models.MatchScheduled
		case m.Status == models.MatchScheduled && m.ScheduledTime == nil:
			m.Status = models.MatchPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, []*models.Match{m})
	return m, nil
}

func (s *matchService) StartMatch(ctx context.Context, organizerID, tournamentID, matchID int) (*models.Match, error) {
	m, err := s.updateMetadata(ctx, organizerID, tournamentID, matchID, func(m *models.Match) error {
		switch m.Status {
		case models.MatchCompleted, models.MatchCancelled:
			return ErrMatchNotPlayable
		}
		if !m.HasTeams() {
			return ErrTeamsNotSet
		}
		m.Status = models.MatchInProgress
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, []*models.Match{m})
	return m, nil
}

// updateMetadata changes fields that never affect the bracket.
func (s *matchService) updateMetadata(ctx context.Context, organizerID, tournamentID, matchID int, change func(*models.Match) error) (*models.Match, error) {
	m, err := s.getScoped(ctx, tournamentID, matchID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, m.DivisionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.store.Tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	if err := requireOrganizer(t, organizerID); err != nil {
		return nil, err
	}

	// Re-read under the lock; a result may have landed in between.
	m, err = s.getScoped(ctx, tournamentID, matchID)
	if err != nil {
		return nil, err
	}
	if err := change(m); err != nil {
		return nil, err
	}
	if err := s.store.Matches.UpdateSchedule(ctx, m); err != nil {
		return nil, handleRepositoryError(err, "update match schedule")
	}
	return m, nil
}

func (s *matchService) announce(ctx context.Context, matches []*models.Match) {
	for _, m := range matches {
		publish(ctx, s.publisher, events.Event{
			Type:         events.MatchUpdate,
			Action:       events.ActionUpdated,
			TournamentID: m.TournamentID,
			DivisionID:   models.IntPtr(m.DivisionID),
			EntityID:     m.ID,
			Payload:      m,
		})
	}
}

func indexTeams(teams []*models.Team) map[int]*models.Team {
	idx := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		idx[t.ID] = t
	}
	return idx
}

// includeMatch puts target first in the changed set.
func includeMatch(changed []*models.Match, target *models.Match) []*models.Match {
	out := make([]*models.Match, 0, len(changed)+1)
	out = append(out, target)
	for _, m := range changed {
		if m != target {
			out = append(out, m)
		}
	}
	return out
}
