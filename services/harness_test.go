package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Mabdi59/tournapro/config"
	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/metrics"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/repositories"
	"github.com/Mabdi59/tournapro/storage"
)

const organizerID = 7

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store     *repositories.Store
	published *recordingPublisher
	uploader  *storage.MemoryUploader
	faker     *gofakeit.Faker

	tournaments TournamentService
	divisions   DivisionService
	teams       TeamService
	players     PlayerService
	referees    RefereeService
	schedules   ScheduleService
	matches     MatchService
	standings   StandingsService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	uploader, err := storage.NewMemoryUploader("https://cdn.example.com")
	require.NoError(t, err)
	return buildHarness(repositories.NewMemoryStore(), uploader)
}

func buildHarness(store *repositories.Store, uploader *storage.MemoryUploader) *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.Discard()
	tracer := noop.NewTracerProvider().Tracer("test")
	locker := NewMemoryLocker(2*time.Second, m)
	defaults := config.Defaults{
		Scoring: models.DefaultScoringRules(),
		Format:  models.DefaultFormatSettings(),
	}
	pub := &recordingPublisher{}

	var fu storage.FileUploader
	if uploader != nil {
		fu = uploader
	}

	return &harness{
		store:       store,
		published:   pub,
		uploader:    uploader,
		faker:       gofakeit.New(99),
		tournaments: NewTournamentService(store, pub, logger),
		divisions:   NewDivisionService(store, locker, fu, pub, logger),
		teams:       NewTeamService(store, locker, fu, pub, logger),
		players:     NewPlayerService(store, pub, logger),
		referees:    NewRefereeService(store, pub, logger),
		schedules:   NewScheduleService(store, locker, pub, defaults, logger, m, tracer),
		matches:     NewMatchService(store, locker, pub, defaults, logger, m, tracer),
		standings:   NewStandingsService(store, fu, defaults),
	}
}

// setup creates a tournament with one division holding n teams.
func (h *harness) setup(t *testing.T, format models.TournamentFormat, settings models.TournamentSettings, n int) (*models.Tournament, *models.Division, []*models.Team) {
	t.Helper()
	ctx := context.Background()

	tour, err := h.tournaments.CreateTournament(ctx, organizerID, CreateTournamentInput{
		Name:      h.faker.Company() + " Open",
		Format:    format,
		StartDate: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		Settings:  settings,
	})
	require.NoError(t, err)

	div, err := h.divisions.CreateDivision(ctx, organizerID, tour.ID, DivisionInput{Name: "Open"})
	require.NoError(t, err)

	inputs := make([]CreateTeamInput, 0, n)
	for i := 1; i <= n; i++ {
		inputs = append(inputs, CreateTeamInput{
			Name:       fmt.Sprintf("%s %d", h.faker.Animal(), i),
			DivisionID: models.IntPtr(div.ID),
		})
	}
	var teams []*models.Team
	if n > 0 {
		teams, err = h.teams.BulkCreateTeams(ctx, organizerID, tour.ID, inputs)
		require.NoError(t, err)
	}
	return tour, div, teams
}

func (h *harness) divisionMatches(t *testing.T, tournamentID, divisionID int) []*models.Match {
	t.Helper()
	matches, err := h.matches.ListDivisionMatches(context.Background(), tournamentID, divisionID)
	require.NoError(t, err)
	return matches
}

// nextPlayable returns the lowest-sequence match that can take a result.
func nextPlayable(matches []*models.Match) *models.Match {
	var best *models.Match
	for _, m := range matches {
		if !m.HasTeams() || m.Status == models.MatchCompleted || m.Status == models.MatchCancelled {
			continue
		}
		if best == nil || m.Sequence < best.Sequence {
			best = m
		}
	}
	return best
}

// playOut submits results until nothing is playable. pick returns the
// scores for a match.
func (h *harness) playOut(t *testing.T, tournamentID, divisionID int, pick func(*models.Match) (int, int)) {
	t.Helper()
	for guard := 0; guard < 200; guard++ {
		next := nextPlayable(h.divisionMatches(t, tournamentID, divisionID))
		if next == nil {
			return
		}
		s1, s2 := pick(next)
		_, err := h.matches.SubmitResult(context.Background(), organizerID, tournamentID, next.ID, SubmitResultInput{
			Team1Score: models.IntPtr(s1),
			Team2Score: models.IntPtr(s2),
		})
		require.NoError(t, err)
	}
	t.Fatal("division did not finish")
}

func lowerIDWins(m *models.Match) (int, int) {
	if *m.Team1ID < *m.Team2ID {
		return 2, 1
	}
	return 1, 2
}

func score(a, b int) SubmitResultInput {
	return SubmitResultInput{Team1Score: models.IntPtr(a), Team2Score: models.IntPtr(b)}
}
