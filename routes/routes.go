package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Mabdi59/tournapro/docs"
	"github.com/Mabdi59/tournapro/handlers"
	"github.com/Mabdi59/tournapro/middleware"
)

type Handlers struct {
	Tournament *handlers.TournamentHandler
	Division   *handlers.DivisionHandler
	Team       *handlers.TeamHandler
	Player     *handlers.PlayerHandler
	Referee    *handlers.RefereeHandler
	Match      *handlers.MatchHandler
	Standings  *handlers.StandingsHandler
	WebSocket  *handlers.WebSocketHandler
	Health     *handlers.HealthHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// RateLimiter throttles organizer writes; nil disables it.
	RateLimiter *middleware.IPRateLimiter
	Metrics     http.Handler
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", h.Health.Healthz)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}
	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.SwaggerJSON)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// WebSocket: общий канал и комнаты турниров
	router.Get("/ws", h.WebSocket.ServeLobby)
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeTournament)

	organizer := func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecret))
		if opts.RateLimiter != nil {
			r.Use(middleware.RateLimit(opts.RateLimiter))
		}
	}

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты для просмотра
		r.Get("/", h.Tournament.ListHandler)

		r.Group(func(r chi.Router) {
			organizer(r)
			r.Post("/", h.Tournament.CreateHandler)
		})

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournament.GetByIDHandler)
			r.Get("/divisions", h.Division.ListHandler)
			r.Get("/divisions/{divisionID}", h.Division.GetHandler)
			r.Get("/divisions/{divisionID}/matches", h.Match.ListDivisionMatchesHandler)
			r.Get("/divisions/{divisionID}/standings", h.Standings.GetHandler)
			r.Get("/divisions/{divisionID}/standings.xlsx", h.Standings.ExportHandler)
			r.Get("/divisions/{divisionID}/bracket", h.Standings.BracketHandler)
			r.Get("/matches/{matchID}", h.Match.GetHandler)
			r.Get("/teams", h.Team.ListTeams)
			r.Get("/teams/{teamID}", h.Team.GetTeamByID)
			r.Get("/teams/{teamID}/players", h.Player.ListPlayers)
			r.Get("/top-scorers", h.Player.TopScorers)

			// Только организатор турнира
			r.Group(func(r chi.Router) {
				organizer(r)

				r.Put("/", h.Tournament.UpdateHandler)
				r.Patch("/status", h.Tournament.UpdateStatusHandler)
				r.Delete("/", h.Tournament.DeleteHandler)

				r.Post("/divisions", h.Division.CreateHandler)
				r.Put("/divisions/{divisionID}", h.Division.UpdateHandler)
				r.Delete("/divisions/{divisionID}", h.Division.DeleteHandler)
				r.Post("/divisions/{divisionID}/generate-schedule", h.Division.GenerateScheduleHandler)

				r.Put("/matches/{matchID}/result", h.Match.SubmitResultHandler)
				r.Delete("/matches/{matchID}/result", h.Match.ClearResultHandler)
				r.Put("/matches/{matchID}/schedule", h.Match.ScheduleHandler)
				r.Put("/matches/{matchID}/start", h.Match.StartHandler)

				r.Post("/teams", h.Team.CreateTeam)
				r.Post("/teams/bulk", h.Team.BulkCreateTeams)
				r.Patch("/teams/{teamID}", h.Team.UpdateTeamDetails)
				r.Delete("/teams/{teamID}", h.Team.DeleteTeam)
				r.Post("/teams/{teamID}/logo", h.Team.UploadTeamLogo)

				r.Post("/teams/{teamID}/players", h.Player.CreatePlayer)
				r.Post("/teams/{teamID}/players/bulk", h.Player.BulkCreatePlayers)
				r.Put("/players/{playerID}", h.Player.UpdatePlayer)
				r.Delete("/players/{playerID}", h.Player.DeletePlayer)
				r.Patch("/players/{playerID}/stats", h.Player.AddStats)

				r.Get("/referees", h.Referee.ListReferees)
				r.Post("/referees", h.Referee.CreateReferee)
				r.Post("/referees/bulk", h.Referee.BulkCreateReferees)
				r.Put("/referees/{refereeID}", h.Referee.UpdateReferee)
				r.Patch("/referees/{refereeID}", h.Referee.UpdateReferee)
				r.Delete("/referees/{refereeID}", h.Referee.DeleteReferee)
			})
		})
	})
}
