package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/Mabdi59/tournapro/config"
	"github.com/Mabdi59/tournapro/db"
	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/handlers"
	"github.com/Mabdi59/tournapro/metrics"
	"github.com/Mabdi59/tournapro/middleware"
	"github.com/Mabdi59/tournapro/realtime"
	"github.com/Mabdi59/tournapro/repositories"
	api "github.com/Mabdi59/tournapro/routes"
	"github.com/Mabdi59/tournapro/services"
	"github.com/Mabdi59/tournapro/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "tournapro",
		Usage: "tournament scheduling and standings service",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
				},
				Action: func(c *cli.Context) error {
					return serve(c.Context, logger, c.Bool("migrate"))
				},
			},
			{
				Name:  "migrate",
				Usage: "apply pending database migrations",
				Action: func(c *cli.Context) error {
					return migrate(c.Context, logger)
				},
			},
			{
				Name:  "token",
				Usage: "issue an organizer token for local use",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "user-id", Required: true},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					token, err := middleware.NewToken([]byte(cfg.JWTSecretKey), c.Int("user-id"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("migrations need STORE_DRIVER=%s", config.StoreDriverPostgres)
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	applied, err := db.Migrate(ctx, dbConn)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", slog.Int("count", applied))
	return nil
}

func serve(ctx context.Context, logger *slog.Logger, autoMigrate bool) error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("store", cfg.StoreDriver))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	m := metrics.New(registry)
	tracer := otel.Tracer("github.com/Mabdi59/tournapro")

	// Хранилище
	var (
		store  *repositories.Store
		dbConn *sql.DB
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		dbConn, err = db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		logger.Info("database connection established")

		if autoMigrate {
			applied, err := db.Migrate(ctx, dbConn)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", slog.Int("count", applied))
		}
		store = repositories.NewPostgresStore(dbConn)
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		store = repositories.NewMemoryStore()
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	var uploader storage.FileUploader
	if cfg.LogoStorageEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("logo storage disabled")
	}

	notifier := events.NewNotifier(logger, m)
	hub := realtime.NewHub(logger, m)
	notifier.SubscribeAll(hub.HandleEvent)

	checks := map[string]handlers.Pinger{}
	if dbConn != nil {
		checks["database"] = dbConn
	}

	// Redis: распределённая блокировка и рассылка событий между инстансами
	var locker services.DivisionLocker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

		locker = services.NewRedisLocker(rdb, cfg.LockTimeout, logger, m)
		bridge := events.NewRedisBridge(rdb, events.DefaultRedisChannel, notifier.Origin(), 0, logger, m)
		notifier.SubscribeAll(bridge.Forward)
		go bridge.Run(ctx)
		go func() {
			if err := bridge.Listen(ctx, hub.HandleEvent); err != nil {
				logger.Error("redis event listener stopped", slog.Any("error", err))
			}
		}()
		logger.Info("redis lock and event bridge enabled")
	} else {
		locker = services.NewMemoryLocker(cfg.LockTimeout, m)
	}

	go hub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация сервисов
	tournamentService := services.NewTournamentService(store, notifier, logger)
	divisionService := services.NewDivisionService(store, locker, uploader, notifier, logger)
	teamService := services.NewTeamService(store, locker, uploader, notifier, logger)
	playerService := services.NewPlayerService(store, notifier, logger)
	refereeService := services.NewRefereeService(store, notifier, logger)
	scheduleService := services.NewScheduleService(store, locker, notifier, cfg.Defaults, logger, m, tracer)
	matchService := services.NewMatchService(store, locker, notifier, cfg.Defaults, logger, m, tracer)
	standingsService := services.NewStandingsService(store, uploader, cfg.Defaults)
	logger.Info("Services initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Division:   handlers.NewDivisionHandler(divisionService, scheduleService),
		Team:       handlers.NewTeamHandler(teamService),
		Player:     handlers.NewPlayerHandler(playerService),
		Referee:    handlers.NewRefereeHandler(refereeService),
		Match:      handlers.NewMatchHandler(matchService),
		Standings:  handlers.NewStandingsHandler(standingsService, matchService),
		WebSocket:  handlers.NewWebSocketHandler(hub, tournamentService, cfg.AllowedOrigins, logger),
		Health:     handlers.NewHealthHandler(checks),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		Metrics:        metrics.Handler(registry),
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
	return nil
}
