package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"propstage/internal/adapter/memrepo"
	"propstage/internal/adapter/repo"
	"propstage/internal/dispatch"
	"propstage/internal/domain"
	"propstage/internal/http/handlers"
	"propstage/internal/http/httpapi"
	"propstage/internal/infra"
	"propstage/internal/infra/geoip"
	"propstage/internal/jobs"
	"propstage/internal/ledger"
	"propstage/internal/middleware"
	"propstage/internal/notify"
	"propstage/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: Postgres when configured, process memory otherwise.
	var (
		users    domain.UserRepository
		projects domain.ProjectRepository
		jobStore domain.JobRepository
		mailbox  domain.MailboxRepository
		stats    domain.StatsRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		users = repo.NewUserRepository(pool)
		projects = repo.NewProjectRepository(pool)
		jobStore = repo.NewJobRepository(pool, cfg.JobRingCapacity)
		mailbox = repo.NewMailboxRepository(pool)
		stats = repo.NewStatsRepository(pool)
		logger.Info().Msg("using postgres store")
	} else {
		users = memrepo.NewUserStore()
		projects = memrepo.NewProjectStore()
		jobStore = memrepo.NewJobStore(cfg.JobRingCapacity)
		mailbox = memrepo.NewMailbox()
		stats = memrepo.NewStatsStore()
		logger.Info().Msg("using in-memory store")
	}

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open file store")
	}

	var geoLookup middleware.LanguageLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		if r, ok := resolver.(*geoip.Resolver); ok {
			defer r.Close()
		}
		geoLookup = resolver.DefaultLanguage
	}

	creditLedger := ledger.New(users, logger)
	registry := jobs.NewRegistry()
	hub := notify.NewHub(logger)
	go hub.Run(ctx)

	reconciler := jobs.NewReconciler(jobStore, creditLedger, registry, hub, stats, logger)

	client, err := dispatch.NewClient(dispatch.Options{
		WebhookURL:  cfg.AIWebhookURL,
		CallbackURL: cfg.CallbackBaseURL + "/v1/callback",
		Inputs:      store,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build dispatch client")
	}

	service := jobs.NewService(jobStore, projects, creditLedger, client, store, reconciler, registry, stats, logger)

	sweeper := jobs.NewSweeper(jobStore, reconciler, cfg.SweepInterval, cfg.JobTimeout, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sweeper")
	}
	poller := jobs.NewPoller(mailbox, reconciler, cfg.MailboxPoll, logger)
	if err := poller.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start mailbox poller")
	}

	app := &handlers.App{
		Cfg:        cfg,
		Logger:     logger,
		Service:    service,
		Ledger:     creditLedger,
		Reconciler: reconciler,
		Projects:   projects,
		Mailbox:    mailbox,
		Stats:      stats,
		Hub:        hub,
	}
	router := httpapi.NewRouter(app, users, geoLookup)

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
