// salesdrill - staged sales conversation drill server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/salesdrill/internal/api"
	"github.com/ashureev/salesdrill/internal/config"
	"github.com/ashureev/salesdrill/internal/conversation"
	"github.com/ashureev/salesdrill/internal/llm"
	"github.com/ashureev/salesdrill/internal/metrics"
	"github.com/ashureev/salesdrill/internal/persona"
	"github.com/ashureev/salesdrill/internal/session"
	"github.com/ashureev/salesdrill/internal/store"
	"github.com/ashureev/salesdrill/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	archiveTTL      = 30 * 24 * time.Hour
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "container", config.IsContainer())

	shutdownTracing, err := telemetry.Setup(ctx, "salesdrill", cfg.OTELEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	var repo *store.SQLiteStore
	if cfg.NeedsDatabase() {
		repo, err = store.NewSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		if err := repo.Ping(ctx); err != nil {
			return err
		}
		slog.Info("Database connected", "path", cfg.DBPath)
	}

	source, err := personaSource(ctx, cfg, repo)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector("salesdrill")
	models, err := llm.NewRegistry(cfg.LLM(), llm.PoolConfig{
		Concurrency: cfg.Models.Concurrency,
		Timeout:     cfg.Models.Timeout,
		Observer:    collector,
	}, logger)
	if err != nil {
		return err
	}
	if len(models.Enabled()) == 0 {
		slog.Warn("No model vendor has an API key; every session start will fail")
	}
	slog.Info("Model vendors ready", "vendors", models.Enabled())

	managerCfg := session.Config{
		Source:      source,
		Models:      models.Model,
		Store:       session.NewStore(cfg.SessionMax),
		Retention:   conversation.Retention{Window: cfg.HistoryWindow},
		RawPersona:  !cfg.PersonaElaboration,
		JudgeModels: cfg.JudgeModels(),
		Observer:    collector,
		Logger:      logger,
	}
	if cfg.ArchiveEnabled && repo != nil {
		managerCfg.Archiver = repo
	}
	mgr, err := session.NewManager(managerCfg)
	if err != nil {
		return err
	}

	limiter := api.NewTurnLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	origins := cfg.AllowedOrigins()

	var pinger api.Pinger
	if repo != nil {
		pinger = repo
	}
	router := api.NewRouter(api.RouterConfig{
		Sessions:       api.NewHandler(mgr, limiter, logger),
		WebSocket:      api.NewWebSocketHandler(mgr, limiter, origins, cfg.IsDevelopment(), logger),
		Health:         api.NewHealthHandler(pinger, mgr),
		AllowedOrigins: origins,
		IsDev:          cfg.IsDevelopment(),
		Metrics:        collector,
	})

	// Turns can take minutes across three model calls; no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	janitorDone := session.StartJanitor(gctx, mgr, cfg.SessionIdleTTL, session.DefaultJanitorInterval, logger)
	g.Go(func() error {
		<-janitorDone
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	if managerCfg.Archiver != nil {
		g.Go(func() error {
			purgeArchive(gctx, repo)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func personaSource(ctx context.Context, cfg *config.Config, repo *store.SQLiteStore) (persona.Source, error) {
	if cfg.PersonaSource == config.PersonaSourceSQLite {
		n, err := repo.CountPersonas(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := repo.Stages(ctx); err != nil {
			return nil, err
		}
		slog.Info("Persona pool loaded from database", "personas", n)
		return repo, nil
	}

	src, err := persona.NewFileSource(cfg.PersonaFile, cfg.StageFile)
	if err != nil {
		return nil, err
	}
	slog.Info("Persona pool loaded from files", "personas", src.Len(), "persona_file", cfg.PersonaFile, "stage_file", cfg.StageFile)
	return src, nil
}

// purgeArchive drops archived sessions older than archiveTTL once a day.
func purgeArchive(ctx context.Context, repo store.Repository) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := repo.PurgeSessions(ctx, archiveTTL); err != nil {
				slog.Error("Archive purge failed", "error", err)
			} else if n > 0 {
				slog.Info("Archive purge removed sessions", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
