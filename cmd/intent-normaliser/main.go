package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/matthewcove-stack/intent-normaliser/internal/api"
	"github.com/matthewcove-stack/intent-normaliser/internal/audit"
	"github.com/matthewcove-stack/intent-normaliser/internal/config"
	"github.com/matthewcove-stack/intent-normaliser/internal/executor"
	"github.com/matthewcove-stack/intent-normaliser/internal/lifecycle"
	"github.com/matthewcove-stack/intent-normaliser/internal/normalize"
	"github.com/matthewcove-stack/intent-normaliser/internal/resolver"
	"github.com/matthewcove-stack/intent-normaliser/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.Default()
	logger.Info("starting")
	ctx := context.Background()

	cfg := config.Load()
	logger.Info("config loaded", "config", cfg.String())

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("db open failed", "error", err)
		return 1
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("db ping failed", "error", err)
		return 1
	}
	logger.Info("postgres connected")

	intents := store.NewIntents(db)
	clarifications := store.NewClarifications(db)
	journal := store.NewJournal(db)

	projectResolver := buildProjectResolver(cfg)

	var exec *executor.Executor
	if cfg.GatewayConfigured() {
		exec = executor.New(executor.Config{
			BaseURL:          cfg.GatewayBaseURL,
			BearerToken:      cfg.GatewayBearerToken,
			TasksCreatePath:  cfg.GatewayTasksCreatePath,
			TasksUpdatePath:  cfg.GatewayTasksUpdatePath,
			ListAddItemPath:  cfg.GatewayListsAddItemPath,
			NotesCapturePath: cfg.GatewayNotesCapturePath,
			Timeout:          time.Duration(cfg.GatewayTimeoutSeconds * float64(time.Second)),
		}, journal)
		logger.Info("executor configured", "gateway_configured", true, "execute_actions", cfg.ExecuteActions)
	} else if cfg.ExecuteActions {
		logger.Warn("execute_actions requested but gateway not configured; ready intents will fail execution")
	}

	controller := &lifecycle.Controller{
		Intents:        intents,
		Clarifications: clarifications,
		Journal:        journal,
		Resolver:       projectResolver,
		Executor:       exec,
		ExecuteActions: cfg.ExecuteActions,
		ClarifyExpiry:  time.Duration(cfg.ClarificationExpiryHours * float64(time.Hour)),
		Config: normalize.Config{
			UserTimezone:               cfg.UserTimezone,
			MinConfidenceToWrite:       cfg.MinConfidenceToWrite,
			MaxInferredFields:          cfg.MaxInferredFields,
			ProjectResolutionThreshold: cfg.ProjectResolutionThreshold,
			ProjectResolutionMargin:    cfg.ProjectResolutionMargin,
		},
	}

	server := &api.Server{
		Controller:     controller,
		Clarifications: clarifications,
		Journal:        journal,
		Audit:          audit.NewLogger(),
		Version:        cfg.Version,
		GitSHA:         cfg.GitSHA,
		ArtifactVer:    cfg.ArtifactVersion,
		DBPing:         func() error { return db.PingContext(ctx) },
	}

	handler := api.NewHandler(server, api.Options{
		BearerToken: cfg.IntentServiceToken,
		CORSOrigins: cfg.CORSOrigins,
		RateRPS:     20,
		RateBurst:   40,
	})

	httpServer := &http.Server{
		Addr:              addrFromEnv(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return 0
}

func buildProjectResolver(cfg *config.Config) resolver.ProjectResolver {
	if cfg.ContextAPIBaseURL == "" {
		return &resolver.Stub{}
	}
	return resolver.NewHTTP(
		cfg.ContextAPIBaseURL,
		cfg.ContextAPIBearerToken,
		cfg.ContextAPIProjectSearchPath,
		time.Duration(cfg.ContextAPITimeoutSeconds*float64(time.Second)),
	)
}

func addrFromEnv() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}
