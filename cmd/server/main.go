// Command server runs the medical intake triage backend.
//
// Startup order: env → config → logging → tracing → database → directory →
// state machine → HTTP router. A background sweeper removes idle sessions on
// a fixed interval. Shutdown drains in-flight requests before flushing the
// trace exporter.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/clinova/go-triage-backend/internal/config"
	"github.com/clinova/go-triage-backend/internal/directory"
	"github.com/clinova/go-triage-backend/internal/gateway"
	httpapi "github.com/clinova/go-triage-backend/internal/http"
	"github.com/clinova/go-triage-backend/internal/http/handlers"
	"github.com/clinova/go-triage-backend/internal/llm"
	"github.com/clinova/go-triage-backend/internal/llm/gemini"
	"github.com/clinova/go-triage-backend/internal/observability"
	"github.com/clinova/go-triage-backend/internal/repo"
	"github.com/clinova/go-triage-backend/internal/services"
	"github.com/clinova/go-triage-backend/internal/sysutil"
	"github.com/clinova/go-triage-backend/internal/triage"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op unless OTEL_ENABLED)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}

	// Doctor registry and slot inventory
	dir := directory.New()

	// Optional LLM collaborator; the rule-based classifiers run either way.
	var provider llm.Provider
	if cfg.LLM.APIKey != "" {
		provider = gemini.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
		log.Info().Str("model", cfg.LLM.Model).Msg("llm collaborator enabled")
	} else {
		log.Info().Msg("no llm api key; running rule-based only")
	}
	machine := triage.NewStateMachine(provider)

	// Optional WhatsApp bridge for doctor notifications.
	var messenger handlers.Messenger
	if cfg.Gateway.URL != "" {
		messenger = gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Session, cfg.Gateway.Timeout, log.Logger)
		log.Info().Str("url", cfg.Gateway.URL).Msg("messaging gateway enabled")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, dir, machine, messenger, cfg)

	// Background idle-session sweep.
	go runSweeper(ctx, httpapi.NewSessionSweeper(db, cfg.SessionMaxIdle), cfg.CleanupInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}

// runSweeper periodically removes idle sessions and expired idempotency
// records until the context is cancelled.
func runSweeper(ctx context.Context, svc *services.SessionService, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.CleanupIdle(ctx, 0)
			if err != nil {
				log.Warn().Err(err).Msg("session sweep")
				continue
			}
			if n > 0 {
				log.Info().Int64("removed", n).Msg("session sweep")
			}
		}
	}
}
