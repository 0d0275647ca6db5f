package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scatty/backend/internal/config"
	"github.com/zhouzirui/scatty/backend/internal/handler"
	"github.com/zhouzirui/scatty/backend/internal/handler/realtime"
	"github.com/zhouzirui/scatty/backend/internal/logging"
	"github.com/zhouzirui/scatty/backend/internal/middleware"
	"github.com/zhouzirui/scatty/backend/internal/model/persona"
	"github.com/zhouzirui/scatty/backend/internal/service/ai"
	"github.com/zhouzirui/scatty/backend/internal/service/chat"
	"github.com/zhouzirui/scatty/backend/internal/service/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, os.Stdout)
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("no .env file loaded, continuing with system environment variables only")
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	active, ok := persona.Resolve(personaStore, cfg.AI.PersonaID)
	if !ok {
		logger.Fatal().Str("persona", cfg.AI.PersonaID).Msg("no persona available")
	}
	if active.ID != cfg.AI.PersonaID {
		logger.Warn().Str("requested", cfg.AI.PersonaID).Str("using", active.ID).Msg("persona not found, falling back")
	}

	generator := newGenerator(ctx, cfg, active, logger)

	store := chat.NewStore(cfg.Session.IdleTimeout, logger)
	sweeper, err := chat.NewSweeper(store, cfg.Session.SweepInterval, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create session sweeper")
	}
	sweeper.Start()
	defer sweeper.Stop()

	orchestrator := conversation.New(store, generator, cfg.Conversation, logger)
	defer orchestrator.Close()

	router := handler.NewRouter(handler.Deps{
		Personas:      personaStore,
		ActivePersona: active.ID,
		Sessions:      store,
		Conversations: orchestrator,
		Hub:           realtime.NewHub(),
		Dispatcher:    orchestrator,
		CORS:          middleware.NewCORS(cfg.Server.AllowedOrigins),
		Logger:        logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

// newGenerator builds the configured provider. A missing credential is fatal in production;
// elsewhere the server starts and every generation fails.
func newGenerator(ctx context.Context, cfg *config.Config, p persona.Persona, logger zerolog.Logger) ai.Generator {
	if !cfg.AI.Enabled() {
		if cfg.Server.Production() {
			logger.Fatal().Str("provider", cfg.AI.Provider).Msg("AI provider credentials are not configured")
		}
		logger.Warn().Str("provider", cfg.AI.Provider).Msg("AI provider credentials are not configured, replies will fail")
		return ai.Unavailable{Provider: cfg.AI.Provider, Reason: "provider credentials are not configured"}
	}

	generator, err := ai.NewGenerator(ctx, cfg.AI, p, logger)
	if err != nil {
		if cfg.Server.Production() {
			logger.Fatal().Err(err).Msg("failed to initialize AI provider")
		}
		logger.Warn().Err(err).Msg("failed to initialize AI provider, replies will fail")
		return ai.Unavailable{Provider: cfg.AI.Provider, Reason: err.Error()}
	}

	logger.Info().Str("provider", cfg.AI.Provider).Str("persona", p.ID).Msg("AI provider initialized")
	return generator
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Str("env", serverCfg.Env).Msg("Scatty backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
