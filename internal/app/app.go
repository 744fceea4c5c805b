package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nexuschat/nexus-relay/internal/assist"
	"github.com/nexuschat/nexus-relay/internal/auth"
	"github.com/nexuschat/nexus-relay/internal/config"
	"github.com/nexuschat/nexus-relay/internal/core"
	"github.com/nexuschat/nexus-relay/internal/store"
	"github.com/nexuschat/nexus-relay/internal/store/memory"
	"github.com/nexuschat/nexus-relay/internal/store/sqlite"
	transporthttp "github.com/nexuschat/nexus-relay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.MessageStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	var st store.MessageStore
	if cfg.DatabasePath == "" {
		st = memory.New()
		logger.Info().Msg("using in-memory message store")
	} else {
		var err error
		st, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("message journal initialized")
	}

	authCfg := &auth.Config{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}

	var answerer core.Answerer
	if cfg.AssistURL != "" {
		answerer = assist.New(cfg.AssistURL, logger)
		logger.Info().Str("assist_url", cfg.AssistURL).Msg("answer orchestration enabled")
	} else {
		logger.Info().Msg("answer orchestration disabled")
	}

	registry := core.NewRegistry(st, answerer, logger, core.Options{
		TypingTTL:      cfg.TypingTTL,
		HistoryLimit:   cfg.HistoryLimit,
		AssistWindow:   cfg.AssistWindow,
		AssistTimeout:  cfg.AssistTimeout,
		AssistIdentity: cfg.AssistIdentity,
	})

	server := transporthttp.NewServer(registry, authCfg, st, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	a.cleanup()
	return err
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
