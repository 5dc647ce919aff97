package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, presets, err := loadSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := setupStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up storage")
	}
	defer st.close()

	services, err := setupServices(ctx, cfg, presets, st)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.close()

	go func() {
		if err := st.run(ctx); err != nil {
			log.Error().Err(err).Msg("outbox notifier stopped")
		}
	}()
	go func() {
		if err := services.Relay.Run(ctx, st.notifications); err != nil {
			log.Error().Err(err).Msg("outbox relay stopped")
		}
	}()

	server := setupServer(cfg.Port, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("todoroom server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("todoroom server stopped")
}
