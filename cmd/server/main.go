package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "cardbattle/internal/adapters/http"
	"cardbattle/internal/adapters/ws"
	"cardbattle/internal/app"
	"cardbattle/internal/config"
	"cardbattle/internal/hub"
	"cardbattle/internal/identity"
	"cardbattle/internal/ledger"
	"cardbattle/internal/room"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		// Without valid scoring tables no room can be served.
		log.Fatal().Err(err).Msg("failed to load config")
	}

	rooms := room.NewRegistry()
	h := hub.New()
	users := identity.NewService()
	scores := ledger.NewMemory()

	coordinator, err := app.NewCoordinator(rooms, h, cfg.Scoring, scores, cfg.GameMode)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build coordinator")
	}
	coordinator.StartReaper(ctx, cfg.RoomTTL, cfg.ReapInterval)

	wsCtl := ws.NewController(coordinator, h, cfg.SendBuffer, cfg.WriteTimeout)

	r := router.SetupRouter(ctx, router.Deps{
		Cfg:         cfg,
		Identity:    users,
		Ledger:      scores,
		Rooms:       rooms,
		Coordinator: coordinator,
		WS:          wsCtl,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("card battle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
