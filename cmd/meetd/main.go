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

	router "github.com/dkeye/meetd/internal/adapters/http"
	"github.com/dkeye/meetd/internal/adapters/widget"
	"github.com/dkeye/meetd/internal/app"
	"github.com/dkeye/meetd/internal/app/orch"
	"github.com/dkeye/meetd/internal/config"
	"github.com/dkeye/meetd/internal/provider"
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
		log.Error().Err(err).Msg("failed to load config")
	}

	control := provider.NewClient(cfg.ControlPlaneURL, cfg.ControlPlaneToken)
	bridge := widget.NewBridge()
	handle := app.NewSessionHandle(bridge, map[string]string{
		"border":   "0",
		"width":    "100%",
		"height":   "100%",
		"position": "absolute",
	})
	state := app.NewSessionState(cfg.DisplayName)
	registry := app.NewParticipantRegistry()

	o := &orch.Orchestrator{
		Control:     control,
		Handle:      handle,
		Registry:    registry,
		State:       state,
		RoomPrefix:  cfg.RoomPrefix,
		RoomBaseURL: cfg.RoomBaseURL,
	}

	// Warm the room catalog; a failure stays visible in the catalog state.
	if err := o.RefreshRooms(ctx); err != nil {
		log.Warn().Err(err).Msg("initial room catalog fetch failed")
	}

	r := router.SetupRouter(ctx, cfg, o, bridge)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meetd started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// A running session must not leak its widget instance on shutdown.
	o.EndMeeting(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
