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

	router "github.com/nstepura/Ring/internal/adapters/http"
	signalws "github.com/nstepura/Ring/internal/adapters/signal"
	"github.com/nstepura/Ring/internal/auth"
	"github.com/nstepura/Ring/internal/config"
	"github.com/nstepura/Ring/internal/core"
	"github.com/nstepura/Ring/internal/history"
	"github.com/nstepura/Ring/internal/notify"
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
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.BotToken == "" {
		log.Fatal().Msg("BOT_TOKEN is not set")
	}

	if err := os.MkdirAll(cfg.LogsPath, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create logs dir")
	}
	db, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history store")
	}
	defer db.Close()

	verifier := auth.NewVerifier(cfg.BotToken)
	registry := core.NewRegistry(cfg.CallTimeout)
	notifier := notify.NewTelegram(cfg.BotToken, cfg.PrivateRoomTTL, nil)

	ctl := signalws.NewController(registry, verifier, cfg.ReadLimit, cfg.PingPeriod)
	api := &router.API{
		Registry:       registry,
		Notifier:       notifier,
		Verifier:       verifier,
		History:        history.NewStore(db, cfg.HistoryLimit),
		WebAppURL:      cfg.WebAppURL,
		PrivateRoomTTL: cfg.PrivateRoomTTL,
		LogsPath:       cfg.LogsPath,
	}

	r := router.SetupRouter(cfg, ctl, api)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Ring server started")
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
