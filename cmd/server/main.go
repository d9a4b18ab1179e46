package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ludo/internal/config"
	"ludo/internal/dice"
	"ludo/internal/game"
	"ludo/internal/server"
	"ludo/internal/session"
	"ludo/internal/storage"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("LUDO_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer store.Close()

	mgr := session.NewManager(game.DefaultRegistry(), store, session.Options{
		Dice:      dice.NewUniform(nil),
		RoomTTL:   cfg.RoomTTL(),
		Retention: cfg.Retention(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.CleanupLoop(ctx, cfg.CleanupInterval())

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: server.New(mgr)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Str("db", cfg.DBPath).Dur("room_ttl", cfg.RoomTTL()).Msg("listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
}
