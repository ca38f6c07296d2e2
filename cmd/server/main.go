// Command server runs the NeuroCanvas backend: the HTTP API over the
// emotional and artistic memory banks.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/neurocanvas/neurocanvas/pkg/api"
	"github.com/neurocanvas/neurocanvas/pkg/artgen"
	"github.com/neurocanvas/neurocanvas/pkg/config"
	"github.com/neurocanvas/neurocanvas/pkg/logging"
	"github.com/neurocanvas/neurocanvas/pkg/memory"
	"github.com/neurocanvas/neurocanvas/pkg/model"
	"github.com/neurocanvas/neurocanvas/pkg/narrative"
	"github.com/neurocanvas/neurocanvas/pkg/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("load configuration")
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.New(ctx, sqlite.Config{
		Path:   cfg.Database.Path,
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("open database")
	}
	defer db.Close()

	emotional, err := memory.NewBank(memory.Options{
		Kind:            model.KindEmotion,
		Store:           db,
		VectorDim:       cfg.Memory.VectorDim,
		Capacity:        cfg.Memory.Capacity,
		NeighborK:       cfg.Memory.NeighborK,
		RecencyHalfLife: cfg.Memory.RecencyHalfLife,
		Logger:          log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build emotional memory bank")
	}
	artistic, err := memory.NewBank(memory.Options{
		Kind:            model.KindStyle,
		Store:           db,
		VectorDim:       cfg.Memory.VectorDim,
		Capacity:        cfg.Memory.Capacity,
		NeighborK:       cfg.Memory.NeighborK,
		RecencyHalfLife: cfg.Memory.RecencyHalfLife,
		Logger:          log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build artistic memory bank")
	}

	server := api.NewServer(api.Options{
		Emotional:   emotional,
		Artistic:    artistic,
		DB:          db,
		ArtGen:      artgen.NewProcedural(),
		Narrative:   narrative.NewTemplate(),
		JWTSecret:   cfg.Security.JWTSecret,
		CORSOrigins: cfg.Security.CORSOrigins,
		Metrics:     cfg.Metrics.Enabled,
		WebSocket:   cfg.Server.WebSocket,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
