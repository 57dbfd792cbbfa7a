package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forecast-miner/internal/discovery"
	"forecast-miner/internal/forecast"
	"forecast-miner/internal/metrics"
	"forecast-miner/internal/server"
	"forecast-miner/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Discover the implementation module and serve predictions over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides configuration)")
}

// newEngine builds a discovery engine from the loaded settings.
func newEngine(opts ...discovery.Option) (*discovery.Engine, error) {
	policy, err := settings.Policy()
	if err != nil {
		return nil, err
	}
	if settings.StrictIntervals {
		opts = append(opts, discovery.WithModelOptions(forecast.WithStrictIntervals()))
	}
	return discovery.New(settings.DiscoveryConfig(), policy, opts...)
}

// modelInfo summarizes a discovery outcome for /model/info.
func modelInfo(root string, res *discovery.Result, err error) server.ModelInfo {
	info := server.ModelInfo{Root: root, LoadedAt: time.Now()}
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Ready = true
	info.Module = res.Selection.Module
	info.Model = res.Selection.Model
	info.Data = res.Selection.Data
	info.Signature = res.Conformance.Signature()
	if p := res.Predictor.Policy(); p != nil {
		info.Policy = p.Name()
	}
	if res.Data != nil {
		info.DataStart = res.Data.Start()
		info.DataEnd = res.Data.End()
	}
	return info
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	engineOpts := []discovery.Option{
		discovery.WithMetrics(mw),
		discovery.WithModelOptions(forecast.WithMetrics(mw)),
	}
	serverOpts := []server.Option{
		server.WithMetrics(mw),
		server.WithRequestTimeout(settings.RequestTimeout),
	}

	if settings.JournalPath != "" {
		store, err := storage.New(settings.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close journal")
			}
		}()
		engineOpts = append(engineOpts, discovery.WithRecorder(store))
		serverOpts = append(serverOpts, server.WithJournal(store))
	}

	engine, err := newEngine(engineOpts...)
	if err != nil {
		return err
	}

	// A failed discovery still serves: health reports degraded and every
	// prediction answers unavailable.
	var predictor forecast.Predictor
	res, derr := engine.Discover(ctx)
	if derr != nil {
		mw.ErrorsTotal().Inc()
		predictor = forecast.NewUnavailable(derr)
	} else {
		predictor = res.Predictor
	}

	port := settings.ServerPort
	if servePort != 0 {
		port = servePort
	}
	srv := server.New(predictor, modelInfo(settings.Root, res, derr), port, serverOpts...)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
	log.Info().Msg("server stopped")
	return nil
}
