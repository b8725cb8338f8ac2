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

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/app"
	"github.com/moicben/calendar-agent/internal/delivery/http/handler"
	"github.com/moicben/calendar-agent/internal/delivery/http/router"
	"github.com/moicben/calendar-agent/internal/usecase"
	"github.com/moicben/calendar-agent/pkg/config"
	"github.com/moicben/calendar-agent/pkg/logger"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", zap.Error(err))
		if errors.Is(err, config.ErrMissingAgentCommand) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.RequireAgent(); err != nil {
		return err
	}
	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// --- Agent and use cases ---
	agent, err := a.Agent(ctx)
	if err != nil {
		return err
	}
	bookings, err := a.BookingService(ctx, agent)
	if err != nil {
		return err
	}
	runs := usecase.NewRunRegistry(a.Metrics, log.Named("runs"))

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(runs, a.GoalRunner(agent), bookings, log)
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router.New(apiHandler, a.Metrics, log),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("could not listen on port %s: %w", cfg.ServerPort, err)
	case <-quit:
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := runs.Shutdown(shutdownCtx); err != nil {
		log.Warn("runs still in flight at shutdown", zap.Error(err))
	}

	log.Info("server exiting")
	return nil
}
