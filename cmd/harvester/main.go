package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/app"
	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/pkg/config"
	"github.com/moicben/calendar-agent/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var (
		endpoint string
		pages    int
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:           "harvester <query>",
		Short:         "Find new calendar booking links for a search query",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ep := entity.SearchEndpoint(endpoint)
			if !ep.Valid() {
				return fmt.Errorf("invalid --endpoint %q: want search or news", endpoint)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireSearch(); err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			finder, err := a.Finder()
			if err != nil {
				return err
			}
			summary, err := finder.Run(ctx, args[0], ep, pages)
			if err != nil {
				log.Error("harvest failed", zap.Error(err))
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", string(entity.EndpointSearch), "search endpoint: search or news")
	cmd.Flags().IntVar(&pages, "num", 1, "number of result pages to fetch per domain")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logs")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrMissingAPIKey) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
