package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/app"
	"github.com/moicben/calendar-agent/internal/usecase"
	"github.com/moicben/calendar-agent/pkg/config"
	"github.com/moicben/calendar-agent/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var (
		parallel int
		source   string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:           "booker [count]",
		Short:         "Book meetings on pending calendar links",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid count %q: want a positive integer", args[0])
				}
				count = n
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("parallel") {
				cfg.BookingParallelism = parallel
			}
			if err := cfg.RequireAgent(); err != nil {
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

			booker, err := a.BatchBooker(ctx, source)
			if err != nil {
				return err
			}
			summary, err := booker.Run(ctx, count)
			if err != nil {
				log.Error("batch failed", zap.Error(err))
			}
			return writeSummary(cmd.OutOrStdout(), summary, err)
		},
	}

	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of calendars booked concurrently")
	cmd.Flags().StringVar(&source, "source", "", "pending list to consume (default CALENDARS_DIR/proceed.txt)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logs")
	return cmd
}

// writeSummary prints the counts of an interrupted batch too, then returns
// runErr.
func writeSummary(w io.Writer, summary *usecase.BatchSummary, runErr error) error {
	if summary != nil {
		if err := json.NewEncoder(w).Encode(summary); err != nil && runErr == nil {
			return err
		}
	}
	return runErr
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrMissingAgentCommand) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
