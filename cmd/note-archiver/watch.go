// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/note-archiver/internal/migrate"
	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/internal/watch"
	"github.com/pdiddy/note-archiver/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Migrate a directory, then keep migrating notes as they arrive",
	Long: `Watch runs one batch over the directory and then watches it, running the
per-note pipeline for every note file that is created or rewritten. Stop it
with an interrupt; the note being processed finishes first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	addMigrationFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a changed note is processed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), cmd, args)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		return fmt.Errorf("watch does not support --dry-run")
	}
	logger := newLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []migrate.Option
	run, closeLedger, err := beginLedgerRun(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()
	if run != nil {
		opts = append(opts, migrate.WithRecorder(run))
	}

	coord, err := migrate.New(cfg, process.NewRunner(), cmd.OutOrStdout(), logger, opts...)
	if err != nil {
		return err
	}

	stats, err := coord.Run(ctx)
	switch {
	case errors.Is(err, types.ErrNoNotes), errors.Is(err, types.ErrPartialFailure):
		logger.Info("initial batch finished", slog.String("result", err.Error()))
	case err != nil:
		finishLedgerRun(ctx, run, stats, err, logger)
		return err
	}

	handle := func(ctx context.Context, path string) {
		// An interrupt must not kill the tools of the note in flight.
		ctx = context.WithoutCancel(ctx)
		res := coord.ProcessNote(ctx, path)
		stats.Candidates++
		stats.Add(res)
		if run != nil {
			if err := run.RecordNote(ctx, res); err != nil {
				logger.Warn("recording note", slog.String("note", res.Base), slog.String("error", err.Error()))
			}
		}
	}

	w := watch.New(cfg.SourceDirectory, coord.IsCandidate, handle, logger)
	if d, err := cmd.Flags().GetDuration("debounce"); err == nil {
		w.SetDebounce(d)
	}
	watchErr := w.Run(ctx)

	finishErr := watchErr
	if finishErr == nil {
		finishErr = ctx.Err()
	}
	finishLedgerRun(ctx, run, stats, finishErr, logger)
	if watchErr != nil {
		return watchErr
	}
	if stats.HasFailures() {
		return fmt.Errorf("%d of %d notes: %w", stats.Failed, stats.Processed, types.ErrPartialFailure)
	}
	return nil
}
