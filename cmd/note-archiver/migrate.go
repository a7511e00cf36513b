// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/note-archiver/internal/ledger"
	"github.com/pdiddy/note-archiver/internal/migrate"
	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/pkg/types"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [directory]",
	Short: "Normalize every note of a directory and render its artifacts",
	Long: `Migrate processes every exported note in the directory (or the configured
source_directory): it rewrites export-time absolute references, records the
note's metadata in a marker block, and renders the requested formats next to
the note.

Exit codes: 0 success, 1 configuration error, 2 unreadable directory,
3 no notes found, 4 one or more notes or artifacts failed, 130 interrupted
(notes already started are finished first).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	addMigrationFlags(migrateCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), cmd, args)
	if err != nil {
		return err
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

	stats, runErr := coord.Run(ctx)
	finishLedgerRun(ctx, run, stats, runErr, logger)
	return runErr
}

// finishLedgerRun closes run with the batch outcome. It runs even after ctx
// was cancelled so that an interrupted run is not left marked running. A nil
// run is a no-op.
func finishLedgerRun(ctx context.Context, run *ledger.Run, stats types.BatchStats, runErr error, logger *slog.Logger) {
	if run == nil {
		return
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := run.Finish(fctx, stats, runErr); err != nil {
		logger.Warn("finishing ledger run", slog.String("error", err.Error()))
		return
	}
	logger.Info("run recorded", slog.String("run", run.ID))
}

// beginLedgerRun opens the ledger and starts a run when the configuration
// asks for one. Dry runs are never recorded. Like finishLedgerRun it ignores
// ctx's cancellation, so every started batch has a ledger row to close. The
// returned close function is always safe to call.
func beginLedgerRun(ctx context.Context, cfg *types.MigrationConfig, logger *slog.Logger) (*ledger.Run, func(), error) {
	if !cfg.Ledger.Enabled || cfg.DryRun {
		return nil, func() {}, nil
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, func() {}, fmt.Errorf("opening ledger: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing ledger", slog.String("error", err.Error()))
		}
	}
	run, err := store.BeginRun(context.WithoutCancel(ctx), cfg)
	if err != nil {
		closeStore()
		return nil, func() {}, err
	}
	logger.Debug("ledger run started", slog.String("run", run.ID), slog.String("ledger", cfg.Ledger.Path))
	return run, closeStore, nil
}
