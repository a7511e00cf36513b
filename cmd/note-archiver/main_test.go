// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/note-archiver/internal/ledger"
	"github.com/pdiddy/note-archiver/pkg/types"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"unreadable", fmt.Errorf("notes: %w: permission denied", types.ErrSourceUnreadable), exitUnreadable},
		{"no notes", fmt.Errorf("notes: %w", types.ErrNoNotes), exitNoNotes},
		{"partial failure", fmt.Errorf("2 of 3 notes: %w", types.ErrPartialFailure), exitPartialFailure},
		{"interrupted", context.Canceled, exitInterrupted},
		{"interrupted, wrapped", fmt.Errorf("batch: %w", context.Canceled), exitInterrupted},
		{"config", errors.New("invalid configuration"), exitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func newTestCommand(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "migrate"}
	addMigrationFlags(cmd)
	require.NoError(t, cmd.ParseFlags(flags))
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), newTestCommand(t), []string{"/exports/notes"})

	require.NoError(t, err)
	assert.Equal(t, "/exports/notes", cfg.SourceDirectory)
	assert.Equal(t, `C:\`, cfg.AbsolutePathPrefix)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "pdf", cfg.OutputFormats)
	assert.Equal(t, "chromium,chromium-browser,google-chrome", cfg.Tools.Browser)
	assert.Equal(t, 1280, cfg.Screenshot.Width)
	assert.True(t, cfg.Ledger.Enabled)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadConfig_Flags(t *testing.T) {
	cmd := newTestCommand(t,
		"--formats", "md,pdf",
		"--concurrency", "2",
		"--max-files", "10",
		"--tagger", "pdfcpu",
		"--pandoc", "/opt/pandoc",
		"--dry-run",
		"--no-ledger",
	)

	cfg, err := loadConfig(viper.New(), cmd, []string{"notes"})

	require.NoError(t, err)
	assert.Equal(t, "md,pdf", cfg.OutputFormats)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 10, cfg.MaxFiles)
	assert.Equal(t, types.TaggerPDFCPU, cfg.Tagger)
	assert.Equal(t, "/opt/pandoc", cfg.Tools.Pandoc)
	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.Ledger.Enabled)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("NOTE_ARCHIVER_SOURCE_DIRECTORY", "/from/env")
	t.Setenv("NOTE_ARCHIVER_TOOLS_EXIFTOOL", "/usr/local/bin/exiftool")
	t.Setenv("NOTE_ARCHIVER_LOG_LEVEL", "debug")

	v := viper.New()
	v.SetEnvPrefix("NOTE_ARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := loadConfig(v, newTestCommand(t), nil)

	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.SourceDirectory)
	assert.Equal(t, "/usr/local/bin/exiftool", cfg.Tools.Exiftool)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		args  []string
	}{
		{"missing directory", nil, nil},
		{"unknown format", []string{"--formats", "pdf,odt"}, []string{"notes"}},
		{"unknown tagger", []string{"--tagger", "qpdf"}, []string{"notes"}},
		{"zero concurrency", []string{"--concurrency", "0"}, []string{"notes"}},
		{"empty engine list", []string{"--pdf-engines", " , "}, []string{"notes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(viper.New(), newTestCommand(t, tt.flags...), tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_BadLogLevel(t *testing.T) {
	v := viper.New()
	v.Set("log_level", "loud")

	_, err := loadConfig(v, newTestCommand(t), []string{"notes"})

	assert.ErrorContains(t, err, "log_level")
}

func TestNewLogger_JSON(t *testing.T) {
	cfg := types.NewDefaultMigrationConfig()
	cfg.LogFormat = "json"
	var buf bytes.Buffer

	newLogger(cfg, &buf).Info("hello", slog.String("note", "Trip"))
	newLogger(cfg, &buf).Debug("hidden")

	assert.Contains(t, buf.String(), `"note":"Trip"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestFormatRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatRuns(&buf, nil))
	assert.Equal(t, "No runs recorded.\n", buf.String())

	buf.Reset()
	runs := []ledger.RunRecord{{
		ID:              "0123456789abcdef",
		StartedAt:       "2026-03-01T10:11:12.000000000Z",
		SourceDirectory: "/exports",
		Status:          ledger.StatusCompleted,
		Stats:           types.BatchStats{Processed: 3, Converted: 2, Failed: 1},
	}}
	require.NoError(t, formatRuns(&buf, runs))

	out := buf.String()
	assert.Contains(t, out, "01234567  2026-03-01 10:11:12  completed")
	assert.Contains(t, out, "/exports")
	assert.Contains(t, out, "1 runs")
}

func TestRunWatch_CancelledInitialBatchClosesLedgerRun(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Trip.html"),
		[]byte(`<html><body><div class="html-note"><h1>Trip</h1></div></body></html>`), 0o644))
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	cmd := &cobra.Command{Use: "watch"}
	addMigrationFlags(cmd)
	cmd.Flags().Duration("debounce", 0, "")
	require.NoError(t, cmd.ParseFlags([]string{
		"--formats", "md",
		"--markdown-engine", "builtin",
		"--ledger", dbPath,
	}))
	var out bytes.Buffer
	cmd.SetOut(&out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd.SetContext(ctx)

	err := runWatch(cmd, []string{dir})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, exitInterrupted, exitCode(err))

	store, err := ledger.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.FindRun(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCancelled, run.Status, "an interrupted run is not left running")
	assert.NotEmpty(t, run.FinishedAt)
}
