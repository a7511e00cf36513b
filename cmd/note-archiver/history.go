// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/note-archiver/internal/ledger"
	"github.com/pdiddy/note-archiver/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the run ledger",
	Long: `History reads the SQLite run ledger written by migrate and watch. Without
a subcommand it lists recent runs, most recent first.`,
	RunE: runHistoryList,
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one run with its notes and artifacts as YAML or JSON",
	Long: `Export writes a run, every note it processed, and every artifact outcome
to stdout or --output. --run takes an ID or a unique ID prefix; without it the
most recent run is exported.`,
	RunE: runHistoryExport,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return formatRuns(cmd.OutOrStdout(), runs)
}

func formatRuns(w io.Writer, runs []ledger.RunRecord) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-19s  %-9s  %-9s  %-9s  %-6s  %s\n",
		"Run", "Started", "Status", "Processed", "Converted", "Failed", "Directory")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		started := r.StartedAt
		if len(started) > 19 {
			started = strings.Replace(started[:19], "T", " ", 1)
		}
		fmt.Fprintf(w, "%-8s  %-19s  %-9s  %-9d  %-9d  %-6d  %s\n",
			id, started, r.Status, r.Stats.Processed, r.Stats.Converted, r.Stats.Failed, r.SourceDirectory)
	}

	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	prefix, _ := cmd.Flags().GetString("run")
	output, _ := cmd.Flags().GetString("output")

	write := ledger.WriteYAML
	switch format {
	case "yaml", "":
	case "json":
		write = ledger.WriteJSON
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	store, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := store.Report(cmd.Context(), prefix)
	if err != nil {
		return err
	}

	if output == "" {
		return write(cmd.OutOrStdout(), rep)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := write(f, rep); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s to %s\n", rep.Run.ID, output)
	return nil
}

// --- shared helpers ---

// openLedger opens the ledger named by --ledger, the config file, or the
// environment. It never creates a missing ledger.
func openLedger(cmd *cobra.Command) (*ledger.Store, error) {
	v := viper.GetViper()
	v.SetDefault("ledger.path", types.NewDefaultMigrationConfig().Ledger.Path)
	if f := cmd.Flags().Lookup("ledger"); f != nil {
		if err := v.BindPFlag("ledger.path", f); err != nil {
			return nil, err
		}
	}
	path := v.GetString("ledger.path")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}
	return ledger.Open(path)
}

func init() {
	historyCmd.PersistentFlags().String("ledger", types.NewDefaultMigrationConfig().Ledger.Path, "run ledger database path")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")

	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().String("run", "", "run ID or unique prefix (default: most recent run)")
	historyExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
