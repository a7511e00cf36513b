// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/note-archiver/pkg/types"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"max-files":       "max_files",
	"prefix":          "absolute_path_prefix",
	"pdf-engines":     "pdf_engines",
	"formats":         "output_formats",
	"concurrency":     "concurrency",
	"index-file":      "index_file",
	"tagger":          "tagger",
	"markdown-engine": "markdown_engine",
	"dry-run":         "dry_run",
	"pandoc":          "tools.pandoc",
	"exiftool":        "tools.exiftool",
	"browser":         "tools.browser",
	"ledger":          "ledger.path",
	"no-ledger":       "",
	"log-level":       "log_level",
	"log-format":      "log_format",
}

// addMigrationFlags registers the flags shared by migrate and watch.
func addMigrationFlags(cmd *cobra.Command) {
	d := types.NewDefaultMigrationConfig()
	f := cmd.Flags()
	f.Int("max-files", d.MaxFiles, "maximum number of notes to process (0 = unlimited)")
	f.String("prefix", d.AbsolutePathPrefix, "export-time absolute path prefix to rewrite")
	f.String("pdf-engines", d.PDFEngines, "ordered, comma-separated PDF engines (gofpdf renders in-process)")
	f.String("formats", d.OutputFormats, "comma-separated output formats: pdf, png, docx, md")
	f.Int("concurrency", d.Concurrency, "maximum number of notes processed at once")
	f.String("index-file", d.IndexFile, "export index page, never treated as a note")
	f.String("tagger", d.Tagger, "PDF metadata tagger: exiftool or pdfcpu")
	f.String("markdown-engine", d.MarkdownEngine, "markdown renderer: pandoc or builtin")
	f.Bool("dry-run", false, "report planned work without modifying notes or running tools")
	f.String("pandoc", d.Tools.Pandoc, "pandoc binary")
	f.String("exiftool", d.Tools.Exiftool, "exiftool binary")
	f.String("browser", d.Tools.Browser, "comma-separated headless browser binaries, in preference order")
	f.String("ledger", d.Ledger.Path, "run ledger database path")
	f.Bool("no-ledger", false, "do not record the run in the ledger")
}

// setDefaults registers every configuration key with its default so that
// environment variables and Unmarshal see all of them.
func setDefaults(v *viper.Viper) {
	d := types.NewDefaultMigrationConfig()
	v.SetDefault("source_directory", "")
	v.SetDefault("max_files", d.MaxFiles)
	v.SetDefault("absolute_path_prefix", d.AbsolutePathPrefix)
	v.SetDefault("pdf_engines", d.PDFEngines)
	v.SetDefault("output_formats", d.OutputFormats)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("index_file", d.IndexFile)
	v.SetDefault("note_extension", d.NoteExtension)
	v.SetDefault("tagger", d.Tagger)
	v.SetDefault("markdown_engine", d.MarkdownEngine)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("tools.pandoc", d.Tools.Pandoc)
	v.SetDefault("tools.exiftool", d.Tools.Exiftool)
	v.SetDefault("tools.browser", d.Tools.Browser)
	v.SetDefault("screenshot.width", d.Screenshot.Width)
	v.SetDefault("screenshot.height", d.Screenshot.Height)
	v.SetDefault("ledger.enabled", d.Ledger.Enabled)
	v.SetDefault("ledger.path", d.Ledger.Path)
	v.SetDefault("log_level", d.LogLevel.String())
	v.SetDefault("log_format", d.LogFormat)
}

// loadConfig merges defaults, config file, environment, flags, and the
// optional directory argument, then validates the result.
func loadConfig(v *viper.Viper, cmd *cobra.Command, args []string) (*types.MigrationConfig, error) {
	setDefaults(v)
	for name, key := range flagKeys {
		if key == "" {
			continue
		}
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	if len(args) > 0 {
		v.Set("source_directory", args[0])
	}
	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); noLedger {
		v.Set("ledger.enabled", false)
	}

	cfg := types.NewDefaultMigrationConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger described by cfg.
func newLogger(cfg *types.MigrationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
