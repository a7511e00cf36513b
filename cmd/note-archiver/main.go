// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the note-archiver CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/note-archiver/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	exitOK             = 0
	exitConfig         = 1
	exitUnreadable     = 2
	exitNoNotes        = 3
	exitPartialFailure = 4
	exitInterrupted    = 130
)

// rootCmd is the base command for the note-archiver CLI.
var rootCmd = &cobra.Command{
	Use:   "note-archiver",
	Short: "Migrate exported HTML notes into normalized archival documents",
	Long: `note-archiver normalizes a directory of exported HTML notes in place and
derives archival renditions from each one: PDF, page image, word-processor
document, and markdown.

References to the export-time absolute root are rewritten to relative paths,
metadata is preserved in a marker block, and every artifact is named
"<created> - <note>.<ext>" next to its note. Reruns skip work already done.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./note-archiver.yaml or ~/.config/note-archiver/note-archiver.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("note-archiver")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "note-archiver"))
		}
	}

	viper.SetEnvPrefix("NOTE_ARCHIVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, types.ErrSourceUnreadable):
		return exitUnreadable
	case errors.Is(err, types.ErrNoNotes):
		return exitNoNotes
	case errors.Is(err, types.ErrPartialFailure):
		return exitPartialFailure
	default:
		return exitConfig
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
