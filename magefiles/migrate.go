//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Migrate builds the CLI and migrates the notes in dir.
func Migrate(dir string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "migrate", dir)
}

// DryRun builds the CLI and reports what migrating dir would do.
func DryRun(dir string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "migrate", "--dry-run", dir)
}

// History builds the CLI and lists recorded runs.
func History() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "history")
}

func lookPath(name string) (string, error) {
	return exec.LookPath(name)
}
