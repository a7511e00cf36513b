// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package process runs the external tools the converter delegates to:
// pandoc, exiftool, and a headless browser.
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/note-archiver/pkg/types"
)

// maxStderr bounds the stderr excerpt carried in an invocation error.
const maxStderr = 512

// Command is one external tool invocation.
type Command struct {
	// Name is the binary, resolved against PATH.
	Name string
	// Args is the argument vector, passed without a shell.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Stdin feeds the tool's standard input; nil means no input.
	Stdin io.Reader
	// Stdout receives the tool's standard output; nil discards it.
	Stdout io.Writer
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Invoker runs external tools.
type Invoker interface {
	// Invoke runs cmd to completion. A non-zero exit is an error.
	Invoke(ctx context.Context, cmd Command) error

	// Available reports whether the named binary is on PATH.
	Available(name string) bool
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, cmd Command, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, c Command, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Runner implements Invoker on top of an executor.
type Runner struct {
	exec executor
}

var _ Invoker = (*Runner)(nil)

// NewRunner returns a Runner that executes real processes.
func NewRunner() *Runner {
	return &Runner{exec: &osExecutor{}}
}

// Invoke runs cmd and folds the tail of its stderr into any error.
func (r *Runner) Invoke(ctx context.Context, cmd Command) error {
	var stderr bytes.Buffer
	if err := r.exec.Run(ctx, cmd, &stderr); err != nil {
		if msg := excerpt(stderr.String()); msg != "" {
			return fmt.Errorf("running %s: %w: %s", cmd.Name, err, msg)
		}
		return fmt.Errorf("running %s: %w", cmd.Name, err)
	}
	return nil
}

// Available reports whether name resolves on PATH.
func (r *Runner) Available(name string) bool {
	_, err := r.exec.LookPath(name)
	return err == nil
}

// Detect returns the first candidate binary inv finds on PATH.
func Detect(inv Invoker, candidates ...string) (string, error) {
	for _, c := range candidates {
		if inv.Available(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("none of %s found: %w", strings.Join(candidates, ", "), types.ErrToolUnavailable)
}

// Missing returns the names inv cannot find on PATH, in the order given.
func Missing(inv Invoker, names ...string) []string {
	var out []string
	for _, n := range names {
		if !inv.Available(n) {
			out = append(out, n)
		}
	}
	return out
}

// excerpt keeps the last maxStderr bytes of s, starting on a rune boundary.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxStderr {
		return s
	}
	start := len(s) - maxStderr
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
