// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert derives artifact files from normalized notes. Each output
// format has one rendering Strategy; the PDF strategy walks an ordered chain
// of engines and tags the first rendition that succeeds.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/note-archiver/internal/naming"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// Job describes one note to convert.
type Job struct {
	// NotePath is the absolute path of the normalized note file.
	NotePath string
	Dir      string
	Base     string
	Title    string

	Properties types.NoteProperties

	paths map[types.Format]string
}

// NewJob builds a Job for the note at notePath. It fails with
// types.ErrMissingCreated when the note has no creation timestamp and with
// types.ErrInvalidCreated when the timestamp would place an artifact outside
// the note's directory.
func NewJob(notePath, title string, props types.NoteProperties) (Job, error) {
	dir := filepath.Dir(notePath)
	base := strings.TrimSuffix(filepath.Base(notePath), filepath.Ext(notePath))
	paths, err := naming.Paths(dir, props.Created, base, types.FormatOrder)
	if err != nil {
		return Job{}, err
	}
	return Job{
		NotePath:   notePath,
		Dir:        dir,
		Base:       base,
		Title:      title,
		Properties: props,
		paths:      paths,
	}, nil
}

// Path returns the artifact path for format f.
func (j Job) Path(f types.Format) string {
	return j.paths[f]
}

// DisplayTitle returns the note title, falling back to the base name.
func (j Job) DisplayTitle() string {
	if j.Title != "" {
		return j.Title
	}
	return j.Base
}

// Strategy renders one output format.
type Strategy interface {
	Format() types.Format

	// Render writes the artifact to out and returns the name of the engine
	// that produced it.
	Render(ctx context.Context, job Job, out string) (string, error)
}

// Converter renders the requested formats of a note, skipping artifacts
// that already exist.
type Converter struct {
	formats    []types.Format
	strategies map[types.Format]Strategy
	w          io.Writer
	logger     *slog.Logger
}

// New creates a Converter for formats. Every format needs a strategy.
// Per-artifact status lines are written to w.
func New(formats []types.Format, strategies []Strategy, w io.Writer, logger *slog.Logger) (*Converter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	byFormat := make(map[types.Format]Strategy, len(strategies))
	for _, s := range strategies {
		byFormat[s.Format()] = s
	}
	ordered := make([]types.Format, 0, len(formats))
	for _, f := range types.FormatOrder {
		for _, want := range formats {
			if want != f {
				continue
			}
			if byFormat[f] == nil {
				return nil, fmt.Errorf("no strategy for format %s", f)
			}
			ordered = append(ordered, f)
			break
		}
	}
	return &Converter{formats: ordered, strategies: byFormat, w: w, logger: logger}, nil
}

// Formats returns the formats the converter renders, in rendering order.
func (c *Converter) Formats() []types.Format {
	return c.formats
}

// ConvertNote renders every requested format of job in order. A failed
// format does not stop the remaining ones.
func (c *Converter) ConvertNote(ctx context.Context, job Job) []types.Artifact {
	logger := c.logger.With(slog.String("note", job.Base))
	artifacts := make([]types.Artifact, 0, len(c.formats))
	for _, f := range c.formats {
		artifacts = append(artifacts, c.convert(ctx, job, f, logger))
	}
	return artifacts
}

func (c *Converter) convert(ctx context.Context, job Job, f types.Format, logger *slog.Logger) types.Artifact {
	out := job.Path(f)
	name := filepath.Base(out)
	a := types.Artifact{Format: f, Path: out}

	if _, err := os.Stat(out); err == nil {
		fmt.Fprintf(c.w, "skipped: %s (already exists)\n", name)
		logger.Debug("artifact exists", slog.String("path", out))
		a.Status = types.ArtifactSkipped
		return a
	}

	engine, err := c.strategies[f].Render(ctx, job, out)
	if err != nil {
		if rmErr := removePartial(out); rmErr != nil {
			logger.Warn("removing partial artifact", slog.String("path", out), slog.String("error", rmErr.Error()))
		}
		fmt.Fprintf(c.w, "failed:  %s (%v)\n", name, err)
		logger.Error("conversion failed",
			slog.String("format", string(f)),
			slog.String("path", out),
			slog.String("error", err.Error()))
		a.Status = types.ArtifactFailed
		a.Err = err
		return a
	}

	fmt.Fprintf(c.w, "converted: %s\n", name)
	logger.Info("artifact written", slog.String("format", string(f)), slog.String("engine", engine))
	a.Status = types.ArtifactConverted
	a.Engine = engine
	return a
}

// removePartial deletes whatever a failed render left at out. The path did
// not exist before the render.
func removePartial(out string) error {
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
