// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package migrate drives a batch: it enumerates the exported notes of a
// directory and runs every note through normalization and conversion.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/note-archiver/internal/convert"
	"github.com/pdiddy/note-archiver/internal/metadata"
	"github.com/pdiddy/note-archiver/internal/naming"
	"github.com/pdiddy/note-archiver/internal/note"
	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/internal/repair"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// Recorder receives the outcome of every processed note.
type Recorder interface {
	RecordNote(ctx context.Context, res types.NoteResult) error
}

// Coordinator runs the per-note pipeline over a directory of notes.
type Coordinator struct {
	cfg          *types.MigrationConfig
	inv          process.Invoker
	materializer *note.Materializer
	converter    *convert.Converter
	recorder     Recorder
	w            io.Writer
	logger       *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecorder sends every note result to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithConverter replaces the converter built from the configuration.
func WithConverter(conv *convert.Converter) Option {
	return func(c *Coordinator) { c.converter = conv }
}

// New creates a Coordinator. Status lines go to w, which may be shared by
// concurrently processed notes.
func New(cfg *types.MigrationConfig, inv process.Invoker, w io.Writer, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	batchRoot, err := filepath.Abs(cfg.SourceDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.SourceDirectory, err)
	}
	c := &Coordinator{
		cfg:          cfg,
		inv:          inv,
		materializer: note.NewMaterializer(repair.New(cfg.AbsolutePathPrefix, batchRoot, logger), logger),
		w:            &lockedWriter{w: w},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.converter == nil {
		conv, err := convert.NewFromConfig(cfg, inv, c.w, logger)
		if err != nil {
			return nil, err
		}
		c.converter = conv
	}
	return c, nil
}

// IsCandidate reports whether name looks like a note file: the configured
// extension, compared case-insensitively, and not the index file.
func (c *Coordinator) IsCandidate(name string) bool {
	base := filepath.Base(name)
	if strings.EqualFold(base, c.cfg.IndexFile) {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), c.cfg.NoteExtension)
}

// Candidates returns the note files of the source directory in name order,
// capped by MaxFiles.
func (c *Coordinator) Candidates() ([]string, error) {
	dir := c.cfg.SourceDirectory
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", dir, types.ErrSourceUnreadable, err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !c.IsCandidate(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	if c.cfg.MaxFiles > 0 && len(out) > c.cfg.MaxFiles {
		out = out[:c.cfg.MaxFiles]
	}
	return out, nil
}

// Preflight logs a warning for every external tool the requested formats
// need that is not on PATH, and returns their names. Artifacts depending on
// a missing tool fail individually.
func (c *Coordinator) Preflight() []string {
	tools, browsers := convert.RequiredTools(c.cfg)
	missing := process.Missing(c.inv, tools...)
	for _, m := range missing {
		c.logger.Warn("tool not found on PATH", slog.String("tool", m))
	}
	if len(browsers) > 0 {
		if _, err := process.Detect(c.inv, browsers...); err != nil {
			c.logger.Warn("no headless browser found", slog.String("candidates", strings.Join(browsers, ",")))
			missing = append(missing, browsers...)
		}
	}
	return missing
}

// Run processes every candidate note, at most Concurrency at a time, and
// prints the batch summary once all of them finished. Cancelling ctx stops
// new notes from starting; notes in flight run to completion.
//
// The returned error wraps types.ErrSourceUnreadable, types.ErrNoNotes, or
// types.ErrPartialFailure, or is ctx's error after a cancellation.
func (c *Coordinator) Run(ctx context.Context) (types.BatchStats, error) {
	var stats types.BatchStats

	candidates, err := c.Candidates()
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(candidates)
	c.logger.Info("notes found", slog.Int("count", len(candidates)), slog.String("dir", c.cfg.SourceDirectory))
	if len(candidates) == 0 {
		return stats, fmt.Errorf("%s: %w", c.cfg.SourceDirectory, types.ErrNoNotes)
	}
	if !c.cfg.DryRun {
		c.Preflight()
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.cfg.Concurrency)
	inflight := context.WithoutCancel(ctx)
	total := len(candidates)

	for i, path := range candidates {
		if ctx.Err() != nil {
			c.logger.Warn("batch cancelled, not starting remaining notes", slog.Int("remaining", total-i))
			break
		}
		g.Go(func() error {
			fmt.Fprintf(c.w, "[%d/%d] %s\n", i+1, total, filepath.Base(path))
			res := c.ProcessNote(inflight, path)

			mu.Lock()
			stats.Add(res)
			mu.Unlock()

			if c.recorder != nil && !c.cfg.DryRun {
				if err := c.recorder.RecordNote(inflight, res); err != nil {
					c.logger.Warn("recording note", slog.String("note", res.Base), slog.String("error", err.Error()))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Fprintf(c.w, "\nBatch summary: %d candidates, %d processed, %d normalized, %d already normalized, "+
		"%d converted, %d skipped, %d failed (%d artifacts failed)\n",
		stats.Candidates, stats.Processed, stats.Normalized, stats.AlreadyNormalized,
		stats.Converted, stats.Skipped, stats.Failed, stats.ArtifactsFailed)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.HasFailures() {
		return stats, fmt.Errorf("%d of %d notes: %w", stats.Failed, stats.Processed, types.ErrPartialFailure)
	}
	return stats, nil
}

// ProcessNote normalizes the note at path and renders its artifacts. It
// never panics; any failure is reported in the result.
func (c *Coordinator) ProcessNote(ctx context.Context, path string) (res types.NoteResult) {
	res.Path = path
	res.Base = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	logger := c.logger.With(slog.String("note", res.Base))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("note pipeline panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			res.Status = types.NoteFailed
			res.Err = fmt.Errorf("panic processing %s: %v", res.Base, r)
			fmt.Fprintf(c.w, "failed:  %s (%v)\n", res.Base, res.Err)
		}
	}()

	doc, err := note.Load(path)
	if err != nil {
		return c.noteFailed(res, logger, err)
	}
	res.Path = doc.Path
	res.Title = doc.Title

	if c.cfg.DryRun {
		return c.plan(res, doc)
	}

	mres, err := c.materializer.Materialize(doc)
	res.Properties = mres.Properties
	if err != nil {
		return c.noteFailed(res, logger, err)
	}
	res.Status = types.NoteNormalized
	if mres.AlreadyNormalized {
		res.Status = types.NoteAlreadyNormalized
	}
	res.FixedReferences = mres.Repair.Images.Fixed + mres.Repair.Links.Fixed
	res.PDFLinked = mres.Repair.PDFLinked

	job, err := convert.NewJob(doc.Path, doc.Title, mres.Properties)
	if err != nil {
		logger.Error("cannot name artifacts", slog.String("error", err.Error()))
		fmt.Fprintf(c.w, "failed:  %s (%v)\n", res.Base, err)
		for _, f := range c.converter.Formats() {
			res.Artifacts = append(res.Artifacts, types.Artifact{Format: f, Status: types.ArtifactFailed, Err: err})
		}
		res.Err = err
		return res
	}
	res.Artifacts = c.converter.ConvertNote(ctx, job)
	return res
}

func (c *Coordinator) noteFailed(res types.NoteResult, logger *slog.Logger, err error) types.NoteResult {
	logger.Error("note failed", slog.String("error", err.Error()))
	fmt.Fprintf(c.w, "failed:  %s (%v)\n", res.Base, err)
	res.Status = types.NoteFailed
	res.Err = err
	return res
}

// plan reports what a real run would do without touching the note.
func (c *Coordinator) plan(res types.NoteResult, doc *note.Document) types.NoteResult {
	res.Status = types.NotePlanned
	res.Properties = metadata.Extract(doc.Markup())
	if note.Normalized(doc) {
		fmt.Fprintf(c.w, "planned: %s (already normalized)\n", res.Base)
	} else {
		fmt.Fprintf(c.w, "planned: %s (normalize)\n", res.Base)
	}
	for _, f := range c.converter.Formats() {
		p, err := naming.ArtifactPath(doc.Dir, res.Properties.Created, doc.Base, f)
		if err != nil {
			fmt.Fprintf(c.w, "planned: %s (%v)\n", res.Base, err)
			return res
		}
		state := "render"
		if _, err := os.Stat(p); err == nil {
			state = "exists"
		}
		fmt.Fprintf(c.w, "planned: %s (%s)\n", filepath.Base(p), state)
	}
	return res
}

// lockedWriter serializes writes from concurrently processed notes.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
