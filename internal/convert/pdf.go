// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// Engine renders a note to PDF.
type Engine interface {
	Name() string
	Render(ctx context.Context, job Job, out string) error
}

// pandocEngine hands the note to pandoc with a named --pdf-engine.
type pandocEngine struct {
	name   string
	pandoc string
	inv    process.Invoker
}

// NewPandocEngine returns an Engine that runs pandoc with --pdf-engine=name.
func NewPandocEngine(name, pandoc string, inv process.Invoker) Engine {
	return &pandocEngine{name: name, pandoc: pandoc, inv: inv}
}

func (e *pandocEngine) Name() string { return e.name }

func (e *pandocEngine) Render(ctx context.Context, job Job, out string) error {
	return e.inv.Invoke(ctx, process.Command{
		Name: e.pandoc,
		Args: []string{
			job.NotePath,
			"-o", out,
			"--metadata", "title=" + job.DisplayTitle(),
			"--pdf-engine=" + e.name,
		},
		Dir: job.Dir,
	})
}

var pdfcpuOnce sync.Once

// initPDFCPU keeps pdfcpu from creating a user configuration directory.
func initPDFCPU() {
	pdfcpuOnce.Do(api.DisableConfigDir)
}

// VerifyFunc checks a freshly rendered PDF.
type VerifyFunc func(path string) error

// VerifyPages fails unless pdfcpu can read at least one page from path.
func VerifyPages(path string) error {
	initPDFCPU()
	n, err := api.PageCountFile(path)
	if err != nil {
		return fmt.Errorf("reading rendered pdf: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("rendered pdf has no pages")
	}
	return nil
}

// pdfStrategy tries each engine in order until one produces a valid PDF,
// then tags it once.
type pdfStrategy struct {
	engines []Engine
	verify  VerifyFunc
	tagger  Tagger
	logger  *slog.Logger
}

// NewPDFStrategy returns the PDF Strategy. A nil verify accepts any file the
// engine reports as written; a nil tagger skips tagging.
func NewPDFStrategy(engines []Engine, verify VerifyFunc, tagger Tagger, logger *slog.Logger) Strategy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &pdfStrategy{engines: engines, verify: verify, tagger: tagger, logger: logger}
}

func (s *pdfStrategy) Format() types.Format { return types.FormatPDF }

func (s *pdfStrategy) Render(ctx context.Context, job Job, out string) (string, error) {
	logger := s.logger.With(slog.String("note", job.Base))
	var errs []error
	for _, e := range s.engines {
		err := e.Render(ctx, job, out)
		if err == nil && s.verify != nil {
			err = s.verify(out)
		}
		if err != nil {
			logger.Warn("pdf engine failed",
				slog.String("engine", e.Name()),
				slog.String("path", out),
				slog.String("error", err.Error()))
			if rmErr := removePartial(out); rmErr != nil {
				return "", fmt.Errorf("engine %s: removing partial output: %w", e.Name(), rmErr)
			}
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}

		if s.tagger != nil {
			if err := s.tagger.Tag(ctx, out, job.Properties); err != nil {
				logger.Warn("tagging pdf failed",
					slog.String("tagger", s.tagger.Name()),
					slog.String("path", out),
					slog.String("error", err.Error()))
			}
		}
		return e.Name(), nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no engines configured", types.ErrAllEnginesFailed)
	}
	return "", fmt.Errorf("%w: %w", types.ErrAllEnginesFailed, errors.Join(errs...))
}
