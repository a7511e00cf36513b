// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// NewFromConfig wires the strategies for the formats cfg requests.
func NewFromConfig(cfg *types.MigrationConfig, inv process.Invoker, w io.Writer, logger *slog.Logger) (*Converter, error) {
	formats, err := cfg.Formats()
	if err != nil {
		return nil, err
	}

	var strategies []Strategy
	for _, f := range formats {
		switch f {
		case types.FormatPDF:
			tagger, err := newTagger(cfg, inv)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, NewPDFStrategy(Engines(cfg, inv), VerifyPages, tagger, logger))
		case types.FormatImage:
			strategies = append(strategies,
				NewScreenshotStrategy(cfg.Browsers(), cfg.Screenshot.Width, cfg.Screenshot.Height, inv))
		case types.FormatDocx:
			strategies = append(strategies, NewDocxStrategy(cfg.Tools.Pandoc, inv))
		case types.FormatMarkdown:
			body := NewBuiltinBody()
			if cfg.MarkdownEngine == types.MarkdownPandoc {
				body = NewPandocBody(cfg.Tools.Pandoc, inv)
			}
			strategies = append(strategies, NewMarkdownStrategy(body))
		}
	}
	return New(formats, strategies, w, logger)
}

// Engines returns the configured PDF engines in fallback order.
func Engines(cfg *types.MigrationConfig, inv process.Invoker) []Engine {
	names := cfg.Engines()
	engines := make([]Engine, 0, len(names))
	for _, name := range names {
		if name == types.EngineGofpdf {
			engines = append(engines, NewGofpdfEngine())
			continue
		}
		engines = append(engines, NewPandocEngine(name, cfg.Tools.Pandoc, inv))
	}
	return engines
}

func newTagger(cfg *types.MigrationConfig, inv process.Invoker) (Tagger, error) {
	switch cfg.Tagger {
	case types.TaggerExiftool:
		return NewExiftoolTagger(cfg.Tools.Exiftool, inv), nil
	case types.TaggerPDFCPU:
		return NewPDFCPUTagger(), nil
	default:
		return nil, fmt.Errorf("unknown tagger %q", cfg.Tagger)
	}
}

// RequiredTools returns the external binaries the requested formats invoke.
// Browser candidates are returned separately since any one of them will do.
func RequiredTools(cfg *types.MigrationConfig) (tools []string, browsers []string) {
	formats, err := cfg.Formats()
	if err != nil {
		return nil, nil
	}
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			tools = append(tools, name)
		}
	}
	for _, f := range formats {
		switch f {
		case types.FormatPDF:
			for _, e := range cfg.Engines() {
				if e != types.EngineGofpdf {
					add(cfg.Tools.Pandoc)
					add(e)
				}
			}
			if cfg.Tagger == types.TaggerExiftool {
				add(cfg.Tools.Exiftool)
			}
		case types.FormatImage:
			browsers = cfg.Browsers()
		case types.FormatDocx:
			add(cfg.Tools.Pandoc)
		case types.FormatMarkdown:
			if cfg.MarkdownEngine == types.MarkdownPandoc {
				add(cfg.Tools.Pandoc)
			}
		}
	}
	return tools, browsers
}
