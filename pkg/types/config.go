// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Tagger names.
const (
	TaggerExiftool = "exiftool"
	TaggerPDFCPU   = "pdfcpu"
)

// Markdown engine names.
const (
	MarkdownPandoc  = "pandoc"
	MarkdownBuiltin = "builtin"
)

// EngineGofpdf is the in-process PDF engine. Every other engine name is
// handed to pandoc as its --pdf-engine.
const EngineGofpdf = "gofpdf"

// ToolsConfig names the external binaries the converter invokes.
type ToolsConfig struct {
	// Pandoc is the document converter used for pdf, docx, and md.
	Pandoc string `json:"pandoc" yaml:"pandoc" mapstructure:"pandoc"`

	// Exiftool is the metadata tag writer used on rendered PDFs.
	Exiftool string `json:"exiftool" yaml:"exiftool" mapstructure:"exiftool"`

	// Browser is a comma-separated list of headless browser binaries; the
	// first one found on PATH takes the screenshots.
	Browser string `json:"browser" yaml:"browser" mapstructure:"browser"`
}

// Validate validates the tools configuration.
func (c *ToolsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Pandoc, validation.Required),
		validation.Field(&c.Exiftool, validation.Required),
		validation.Field(&c.Browser, validation.Required),
	)
}

// ScreenshotConfig holds the fixed viewport used for image renditions.
type ScreenshotConfig struct {
	Width  int `json:"width" yaml:"width" mapstructure:"width"`
	Height int `json:"height" yaml:"height" mapstructure:"height"`
}

// Validate validates the screenshot configuration.
func (c *ScreenshotConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(100), validation.Max(10000)),
		validation.Field(&c.Height, validation.Required, validation.Min(100), validation.Max(20000)),
	)
}

// LedgerConfig controls the SQLite run ledger.
type LedgerConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// MigrationConfig holds every setting of a migration run.
type MigrationConfig struct {
	// SourceDirectory is the directory holding the exported notes.
	SourceDirectory string `json:"source_directory" yaml:"source_directory" mapstructure:"source_directory"`

	// MaxFiles caps the number of notes processed; 0 means unlimited.
	MaxFiles int `json:"max_files" yaml:"max_files" mapstructure:"max_files"`

	// AbsolutePathPrefix is the export-time absolute root that references
	// start with (e.g. `C:\`).
	AbsolutePathPrefix string `json:"absolute_path_prefix" yaml:"absolute_path_prefix" mapstructure:"absolute_path_prefix"`

	// PDFEngines is the ordered, comma-separated engine fallback list.
	PDFEngines string `json:"pdf_engines" yaml:"pdf_engines" mapstructure:"pdf_engines"`

	// OutputFormats is the comma-separated list of requested formats.
	OutputFormats string `json:"output_formats" yaml:"output_formats" mapstructure:"output_formats"`

	// Concurrency bounds the number of notes in flight.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// IndexFile is the export's index page, never treated as a note.
	IndexFile string `json:"index_file" yaml:"index_file" mapstructure:"index_file"`

	// NoteExtension is the extension of note files (e.g. ".html").
	NoteExtension string `json:"note_extension" yaml:"note_extension" mapstructure:"note_extension"`

	// Tagger selects the PDF metadata writer: exiftool or pdfcpu.
	Tagger string `json:"tagger" yaml:"tagger" mapstructure:"tagger"`

	// MarkdownEngine selects the markdown renderer: pandoc or builtin.
	MarkdownEngine string `json:"markdown_engine" yaml:"markdown_engine" mapstructure:"markdown_engine"`

	// DryRun reports planned work without touching notes or tools.
	DryRun bool `json:"dry_run" yaml:"dry_run" mapstructure:"dry_run"`

	Tools      ToolsConfig      `json:"tools" yaml:"tools" mapstructure:"tools"`
	Screenshot ScreenshotConfig `json:"screenshot" yaml:"screenshot" mapstructure:"screenshot"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger" mapstructure:"ledger"`

	// LogLevel is parsed from its text form by the CLI.
	LogLevel  slog.Level `json:"log_level" yaml:"log_level" mapstructure:"-"`
	LogFormat string     `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
}

// Validate validates the configuration.
func (c *MigrationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.SourceDirectory, validation.Required),
		validation.Field(&c.MaxFiles, validation.Min(0)),
		validation.Field(&c.AbsolutePathPrefix, validation.Required),
		validation.Field(&c.PDFEngines, validation.Required),
		validation.Field(&c.OutputFormats, validation.Required),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.NoteExtension, validation.Required),
		validation.Field(&c.Tagger, validation.Required, validation.In(TaggerExiftool, TaggerPDFCPU)),
		validation.Field(&c.MarkdownEngine, validation.Required, validation.In(MarkdownPandoc, MarkdownBuiltin)),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
	); err != nil {
		return err
	}
	if _, err := c.Formats(); err != nil {
		return err
	}
	if len(c.Engines()) == 0 {
		return fmt.Errorf("pdf_engines: at least one engine is required")
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.Screenshot.Validate(); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// Formats returns the requested output formats in rendering order.
func (c *MigrationConfig) Formats() ([]Format, error) {
	formats, err := ParseFormats(c.OutputFormats)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("output_formats: at least one format is required")
	}
	return formats, nil
}

// Engines returns the configured PDF engines in fallback order.
func (c *MigrationConfig) Engines() []string {
	return SplitList(c.PDFEngines)
}

// Browsers returns the candidate browser binaries in preference order.
func (c *MigrationConfig) Browsers() []string {
	return SplitList(c.Tools.Browser)
}

// NewDefaultMigrationConfig returns a MigrationConfig with default values.
// SourceDirectory has no default and must be supplied.
func NewDefaultMigrationConfig() *MigrationConfig {
	return &MigrationConfig{
		AbsolutePathPrefix: `C:\`,
		PDFEngines:         "wkhtmltopdf,xelatex",
		OutputFormats:      "pdf",
		Concurrency:        4,
		IndexFile:          "index.html",
		NoteExtension:      ".html",
		Tagger:             TaggerExiftool,
		MarkdownEngine:     MarkdownPandoc,
		Tools: ToolsConfig{
			Pandoc:   "pandoc",
			Exiftool: "exiftool",
			Browser:  "chromium,chromium-browser,google-chrome",
		},
		Screenshot: ScreenshotConfig{
			Width:  1280,
			Height: 1600,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "note-archiver.db",
		},
		LogLevel:  slog.LevelInfo,
		LogFormat: "text",
	}
}
