// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Format identifies a derived artifact format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatImage    Format = "png"
	FormatDocx     Format = "docx"
	FormatMarkdown Format = "md"
)

// FormatOrder is the order in which formats are rendered for a note. The
// markdown rendition links to the PDF and image renditions, so it comes last.
var FormatOrder = []Format{FormatPDF, FormatImage, FormatDocx, FormatMarkdown}

// Extension returns the file extension, including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormat accepts a format name or one of its aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf", "document":
		return FormatPDF, nil
	case "png", "image":
		return FormatImage, nil
	case "docx", "word":
		return FormatDocx, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q: use pdf, png, docx, or md", s)
	}
}

// ParseFormats parses a comma-separated format list and returns the formats
// in rendering order, without duplicates.
func ParseFormats(list string) ([]Format, error) {
	want := make(map[Format]bool)
	for _, item := range SplitList(list) {
		f, err := ParseFormat(item)
		if err != nil {
			return nil, err
		}
		want[f] = true
	}
	formats := make([]Format, 0, len(want))
	for _, f := range FormatOrder {
		if want[f] {
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// SplitList splits a comma-separated list, dropping blank items.
func SplitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ArtifactStatus indicates what happened to one derived artifact.
type ArtifactStatus string

const (
	ArtifactConverted ArtifactStatus = "converted"
	ArtifactSkipped   ArtifactStatus = "skipped"
	ArtifactFailed    ArtifactStatus = "failed"
)

// Artifact is a derived output file of a note. Its identity is its path;
// an artifact already on disk is never overwritten.
type Artifact struct {
	Format Format         `json:"format" yaml:"format"`
	Path   string         `json:"path" yaml:"path"`
	Status ArtifactStatus `json:"status" yaml:"status"`

	// Engine names the rendering strategy that produced the file.
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`

	Err error `json:"-" yaml:"-"`
}
