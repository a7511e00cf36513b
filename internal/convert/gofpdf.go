// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/pdiddy/note-archiver/pkg/types"
)

var (
	reItalic     = regexp.MustCompile(`(?:^|\s)\*([^*]+)\*(?:\s|$)`)
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	reLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
	reNumbered   = regexp.MustCompile(`^\d+\.\s`)
)

var headingSizes = map[int]float64{1: 18, 2: 15, 3: 13, 4: 12, 5: 11, 6: 10}

// gofpdfEngine lays out the note's markdown body in-process. It needs no
// external tools, so it is a last-resort engine behind pandoc ones. Images
// are not embedded.
type gofpdfEngine struct{}

// NewGofpdfEngine returns the in-process PDF engine.
func NewGofpdfEngine() Engine { return gofpdfEngine{} }

func (gofpdfEngine) Name() string { return types.EngineGofpdf }

func (gofpdfEngine) Render(_ context.Context, job Job, out string) error {
	body, err := NoteMarkdown(job.NotePath)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(job.DisplayTitle(), true)
	pdf.SetKeywords(strings.Join(job.Properties.Tags, " "), true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 8, tr(job.DisplayTitle()), "", "L", false)
	pdf.Ln(2)
	if job.Properties.Created != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 5, tr("Created: "+job.Properties.Created), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)

	writeMarkdown(pdf, body, tr)

	if err := pdf.OutputFileAndClose(out); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	return nil
}

// writeMarkdown renders markdown line by line: headings, code blocks,
// list items, and paragraphs.
func writeMarkdown(pdf *gofpdf.Fpdf, markdown string, tr func(string) string) {
	inCode := false
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
			pdf.Ln(2)
			continue
		}
		if inCode {
			pdf.SetFont("Courier", "", 9)
			pdf.SetFillColor(245, 245, 245)
			pdf.MultiCell(0, 4.5, tr(line), "", "L", true)
			continue
		}

		switch {
		case trimmed == "":
			pdf.Ln(3)
		case strings.HasPrefix(trimmed, "#"):
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			renderHeading(pdf, tr(cleanInlineMarkdown(strings.TrimLeft(trimmed, "# "))), level)
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr("• "+cleanInlineMarkdown(trimmed[2:])), "", "L", false)
		case reNumbered.MatchString(trimmed):
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(cleanInlineMarkdown(trimmed)), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(cleanInlineMarkdown(line)), "", "L", false)
		}
	}
}

func renderHeading(pdf *gofpdf.Fpdf, text string, level int) {
	size, ok := headingSizes[level]
	if !ok {
		size = 10
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", size)
	pdf.MultiCell(0, size*0.6, text, "", "L", false)
	pdf.Ln(2)
}

// cleanInlineMarkdown strips inline markdown syntax, keeping the text.
func cleanInlineMarkdown(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = reItalic.ReplaceAllString(text, " $1 ")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reImage.ReplaceAllString(text, "$1")
	text = reLink.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
