// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// screenshotStrategy captures the note with a headless browser at a fixed
// viewport.
type screenshotStrategy struct {
	browsers      []string
	inv           process.Invoker
	width, height int
}

// NewScreenshotStrategy returns the image Strategy. The first browser in
// browsers found on PATH takes the screenshot.
func NewScreenshotStrategy(browsers []string, width, height int, inv process.Invoker) Strategy {
	return &screenshotStrategy{browsers: browsers, inv: inv, width: width, height: height}
}

func (s *screenshotStrategy) Format() types.Format { return types.FormatImage }

func (s *screenshotStrategy) Render(ctx context.Context, job Job, out string) (string, error) {
	browser, err := process.Detect(s.inv, s.browsers...)
	if err != nil {
		return "", err
	}
	err = s.inv.Invoke(ctx, process.Command{
		Name: browser,
		Args: []string{
			"--headless",
			"--disable-gpu",
			"--hide-scrollbars",
			"--screenshot=" + out,
			"--window-size=" + strconv.Itoa(s.width) + "," + strconv.Itoa(s.height),
			FileURL(job.NotePath),
		},
		Dir: job.Dir,
	})
	if err != nil {
		return "", err
	}
	return browser, nil
}

// FileURL returns the file:// URL of an absolute path.
func FileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// docxStrategy converts the note with pandoc.
type docxStrategy struct {
	pandoc string
	inv    process.Invoker
}

// NewDocxStrategy returns the word-processor Strategy.
func NewDocxStrategy(pandoc string, inv process.Invoker) Strategy {
	return &docxStrategy{pandoc: pandoc, inv: inv}
}

func (s *docxStrategy) Format() types.Format { return types.FormatDocx }

func (s *docxStrategy) Render(ctx context.Context, job Job, out string) (string, error) {
	err := s.inv.Invoke(ctx, process.Command{
		Name: s.pandoc,
		Args: []string{job.NotePath, "-o", out, "--metadata", "title=" + job.DisplayTitle()},
		Dir:  job.Dir,
	})
	if err != nil {
		return "", err
	}
	return "pandoc", nil
}

// markdownStrategy writes the label line, the body, and links to the PDF
// and image renditions rendered before it.
type markdownStrategy struct {
	body BodyRenderer
}

// NewMarkdownStrategy returns the portable-markup Strategy.
func NewMarkdownStrategy(body BodyRenderer) Strategy {
	return &markdownStrategy{body: body}
}

func (s *markdownStrategy) Format() types.Format { return types.FormatMarkdown }

func (s *markdownStrategy) Render(ctx context.Context, job Job, out string) (string, error) {
	body, err := s.body.Body(ctx, job)
	if err != nil {
		return "", err
	}
	content := MarkdownDocument(job, body)
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}
	return s.body.Name(), nil
}

// LabelLine renders tags as a space-joined, hash-prefixed list. Tags are
// used verbatim. It returns "" when there are no tags.
func LabelLine(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	labels := make([]string, len(tags))
	for i, t := range tags {
		labels[i] = "#" + t
	}
	return strings.Join(labels, " ")
}

// MarkdownDocument assembles the markdown artifact for job around body.
func MarkdownDocument(job Job, body string) string {
	var b strings.Builder
	if label := LabelLine(job.Properties.Tags); label != "" {
		b.WriteString(label)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")

	var links []string
	if p := job.Path(types.FormatPDF); exists(p) {
		links = append(links, "[PDF](<"+filepath.Base(p)+">)")
	}
	if p := job.Path(types.FormatImage); exists(p) {
		links = append(links, "![PNG](<"+filepath.Base(p)+">)")
	}
	if len(links) > 0 {
		b.WriteString("\n")
		for _, l := range links {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
