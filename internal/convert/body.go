// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/note-archiver/internal/metadata"
	"github.com/pdiddy/note-archiver/internal/process"
)

// BodyRenderer turns a note into a markdown body.
type BodyRenderer interface {
	Name() string
	Body(ctx context.Context, job Job) (string, error)
}

// builtinBody converts the note root with html-to-markdown.
type builtinBody struct{}

// NewBuiltinBody returns the in-process markdown renderer.
func NewBuiltinBody() BodyRenderer { return builtinBody{} }

func (builtinBody) Name() string { return "builtin" }

func (builtinBody) Body(_ context.Context, job Job) (string, error) {
	return NoteMarkdown(job.NotePath)
}

// NoteMarkdown reads the note at path and converts its root container to
// markdown. The marker block and the principal heading are left out.
func NoteMarkdown(path string) (string, error) {
	inner, err := noteContent(path)
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(inner)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// noteContent returns the inner HTML of the note root (the body when there is
// no root) without the marker block, the meta elements, or the principal
// heading. Both markdown engines render this same content.
func noteContent(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	root := metadata.Root(doc)
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	root = root.Clone()
	root.Find("pre.note-archiver-metadata, meta").Remove()
	root.ChildrenFiltered("h1").First().Remove()

	inner, err := root.Html()
	if err != nil {
		return "", fmt.Errorf("serializing %s: %w", path, err)
	}
	return inner, nil
}

// pandocBody converts the note with pandoc, keeping raw HTML that markdown
// cannot express.
type pandocBody struct {
	pandoc string
	inv    process.Invoker
}

// NewPandocBody returns a BodyRenderer backed by pandoc.
func NewPandocBody(pandoc string, inv process.Invoker) BodyRenderer {
	return &pandocBody{pandoc: pandoc, inv: inv}
}

func (b *pandocBody) Name() string { return "pandoc" }

// Body pipes the cleaned note content through pandoc. It runs in the note's
// directory so relative references resolve as they do for the note itself.
func (b *pandocBody) Body(ctx context.Context, job Job) (string, error) {
	inner, err := noteContent(job.NotePath)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = b.inv.Invoke(ctx, process.Command{
		Name:   b.pandoc,
		Args:   []string{"-f", "html", "-t", "markdown+raw_html"},
		Dir:    job.Dir,
		Stdin:  strings.NewReader(inner),
		Stdout: &out,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}
