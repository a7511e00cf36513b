// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package note

import (
	"fmt"
	"log/slog"

	"go.yaml.in/yaml/v3"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/note-archiver/internal/metadata"
	"github.com/pdiddy/note-archiver/internal/repair"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// MarkerClass is the class of the metadata block appended to a normalized
// note. Its presence under the note root means the note was already
// normalized.
const MarkerClass = "note-archiver-metadata"

// Result is the outcome of materializing one note.
type Result struct {
	Properties types.NoteProperties
	Title      string

	// AlreadyNormalized is true when the marker was found and nothing was
	// written.
	AlreadyNormalized bool

	Repair repair.Report
}

// Materializer normalizes notes and persists them exactly once.
type Materializer struct {
	repairer *repair.Repairer
	logger   *slog.Logger
}

// NewMaterializer creates a Materializer that repairs references with r.
func NewMaterializer(r *repair.Repairer, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Materializer{repairer: r, logger: logger}
}

// Normalized reports whether the marker block is a child of the note root.
func Normalized(d *Document) bool {
	return d.Root().ChildrenFiltered("pre." + MarkerClass).Length() > 0
}

// Materialize extracts the note's properties and, unless the note carries
// the marker already, appends the marker block, repairs references, and
// overwrites the note file. No backup of the original is kept.
func (m *Materializer) Materialize(d *Document) (Result, error) {
	logger := m.logger.With(slog.String("note", d.Base))
	res := Result{
		Properties: metadata.Extract(d.Markup()),
		Title:      d.Title,
	}

	root := d.Root()
	if root.Length() == 0 {
		return res, fmt.Errorf("%s: %w", d.Path, types.ErrNoNoteRoot)
	}

	if Normalized(d) {
		logger.Info("already normalized, leaving note untouched")
		res.AlreadyNormalized = true
		return res, nil
	}

	block, err := markerBlock(res.Properties)
	if err != nil {
		return res, err
	}
	root.AppendNodes(block)

	filesFolder, ok := d.FilesFolder()
	if !ok {
		logger.Debug("no files folder")
	}
	res.Repair = m.repairer.WithLogger(logger).Repair(root, d.Dir, filesFolder)

	if err := d.Save(); err != nil {
		return res, err
	}
	logger.Info("note normalized",
		slog.Int("fixed_references", res.Repair.Images.Fixed+res.Repair.Links.Fixed))
	return res, nil
}

// markerBlock renders the properties as YAML inside a pre element.
func markerBlock(props types.NoteProperties) (*html.Node, error) {
	data, err := yaml.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("marshaling note properties: %w", err)
	}
	pre := &html.Node{
		Type:     html.ElementNode,
		Data:     "pre",
		DataAtom: atom.Pre,
		Attr:     []html.Attribute{{Key: "class", Val: MarkerClass}},
	}
	pre.AppendChild(&html.Node{Type: html.TextNode, Data: string(data)})
	return pre, nil
}
