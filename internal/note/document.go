// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package note loads exported notes and normalizes them in place.
package note

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/note-archiver/internal/metadata"
)

// filesSuffix is appended to a note's base name to form its attachment folder.
const filesSuffix = " files"

// Document is one parsed note file. It is owned by a single pipeline run.
type Document struct {
	// Path is the absolute path of the note file.
	Path string
	// Dir is the directory holding the note.
	Dir string
	// Base is the file name without extension.
	Base string
	// Ext is the file extension, including the dot.
	Ext string
	// Title is the trimmed text of the principal heading.
	Title string

	doc  *goquery.Document
	mode fs.FileMode
}

// Load reads and parses the note at path.
func Load(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", abs, err)
	}

	ext := filepath.Ext(abs)
	return &Document{
		Path:  abs,
		Dir:   filepath.Dir(abs),
		Base:  strings.TrimSuffix(filepath.Base(abs), ext),
		Ext:   ext,
		Title: metadata.Title(doc),
		doc:   doc,
		mode:  info.Mode().Perm(),
	}, nil
}

// Markup returns the parsed document tree.
func (d *Document) Markup() *goquery.Document {
	return d.doc
}

// Root returns the note root container; it is empty when the note has none.
func (d *Document) Root() *goquery.Selection {
	return metadata.Root(d.doc)
}

// FilesFolder returns the note's attachment folder when it exists on disk.
// The folder is never created.
func (d *Document) FilesFolder() (string, bool) {
	dir := filepath.Join(d.Dir, d.Base+filesSuffix)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

// Save serializes the whole document back over the original file.
func (d *Document) Save() error {
	out, err := d.doc.Html()
	if err != nil {
		return fmt.Errorf("serializing %s: %w", d.Path, err)
	}
	if err := os.WriteFile(d.Path, []byte(out), d.mode); err != nil {
		return fmt.Errorf("writing %s: %w", d.Path, err)
	}
	return nil
}
