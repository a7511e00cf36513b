// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package repair rewrites the resource references of an exported note so the
// note renders from its own directory: absolute export-time paths become
// relative, images get a usable width, and an embedded PDF placeholder is
// promoted to a real link when the attachment exists.
package repair

import (
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// RelativeRoot replaces the absolute prefix of rewritten references.
	RelativeRoot = "./"

	// FullWidth is the width forced onto images without a real width.
	FullWidth = "100%"

	pdfMediaType = "application/pdf"
)

// RewriteStats counts the references seen by one rewriting pass.
type RewriteStats struct {
	// Total is the number of elements carrying the attribute.
	Total int
	// Fixed is the number of references that started with the prefix.
	Fixed int
	// Missing is the number of fixed references not found on disk.
	Missing int
}

// Report summarizes a full repair of one note.
type Report struct {
	Images    RewriteStats
	Links     RewriteStats
	Resized   int
	PDFLink   string
	PDFLinked bool
}

// Repairer applies the reference repairs to a note root.
type Repairer struct {
	prefix    string
	batchRoot string
	logger    *slog.Logger
}

// New creates a Repairer. prefix is the export-time absolute root and
// batchRoot the directory that promoted PDF links are made relative to.
func New(prefix, batchRoot string, logger *slog.Logger) *Repairer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Repairer{prefix: prefix, batchRoot: batchRoot, logger: logger}
}

// WithLogger returns a copy of r that logs to logger.
func (r *Repairer) WithLogger(logger *slog.Logger) *Repairer {
	cp := *r
	cp.logger = logger
	return &cp
}

// Repair runs every repair in order: image sources, then link targets, then
// image widths, then PDF placeholder promotion. noteDir is the directory
// holding the note; filesFolder is its attachment folder, or "" when the
// note has none. Every step is best-effort.
func (r *Repairer) Repair(root *goquery.Selection, noteDir, filesFolder string) Report {
	var rep Report
	rep.Images = RewriteReferences(root, "img", "src", r.prefix, noteDir)
	rep.Links = RewriteReferences(root, "a", "href", r.prefix, noteDir)
	rep.Resized = NormalizeImageWidths(root)
	rep.PDFLink, rep.PDFLinked = PromotePDFPlaceholder(root, filesFolder, r.batchRoot)

	r.logger.Debug("references rewritten",
		slog.Int("images_total", rep.Images.Total),
		slog.Int("images_fixed", rep.Images.Fixed),
		slog.Int("links_total", rep.Links.Total),
		slog.Int("links_fixed", rep.Links.Fixed),
		slog.Int("resized", rep.Resized))
	if missing := rep.Images.Missing + rep.Links.Missing; missing > 0 {
		r.logger.Warn("rewritten references not found on disk", slog.Int("missing", missing))
	}
	if rep.PDFLinked {
		r.logger.Info("pdf placeholder linked", slog.String("href", rep.PDFLink))
	}
	return rep
}

// RewriteReferences rewrites attr on every element matching selector whose
// value starts with prefix. The prefix becomes RelativeRoot and backslashes
// become forward slashes; other values are left untouched. Rewritten
// references are checked against noteDir and counted as missing when absent.
func RewriteReferences(root *goquery.Selection, selector, attr, prefix, noteDir string) RewriteStats {
	var stats RewriteStats
	root.Find(selector).Each(func(_ int, s *goquery.Selection) {
		val, ok := s.Attr(attr)
		if !ok {
			return
		}
		stats.Total++
		if prefix == "" || !strings.HasPrefix(val, prefix) {
			return
		}
		fixed := relativize(val, prefix)
		s.SetAttr(attr, fixed)
		stats.Fixed++
		if noteDir != "" && !exists(noteDir, fixed) {
			stats.Missing++
		}
	})
	return stats
}

func relativize(val, prefix string) string {
	rest := strings.ReplaceAll(strings.TrimPrefix(val, prefix), `\`, "/")
	return RelativeRoot + strings.TrimLeft(rest, "/")
}

func exists(dir, ref string) bool {
	p := strings.TrimPrefix(ref, RelativeRoot)
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p)))
	return err == nil
}

// NormalizeImageWidths sets FullWidth on every image whose width is absent
// or "auto", except inline data URIs. It returns the number of images changed.
func NormalizeImageWidths(root *goquery.Selection) int {
	changed := 0
	root.Find("img").Each(func(_ int, s *goquery.Selection) {
		if strings.HasPrefix(strings.TrimSpace(s.AttrOr("src", "")), "data:") {
			return
		}
		width, ok := s.Attr("width")
		if ok && width != "auto" {
			return
		}
		s.SetAttr("width", FullWidth)
		changed++
	})
	return changed
}

// PromotePDFPlaceholder turns the first embedded PDF placeholder into a link.
//
// The export renders an embedded PDF as an element typed application/pdf
// whose icon child is followed by a sibling holding the file name. When
// filesFolder contains that file, the sibling is replaced by an anchor whose
// href is the file's path relative to batchRoot. It returns the href and
// whether the placeholder was promoted; anything else leaves it unchanged.
func PromotePDFPlaceholder(root *goquery.Selection, filesFolder, batchRoot string) (string, bool) {
	if filesFolder == "" {
		return "", false
	}
	holder := root.Find(`[type="` + pdfMediaType + `"]`).First()
	if holder.Length() == 0 {
		return "", false
	}
	icon := holder.ChildrenFiltered("img").First()
	if icon.Length() == 0 {
		icon = holder.Children().First()
	}
	label := icon.Next()
	if label.Length() == 0 {
		return "", false
	}
	name := strings.TrimSpace(label.Text())
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", false
	}

	target := filepath.Join(filesFolder, name)
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", false
	}

	href := target
	if rel, err := filepath.Rel(batchRoot, target); err == nil {
		href = rel
	}
	href = filepath.ToSlash(href)

	label.ReplaceWithNodes(anchor(href, " "+name))
	return href, true
}

func anchor(href, text string) *html.Node {
	a := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr:     []html.Attribute{{Key: "href", Val: href}},
	}
	a.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return a
}
