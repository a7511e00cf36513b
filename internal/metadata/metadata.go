// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metadata reads the structured properties and title embedded in an
// exported note.
//
// Notes carry their properties as meta elements under the note root:
//
//	<div class="html-note">
//	  <h1>Trip</h1>
//	  <meta itemprop="created" content="20200207T232114Z">
//	  <meta itemprop="tag" content="travel">
//	  <note-attributes>
//	    <meta itemprop="source-url" content="https://example.com/">
//	  </note-attributes>
//	</div>
package metadata

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/note-archiver/pkg/types"
)

const (
	// RootSelector matches the container that holds a note's content.
	RootSelector = "div.html-note"

	titleSelector = RootSelector + " > h1"
	metaSelector  = "meta[itemprop]"
)

// Root returns the note root container, or an empty selection when the
// document has none.
func Root(doc *goquery.Document) *goquery.Selection {
	return doc.Find(RootSelector).First()
}

// Title returns the trimmed text of the note's principal heading.
func Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find(titleSelector).First().Text())
}

// Extract collects the properties of every meta element scoped under the
// note root, in document order. Tag entries accumulate; any other name
// overwrites the previous value. Missing fields are simply left empty.
func Extract(doc *goquery.Document) types.NoteProperties {
	var props types.NoteProperties
	Root(doc).Find(metaSelector).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.AttrOr("itemprop", ""))
		if name == "" {
			return
		}
		props.Set(name, s.AttrOr("content", ""))
	})
	return props
}
