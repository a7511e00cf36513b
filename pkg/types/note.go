// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Well-known metadata names carried by exported notes.
const (
	PropTitle             = "title"
	PropCreated           = "created"
	PropUpdated           = "updated"
	PropAuthor            = "author"
	PropSource            = "source"
	PropSourceURL         = "source-url"
	PropSourceApplication = "source-application"
	PropTag               = "tag"
)

// Property is a metadata entry whose name has no dedicated field.
type Property struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// NoteProperties holds the metadata extracted from a note's embedded meta
// elements. Scalar fields keep the last value seen for their name; Tags keeps
// every tag entry in encounter order, duplicates included.
type NoteProperties struct {
	Title             string     `json:"title,omitempty" yaml:"title,omitempty"`
	Created           string     `json:"created,omitempty" yaml:"created,omitempty"`
	Updated           string     `json:"updated,omitempty" yaml:"updated,omitempty"`
	Author            string     `json:"author,omitempty" yaml:"author,omitempty"`
	Source            string     `json:"source,omitempty" yaml:"source,omitempty"`
	SourceURL         string     `json:"source_url,omitempty" yaml:"source-url,omitempty"`
	SourceApplication string     `json:"source_application,omitempty" yaml:"source-application,omitempty"`
	Tags              []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Extra             []Property `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Set assigns a scalar property by its metadata name, overwriting any
// earlier value. Tag entries are appended instead.
func (p *NoteProperties) Set(name, value string) {
	switch name {
	case PropTag:
		p.Tags = append(p.Tags, value)
	case PropTitle:
		p.Title = value
	case PropCreated:
		p.Created = value
	case PropUpdated:
		p.Updated = value
	case PropAuthor:
		p.Author = value
	case PropSource:
		p.Source = value
	case PropSourceURL:
		p.SourceURL = value
	case PropSourceApplication:
		p.SourceApplication = value
	default:
		for i := range p.Extra {
			if p.Extra[i].Name == name {
				p.Extra[i].Value = value
				return
			}
		}
		p.Extra = append(p.Extra, Property{Name: name, Value: value})
	}
}

// Get returns the scalar value stored under a metadata name.
func (p NoteProperties) Get(name string) (string, bool) {
	switch name {
	case PropTitle:
		return p.Title, p.Title != ""
	case PropCreated:
		return p.Created, p.Created != ""
	case PropUpdated:
		return p.Updated, p.Updated != ""
	case PropAuthor:
		return p.Author, p.Author != ""
	case PropSource:
		return p.Source, p.Source != ""
	case PropSourceURL:
		return p.SourceURL, p.SourceURL != ""
	case PropSourceApplication:
		return p.SourceApplication, p.SourceApplication != ""
	}
	for _, e := range p.Extra {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// NoteStatus records what the pipeline did with a note's own file.
type NoteStatus string

const (
	NoteNormalized        NoteStatus = "normalized"
	NoteAlreadyNormalized NoteStatus = "already-normalized"
	NotePlanned           NoteStatus = "planned"
	NoteFailed            NoteStatus = "failed"
)

// NoteResult is the outcome of running the per-note pipeline once.
type NoteResult struct {
	// Path is the absolute path of the note file.
	Path string `json:"path" yaml:"path"`

	// Base is the note file name without its extension.
	Base string `json:"base" yaml:"base"`

	// Title is the trimmed text of the note's principal heading.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	Properties NoteProperties `json:"properties" yaml:"properties"`
	Status     NoteStatus     `json:"status" yaml:"status"`
	Artifacts  []Artifact     `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// FixedReferences counts rewritten image and link references.
	FixedReferences int `json:"fixed_references" yaml:"fixed_references"`

	// PDFLinked reports whether an embedded PDF placeholder became a link.
	PDFLinked bool `json:"pdf_linked" yaml:"pdf_linked"`

	Err error `json:"-" yaml:"-"`
}

// Failed reports whether the note itself or any of its artifacts failed.
func (r NoteResult) Failed() bool {
	if r.Status == NoteFailed {
		return true
	}
	for _, a := range r.Artifacts {
		if a.Status == ArtifactFailed {
			return true
		}
	}
	return false
}

// BatchStats holds the counters of one batch invocation.
type BatchStats struct {
	Candidates        int `json:"candidates" yaml:"candidates"`
	Processed         int `json:"processed" yaml:"processed"`
	Failed            int `json:"failed" yaml:"failed"`
	Normalized        int `json:"normalized" yaml:"normalized"`
	AlreadyNormalized int `json:"already_normalized" yaml:"already_normalized"`
	Converted         int `json:"converted" yaml:"converted"`
	Skipped           int `json:"skipped" yaml:"skipped"`
	ArtifactsFailed   int `json:"artifacts_failed" yaml:"artifacts_failed"`
}

// Add folds one note result into the counters.
func (s *BatchStats) Add(r NoteResult) {
	s.Processed++
	switch r.Status {
	case NoteNormalized:
		s.Normalized++
	case NoteAlreadyNormalized:
		s.AlreadyNormalized++
	}
	if r.Failed() {
		s.Failed++
	}
	for _, a := range r.Artifacts {
		switch a.Status {
		case ArtifactConverted:
			s.Converted++
		case ArtifactSkipped:
			s.Skipped++
		case ArtifactFailed:
			s.ArtifactsFailed++
		}
	}
}

// HasFailures reports whether any note or artifact failed.
func (s BatchStats) HasFailures() bool {
	return s.Failed > 0
}
