// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// Report is a run with every note and artifact recorded for it.
type Report struct {
	Run   RunRecord    `json:"run" yaml:"run"`
	Notes []NoteRecord `json:"notes" yaml:"notes"`
}

// NoteRecord is a stored note outcome.
type NoteRecord struct {
	Path            string           `json:"path" yaml:"path"`
	Base            string           `json:"base" yaml:"base"`
	Title           string           `json:"title,omitempty" yaml:"title,omitempty"`
	Created         string           `json:"created,omitempty" yaml:"created,omitempty"`
	Tags            []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Status          string           `json:"status" yaml:"status"`
	FixedReferences int              `json:"fixed_references" yaml:"fixed_references"`
	PDFLinked       bool             `json:"pdf_linked" yaml:"pdf_linked"`
	Error           string           `json:"error,omitempty" yaml:"error,omitempty"`
	Artifacts       []ArtifactRecord `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// ArtifactRecord is a stored artifact outcome.
type ArtifactRecord struct {
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Status string `json:"status" yaml:"status"`
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report loads the run matching prefix with its notes and artifacts.
func (s *Store) Report(ctx context.Context, prefix string) (*Report, error) {
	run, err := s.FindRun(ctx, prefix)
	if err != nil {
		return nil, err
	}
	rep := &Report{Run: run}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, base, COALESCE(title, ''), COALESCE(created, ''), COALESCE(tags, ''), status,
			fixed_references, pdf_linked, COALESCE(error, '')
		 FROM notes WHERE run_id = ? ORDER BY base, id`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var (
			id   int64
			n    NoteRecord
			tags string
		)
		if err := rows.Scan(&id, &n.Path, &n.Base, &n.Title, &n.Created, &tags, &n.Status,
			&n.FixedReferences, &n.PDFLinked, &n.Error); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		if tags != "" && tags != "null" {
			if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags of %s: %w", n.Base, err)
			}
		}
		ids = append(ids, id)
		rep.Notes = append(rep.Notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i, id := range ids {
		arts, err := s.artifacts(ctx, id)
		if err != nil {
			return nil, err
		}
		rep.Notes[i].Artifacts = arts
	}
	return rep, nil
}

func (s *Store) artifacts(ctx context.Context, noteID int64) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT format, COALESCE(path, ''), status, COALESCE(engine, ''), COALESCE(error, '')
		 FROM artifacts WHERE note_id = ? ORDER BY id`, noteID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var a ArtifactRecord
		if err := rows.Scan(&a.Format, &a.Path, &a.Status, &a.Engine, &a.Error); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WriteYAML writes rep to w as YAML.
func WriteYAML(w io.Writer, rep *Report) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteJSON writes rep to w as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
