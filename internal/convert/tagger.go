// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// noteTimeLayout is the timestamp layout of exported note metadata.
const noteTimeLayout = "20060102T150405Z"

// Tagger writes note metadata into a rendered PDF.
type Tagger interface {
	Name() string
	Tag(ctx context.Context, path string, props types.NoteProperties) error
}

// exiftoolTagger sets dates and keywords through exiftool.
type exiftoolTagger struct {
	bin string
	inv process.Invoker
}

// NewExiftoolTagger returns a Tagger backed by the exiftool binary.
func NewExiftoolTagger(bin string, inv process.Invoker) Tagger {
	return &exiftoolTagger{bin: bin, inv: inv}
}

func (t *exiftoolTagger) Name() string { return types.TaggerExiftool }

func (t *exiftoolTagger) Tag(ctx context.Context, path string, props types.NoteProperties) error {
	return t.inv.Invoke(ctx, process.Command{Name: t.bin, Args: ExiftoolArgs(path, props)})
}

// ExiftoolArgs returns the exiftool argument vector that tags path.
func ExiftoolArgs(path string, props types.NoteProperties) []string {
	created := exifTime(props.Created)
	modified := created
	if props.Updated != "" {
		modified = exifTime(props.Updated)
	}
	args := []string{
		"-overwrite_original",
		"-CreateDate=" + created,
		"-ModifyDate=" + modified,
	}
	for _, tag := range props.Tags {
		args = append(args, "-Keywords="+tag)
	}
	return append(args, path)
}

// exifTime reformats a note timestamp into exiftool's date syntax. Values in
// neither known layout are returned as given.
func exifTime(s string) string {
	t, ok := parseNoteTime(s)
	if !ok {
		return s
	}
	return t.Format("2006:01:02 15:04:05Z07:00")
}

func parseNoteTime(s string) (time.Time, bool) {
	for _, layout := range []string{noteTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// pdfcpuTagger writes the metadata in-process into the document info
// dictionary.
type pdfcpuTagger struct {
	conf *model.Configuration
}

// NewPDFCPUTagger returns a Tagger backed by pdfcpu.
func NewPDFCPUTagger() Tagger {
	return &pdfcpuTagger{conf: pdfcpuConfig()}
}

func (t *pdfcpuTagger) Name() string { return types.TaggerPDFCPU }

func (t *pdfcpuTagger) Tag(_ context.Context, path string, props types.NoteProperties) error {
	if p := InfoProperties(props); len(p) > 0 {
		if err := api.AddPropertiesFile(path, "", p, t.conf); err != nil {
			return fmt.Errorf("adding properties to %s: %w", path, err)
		}
	}
	if len(props.Tags) > 0 {
		if err := api.AddKeywordsFile(path, "", props.Tags, t.conf); err != nil {
			return fmt.Errorf("adding keywords to %s: %w", path, err)
		}
	}
	return nil
}

// InfoProperties returns the custom info dictionary entries for props.
func InfoProperties(props types.NoteProperties) map[string]string {
	out := make(map[string]string)
	if props.Created != "" {
		out["NoteCreated"] = pdfTime(props.Created)
	}
	if props.Updated != "" {
		out["NoteUpdated"] = pdfTime(props.Updated)
	}
	if props.SourceURL != "" {
		out["NoteSource"] = props.SourceURL
	}
	return out
}

func pdfTime(s string) string {
	t, ok := parseNoteTime(s)
	if !ok {
		return s
	}
	return "D:" + t.UTC().Format("20060102150405") + "Z"
}

func pdfcpuConfig() *model.Configuration {
	initPDFCPU()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
