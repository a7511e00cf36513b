// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/note-archiver/internal/process"
	"github.com/pdiddy/note-archiver/pkg/types"
)

// fakeInvoker records invocations. respond decides the outcome of each one;
// a nil respond succeeds without side effects.
type fakeInvoker struct {
	mu        sync.Mutex
	available map[string]bool
	respond   func(cmd process.Command) error
	calls     []process.Command
}

func (f *fakeInvoker) Invoke(_ context.Context, cmd process.Command) error {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(cmd)
	}
	return nil
}

func (f *fakeInvoker) Available(name string) bool {
	return f.available[name]
}

func (f *fakeInvoker) callsTo(name string) []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []process.Command
	for _, c := range f.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// argAfter returns the argument following flag, or "".
func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// pandocWrites is a respond func that writes the -o target of pandoc calls,
// failing for the engines listed in broken.
func pandocWrites(broken ...string) func(process.Command) error {
	return func(cmd process.Command) error {
		if cmd.Name != "pandoc" {
			return nil
		}
		for _, a := range cmd.Args {
			for _, b := range broken {
				if a == "--pdf-engine="+b {
					return errors.New(b + " not installed")
				}
			}
		}
		if out := argAfter(cmd.Args, "-o"); out != "" {
			return os.WriteFile(out, []byte("%PDF-1.4 rendered"), 0o644)
		}
		if cmd.Stdout != nil {
			_, err := cmd.Stdout.Write([]byte("Body from pandoc\n"))
			return err
		}
		return nil
	}
}

const tripHTML = `<html><body><div class="html-note">
<h1>Trip</h1>
<meta itemprop="created" content="2021-01-01T00:00:00Z">
<meta itemprop="tag" content="travel">
<p>Packed the <strong>boots</strong>.</p>
<pre class="note-archiver-metadata">created: "2021-01-01T00:00:00Z"</pre>
</div></body></html>`

func tripJob(t *testing.T) Job {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "Trip.html")
	require.NoError(t, os.WriteFile(p, []byte(tripHTML), 0o644))
	job, err := NewJob(p, "Trip", types.NoteProperties{
		Created: "2021-01-01T00:00:00Z",
		Tags:    []string{"travel"},
	})
	require.NoError(t, err)
	return job
}

func TestNewJob(t *testing.T) {
	job, err := NewJob("/notes/Trip.html", "", types.NoteProperties{Created: "2021"})

	require.NoError(t, err)
	assert.Equal(t, "Trip", job.Base)
	assert.Equal(t, "Trip", job.DisplayTitle())
	assert.Equal(t, filepath.Join("/notes", "2021 - Trip.pdf"), job.Path(types.FormatPDF))
	assert.Equal(t, filepath.Join("/notes", "2021 - Trip.md"), job.Path(types.FormatMarkdown))

	_, err = NewJob("/notes/Trip.html", "Trip", types.NoteProperties{})
	assert.ErrorIs(t, err, types.ErrMissingCreated)

	_, err = NewJob("/notes/Trip.html", "Trip", types.NoteProperties{Created: "../outside"})
	assert.ErrorIs(t, err, types.ErrInvalidCreated)
}

func TestConvertNote_SkipIfExists(t *testing.T) {
	job := tripJob(t)
	existing := job.Path(types.FormatPDF)
	require.NoError(t, os.WriteFile(existing, []byte("prior"), 0o644))
	inv := &fakeInvoker{respond: pandocWrites()}
	var log bytes.Buffer

	conv, err := New([]types.Format{types.FormatPDF},
		[]Strategy{NewPDFStrategy([]Engine{NewPandocEngine("e1", "pandoc", inv)}, nil, NewExiftoolTagger("exiftool", inv), nil)},
		&log, nil)
	require.NoError(t, err)

	arts := conv.ConvertNote(context.Background(), job)

	require.Len(t, arts, 1)
	assert.Equal(t, types.ArtifactSkipped, arts[0].Status)
	assert.Empty(t, inv.calls, "no tool is invoked for an existing artifact")
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "prior", string(data))
	assert.Contains(t, log.String(), "skipped: 2021-01-01T00:00:00Z - Trip.pdf (already exists)")
}

func TestPDFStrategy_EngineFallback(t *testing.T) {
	job := tripJob(t)
	inv := &fakeInvoker{respond: pandocWrites("e1")}
	s := NewPDFStrategy([]Engine{
		NewPandocEngine("e1", "pandoc", inv),
		NewPandocEngine("e2", "pandoc", inv),
	}, nil, NewExiftoolTagger("exiftool", inv), nil)

	engine, err := s.Render(context.Background(), job, job.Path(types.FormatPDF))

	require.NoError(t, err)
	assert.Equal(t, "e2", engine)
	pandoc := inv.callsTo("pandoc")
	require.Len(t, pandoc, 2)
	assert.Contains(t, pandoc[0].Args, "--pdf-engine=e1")
	assert.Contains(t, pandoc[1].Args, "--pdf-engine=e2")
	tags := inv.callsTo("exiftool")
	require.Len(t, tags, 1, "exactly one tagging call")
	assert.Equal(t, job.Path(types.FormatPDF), tags[0].Args[len(tags[0].Args)-1])

	inv.mu.Lock()
	last := inv.calls[len(inv.calls)-1]
	inv.mu.Unlock()
	assert.Equal(t, "exiftool", last.Name, "tagging follows the successful engine")
}

func TestPDFStrategy_AllEnginesFail(t *testing.T) {
	job := tripJob(t)
	inv := &fakeInvoker{respond: pandocWrites("e1", "e2")}
	s := NewPDFStrategy([]Engine{
		NewPandocEngine("e1", "pandoc", inv),
		NewPandocEngine("e2", "pandoc", inv),
	}, nil, NewExiftoolTagger("exiftool", inv), nil)

	_, err := s.Render(context.Background(), job, job.Path(types.FormatPDF))

	require.ErrorIs(t, err, types.ErrAllEnginesFailed)
	assert.Contains(t, err.Error(), "e1")
	assert.Contains(t, err.Error(), "e2")
	assert.Empty(t, inv.callsTo("exiftool"))
}

func TestPDFStrategy_VerifyFailureFallsBack(t *testing.T) {
	job := tripJob(t)
	out := job.Path(types.FormatPDF)
	inv := &fakeInvoker{respond: pandocWrites()}
	attempts := 0
	verify := func(path string) error {
		attempts++
		if attempts == 1 {
			return errors.New("rendered pdf has no pages")
		}
		return nil
	}
	s := NewPDFStrategy([]Engine{
		NewPandocEngine("e1", "pandoc", inv),
		NewPandocEngine("e2", "pandoc", inv),
	}, verify, nil, nil)

	engine, err := s.Render(context.Background(), job, out)

	require.NoError(t, err)
	assert.Equal(t, "e2", engine)
	assert.Equal(t, 2, attempts)
	assert.FileExists(t, out)
}

func TestConvertNote_FailureRemovesPartialAndContinues(t *testing.T) {
	job := tripJob(t)
	inv := &fakeInvoker{respond: func(cmd process.Command) error {
		if out := argAfter(cmd.Args, "-o"); out != "" {
			_ = os.WriteFile(out, []byte("half"), 0o644)
		}
		return errors.New("pandoc crashed")
	}}
	var log bytes.Buffer
	conv, err := New([]types.Format{types.FormatMarkdown, types.FormatDocx},
		[]Strategy{NewDocxStrategy("pandoc", inv), NewMarkdownStrategy(NewBuiltinBody())}, &log, nil)
	require.NoError(t, err)

	arts := conv.ConvertNote(context.Background(), job)

	require.Len(t, arts, 2)
	assert.Equal(t, types.FormatDocx, arts[0].Format, "formats render in fixed order")
	assert.Equal(t, types.ArtifactFailed, arts[0].Status)
	assert.Error(t, arts[0].Err)
	assert.NoFileExists(t, job.Path(types.FormatDocx))
	assert.Equal(t, types.ArtifactConverted, arts[1].Status)
	assert.Contains(t, log.String(), "failed:  2021-01-01T00:00:00Z - Trip.docx (")
	assert.Contains(t, log.String(), "converted: 2021-01-01T00:00:00Z - Trip.md")
}

func TestConvertNote_PDFThenMarkdownLinks(t *testing.T) {
	job := tripJob(t)
	inv := &fakeInvoker{respond: pandocWrites()}
	conv, err := New([]types.Format{types.FormatMarkdown, types.FormatPDF}, []Strategy{
		NewPDFStrategy([]Engine{NewPandocEngine("wkhtmltopdf", "pandoc", inv)}, nil, NewExiftoolTagger("exiftool", inv), nil),
		NewMarkdownStrategy(NewBuiltinBody()),
	}, &bytes.Buffer{}, nil)
	require.NoError(t, err)

	arts := conv.ConvertNote(context.Background(), job)

	require.Len(t, arts, 2)
	for _, a := range arts {
		assert.Equal(t, types.ArtifactConverted, a.Status, a.Format)
	}
	data, err := os.ReadFile(job.Path(types.FormatMarkdown))
	require.NoError(t, err)
	md := string(data)
	assert.True(t, strings.HasPrefix(md, "#travel\n"), md)
	assert.Contains(t, md, "boots")
	assert.NotContains(t, md, "created:", "marker block is not rendered")
	assert.True(t, strings.HasSuffix(md, "[PDF](<2021-01-01T00:00:00Z - Trip.pdf>)\n"), md)
	assert.NotContains(t, md, "PNG", "no image rendition exists")
}

func TestNew_MissingStrategy(t *testing.T) {
	_, err := New([]types.Format{types.FormatDocx}, nil, &bytes.Buffer{}, nil)
	assert.Error(t, err)
}

func TestExiftoolArgs(t *testing.T) {
	tests := []struct {
		name  string
		props types.NoteProperties
		want  []string
	}{
		{
			name:  "note timestamps reformatted",
			props: types.NoteProperties{Created: "20200207T232114Z", Updated: "20200208T010203Z", Tags: []string{"a", "b c"}},
			want: []string{"-overwrite_original", "-CreateDate=2020:02:07 23:21:14Z", "-ModifyDate=2020:02:08 01:02:03Z",
				"-Keywords=a", "-Keywords=b c", "/n/x.pdf"},
		},
		{
			name:  "modify date falls back to created",
			props: types.NoteProperties{Created: "2021-01-01T00:00:00Z"},
			want:  []string{"-overwrite_original", "-CreateDate=2021:01:01 00:00:00Z", "-ModifyDate=2021:01:01 00:00:00Z", "/n/x.pdf"},
		},
		{
			name:  "unparseable passed verbatim",
			props: types.NoteProperties{Created: "yesterday"},
			want:  []string{"-overwrite_original", "-CreateDate=yesterday", "-ModifyDate=yesterday", "/n/x.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExiftoolArgs("/n/x.pdf", tt.props))
		})
	}
}

func TestInfoProperties(t *testing.T) {
	got := InfoProperties(types.NoteProperties{
		Created:   "20200207T232114Z",
		SourceURL: "https://example.com",
	})

	assert.Equal(t, map[string]string{
		"NoteCreated": "D:20200207232114Z",
		"NoteSource":  "https://example.com",
	}, got)
}

func TestLabelLine(t *testing.T) {
	assert.Equal(t, "", LabelLine(nil))
	assert.Equal(t, "#travel", LabelLine([]string{"travel"}))
	assert.Equal(t, "#a #b b", LabelLine([]string{"a", "b b"}))
}

func TestScreenshotStrategy(t *testing.T) {
	job := tripJob(t)
	inv := &fakeInvoker{available: map[string]bool{"google-chrome": true}}
	s := NewScreenshotStrategy([]string{"chromium", "google-chrome"}, 1280, 1600, inv)
	out := job.Path(types.FormatImage)

	engine, err := s.Render(context.Background(), job, out)

	require.NoError(t, err)
	assert.Equal(t, "google-chrome", engine)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, []string{
		"--headless", "--disable-gpu", "--hide-scrollbars",
		"--screenshot=" + out,
		"--window-size=1280,1600",
		FileURL(job.NotePath),
	}, inv.calls[0].Args)
}

func TestScreenshotStrategy_NoBrowser(t *testing.T) {
	job := tripJob(t)
	s := NewScreenshotStrategy([]string{"chromium"}, 1280, 1600, &fakeInvoker{})

	_, err := s.Render(context.Background(), job, job.Path(types.FormatImage))

	assert.ErrorIs(t, err, types.ErrToolUnavailable)
}

func TestDocxStrategy_Args(t *testing.T) {
	job := tripJob(t)
	inv := &fakeInvoker{}
	out := job.Path(types.FormatDocx)

	_, err := NewDocxStrategy("pandoc", inv).Render(context.Background(), job, out)

	require.NoError(t, err)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, []string{job.NotePath, "-o", out, "--metadata", "title=Trip"}, inv.calls[0].Args)
}

func TestPandocBody(t *testing.T) {
	job := tripJob(t)
	var stdin string
	inv := &fakeInvoker{respond: func(cmd process.Command) error {
		require.NotNil(t, cmd.Stdin)
		data, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return err
		}
		stdin = string(data)
		return pandocWrites()(cmd)
	}}

	body, err := NewPandocBody("pandoc", inv).Body(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, "Body from pandoc", body)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, []string{"-f", "html", "-t", "markdown+raw_html"}, inv.calls[0].Args)
	assert.Equal(t, job.Dir, inv.calls[0].Dir)
	assert.Contains(t, stdin, "boots")
	assert.NotContains(t, stdin, "note-archiver-metadata", "the marker block is not rendered")
	assert.NotContains(t, stdin, "<h1>", "the principal heading is not rendered")
	assert.NotContains(t, stdin, "<meta")
}

func TestMarkdownEnginesRenderSameContent(t *testing.T) {
	job := tripJob(t)
	builtin, err := NewBuiltinBody().Body(context.Background(), job)
	require.NoError(t, err)

	var piped string
	inv := &fakeInvoker{respond: func(cmd process.Command) error {
		data, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return err
		}
		piped = string(data)
		return nil
	}}
	_, err = NewPandocBody("pandoc", inv).Body(context.Background(), job)
	require.NoError(t, err)

	fromPiped, err := htmltomarkdown.ConvertString(piped)
	require.NoError(t, err)
	assert.Equal(t, builtin, strings.TrimSpace(fromPiped))
	assert.NotContains(t, builtin, "created:")
	assert.NotContains(t, builtin, "# Trip")
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "file:///notes/My%20Trip.html", FileURL("/notes/My Trip.html"))
}

func TestGofpdfEngine(t *testing.T) {
	job := tripJob(t)
	out := job.Path(types.FormatPDF)

	require.NoError(t, NewGofpdfEngine().Render(context.Background(), job, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestVerifyPages_NotAPDF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(p, []byte("not a pdf"), 0o644))

	assert.Error(t, VerifyPages(p))
}

func TestCleanInlineMarkdown(t *testing.T) {
	tests := []struct{ in, want string }{
		{"**bold** text", "bold text"},
		{"see [the map](./Trip files/map.png)", "see the map"},
		{"run `go test`", "run go test"},
		{"![alt](x.png)", "alt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanInlineMarkdown(tt.in), tt.in)
	}
}

func TestRequiredTools(t *testing.T) {
	cfg := types.NewDefaultMigrationConfig()
	cfg.OutputFormats = "pdf,png,md"
	cfg.PDFEngines = "wkhtmltopdf,gofpdf"

	tools, browsers := RequiredTools(cfg)

	assert.Equal(t, []string{"pandoc", "wkhtmltopdf", "exiftool"}, tools)
	assert.Equal(t, []string{"chromium", "chromium-browser", "google-chrome"}, browsers)
}

func TestNewFromConfig(t *testing.T) {
	cfg := types.NewDefaultMigrationConfig()
	cfg.OutputFormats = "md,docx,pdf,png"

	conv, err := NewFromConfig(cfg, &fakeInvoker{}, &bytes.Buffer{}, nil)

	require.NoError(t, err)
	assert.Equal(t, types.FormatOrder, conv.Formats())
}
