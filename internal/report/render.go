// Package report writes scored batches out: the score table as a workbook
// and one HTML report per respondent.
package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/surveyscore/internal/engine"
)

//go:embed templates/report.html
var templateFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// FilePrefix starts every report file name.
const FilePrefix = "Personality_Report_"

type page struct {
	Title     string
	Body      template.HTML
	Variant   string
	Generated string
}

// Renderer writes per-respondent HTML reports into a directory.
type Renderer struct {
	dir     string
	workers int
	tmpl    *template.Template
	logger  *zap.Logger
	now     func() time.Time
}

// NewRenderer parses the report template. workers bounds how many reports are
// written at once; values below 1 mean 1.
func NewRenderer(dir string, workers int, logger *zap.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{dir: dir, workers: workers, tmpl: tmpl, logger: logger, now: time.Now}, nil
}

// Render writes one report per record and returns the written paths in record
// order. The batch is only read.
func (r *Renderer) Render(ctx context.Context, b *engine.Batch) ([]string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	names := FileNames(b.Records)
	paths := make([]string, len(names))
	generated := r.now().Format("2006-01-02 15:04")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range b.Records {
		rec := &b.Records[i]
		path := filepath.Join(r.dir, names[i])
		paths[i] = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.write(path, b, rec, generated)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("reports rendered", zap.Int("reports", len(paths)), zap.String("dir", r.dir))
	return paths, nil
}

func (r *Renderer) write(path string, b *engine.Batch, rec *engine.Record, generated string) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(Compose(b, rec)), &body); err != nil {
		return fmt.Errorf("converting report for %s: %w", displayName(rec), err)
	}

	var out bytes.Buffer
	err := r.tmpl.Execute(&out, page{
		Title:     "Personality Report: " + displayName(rec),
		Body:      template.HTML(body.String()), //nolint: gosec
		Variant:   b.Variant.String(),
		Generated: generated,
	})
	if err != nil {
		return fmt.Errorf("rendering report for %s: %w", displayName(rec), err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	r.logger.Debug("report written", zap.String("path", path))
	return nil
}

var unsafeChars = strings.NewReplacer("/", "-", `\`, "-", ":", "-", "\x00", "")

// FileNames returns one report file name per record. Respondents sharing a
// name get numeric suffixes so no report overwrites another.
func FileNames(records []engine.Record) []string {
	taken := make(map[string]bool, len(records))
	out := make([]string, len(records))
	for i := range records {
		base := FilePrefix + unsafeChars.Replace(displayName(&records[i]))
		name := base
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		out[i] = name + ".html"
	}
	return out
}
