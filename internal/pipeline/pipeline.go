package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/codebook"
	"github.com/TobiSchelling/surveyscore/internal/config"
	"github.com/TobiSchelling/surveyscore/internal/engine"
	"github.com/TobiSchelling/surveyscore/internal/report"
	"github.com/TobiSchelling/surveyscore/internal/snapshot"
	"github.com/TobiSchelling/surveyscore/internal/survey"
	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

const totalSteps = 5

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID    string
	Export   string
	Category snapshot.Category
	Batch    *engine.Batch
	Table    string
	Reports  []string
	Steps    []StepResult
}

// Err returns the first failed step's error.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

// Pipeline files the newest export and scores its new respondents:
// Intake, Diff, Score, Export, Render.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger
	newID  func() string
}

// New creates a new pipeline.
func New(cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger, newID: uuid.NewString}
}

// Run executes the full pipeline.
func (p *Pipeline) Run(ctx context.Context) *Result {
	return p.run(ctx, false)
}

// DryRun classifies, diffs and scores the newest export without moving it or
// writing anything.
func (p *Pipeline) DryRun(ctx context.Context) *Result {
	return p.run(ctx, true)
}

type state struct {
	dry     bool
	logger  *zap.Logger
	intake  *snapshot.Intake
	working *workbook.Table
}

func (p *Pipeline) run(ctx context.Context, dry bool) *Result {
	r := &Result{RunID: p.newID()}
	st := &state{
		dry:    dry,
		logger: p.logger.With(zap.String("run", r.RunID)),
	}
	st.intake = snapshot.NewIntake(p.cfg.Resolve(p.cfg.Paths.DataDir), st.logger)
	st.logger.Info("run started", zap.Bool("dry_run", dry), zap.String("intake", st.intake.Dir()))

	step := p.runIntake(st, r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runDiff(st, r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil || st.working.Len() == 0 {
		return r
	}

	if !r.Category.Personality() {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Score",
			Summary: fmt.Sprintf("%s scoring not implemented; %d new rows left unscored", r.Category, st.working.Len()),
		})
		return r
	}

	step = p.runScore(st, r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil || len(r.Batch.Records) == 0 {
		return r
	}

	step = p.runExport(st, r)
	r.Steps = append(r.Steps, step)

	step = p.runRender(ctx, st, r)
	r.Steps = append(r.Steps, step)

	return r
}

func (p *Pipeline) runIntake(st *state, r *Result) StepResult {
	st.logger.Info(fmt.Sprintf("Step 1/%d: Filing newest export...", totalSteps))
	latest, err := st.intake.Latest()
	if err != nil {
		return StepResult{Name: "Intake", Err: err}
	}
	t, err := workbook.Read(latest, "", p.cfg.Scoring.HeaderOffset)
	if err != nil {
		return StepResult{Name: "Intake", Err: err}
	}
	category, err := snapshot.Classify(t.Width())
	if err != nil {
		return StepResult{Name: "Intake", Err: fmt.Errorf("%s: %w", filepath.Base(latest), err)}
	}
	r.Category = category
	r.Export = latest

	if st.dry {
		return StepResult{
			Name:    "Intake",
			Summary: fmt.Sprintf("[dry-run] Would file %s under %s (%d columns)", filepath.Base(latest), category, t.Width()),
		}
	}
	moved, err := st.intake.Relocate(latest, category)
	if err != nil {
		return StepResult{Name: "Intake", Err: err}
	}
	r.Export = moved
	return StepResult{
		Name:    "Intake",
		Summary: fmt.Sprintf("Filed %s under %s (%d columns)", filepath.Base(moved), category, t.Width()),
	}
}

func (p *Pipeline) runDiff(st *state, r *Result) StepResult {
	st.logger.Info(fmt.Sprintf("Step 2/%d: Isolating new respondents...", totalSteps))
	policy, err := p.cfg.Policy()
	if err != nil {
		return StepResult{Name: "Diff", Err: err}
	}

	latest, previous, err := snapshot.Snapshots(st.intake.CategoryDir(r.Category))
	switch {
	case st.dry && errors.Is(err, survey.ErrMissingFile):
		latest, previous = r.Export, r.Export
	case st.dry && err == nil:
		// The export has not been filed yet, so the newest filed one is
		// the previous snapshot.
		latest, previous = r.Export, latest
	case err != nil:
		return StepResult{Name: "Diff", Err: err}
	}

	working, stats, err := snapshot.Working(latest, previous, p.cfg.Scoring.HeaderOffset, policy, st.logger)
	if err != nil {
		return StepResult{Name: "Diff", Err: err}
	}
	st.working = working

	summary := fmt.Sprintf("%d new rows (%d in latest, %d in previous, %d shared)", stats.Kept, stats.Latest, stats.Previous, stats.Shared)
	if latest == previous {
		summary = fmt.Sprintf("%d rows (first export in category)", stats.Kept)
	}
	if stats.WithinFileDuplicates > 0 {
		summary += fmt.Sprintf("; %d repeated rows handled by %s", stats.WithinFileDuplicates, policy)
	}
	return StepResult{Name: "Diff", Summary: summary}
}

func (p *Pipeline) runScore(st *state, r *Result) StepResult {
	st.logger.Info(fmt.Sprintf("Step 3/%d: Scoring respondents...", totalSteps))
	cb, err := codebook.Load(p.cfg.Resolve(p.cfg.Paths.Codebook), st.logger)
	if err != nil {
		return StepResult{Name: "Score", Err: err}
	}
	loc, err := p.cfg.Location()
	if err != nil {
		return StepResult{Name: "Score", Err: err}
	}

	batch, err := engine.Score(cb, st.working, engine.Options{
		Identity: p.cfg.Scoring.Identity,
		Location: loc,
		Logger:   st.logger,
	})
	if err != nil {
		return StepResult{Name: "Score", Err: err}
	}
	r.Batch = batch

	summary := fmt.Sprintf("Scored %d respondents on the %s", len(batch.Records), batch.Variant)
	if n := len(batch.Failures); n > 0 {
		summary += fmt.Sprintf(", %d could not be scored", n)
	}
	return StepResult{Name: "Score", Summary: summary}
}

func (p *Pipeline) outputDir(r *Result) string {
	return filepath.Join(p.cfg.Resolve(p.cfg.Paths.ReportDir), r.Category.Dir())
}

func (p *Pipeline) runExport(st *state, r *Result) StepResult {
	st.logger.Info(fmt.Sprintf("Step 4/%d: Writing score table...", totalSteps))
	path := filepath.Join(p.outputDir(r), p.cfg.TableFile(r.Export))
	if st.dry {
		return StepResult{Name: "Export", Summary: "[dry-run] Would write " + path}
	}
	if err := os.MkdirAll(p.outputDir(r), 0o755); err != nil {
		return StepResult{Name: "Export", Err: fmt.Errorf("creating report directory: %w", err)}
	}
	if err := report.WriteTable(path, r.Batch); err != nil {
		return StepResult{Name: "Export", Err: err}
	}
	r.Table = path
	return StepResult{Name: "Export", Summary: fmt.Sprintf("Wrote %d rows to %s", len(r.Batch.Records), path)}
}

func (p *Pipeline) runRender(ctx context.Context, st *state, r *Result) StepResult {
	st.logger.Info(fmt.Sprintf("Step 5/%d: Rendering reports...", totalSteps))
	if st.dry {
		return StepResult{
			Name:    "Render",
			Summary: fmt.Sprintf("[dry-run] Would render %d reports into %s", len(r.Batch.Records), p.outputDir(r)),
		}
	}
	renderer, err := report.NewRenderer(p.outputDir(r), p.cfg.Report.Workers, st.logger)
	if err != nil {
		return StepResult{Name: "Render", Err: err}
	}
	paths, err := renderer.Render(ctx, r.Batch)
	if err != nil {
		return StepResult{Name: "Render", Err: err}
	}
	r.Reports = paths
	return StepResult{Name: "Render", Summary: fmt.Sprintf("Rendered %d reports", len(paths))}
}
