// Package batch renders one output image per input name.
//
// An [Engine] validates its inputs once, then fans rows out over a bounded
// pool of goroutines. Each task owns its font face, its image copy and its
// outcome; the parsed font and decoded template are shared read-only. A
// failing row never affects its siblings: every row ends up in the [Report]
// as either a [Success] or a [Failure].
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"tools.zach/dev/certmaker/internal/atomicfile"
	"tools.zach/dev/certmaker/internal/layout"
	"tools.zach/dev/certmaker/internal/logger"
	"tools.zach/dev/certmaker/internal/names"
	"tools.zach/dev/certmaker/internal/render"
	"tools.zach/dev/certmaker/internal/typeface"
)

// ///////////////////////////////////////////////
// Config
// ///////////////////////////////////////////////

// Config is the fully resolved render configuration. It is read-only once
// passed to [New].
type Config struct {
	FontBytes  []byte
	FontSizePt float64
	Color      color.NRGBA
	Position   layout.Position
	OutputDir  string
	// Format overrides the template's format for output files when non-nil.
	Format      *render.Format
	JPEGQuality int
	// Parallelism bounds concurrent render tasks; <= 0 means runtime.NumCPU().
	Parallelism int
}

// Workers returns the effective pool size.
func (c Config) Workers() int {
	if c.Parallelism <= 0 {
		return runtime.NumCPU()
	}
	return c.Parallelism
}

// Progress is reported once per finished row, in completion order.
type Progress struct {
	Done  int
	Total int
	Row   int
	OK    bool
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithProgress registers fn to be called after each row finishes. Calls are
// serialized.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) { e.progress = fn }
}

// ///////////////////////////////////////////////
// Engine
// ///////////////////////////////////////////////

// Engine runs batches for a single Config. It holds no per-run state and
// may run several batches, though not concurrently into the same OutputDir.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	progress func(Progress)
}

// New returns an engine for cfg.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// job is everything a render task reads. All fields are shared read-only.
type job struct {
	font   *typeface.Font
	tmpl   *render.Template
	format render.Format
}

// outcome is what a task reports: exactly one of success or failure is set.
type outcome struct {
	success *Success
	failure *Failure
}

func (o outcome) row() int {
	if o.success != nil {
		return o.success.Row
	}
	return o.failure.Row
}

// RunFile loads the template at path and calls [Engine.Run].
func (e *Engine) RunFile(ctx context.Context, templatePath string, rows []names.Record) (*Report, error) {
	tmpl, err := render.LoadTemplate(templatePath)
	if err != nil {
		return nil, &SetupError{Resource: "template", Err: err}
	}
	return e.Run(ctx, tmpl, rows)
}

// Run renders every row onto a copy of tmpl and writes the results to the
// output directory.
//
// Setup problems (unusable template, font, size or output directory) return a
// *SetupError before any row is dispatched. Otherwise Run always returns a
// complete Report. When ctx is cancelled Run stops dispatching, waits for
// in-flight rows, and reports the remaining rows as Cancelled.
func (e *Engine) Run(ctx context.Context, tmpl *render.Template, rows []names.Record) (*Report, error) {
	start := time.Now()
	j, err := e.setup(tmpl)
	if err != nil {
		return nil, err
	}

	total := len(rows)
	workers := e.cfg.Workers()
	e.log.Info("batch starting",
		"rows", total,
		"workers", workers,
		"template", fmt.Sprintf("%dx%d", tmpl.Width, tmpl.Height),
		"format", j.format,
		"output_dir", e.cfg.OutputDir,
	)

	report := &Report{Total: total}
	results := make(chan outcome, workers)
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		e.aggregate(results, report)
	}()

	var g errgroup.Group
	g.SetLimit(workers)
	dispatched := 0
	for _, rec := range rows {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results <- e.renderRow(j, rec)
			return nil
		})
		dispatched++
	}
	_ = g.Wait() // tasks never return errors
	close(results)
	<-aggDone

	if dispatched < total {
		report.Interrupted = true
		for _, rec := range rows[dispatched:] {
			report.Failures = append(report.Failures, Failure{
				Row:    rec.Row,
				Name:   rec.Value,
				Kind:   Cancelled,
				Reason: "batch interrupted before row was dispatched",
			})
		}
		e.log.Warn("batch interrupted", "dispatched", dispatched, "cancelled", total-dispatched)
	}

	report.sort()
	report.Elapsed = time.Since(start)
	e.log.Info("batch finished",
		"successes", len(report.Successes),
		"failures", len(report.Failures),
		"interrupted", report.Interrupted,
		"elapsed", report.Elapsed.Round(time.Millisecond),
	)
	return report, nil
}

// setup validates everything shared by the tasks. Nothing is dispatched
// unless it succeeds.
func (e *Engine) setup(tmpl *render.Template) (*job, error) {
	if tmpl == nil || tmpl.Image == nil {
		return nil, &SetupError{Resource: "template", Err: errors.New("no template image")}
	}
	if tmpl.Width <= 0 || tmpl.Height <= 0 {
		return nil, &SetupError{Resource: "template", Err: fmt.Errorf("empty template (%dx%d)", tmpl.Width, tmpl.Height)}
	}
	if e.cfg.FontSizePt <= 0 {
		return nil, &SetupError{Resource: "config", Err: fmt.Errorf("font size must be > 0, got %g", e.cfg.FontSizePt)}
	}
	if q := e.cfg.JPEGQuality; q < 0 || q > 100 {
		return nil, &SetupError{Resource: "config", Err: fmt.Errorf("jpeg quality must be 0..100, got %d", q)}
	}

	font, err := typeface.Parse(e.cfg.FontBytes)
	if err != nil {
		return nil, &SetupError{Resource: "font", Err: err}
	}
	// Catch size/scale problems once instead of in every task.
	face, err := font.NewFace(e.cfg.FontSizePt)
	if err != nil {
		return nil, &SetupError{Resource: "font", Err: err}
	}
	face.Close()

	if e.cfg.OutputDir == "" {
		return nil, &SetupError{Resource: "output_dir", Err: errors.New("no output directory")}
	}
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return nil, &SetupError{Resource: "output_dir", Err: err}
	}

	format := tmpl.Format
	if e.cfg.Format != nil {
		format = *e.cfg.Format
	}
	return &job{font: font, tmpl: tmpl, format: format}, nil
}

// aggregate drains results into report. It is the only writer to report
// while tasks run, and the only caller of the progress callback.
func (e *Engine) aggregate(results <-chan outcome, report *Report) {
	done := 0
	for o := range results {
		done++
		if o.success != nil {
			report.Successes = append(report.Successes, *o.success)
			logger.Trace(e.log, "row rendered", "row", o.success.Row, "path", o.success.Path)
		} else {
			report.Failures = append(report.Failures, *o.failure)
			e.log.Debug("row failed", "row", o.failure.Row, "kind", o.failure.Kind, "reason", o.failure.Reason)
		}
		if e.progress != nil {
			e.progress(Progress{Done: done, Total: report.Total, Row: o.row(), OK: o.success != nil})
		}
	}
}

// renderRow runs the full pipeline for one row. Panics are converted to a
// RenderFailure for that row.
func (e *Engine) renderRow(j *job, rec names.Record) (out outcome) {
	fail := func(kind FailureKind, reason string) outcome {
		return outcome{failure: &Failure{Row: rec.Row, Name: rec.Value, Kind: kind, Reason: reason}}
	}
	defer func() {
		if r := recover(); r != nil {
			out = fail(RenderFailure, fmt.Sprintf("panic: %v", r))
		}
	}()

	if rec.Blank() {
		reason := "blank name"
		if rec.Problem != "" {
			reason = rec.Problem
		}
		return fail(RowSkipped, reason)
	}

	face, err := j.font.NewFace(e.cfg.FontSizePt)
	if err != nil {
		return fail(RenderFailure, err.Error())
	}
	defer face.Close()

	if missing := j.font.Missing(rec.Value); len(missing) > 0 {
		e.log.Debug("glyph fallback", "row", rec.Row, "runes", string(missing))
	}

	m := typeface.Measure(face, rec.Value)
	origin := layout.Resolve(e.cfg.Position, m, j.tmpl.Width, j.tmpl.Height)
	img, err := render.Render(j.tmpl, rec.Value, face, e.cfg.Color, origin)
	if err != nil {
		return fail(RenderFailure, err.Error())
	}

	var buf bytes.Buffer
	if err := render.Encode(&buf, img, j.format, render.EncodeOptions{JPEGQuality: e.cfg.JPEGQuality}); err != nil {
		return fail(RenderFailure, err.Error())
	}

	path := filepath.Join(e.cfg.OutputDir, OutputName(rec.Value, rec.Row, j.format.Ext()))
	if err := atomicfile.Write(path, buf.Bytes(), 0o644); err != nil {
		return fail(WriteFailure, err.Error())
	}
	return outcome{success: &Success{Row: rec.Row, Name: rec.Value, Path: path}}
}
