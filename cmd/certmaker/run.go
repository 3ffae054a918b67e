package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tools.zach/dev/certmaker/internal/batch"
	"tools.zach/dev/certmaker/internal/config"
	"tools.zach/dev/certmaker/internal/discover"
	"tools.zach/dev/certmaker/internal/logger"
	"tools.zach/dev/certmaker/internal/names"
	"tools.zach/dev/certmaker/internal/typeface"
	"tools.zach/dev/certmaker/internal/watch"
)

// ///////////////////////////////////////////////
// Flags
// ///////////////////////////////////////////////

// runFlags are the `run` overrides. Only flags given on the command line
// replace config values.
type runFlags struct {
	config      string
	table       string
	template    string
	column      string
	font        string
	size        float64
	color       string
	position    string
	out         string
	format      string
	parallelism int
	watch       bool
	verbose     bool

	set map[string]bool
}

func (f *runFlags) register(fs *flag.FlagSet) {
	f.registerRender(fs)
	fs.StringVar(&f.table, "table", "", "CSV `file` of names (default: the only table in excelcsvs/)")
	fs.StringVar(&f.column, "column", "", "`header` of the name column")
	fs.StringVar(&f.out, "out", "", "output `dir`ectory")
	fs.IntVar(&f.parallelism, "parallelism", 0, "concurrent renders, 0 = all CPUs")
	fs.BoolVar(&f.watch, "watch", false, "re-run when the table, template, font, or config changes")
	fs.BoolVar(&f.verbose, "v", false, "log per-row progress to stderr")
}

// registerRender registers the flags shared by run and stamp.
func (f *runFlags) registerRender(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "config `file` (default <workspace>/certmaker.toml)")
	fs.StringVar(&f.template, "template", "", "template `image` (default: the only image in Template/)")
	fs.StringVar(&f.font, "font", "", "font `spec`: builtin:NAME, google:Family:weight, or a path")
	fs.Float64Var(&f.size, "size", 0, "font size in `points`")
	fs.StringVar(&f.color, "color", "", "text `color`: #RRGGBB, #RRGGBBAA, or a name")
	fs.StringVar(&f.position, "position", "", "\"center\", \"center@`x,y`\", or \"x,y\"")
	fs.StringVar(&f.format, "format", "", "output `format`: png, jpeg, gif, tiff, bmp")
}

// apply copies explicitly set flags onto cfg.
func (f *runFlags) apply(cfg *config.Config) {
	if f.set["table"] {
		cfg.Input.Table = f.table
	}
	if f.set["template"] {
		cfg.Input.Template = f.template
	}
	if f.set["column"] {
		cfg.Input.NameColumn = f.column
	}
	if f.set["font"] {
		cfg.Render.Font = f.font
	}
	if f.set["size"] {
		cfg.Render.FontSize = f.size
	}
	if f.set["color"] {
		cfg.Render.Color = f.color
	}
	if f.set["position"] {
		cfg.Render.Position = f.position
	}
	if f.set["out"] {
		cfg.Batch.OutputDir = f.out
	}
	if f.set["format"] {
		cfg.Render.Format = f.format
	}
	if f.set["parallelism"] {
		cfg.Batch.Parallelism = f.parallelism
	}
}

// ///////////////////////////////////////////////
// run
// ///////////////////////////////////////////////

func (c *cli) cmdRun(args []string) int {
	fs := c.flagSet("run", "")
	f := &runFlags{set: map[string]bool{}}
	f.register(fs)
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() > 0 {
		return c.fail("run: unexpected arguments %v", fs.Args())
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	configPath, load := c.configLoader(f)
	cfg, err := load()
	if err != nil {
		return c.fail("%v", err)
	}

	log, closer, err := c.newLogger(cfg, f.verbose)
	if err != nil {
		return c.fail("init logger: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(log)
	log.Info("certmaker starting", "version", resolveVersion(), "workspace", c.ws.Root, "config", configPath)

	ctx, stop := withSignals(context.Background())
	defer stop()

	if !f.watch {
		code, _ := c.runOnce(ctx, cfg, log)
		return code
	}
	return c.watchLoop(ctx, cfg, load, configPath, log)
}

// configLoader returns the config path in use and a function that loads it
// with f's overrides applied and validated.
func (c *cli) configLoader(f *runFlags) (string, func() (*config.Config, error)) {
	path := c.ws.Config()
	if f.config != "" {
		path = f.config
	}
	return path, func() (*config.Config, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		f.apply(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flag value: %w", err)
		}
		return cfg, nil
	}
}

// newLogger writes cfg's log level to the log file and warnings (or
// everything at info with -v) to stderr.
func (c *cli) newLogger(cfg *config.Config, verbose bool) (*slog.Logger, io.Closer, error) {
	consoleLevel := slog.LevelWarn
	if verbose {
		consoleLevel = slog.LevelDebug
	}
	return logger.NewLogger(logger.Options{
		Path:         c.ws.Resolve(cfg.Log.File),
		Level:        logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB:    cfg.Log.MaxSizeMB,
		Console:      c.stderr,
		ConsoleLevel: consoleLevel,
	})
}

// inputs are the files one batch reads.
type inputs struct {
	table    string
	template string
	font     []byte
	// fontFile is the font's path on disk, empty for builtin and Google fonts.
	fontFile string
}

// resolveInputs locates the table, template, and font named by cfg. When no
// table or template is configured, the single candidate in the workspace's
// default directory is used.
func (c *cli) resolveInputs(cfg *config.Config) (*inputs, error) {
	in := &inputs{}
	var err error

	if in.table, err = c.pick(cfg.Input.Table, discover.Tables, c.ws.Tables()); err != nil {
		return nil, &batch.SetupError{Resource: "table", Err: err}
	}
	if in.template, err = c.pick(cfg.Input.Template, discover.Templates, c.ws.Templates()); err != nil {
		return nil, &batch.SetupError{Resource: "template", Err: err}
	}

	spec := c.fontSpec(cfg)
	data, source, err := typeface.LoadBytes(spec, cfg.FontOptions(c.ws))
	if err != nil {
		return nil, &batch.SetupError{Resource: "font", Err: err}
	}
	in.font = data
	if !isVirtualFont(spec) {
		in.fontFile = source
	}
	return in, nil
}

// pick resolves an explicit path against the workspace, or falls back to
// the only file of kind k in dir.
func (c *cli) pick(explicit string, k discover.Kind, dir string) (string, error) {
	if explicit != "" {
		return c.ws.Resolve(explicit), nil
	}
	files, err := discover.List(dir, k)
	if err != nil {
		return "", err
	}
	choice, err := discover.Select(files, "")
	if err != nil {
		noun := strings.TrimSuffix(k.String(), "s")
		return "", fmt.Errorf("no %s configured: %w (set input.%s or pass -%s)", noun, err, noun, noun)
	}
	return filepath.Join(dir, filepath.FromSlash(choice)), nil
}

// fontSpec resolves path-like font specs against the workspace. Bare file
// names are left alone so they are searched in fonts.dirs.
func (c *cli) fontSpec(cfg *config.Config) string {
	spec := cfg.FontSpec()
	if isVirtualFont(spec) || filepath.Base(spec) == spec {
		return spec
	}
	return c.ws.Resolve(spec)
}

// isVirtualFont reports whether spec names a font that has no file in the
// workspace.
func isVirtualFont(spec string) bool {
	return strings.HasPrefix(spec, "builtin:") || strings.HasPrefix(spec, "google:")
}

// runOnce renders one batch and prints its summary. The returned inputs are
// nil when they could not be resolved.
func (c *cli) runOnce(ctx context.Context, cfg *config.Config, log *slog.Logger) (int, *inputs) {
	in, err := c.resolveInputs(cfg)
	if err != nil {
		return c.setupFailed(err), nil
	}

	bc, err := cfg.BatchConfig(in.font)
	if err != nil {
		return c.setupFailed(&batch.SetupError{Resource: "config", Err: err}), in
	}
	bc.OutputDir = c.ws.Resolve(cfg.Batch.OutputDir)

	if err := os.MkdirAll(bc.OutputDir, 0o755); err != nil {
		return c.setupFailed(&batch.SetupError{Resource: "output_dir", Err: err}), in
	}
	lock, err := acquireOutputLock(bc.OutputDir)
	if err != nil {
		return c.setupFailed(&batch.SetupError{Resource: "output_dir", Err: err}), in
	}
	defer releaseOutputLock(lock)

	records, err := names.ReadFile(in.table, cfg.Input.NameColumn)
	if err != nil {
		return c.setupFailed(&batch.SetupError{Resource: "table", Err: err}), in
	}

	opts := []batch.Option{batch.WithLogger(log)}
	if c.interactive {
		opts = append(opts, batch.WithProgress(c.progressLine()))
	}
	report, err := batch.New(bc, opts...).RunFile(ctx, in.template, records)
	if c.interactive {
		fmt.Fprint(c.stderr, "\r\033[K")
	}
	if err != nil {
		return c.setupFailed(err), in
	}

	c.printSummary(report, bc.OutputDir)
	return reportExitCode(report), in
}

func (c *cli) setupFailed(err error) int {
	var se *batch.SetupError
	if errors.As(err, &se) {
		logger.Fail(slog.Default(), "setup failed", "resource", se.Resource, "error", se.Err)
	}
	return c.fail("%v", err)
}

func (c *cli) progressLine() func(batch.Progress) {
	return func(p batch.Progress) {
		fmt.Fprintf(c.stderr, "\r\033[Krendering %d/%d", p.Done, p.Total)
	}
}

func reportExitCode(r *batch.Report) int {
	switch {
	case r.Interrupted:
		return exitInterrupted
	case !r.OK():
		return exitRowsFailed
	default:
		return exitOK
	}
}

// ///////////////////////////////////////////////
// Watch
// ///////////////////////////////////////////////

// watchLoop runs a batch, then re-runs it whenever one of its inputs or the
// config file changes, until ctx is cancelled. The config is reloaded on
// every change; a config that fails to load keeps the previous one. When a
// reload points at different input files, those files are watched instead.
func (c *cli) watchLoop(ctx context.Context, cfg *config.Config, load func() (*config.Config, error), configPath string, log *slog.Logger) int {
	code, in := c.runOnce(ctx, cfg, log)
	if code == exitInterrupted || in == nil {
		return code
	}

	files := watchedFiles(configPath, in)
	w, err := watch.New(files, watch.DefaultInterval)
	if err != nil {
		return c.fail("watch: %v", err)
	}
	defer func() { w.Close() }()
	if w.Polling() {
		log.Info("using polling mode for file watching")
	}
	fmt.Fprintf(c.stdout, "watching %d files, press Ctrl+C to stop\n", len(files))

	for {
		select {
		case <-ctx.Done():
			return code
		case <-w.Events():
			next, err := load()
			if err != nil {
				log.Warn("config reload failed, keeping previous config", "error", err)
				fmt.Fprintf(c.stderr, "config: %v\n", err)
			} else {
				cfg = next
			}
			log.Info("inputs changed, re-running")
			var used *inputs
			code, used = c.runOnce(ctx, cfg, log)
			if code == exitInterrupted {
				return code
			}
			w, files = c.rewatch(w, files, configPath, used, log)
		}
	}
}

// watchedFiles lists the files whose changes trigger a re-run.
func watchedFiles(configPath string, in *inputs) []string {
	files := []string{configPath, in.table, in.template}
	if in.fontFile != "" {
		files = append(files, in.fontFile)
	}
	return files
}

// rewatch swaps w for a watcher over in's files when they differ from
// files. On failure, or when in is nil, the current watcher is kept.
func (c *cli) rewatch(w *watch.Watcher, files []string, configPath string, in *inputs, log *slog.Logger) (*watch.Watcher, []string) {
	if in == nil {
		return w, files
	}
	next := watchedFiles(configPath, in)
	if slices.Equal(next, files) {
		return w, files
	}
	nw, err := watch.New(next, watch.DefaultInterval)
	if err != nil {
		log.Warn("cannot watch new inputs, keeping previous files", "error", err)
		return w, files
	}
	w.Close()
	log.Info("watching new inputs", "files", next)
	fmt.Fprintf(c.stdout, "watching %d files, press Ctrl+C to stop\n", len(next))
	return nw, next
}
