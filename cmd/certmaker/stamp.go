package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tools.zach/dev/certmaker/internal/atomicfile"
	"tools.zach/dev/certmaker/internal/batch"
	"tools.zach/dev/certmaker/internal/discover"
	"tools.zach/dev/certmaker/internal/layout"
	"tools.zach/dev/certmaker/internal/names"
	"tools.zach/dev/certmaker/internal/render"
	"tools.zach/dev/certmaker/internal/typeface"
)

// ///////////////////////////////////////////////
// stamp
// ///////////////////////////////////////////////

// cmdStamp renders a single text onto the template and writes one image.
// Render settings come from the config, overridden by flags.
func (c *cli) cmdStamp(args []string) int {
	fs := c.flagSet("stamp", "")
	f := &runFlags{set: map[string]bool{}}
	f.registerRender(fs)
	text := fs.String("text", "", "`text` to draw (required)")
	out := fs.String("out", "", "output `file` (default <output_dir>/<text>.<ext>)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() > 0 {
		return c.fail("stamp: unexpected arguments %v", fs.Args())
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	// -out names a file here, not batch.output_dir.
	delete(f.set, "out")

	value := names.Normalize(*text)
	if value == "" {
		return c.fail("stamp: -text is required")
	}

	_, load := c.configLoader(f)
	cfg, err := load()
	if err != nil {
		return c.fail("stamp: %v", err)
	}

	templatePath, err := c.pick(cfg.Input.Template, discover.Templates, c.ws.Templates())
	if err != nil {
		return c.fail("stamp: %v", err)
	}
	tmpl, err := render.LoadTemplate(templatePath)
	if err != nil {
		return c.fail("stamp: %v", err)
	}

	font, err := typeface.Load(c.fontSpec(cfg), cfg.FontOptions(c.ws))
	if err != nil {
		return c.fail("stamp: %v", err)
	}
	face, err := font.NewFace(cfg.Render.FontSize)
	if err != nil {
		return c.fail("stamp: %v", err)
	}
	defer face.Close()

	bc, err := cfg.BatchConfig(nil)
	if err != nil {
		return c.fail("stamp: %v", err)
	}

	dest, format, err := c.stampTarget(*out, value, bc, tmpl.Format)
	if err != nil {
		return c.fail("stamp: %v", err)
	}

	m := typeface.Measure(face, value)
	origin := layout.Resolve(bc.Position, m, tmpl.Width, tmpl.Height)
	img, err := render.Render(tmpl, value, face, bc.Color, origin)
	if err != nil {
		return c.fail("stamp: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return c.fail("stamp: %v", err)
	}
	err = atomicfile.WriteFunc(dest, 0o644, func(w io.Writer) error {
		return render.Encode(w, img, format, render.EncodeOptions{JPEGQuality: bc.JPEGQuality})
	})
	if err != nil {
		return c.fail("stamp: write %s: %v", dest, err)
	}

	fmt.Fprintf(c.stdout, "wrote %s (origin %d,%d, box %.0fx%.0f)\n", dest, origin.X, origin.Y, m.Width, m.Height)
	return exitOK
}

// stampTarget picks the output path and format. The format is the
// configured one, else the -out extension, else the template's.
func (c *cli) stampTarget(out, text string, bc batch.Config, tmplFormat render.Format) (string, render.Format, error) {
	format := tmplFormat
	if bc.Format != nil {
		format = *bc.Format
	} else if ext := filepath.Ext(out); ext != "" {
		f, err := render.ParseFormat(ext)
		if err != nil {
			return "", 0, fmt.Errorf("-out: %w", err)
		}
		format = f
	}

	if out == "" {
		return filepath.Join(c.ws.Resolve(bc.OutputDir), batch.SanitizeName(text)+"."+format.Ext()), format, nil
	}
	dest := c.ws.Resolve(out)
	if strings.HasSuffix(out, "/") || strings.HasSuffix(out, string(filepath.Separator)) {
		dest = filepath.Join(dest, batch.SanitizeName(text)+"."+format.Ext())
	}
	return dest, format, nil
}
