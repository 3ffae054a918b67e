package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"tools.zach/dev/certmaker"
	"tools.zach/dev/certmaker/internal/analysis"
	"tools.zach/dev/certmaker/internal/atomicfile"
	"tools.zach/dev/certmaker/internal/config"
	"tools.zach/dev/certmaker/internal/discover"
	"tools.zach/dev/certmaker/internal/logger"
	"tools.zach/dev/certmaker/internal/names"
	"tools.zach/dev/certmaker/internal/typeface"
)

// ///////////////////////////////////////////////
// analyze
// ///////////////////////////////////////////////

func (c *cli) cmdAnalyze(args []string) int {
	fs := c.flagSet("analyze", "<image|font|table|builtin:NAME>")
	size := fs.Float64("size", 40, "font size in points for font metrics and -text")
	text := fs.String("text", "", "sample `name` to compute a centered origin on a template")
	font := fs.String("font", config.DefaultFont, "font `spec` used with -text")
	column := fs.String("column", names.DefaultColumn, "name column `header` for tables")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitSetup
	}
	target := fs.Arg(0)

	if strings.HasPrefix(target, "builtin:") || strings.HasPrefix(target, "google:") {
		data, _, err := typeface.LoadBytes(target, config.DefaultConfig().FontOptions(c.ws))
		if err != nil {
			return c.fail("analyze: %v", err)
		}
		p, err := analysis.AnalyzeFontBytes(data, *size)
		if err != nil {
			return c.fail("analyze: %v", err)
		}
		p.Source = target
		writeFontProfile(c.stdout, p)
		return exitOK
	}

	path := c.ws.Resolve(target)
	head, err := readHead(path)
	if err != nil {
		return c.fail("analyze: %v", err)
	}

	switch {
	case filetype.IsImage(head):
		p, err := analysis.Analyze(path)
		if err != nil {
			return c.fail("analyze: %v", err)
		}
		writeImageProfile(c.stdout, p)
		if *text != "" {
			f, err := typeface.Load(*font, config.DefaultConfig().FontOptions(c.ws))
			if err != nil {
				return c.fail("analyze: %v", err)
			}
			face, err := f.NewFace(*size)
			if err != nil {
				return c.fail("analyze: %v", err)
			}
			defer face.Close()
			m := typeface.Measure(face, names.Normalize(*text))
			o := p.SuggestOrigin(m)
			fmt.Fprintf(c.stdout, "Centered %q at %gpt: box %.0fx%.0f, origin %d,%d\n",
				*text, *size, m.Width, m.Height, o.X, o.Y)
		}
	case typeface.Container(head) != "unknown" || typeface.IsFontFile(path):
		p, err := analysis.AnalyzeFont(path, *size)
		if err != nil {
			return c.fail("analyze: %v", err)
		}
		writeFontProfile(c.stdout, p)
	case strings.EqualFold(filepath.Ext(path), ".csv"):
		info, err := names.Inspect(path, *column)
		if info != nil {
			writeTableInfo(c.stdout, info)
		}
		if err != nil {
			return c.fail("analyze: %v", err)
		}
	default:
		kind, _ := filetype.Match(head)
		return c.fail("analyze: %s: unsupported file type %q", target, kind.MIME.Value)
	}
	return exitOK
}

// readHead returns up to the first 262 bytes of path, enough for filetype.
func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

func writeImageProfile(w io.Writer, p *analysis.ImageProfile) {
	fmt.Fprintf(w, "Image:        %s\n", p.Path)
	fmt.Fprintf(w, "File size:    %s\n", humanBytes(p.Size))
	fmt.Fprintf(w, "Format:       %s (%s)\n", p.Format, p.MIME)
	fmt.Fprintf(w, "Dimensions:   %dx%d (%s, aspect %.2f)\n", p.Width, p.Height, p.Category, p.AspectRatio())
	fmt.Fprintf(w, "Color:        %s, %d-bit, %d channels\n", p.ColorModel, p.BitDepth, p.Channels)
	fmt.Fprintf(w, "Transparency: %t\n", p.HasAlpha)
	fmt.Fprintf(w, "Pixels:       %d (%s raw, %.1fx compression)\n", p.Pixels, humanBytes(p.RawBytes), p.CompressionRatio)
	fmt.Fprintf(w, "Center:       %d,%d\n", p.SuggestedCenter.X, p.SuggestedCenter.Y)
}

func writeFontProfile(w io.Writer, p *analysis.FontProfile) {
	fmt.Fprintf(w, "Font:         %s\n", p.Source)
	fmt.Fprintf(w, "File size:    %s (%s)\n", humanBytes(p.Size), p.Container)
	fmt.Fprintf(w, "Family:       %s\n", p.Family)
	fmt.Fprintf(w, "Style:        %s, weight %.0f, stretch %.2f\n", p.Style, p.Weight, p.Stretch)
	fmt.Fprintf(w, "Monospace:    %t\n", p.Monospace)
	fmt.Fprintf(w, "Glyphs:       %d (%d units/em)\n", p.Glyphs, p.UnitsPerEm)
	fmt.Fprintf(w, "At %gpt:      ascent %.1f, descent %.1f, line height %.1f\n", p.SizePt, p.Ascent, p.Descent, p.LineHeight)
}

func writeTableInfo(w io.Writer, t *names.TableInfo) {
	fmt.Fprintf(w, "Table:        %s\n", t.Path)
	fmt.Fprintf(w, "File size:    %s, %d lines\n", humanBytes(t.Size), t.Lines)
	fmt.Fprintf(w, "Headers:      %s\n", strings.Join(t.Headers, ", "))
	if t.NameColumn < 0 {
		fmt.Fprintln(w, "Name column:  not found")
	} else {
		fmt.Fprintf(w, "Name column:  %d (%s)\n", t.NameColumn+1, t.Headers[t.NameColumn])
	}
	if t.FirstData != "" {
		fmt.Fprintf(w, "First row:    %s\n", t.FirstData)
	}
	fmt.Fprintf(w, "Rows:         %d (%d blank)\n", t.Rows, t.Blank)
}

// humanBytes formats n with a binary unit.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// ///////////////////////////////////////////////
// list
// ///////////////////////////////////////////////

func (c *cli) cmdList(args []string) int {
	fs := c.flagSet("list", "[fonts|templates|tables]")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	kinds := []discover.Kind{discover.Templates, discover.Tables, discover.Fonts}
	if fs.NArg() > 1 {
		fs.Usage()
		return exitSetup
	}
	if fs.NArg() == 1 {
		k, err := discover.ParseKind(fs.Arg(0))
		if err != nil {
			return c.fail("list: %v", err)
		}
		kinds = []discover.Kind{k}
	}

	for i, k := range kinds {
		if i > 0 {
			fmt.Fprintln(c.stdout)
		}
		dir := c.kindDir(k)
		fmt.Fprintf(c.stdout, "%s (%s):\n", titleCase(k.String()), dir)
		files, err := discover.List(dir, k)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(c.stdout, "  (missing, run 'certmaker init')")
			} else {
				return c.fail("list: %v", err)
			}
		}
		for n, f := range files {
			fmt.Fprintf(c.stdout, "  %d. %s\n", n+1, f)
		}
		if k == discover.Fonts {
			for _, b := range typeface.BuiltinNames() {
				fmt.Fprintf(c.stdout, "  -  builtin:%s\n", b)
			}
		} else if err == nil && len(files) == 0 {
			fmt.Fprintln(c.stdout, "  (none)")
		}
	}
	return exitOK
}

func (c *cli) kindDir(k discover.Kind) string {
	switch k {
	case discover.Fonts:
		return c.ws.Assets()
	case discover.Templates:
		return c.ws.Templates()
	default:
		return c.ws.Tables()
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ///////////////////////////////////////////////
// sample
// ///////////////////////////////////////////////

func (c *cli) cmdSample(args []string) int {
	fs := c.flagSet("sample", "[path]")
	force := fs.Bool("force", false, "overwrite an existing file")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	path := c.ws.Sample()
	if fs.NArg() > 0 {
		path = c.ws.Resolve(fs.Arg(0))
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return c.fail("sample: %s already exists (use -force to overwrite)", path)
	}
	if err := names.WriteSample(path); err != nil {
		return c.fail("sample: %v", err)
	}
	fmt.Fprintf(c.stdout, "wrote %s\n", path)
	return exitOK
}

// ///////////////////////////////////////////////
// init
// ///////////////////////////////////////////////

func (c *cli) cmdInit(args []string) int {
	fs := c.flagSet("init", "")
	force := fs.Bool("force", false, "overwrite an existing certmaker.toml")
	if code, ok := parse(fs, args); !ok {
		return code
	}

	created, err := c.ws.Init()
	for _, dir := range created {
		fmt.Fprintf(c.stdout, "created %s%c\n", dir, filepath.Separator)
	}
	if err != nil {
		return c.fail("init: %v", err)
	}

	cfgPath := c.ws.Config()
	if _, err := os.Stat(cfgPath); err == nil && !*force {
		fmt.Fprintf(c.stdout, "kept %s\n", cfgPath)
	} else {
		if err := atomicfile.Write(cfgPath, certmaker.DefaultConfigTOML, 0o644); err != nil {
			return c.fail("init: write config: %v", err)
		}
		fmt.Fprintf(c.stdout, "wrote %s\n", cfgPath)
	}

	tables, err := discover.List(c.ws.Tables(), discover.Tables)
	if err == nil && len(tables) == 0 {
		if err := names.WriteSample(c.ws.Sample()); err != nil {
			return c.fail("init: %v", err)
		}
		fmt.Fprintf(c.stdout, "wrote %s\n", c.ws.Sample())
	}
	fmt.Fprintf(c.stdout, "\nAdd a template image to %s, then run 'certmaker run'.\n", c.ws.Templates())
	return exitOK
}

// ///////////////////////////////////////////////
// log
// ///////////////////////////////////////////////

func (c *cli) cmdLog(args []string) int {
	fs := c.flagSet("log", "")
	lines := fs.Int("n", 50, "number of `lines` to show")
	configPath := fs.String("config", "", "config `file` (default <workspace>/certmaker.toml)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	path := c.ws.Config()
	if *configPath != "" {
		path = *configPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return c.fail("log: %v", err)
	}
	if cfg.Log.File == "" {
		return c.fail("log: file logging is disabled (log.file is empty)")
	}
	tail, err := logger.ReadTail(c.ws.Resolve(cfg.Log.File), *lines)
	if err != nil {
		return c.fail("log: %v", err)
	}
	fmt.Fprint(c.stdout, tail)
	if tail != "" && !strings.HasSuffix(tail, "\n") {
		fmt.Fprintln(c.stdout)
	}
	return exitOK
}
