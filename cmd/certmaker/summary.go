package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"tools.zach/dev/certmaker/internal/batch"
)

// ///////////////////////////////////////////////
// Summary
// ///////////////////////////////////////////////

// palette holds the summary colors. Writers that are not terminals get the
// Ascii profile, so tests and redirected output stay plain.
type palette struct {
	out  *termenv.Output
	ok   termenv.Color
	warn termenv.Color
	bad  termenv.Color
}

func newPalette(w io.Writer) palette {
	out := termenv.NewOutput(w)
	return palette{
		out:  out,
		ok:   out.Color("2"),
		warn: out.Color("3"),
		bad:  out.Color("1"),
	}
}

func (p palette) paint(c termenv.Color, s string) string {
	return p.out.String(s).Foreground(c).String()
}

// printSummary writes a one-line result followed by each failed row.
func (c *cli) printSummary(r *batch.Report, outDir string) {
	p := newPalette(c.stdout)
	shown := outDir
	if rel, err := filepath.Rel(c.ws.Root, outDir); err == nil && !strings.HasPrefix(rel, "..") {
		shown = rel
	}

	headline := fmt.Sprintf("Rendered %d of %d names into %s in %s",
		len(r.Successes), r.Total, shown, r.Elapsed.Round(time.Millisecond))
	switch {
	case r.Interrupted:
		fmt.Fprintln(c.stdout, p.paint(p.warn, headline+" (interrupted)"))
	case r.OK():
		fmt.Fprintln(c.stdout, p.out.String(headline).Foreground(p.ok).Bold().String())
	default:
		fmt.Fprintln(c.stdout, p.paint(p.bad, headline))
	}

	for _, kind := range []batch.FailureKind{batch.RowSkipped, batch.RenderFailure, batch.WriteFailure, batch.Cancelled} {
		if n := r.Count(kind); n > 0 {
			fmt.Fprintf(c.stdout, "  %-15s %d\n", kind.String()+":", n)
		}
	}
	for _, f := range r.Failures {
		if f.Kind == batch.Cancelled {
			continue
		}
		color := p.bad
		if f.Kind == batch.RowSkipped {
			color = p.warn
		}
		name := f.Name
		if name == "" {
			name = "(blank)"
		}
		fmt.Fprintf(c.stdout, "  %s %q: %s\n", p.paint(color, fmt.Sprintf("row %d", f.Row)), name, f.Reason)
	}
}
