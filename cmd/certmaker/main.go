// Package main implements the certmaker CLI, which stamps names from a CSV
// table onto a template image and writes one output image per name.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/mattn/go-isatty"

	"tools.zach/dev/certmaker/internal/paths"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//
//	-X main.version=$(VERSION)
//
// When ldflags are not set, resolveVersion reads the VCS info that Go embeds
// automatically.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags it is returned as-is; otherwise the embedded VCS revision and dirty
// state produce a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Exit Codes
// ///////////////////////////////////////////////

const (
	exitOK          = 0
	exitSetup       = 1   // usage, config, or setup error; nothing rendered
	exitRowsFailed  = 2   // batch finished with at least one failed row
	exitInterrupted = 130 // stopped by SIGINT/SIGTERM
)

// ///////////////////////////////////////////////
// CLI
// ///////////////////////////////////////////////

// cli carries the process streams and workspace so commands can be tested
// without touching the real terminal.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	ws     paths.Workspace
	// interactive enables the in-place progress line on stderr.
	interactive bool
}

type command struct {
	name    string
	summary string
	run     func(c *cli, args []string) int
}

var commands = []command{
	{"run", "render one image per name in the table", (*cli).cmdRun},
	{"stamp", "render one text onto the template", (*cli).cmdStamp},
	{"analyze", "describe a template image, font, or CSV table", (*cli).cmdAnalyze},
	{"list", "list fonts, templates, and tables in the workspace", (*cli).cmdList},
	{"sample", "write a sample names table", (*cli).cmdSample},
	{"init", "create workspace directories and certmaker.toml", (*cli).cmdInit},
	{"log", "print the end of the log file", (*cli).cmdLog},
	{"version", "print the version", (*cli).cmdVersion},
}

func main() {
	c := &cli{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		interactive: isatty.IsTerminal(os.Stderr.Fd()),
	}
	os.Exit(c.main(os.Args[1:]))
}

// main parses global flags and dispatches to a subcommand.
func (c *cli) main(args []string) int {
	fs := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	root := fs.String("C", ".", "workspace `dir`ectory holding Template/, assets/, excelcsvs/")
	fs.Usage = func() { c.usage(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitSetup
	}
	c.ws = paths.Workspace{Root: *root}

	rest := fs.Args()
	if len(rest) == 0 {
		c.usage(fs)
		return exitSetup
	}
	name := rest[0]
	if name == "help" || name == "-h" {
		c.usage(fs)
		return exitOK
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(c, rest[1:])
		}
	}
	fmt.Fprintf(c.stderr, "%s: unknown command %q\n\n", paths.BinaryName, name)
	c.usage(fs)
	return exitSetup
}

func (c *cli) usage(fs *flag.FlagSet) {
	var b strings.Builder
	fmt.Fprintf(&b, "usage: %s [-C dir] <command> [flags]\n\ncommands:\n", paths.BinaryName)
	for _, cmd := range commands {
		fmt.Fprintf(&b, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	b.WriteString("\nglobal flags:\n")
	fmt.Fprint(c.stderr, b.String())
	fs.PrintDefaults()
	fmt.Fprintf(c.stderr, "\nRun '%s <command> -h' for command flags.\n", paths.BinaryName)
}

// flagSet returns a FlagSet for a subcommand that reports errors on stderr.
func (c *cli) flagSet(name, argsUsage string) *flag.FlagSet {
	fs := flag.NewFlagSet(paths.BinaryName+" "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "usage: %s %s [flags] %s\n", paths.BinaryName, name, argsUsage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args into fs and returns the exit code to use when parsing
// stopped the command.
func parse(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitSetup, false
	}
	return 0, true
}

// fail prints a one-line error and returns exitSetup.
func (c *cli) fail(format string, args ...any) int {
	fmt.Fprintf(c.stderr, paths.BinaryName+": "+format+"\n", args...)
	return exitSetup
}

func (c *cli) cmdVersion(args []string) int {
	fs := c.flagSet("version", "")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	fmt.Fprintf(c.stdout, "%s %s\n", paths.BinaryName, resolveVersion())
	return exitOK
}
