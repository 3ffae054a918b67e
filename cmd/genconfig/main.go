// Package main implements the genconfig tool that writes config.default.toml
// from config.ExampleConfig() annotated with config.ConfigDocs.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/certmaker/internal/atomicfile"
	"tools.zach/dev/certmaker/internal/config"
)

func main() {
	// go generate runs from internal/config/, so ../../ is the repo root
	// where configdata.go embeds the file.
	out := flag.String("o", "../../config.default.toml", "output path")
	flag.Parse()

	text, err := generate(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	if err := atomicfile.Write(*out, []byte(text), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}

// annotator rewrites encoder output line by line, adding doc comments.
type annotator struct {
	docs    map[string]config.FieldDoc
	out     []string
	section []string
	emitted map[string]bool
}

// generate encodes cfg and annotates every key that has an entry in docs.
// Documented keys the encoder omitted (omitempty zero values) are added as
// commented-out examples at the end of their section.
func generate(cfg *config.Config, docs map[string]config.FieldDoc) (string, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	a := &annotator{docs: docs, emitted: map[string]bool{}}
	a.out = append(a.out,
		"# ///////////////////////////////////////////////",
		"# certmaker configuration",
		"# ///////////////////////////////////////////////",
		"",
	)
	for _, line := range strings.Split(raw.String(), "\n") {
		a.line(strings.TrimSpace(line))
	}
	a.flushOmitted()

	return strings.TrimRight(strings.Join(a.out, "\n"), "\n") + "\n", nil
}

func (a *annotator) line(trimmed string) {
	switch {
	case trimmed == "":
		// spacing is managed here, not by the encoder
	case strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[["):
		a.flushOmitted()
		name := strings.Trim(trimmed, "[] ")
		a.section = strings.Split(name, ".")
		a.out = append(a.out, "", fmt.Sprintf("# ///// %s /////", sectionTitle(name)), "")
		if doc, ok := a.docs[name]; ok {
			a.comment(doc.Comment)
		}
		a.out = append(a.out, trimmed)
	case !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#"):
		a.out = append(a.out, trimmed)
	default:
		key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		path := a.path(key)
		a.emitted[path] = true
		doc := a.docs[path]
		a.comment(doc.Comment)
		a.out = append(a.out, trimmed)
		for _, alt := range doc.Alternatives {
			a.out = append(a.out, "# "+alt)
		}
	}
}

func (a *annotator) path(key string) string {
	if len(a.section) == 0 {
		return key
	}
	return strings.Join(a.section, ".") + "." + key
}

func (a *annotator) comment(text string) {
	if text == "" {
		return
	}
	for _, cl := range strings.Split(text, "\n") {
		a.out = append(a.out, "# "+cl)
	}
}

// flushOmitted writes documented direct children of the current section that
// the encoder skipped. Keys are sorted for stable output.
func (a *annotator) flushOmitted() {
	if len(a.section) == 0 {
		return
	}
	prefix := strings.Join(a.section, ".") + "."

	var omitted []string
	for path := range a.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || a.emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := a.docs[path]
		a.out = append(a.out, "")
		a.comment(doc.Comment)
		for _, alt := range doc.Alternatives {
			a.out = append(a.out, "# "+alt)
		}
		a.emitted[path] = true
	}
}

// sectionTitle capitalizes the last segment of a dotted section name.
func sectionTitle(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
