package typeface

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/go-fonts/latin-modern/lmsans10regular"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// builtins maps "builtin:NAME" specs to embedded font data.
var builtins = map[string][]byte{
	"goregular": goregular.TTF,
	"gobold":    gobold.TTF,
	"gomono":    gomono.TTF,
	"lmroman":   lmroman10regular.TTF,
	"lmsans":    lmsans10regular.TTF,
}

// BuiltinNames returns the names accepted after "builtin:", sorted.
func BuiltinNames() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadOptions controls where [Load] looks for fonts.
type LoadOptions struct {
	// SearchDirs are consulted, in order, for bare file names that don't
	// exist relative to the working directory.
	SearchDirs []string
	// CacheDir holds downloaded Google fonts. Empty disables caching.
	CacheDir string
	// GoogleCSSURL overrides DefaultGoogleCSSURL.
	GoogleCSSURL string
}

// Load resolves a font spec and parses it. Accepted specs:
//
//	builtin:goregular       embedded font (see BuiltinNames)
//	google:Inter:700        Google Fonts family and weight, cached
//	assets/Roboto.ttf       path to a TTF/OTF/TTC/WOFF/WOFF2 file
//	Roboto.ttf              looked up in opts.SearchDirs
func Load(spec string, opts LoadOptions) (*Font, error) {
	data, source, err := LoadBytes(spec, opts)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", source, err)
	}
	f.Source = source
	return f, nil
}

// LoadBytes resolves a font spec to raw font data without parsing it.
// source is the resolved path or the spec itself.
func LoadBytes(spec string, opts LoadOptions) (data []byte, source string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, "", errors.New("no font specified")
	}

	switch {
	case strings.HasPrefix(spec, "builtin:"):
		name := strings.ToLower(strings.TrimPrefix(spec, "builtin:"))
		b, ok := builtins[name]
		if !ok {
			return nil, "", fmt.Errorf("unknown builtin font %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
		}
		return b, spec, nil

	case strings.HasPrefix(spec, "google:"):
		b, err := FetchGoogle(spec, opts.CacheDir, opts.GoogleCSSURL)
		if err != nil {
			return nil, "", err
		}
		return b, spec, nil
	}

	path, err := findFile(spec, opts.SearchDirs)
	if err != nil {
		return nil, "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read font: %w", err)
	}
	return b, path, nil
}

// findFile returns spec if it names an existing file, otherwise the first
// match for spec's base name inside dirs.
func findFile(spec string, dirs []string) (string, error) {
	if info, err := os.Stat(spec); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("font path %s is a directory", spec)
		}
		return spec, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat font: %w", err)
	}

	// Only bare names are searched; a path with a directory part that doesn't
	// exist is reported as-is.
	if filepath.Base(spec) == spec {
		for _, dir := range dirs {
			candidate := filepath.Join(dir, spec)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("font %s: %w", spec, fs.ErrNotExist)
}
