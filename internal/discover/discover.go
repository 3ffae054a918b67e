// Package discover finds candidate input files (fonts, templates, tables)
// under the workspace directories and picks one by number or name.
package discover

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind is a category of input file.
type Kind int

const (
	Fonts Kind = iota
	Templates
	Tables
)

var kindNames = map[Kind]string{Fonts: "fonts", Templates: "templates", Tables: "tables"}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pattern returns the doublestar pattern matching files of kind k.
func (k Kind) Pattern() string {
	switch k {
	case Fonts:
		return "**/*.{ttf,otf,ttc,woff,woff2}"
	case Templates:
		return "**/*.{png,jpg,jpeg,gif,bmp,tif,tiff}"
	default:
		return "**/*.csv"
	}
}

// ParseKind accepts "fonts", "templates" or "tables" (singular too).
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "font":
		return Fonts, nil
	case "template":
		return Templates, nil
	case "table", "csv":
		return Tables, nil
	}
	return 0, fmt.Errorf("unknown file kind %q (want fonts, templates or tables)", s)
}

// ErrNoMatch is returned by Select when nothing matches the choice.
var ErrNoMatch = errors.New("no matching file")

// List returns files of kind k below root as sorted, slash-separated paths
// relative to root. Hidden files and directories are skipped; extensions
// match case-insensitively.
func List(root string, k Kind) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", k, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list %s: %s is not a directory", k, root)
	}
	matches, err := doublestar.Glob(os.DirFS(root), k.Pattern(),
		doublestar.WithCaseInsensitive(),
		doublestar.WithFilesOnly(),
		doublestar.WithNoHidden(),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", k, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Select picks one of files by 1-based index ("2") or by base name,
// compared case-insensitively with or without extension. An empty choice
// selects the only file when there is exactly one.
func Select(files []string, choice string) (string, error) {
	choice = strings.TrimSpace(choice)
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no files to choose from", ErrNoMatch)
	}
	if choice == "" {
		if len(files) == 1 {
			return files[0], nil
		}
		return "", fmt.Errorf("%d files found, choose one of: %s", len(files), strings.Join(files, ", "))
	}

	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(files) {
			return "", fmt.Errorf("%w: choice %d out of range 1..%d", ErrNoMatch, n, len(files))
		}
		return files[n-1], nil
	}

	want := strings.ToLower(filepath.ToSlash(choice))
	for _, f := range files {
		lf := strings.ToLower(f)
		base := path.Base(lf)
		if lf == want || base == want || strings.TrimSuffix(base, path.Ext(base)) == want {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoMatch, choice)
}
