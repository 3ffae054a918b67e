// Package paths centralizes file and directory names used across the project.
// All workspace names are defined here as the single source of truth.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Workspace directory and file names, relative to the workspace root.
const (
	TemplateDir = "Template"
	AssetsDir   = "assets"
	TablesDir   = "excelcsvs"
	OutputDir   = "certificates"
	ConfigFile  = "certmaker.toml"
	LogFile     = "certmaker.log"
	FontCache   = ".cache" // inside AssetsDir
	LockFile    = ".certmaker.lock"
	SampleTable = "sample_names.csv"
	BinaryName  = "certmaker"
)

// ///////////////////////////////////////////////
// Workspace
// ///////////////////////////////////////////////

// Workspace provides path construction methods rooted at a workspace dir.
type Workspace struct {
	Root string
}

// Templates returns the directory holding template images.
func (w Workspace) Templates() string { return filepath.Join(w.Root, TemplateDir) }

// Assets returns the directory holding font files.
func (w Workspace) Assets() string { return filepath.Join(w.Root, AssetsDir) }

// Tables returns the directory holding CSV name tables.
func (w Workspace) Tables() string { return filepath.Join(w.Root, TablesDir) }

// Output returns the default output directory.
func (w Workspace) Output() string { return filepath.Join(w.Root, OutputDir) }

// Config returns the full path to the config file.
func (w Workspace) Config() string { return filepath.Join(w.Root, ConfigFile) }

// Log returns the full path to the log file.
func (w Workspace) Log() string { return filepath.Join(w.Root, LogFile) }

// FontCache returns the directory downloaded fonts are cached in.
func (w Workspace) FontCache() string { return filepath.Join(w.Root, AssetsDir, FontCache) }

// Sample returns the path the sample table is written to.
func (w Workspace) Sample() string { return filepath.Join(w.Root, TablesDir, SampleTable) }

// Resolve joins a relative p onto the workspace root; absolute paths and
// empty strings are returned unchanged.
func (w Workspace) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.Root, p)
}

// Init creates the input and output directories if they are missing and
// returns the ones it created.
func (w Workspace) Init() ([]string, error) {
	var created []string
	for _, dir := range []string{w.Templates(), w.Assets(), w.Tables(), w.Output()} {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("create %s: %w", dir, err)
		}
		created = append(created, dir)
	}
	return created, nil
}
