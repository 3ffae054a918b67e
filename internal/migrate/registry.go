package migrate

import (
	"fmt"
	"sort"
)

// Registry holds the current version and migrations for one document kind.
type Registry struct {
	// CurrentVersion is the schema version this build reads and writes.
	CurrentVersion int
	// Migrations is exported so tests can swap the list.
	Migrations []Migration
}

// Register appends a migration. It panics on a duplicate version.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (description: %q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether a document at fileVersion is behind.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	if fileVersion < r.CurrentVersion {
		return true
	}
	for _, m := range r.Migrations {
		if fileVersion < m.Version {
			return true
		}
	}
	return false
}

// Run applies the registered migrations.
func (r *Registry) Run(doc Document, fromVersion int) (int, error) {
	return Run(doc, fromVersion, r.Migrations)
}

// Config is the registry for certmaker.toml.
var Config = &Registry{CurrentVersion: 2}

func init() {
	Config.Register(Migration{
		Version:     2,
		Description: "split [output] into [batch] and [render]",
		Upgrade:     splitOutputTable,
	})
}

// splitOutputTable turns the v1 layout
//
//	[output]
//	dir = "certificates"
//	format = "png"
//	quality = 90
//
// into batch.output_dir, render.format and render.jpeg_quality.
func splitOutputTable(doc Document) error {
	v, ok := doc["output"]
	if !ok {
		return nil
	}
	out, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("output: expected a table, got %T", v)
	}
	batch, err := Table(doc, "batch")
	if err != nil {
		return err
	}
	render, err := Table(doc, "render")
	if err != nil {
		return err
	}
	Move(out, "dir", batch, "output_dir")
	Move(out, "format", render, "format")
	Move(out, "quality", render, "jpeg_quality")
	if len(out) > 0 {
		keys := make([]string, 0, len(out))
		for k := range out {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("output: unknown keys %v", keys)
	}
	delete(doc, "output")
	return nil
}
