// Package migrate upgrades decoded config documents from one schema version
// to the next.
//
// Documents are the generic form produced by decoding TOML into a
// map[string]any, so a migration can move or rename keys without knowing
// the final struct layout.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Document is a decoded TOML file. Nested tables are map[string]any.
type Document = map[string]any

// Migration upgrades a document to Version.
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short label for log output.
	Description string
	// Upgrade mutates doc in place.
	Upgrade func(doc Document) error
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Run applies migrations in version order where fromVersion < m.Version.
// It returns the version reached; doc is left partially upgraded on error.
func Run(doc Document, fromVersion int, migrations []Migration) (int, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	version := fromVersion
	for _, m := range sorted {
		if version >= m.Version {
			continue
		}
		slog.Info("applying config migration", "version", m.Version, "description", m.Description)
		if err := m.Upgrade(doc); err != nil {
			return version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		version = m.Version
	}
	return version, nil
}

// Table returns the sub-table name of doc, creating it when missing. It
// fails if name exists but is not a table.
func Table(doc Document, name string) (Document, error) {
	v, ok := doc[name]
	if !ok {
		t := Document{}
		doc[name] = t
		return t, nil
	}
	t, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a table, got %T", name, v)
	}
	return t, nil
}

// Move relocates key from one table to another under a new name. Existing
// values at the destination win. Missing source keys are ignored.
func Move(from Document, key string, to Document, newKey string) {
	v, ok := from[key]
	if !ok {
		return
	}
	delete(from, key)
	if _, exists := to[newKey]; exists {
		return
	}
	to[newKey] = v
}
