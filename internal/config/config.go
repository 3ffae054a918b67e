// Package config provides configuration loading and defaults for certmaker.
//
// Configuration is loaded from certmaker.toml in the workspace root. The
// package covers render settings, batch behavior, input selection, font
// lookup and logging, and converts them into a [batch.Config] once a font
// has been resolved.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/certmaker/internal/atomicfile"
	"tools.zach/dev/certmaker/internal/batch"
	"tools.zach/dev/certmaker/internal/colorspec"
	"tools.zach/dev/certmaker/internal/layout"
	"tools.zach/dev/certmaker/internal/logger"
	"tools.zach/dev/certmaker/internal/migrate"
	"tools.zach/dev/certmaker/internal/names"
	"tools.zach/dev/certmaker/internal/paths"
	"tools.zach/dev/certmaker/internal/render"
	"tools.zach/dev/certmaker/internal/typeface"
)

// DefaultFont is used when render.font is empty.
const DefaultFont = "builtin:goregular"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Render holds text appearance and output encoding settings.
	Render RenderConfig `toml:"render"`
	// Batch holds output location and concurrency settings.
	Batch BatchConfig `toml:"batch"`
	// Input holds the default table and template.
	Input InputConfig `toml:"input"`
	// Fonts holds font lookup settings.
	Fonts FontsConfig `toml:"fonts"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// RenderConfig holds text appearance and output encoding settings.
type RenderConfig struct {
	// Font is a font spec: builtin:NAME, google:Family[:weight], or a path.
	Font string `toml:"font"`
	// FontSize is the glyph height in points.
	FontSize float64 `toml:"font_size"`
	// Color is a hex color (#RRGGBB, #RRGGBBAA, or without '#') or a color name.
	Color string `toml:"color"`
	// Position is "center" or "x,y" in template pixels.
	Position string `toml:"position"`
	// Format overrides the output encoding. Empty keeps the template's format.
	Format string `toml:"format,omitempty"`
	// JPEGQuality is used when the output format is JPEG.
	JPEGQuality int `toml:"jpeg_quality"`
}

// BatchConfig holds output location and concurrency settings.
type BatchConfig struct {
	// OutputDir receives one image per rendered name.
	OutputDir string `toml:"output_dir"`
	// Parallelism bounds concurrent render tasks. 0 uses every CPU.
	Parallelism int `toml:"parallelism"`
}

// InputConfig holds the default table and template used by `run`.
type InputConfig struct {
	// Table is the CSV file of names.
	Table string `toml:"table,omitempty"`
	// Template is the background image.
	Template string `toml:"template,omitempty"`
	// NameColumn is the header of the column holding names (case-insensitive).
	NameColumn string `toml:"name_column"`
}

// FontsConfig holds font lookup settings.
type FontsConfig struct {
	// Dirs are searched for bare font file names.
	Dirs []string `toml:"dirs"`
	// CacheDir stores fonts downloaded from Google Fonts.
	CacheDir string `toml:"cache_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// File is the log file path. Empty disables file logging.
	File string `toml:"file"`
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultConfig returns a [Config] with sensible defaults for all fields.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Render: RenderConfig{
			Font:        DefaultFont,
			FontSize:    40,
			Color:       "black",
			Position:    "center",
			JPEGQuality: 90,
		},
		Batch: BatchConfig{
			OutputDir:   paths.OutputDir,
			Parallelism: 0,
		},
		Input: InputConfig{
			NameColumn: names.DefaultColumn,
		},
		Fonts: FontsConfig{
			Dirs:     []string{paths.AssetsDir},
			CacheDir: paths.AssetsDir + "/" + paths.FontCache,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
			File:      paths.LogFile,
		},
	}
}

// ExampleConfig returns the config written by `certmaker init` and used to
// generate config.default.toml.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// PeekVersion reads only the version field. Files without one are v1.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// Load reads the config at path, migrating older schemas in place. A missing
// file yields [DefaultConfig]. Unknown keys and invalid values are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)
	if version > migrate.Config.CurrentVersion {
		return nil, fmt.Errorf("config version %d is newer than supported version %d", version, migrate.Config.CurrentVersion)
	}

	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		if backupErr := atomicfile.Write(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		data, err = upgrade(data, version)
		if err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// Decode parses TOML over [DefaultConfig] and validates the result.
func Decode(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("parse config: unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// upgrade runs the registered migrations over the generic document form and
// re-encodes it.
func upgrade(data []byte, from int) ([]byte, error) {
	doc := migrate.Document{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	version, err := migrate.Config.Run(doc, from)
	if err != nil {
		return nil, err
	}
	doc["version"] = version

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode migrated config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes c to path atomically.
func (c *Config) Save(path string) error {
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		if err := toml.NewEncoder(w).Encode(c); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return nil
	})
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if c.Render.FontSize <= 0 {
		return fmt.Errorf("render.font_size must be > 0, got %g", c.Render.FontSize)
	}
	if _, err := colorspec.Resolve(c.Render.Color); err != nil {
		return fmt.Errorf("render.color: %w", err)
	}
	if _, err := layout.ParsePosition(c.Render.Position); err != nil {
		return fmt.Errorf("render.position: %w", err)
	}
	if c.Render.Format != "" {
		if _, err := render.ParseFormat(c.Render.Format); err != nil {
			return fmt.Errorf("render.format: %w", err)
		}
	}
	if q := c.Render.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("render.jpeg_quality must be 1..100, got %d", q)
	}
	if c.Batch.OutputDir == "" {
		return errors.New("batch.output_dir must not be empty")
	}
	if c.Batch.Parallelism < 0 {
		return fmt.Errorf("batch.parallelism must be >= 0, got %d", c.Batch.Parallelism)
	}
	if strings.TrimSpace(c.Input.NameColumn) == "" {
		return errors.New("input.name_column must not be empty")
	}
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log.max_size_mb must be >= 0, got %d", c.Log.MaxSizeMB)
	}
	return nil
}

// ///////////////////////////////////////////////
// Conversion
// ///////////////////////////////////////////////

// FontSpec returns the configured font, falling back to [DefaultFont].
func (c *Config) FontSpec() string {
	if c.Render.Font == "" {
		return DefaultFont
	}
	return c.Render.Font
}

// FontOptions returns font lookup options with directories resolved
// against ws.
func (c *Config) FontOptions(ws paths.Workspace) typeface.LoadOptions {
	dirs := make([]string, len(c.Fonts.Dirs))
	for i, d := range c.Fonts.Dirs {
		dirs[i] = ws.Resolve(d)
	}
	return typeface.LoadOptions{
		SearchDirs: dirs,
		CacheDir:   ws.Resolve(c.Fonts.CacheDir),
	}
}

// BatchConfig builds the engine configuration. OutputDir is taken as-is;
// callers resolve it against the workspace first.
func (c *Config) BatchConfig(fontBytes []byte) (batch.Config, error) {
	col, err := colorspec.Resolve(c.Render.Color)
	if err != nil {
		return batch.Config{}, fmt.Errorf("render.color: %w", err)
	}
	pos, err := layout.ParsePosition(c.Render.Position)
	if err != nil {
		return batch.Config{}, fmt.Errorf("render.position: %w", err)
	}
	bc := batch.Config{
		FontBytes:   fontBytes,
		FontSizePt:  c.Render.FontSize,
		Color:       col,
		Position:    pos,
		OutputDir:   c.Batch.OutputDir,
		JPEGQuality: c.Render.JPEGQuality,
		Parallelism: c.Batch.Parallelism,
	}
	if c.Render.Format != "" {
		f, err := render.ParseFormat(c.Render.Format)
		if err != nil {
			return batch.Config{}, fmt.Errorf("render.format: %w", err)
		}
		bc.Format = &f
	}
	return bc, nil
}
