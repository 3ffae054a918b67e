// Tests for the config package covering [Load] behavior (defaults, overrides,
// missing files, malformed input, unknown keys, migration), validation
// ([Config.Validate]), conversion ([Config.BatchConfig],
// [Config.FontOptions]), serialization round-trips ([Config.Save]), and
// [ConfigDocs] completeness.

package config

import (
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/certmaker/internal/layout"
	"tools.zach/dev/certmaker/internal/migrate"
	"tools.zach/dev/certmaker/internal/paths"
	"tools.zach/dev/certmaker/internal/render"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, paths.ConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		noFile  bool
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "defaults from minimal config",
			config: "version = 2\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if !reflect.DeepEqual(cfg, DefaultConfig()) {
					t.Errorf("cfg = %+v, want defaults", cfg)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 2

[render]
font = "google:Great Vibes:400"
font_size = 32.0
color = "#1A2B3C"
position = "100,200"

[batch]
parallelism = 4
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Render.Font != "google:Great Vibes:400" {
					t.Errorf("Font = %q", cfg.Render.Font)
				}
				if cfg.Render.FontSize != 32 {
					t.Errorf("FontSize = %g, want 32", cfg.Render.FontSize)
				}
				if cfg.Render.Color != "#1A2B3C" {
					t.Errorf("Color = %q", cfg.Render.Color)
				}
				if cfg.Render.Position != "100,200" {
					t.Errorf("Position = %q", cfg.Render.Position)
				}
				if cfg.Batch.Parallelism != 4 {
					t.Errorf("Parallelism = %d, want 4", cfg.Batch.Parallelism)
				}
			},
		},
		{
			name: "partial override preserves other defaults",
			config: `
version = 2

[input]
table = "excelcsvs/class.csv"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				def := DefaultConfig()
				if cfg.Input.Table != "excelcsvs/class.csv" {
					t.Errorf("Table = %q", cfg.Input.Table)
				}
				if cfg.Input.NameColumn != def.Input.NameColumn {
					t.Errorf("NameColumn = %q, want default %q", cfg.Input.NameColumn, def.Input.NameColumn)
				}
				if cfg.Batch.OutputDir != def.Batch.OutputDir {
					t.Errorf("OutputDir = %q, want default %q", cfg.Batch.OutputDir, def.Batch.OutputDir)
				}
			},
		},
		{
			name:   "missing file returns defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Version != migrate.Config.CurrentVersion {
					t.Errorf("Version = %d, want %d", cfg.Version, migrate.Config.CurrentVersion)
				}
			},
		},
		{
			name:    "malformed TOML returns error",
			config:  "this is not valid toml [[[",
			wantErr: "parse config",
		},
		{
			name:    "unknown key returns error",
			config:  "version = 2\n[render]\nfont_colour = \"red\"\n",
			wantErr: "render.font_colour",
		},
		{
			name:    "invalid value fails validation",
			config:  "version = 2\n[render]\ncolor = \"teal\"\n",
			wantErr: "render.color",
		},
		{
			name:    "newer version is rejected",
			config:  "version = 99\n",
			wantErr: "newer than supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, paths.ConfigFile)
			if !tt.noFile {
				writeConfig(t, dir, tt.config)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	// A directory at the config path is not "missing".
	path := filepath.Join(dir, paths.ConfigFile)
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error reading a directory")
	}
}

// ///////////////////////////////////////////////
// Migration
// ///////////////////////////////////////////////

func TestLoad_Migration(t *testing.T) {
	dir := t.TempDir()
	v1 := `
[render]
font = "builtin:gobold"

[output]
dir = "out"
format = "jpeg"
quality = 75
`
	path := writeConfig(t, dir, v1)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != migrate.Config.CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, migrate.Config.CurrentVersion)
	}
	if cfg.Batch.OutputDir != "out" {
		t.Errorf("OutputDir = %q, want out", cfg.Batch.OutputDir)
	}
	if cfg.Render.Format != "jpeg" || cfg.Render.JPEGQuality != 75 {
		t.Errorf("Render = %+v", cfg.Render)
	}
	if cfg.Render.Font != "builtin:gobold" {
		t.Errorf("Font = %q, want builtin:gobold", cfg.Render.Font)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if string(backup) != v1 {
		t.Error("backup does not hold the original file")
	}

	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if PeekVersion(saved) != migrate.Config.CurrentVersion {
		t.Errorf("saved version = %d", PeekVersion(saved))
	}
	if strings.Contains(string(saved), "[output]") {
		t.Error("saved config still has [output]")
	}

	// A second load is a no-op.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !reflect.DeepEqual(again, cfg) {
		t.Errorf("second load differs: %+v vs %+v", again, cfg)
	}
}

func TestLoad_MigrationFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[output]\ndir = \"out\"\nborder = 3\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "migrate config") {
		t.Fatalf("expected migrate error, got %v", err)
	}
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{
			name: "reads version from TOML",
			data: "version = 3\n[render]\nfont = \"x\"\n",
			want: 3,
		},
		{
			name: "missing version returns 1",
			data: "[render]\nfont = \"x\"\n",
			want: 1,
		},
		{
			name: "malformed returns 1",
			data: "[[[",
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PeekVersion([]byte(tt.data))
			if got != tt.want {
				t.Errorf("PeekVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// ExampleConfig
// ///////////////////////////////////////////////

func TestExampleConfig(t *testing.T) {
	cfg := ExampleConfig()
	if cfg == nil {
		t.Fatal("ExampleConfig returned nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("ExampleConfig does not validate: %v", err)
	}
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		t.Fatalf("failed to marshal ExampleConfig: %v", err)
	}
}

// ///////////////////////////////////////////////
// ConfigDocs completeness
// ///////////////////////////////////////////////

func TestConfigDocsComplete(t *testing.T) {
	fields := collectTOMLFields(reflect.TypeOf(Config{}), "")
	for _, field := range fields {
		if _, ok := ConfigDocs[field]; !ok {
			t.Errorf("ConfigDocs missing entry for field %q", field)
		}
	}
	known := map[string]bool{}
	for _, f := range fields {
		known[f] = true
	}
	for key := range ConfigDocs {
		if !known[key] {
			t.Errorf("ConfigDocs has entry %q for a field that does not exist", key)
		}
	}
}

// collectTOMLFields recursively walks a struct type and returns the
// dot-separated TOML key path for every tagged field.
func collectTOMLFields(typ reflect.Type, prefix string) []string {
	var fields []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("toml")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			fields = append(fields, collectTOMLFields(f.Type, path)...)
		} else {
			fields = append(fields, path)
		}
	}
	return fields
}

// ///////////////////////////////////////////////
// Marshal field order
// ///////////////////////////////////////////////

func TestConfigMarshalFieldOrder(t *testing.T) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(DefaultConfig()); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := buf.String()

	order := []string{"version", "[render]", "[batch]", "[input]", "[fonts]", "[log]"}
	for i := 1; i < len(order); i++ {
		b, a := strings.Index(out, order[i-1]), strings.Index(out, order[i])
		if b < 0 || a < 0 || b > a {
			t.Errorf("expected %q before %q in marshaled output", order[i-1], order[i])
		}
	}
}

// ///////////////////////////////////////////////
// Save
// ///////////////////////////////////////////////

func TestConfig_Save_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)

	orig := DefaultConfig()
	orig.Render.Font = "assets/Roboto.ttf"
	orig.Render.Format = "jpeg"
	orig.Batch.Parallelism = 3
	orig.Fonts.Dirs = []string{"assets", "/usr/share/fonts"}

	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, orig) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, orig)
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cfg *Config)
		wantErr bool
	}{
		{name: "default config passes", setup: func(cfg *Config) {}},
		{name: "zero font_size", setup: func(cfg *Config) { cfg.Render.FontSize = 0 }, wantErr: true},
		{name: "negative font_size", setup: func(cfg *Config) { cfg.Render.FontSize = -3 }, wantErr: true},
		{name: "bad hex color", setup: func(cfg *Config) { cfg.Render.Color = "#12345" }, wantErr: true},
		{name: "unknown color name", setup: func(cfg *Config) { cfg.Render.Color = "teal" }, wantErr: true},
		{name: "hex color without hash", setup: func(cfg *Config) { cfg.Render.Color = "FF0000" }},
		{name: "bad position", setup: func(cfg *Config) { cfg.Render.Position = "left" }, wantErr: true},
		{name: "explicit position", setup: func(cfg *Config) { cfg.Render.Position = "-10,5" }},
		{name: "anchored center position", setup: func(cfg *Config) { cfg.Render.Position = "center@960,540" }},
		{name: "bad format", setup: func(cfg *Config) { cfg.Render.Format = "webp" }, wantErr: true},
		{name: "jpeg format", setup: func(cfg *Config) { cfg.Render.Format = "jpg" }},
		{name: "jpeg_quality 0", setup: func(cfg *Config) { cfg.Render.JPEGQuality = 0 }, wantErr: true},
		{name: "jpeg_quality 101", setup: func(cfg *Config) { cfg.Render.JPEGQuality = 101 }, wantErr: true},
		{name: "empty output_dir", setup: func(cfg *Config) { cfg.Batch.OutputDir = "" }, wantErr: true},
		{name: "negative parallelism", setup: func(cfg *Config) { cfg.Batch.Parallelism = -1 }, wantErr: true},
		{name: "blank name_column", setup: func(cfg *Config) { cfg.Input.NameColumn = "  " }, wantErr: true},
		{name: "invalid log.level", setup: func(cfg *Config) { cfg.Log.Level = "verbose" }, wantErr: true},
		{name: "uppercase log.level", setup: func(cfg *Config) { cfg.Log.Level = "DEBUG" }},
		{name: "negative max_size_mb", setup: func(cfg *Config) { cfg.Log.MaxSizeMB = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Conversion
// ///////////////////////////////////////////////

func TestConfig_BatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.Color = "#FF000080"
	cfg.Render.Position = "10,20"
	cfg.Render.FontSize = 24
	cfg.Batch.Parallelism = 2
	cfg.Batch.OutputDir = "/tmp/out"

	bc, err := cfg.BatchConfig([]byte("font"))
	if err != nil {
		t.Fatalf("BatchConfig: %v", err)
	}
	if string(bc.FontBytes) != "font" {
		t.Errorf("FontBytes = %q", bc.FontBytes)
	}
	if bc.Color != (color.NRGBA{R: 255, A: 128}) {
		t.Errorf("Color = %v", bc.Color)
	}
	if bc.Position != layout.At(10, 20) {
		t.Errorf("Position = %v", bc.Position)
	}
	if bc.FontSizePt != 24 || bc.Parallelism != 2 || bc.OutputDir != "/tmp/out" {
		t.Errorf("bc = %+v", bc)
	}
	if bc.Format != nil {
		t.Errorf("Format = %v, want nil (keep template format)", *bc.Format)
	}
	if bc.JPEGQuality != 90 {
		t.Errorf("JPEGQuality = %d, want 90", bc.JPEGQuality)
	}

	cfg.Render.Format = "jpeg"
	bc, err = cfg.BatchConfig(nil)
	if err != nil {
		t.Fatalf("BatchConfig: %v", err)
	}
	if bc.Format == nil || *bc.Format != render.JPEG {
		t.Errorf("Format = %v, want jpeg", bc.Format)
	}

	cfg.Render.Color = "nope"
	if _, err := cfg.BatchConfig(nil); err == nil {
		t.Error("expected color error")
	}
}

func TestConfig_FontOptions(t *testing.T) {
	root := t.TempDir()
	ws := paths.Workspace{Root: root}
	cfg := DefaultConfig()
	abs := filepath.Join(root, "elsewhere")
	cfg.Fonts.Dirs = []string{"assets", abs}

	opts := cfg.FontOptions(ws)
	want := []string{filepath.Join(root, "assets"), abs}
	if !reflect.DeepEqual(opts.SearchDirs, want) {
		t.Errorf("SearchDirs = %v, want %v", opts.SearchDirs, want)
	}
	if opts.CacheDir != ws.FontCache() {
		t.Errorf("CacheDir = %q, want %q", opts.CacheDir, ws.FontCache())
	}
}

func TestConfig_FontSpec(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.Font = ""
	if got := cfg.FontSpec(); got != DefaultFont {
		t.Errorf("FontSpec() = %q, want %q", got, DefaultFont)
	}
	cfg.Render.Font = "builtin:gomono"
	if got := cfg.FontSpec(); got != "builtin:gomono" {
		t.Errorf("FontSpec() = %q", got)
	}
}
