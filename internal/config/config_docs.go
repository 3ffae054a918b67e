package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "render.font_size")
// to their [FieldDoc] entries.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Render ───────────────────────────────────────────────────
	"render.font": {
		Comment: "Font used for names.\n  builtin:NAME        embedded font (goregular, gobold, gomono, lmroman, lmsans)\n  google:Family:400   downloaded from Google Fonts and cached under fonts.cache_dir\n  path/to/font.ttf    TTF, OTF, TTC, WOFF or WOFF2; bare names are searched in fonts.dirs",
		Alternatives: []string{
			`font = "assets/DejaVuSans.ttf"`,
			`font = "google:Great Vibes:400"`,
		},
	},
	"render.font_size": {
		Comment: "Glyph height in points (1pt = 1px).",
	},
	"render.color": {
		Comment: "Text color: #RRGGBB, #RRGGBBAA, or one of\nwhite, black, red, green, blue, yellow, orange, purple",
		Alternatives: []string{
			`color = "#1A2B3C"`,
		},
	},
	"render.position": {
		Comment: "Where the text box goes. \"center\" centers it on the template;\n\"center@x,y\" centers it on a template pixel;\n\"x,y\" places its top-left corner in template pixels (may run off the edge).",
		Alternatives: []string{
			`position = "center@960,540"`,
			`position = "120,340"`,
		},
	},
	"render.format": {
		Comment: "Output encoding: png, jpeg, gif, tiff or bmp. Omit to keep the template's format.",
		Alternatives: []string{
			`format = "jpeg"`,
		},
	},
	"render.jpeg_quality": {
		Comment: "JPEG quality, 1-100. Ignored for other formats.",
	},

	// ── Batch ────────────────────────────────────────────────────
	"batch.output_dir": {
		Comment: "Directory for generated images, relative to the workspace root.\nFiles are named <name>_<row>.<ext> and overwritten on re-runs.",
	},
	"batch.parallelism": {
		Comment: "Maximum concurrent renders. 0 uses every CPU; 1 renders sequentially.",
	},

	// ── Input ────────────────────────────────────────────────────
	"input.table": {
		Comment: "Default CSV of names for `certmaker run`.",
		Alternatives: []string{
			`table = "excelcsvs/sample_names.csv"`,
		},
	},
	"input.template": {
		Comment: "Default background image for `certmaker run`.",
		Alternatives: []string{
			`template = "Template/certificate.png"`,
		},
	},
	"input.name_column": {
		Comment: "Header of the column holding names (case-insensitive).",
	},

	// ── Fonts ────────────────────────────────────────────────────
	"fonts.dirs": {
		Comment: "Directories searched for bare font file names.",
	},
	"fonts.cache_dir": {
		Comment: "Where Google Fonts downloads are kept.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Log level: trace, debug, info, warn, error",
		Alternatives: []string{
			`level = "debug"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in MB before rotation",
	},
	"log.file": {
		Comment: "Log file path. Empty disables the log file.",
	},
}
