// Package typeface loads outline fonts and measures text runs.
//
// A [Font] holds parsed SFNT data and is safe to share between goroutines.
// Faces created from it with [Font.NewFace] are not: each goroutine that
// measures or draws text must create its own face.
package typeface

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/tdewolff/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// DPI is the resolution faces are created at. At 72 DPI one point is one pixel.
const DPI = 72

// ///////////////////////////////////////////////
// Font
// ///////////////////////////////////////////////

// Font is a parsed outline font.
type Font struct {
	// Source describes where the font came from (path or font spec).
	Source string
	// data is the raw SFNT (TTF/OTF) bytes after any WOFF/WOFF2 conversion.
	data []byte
	// ot is the parsed font, read-only after Parse.
	ot *opentype.Font
}

// Parse parses TrueType, OpenType, WOFF, WOFF2 or collection data. WOFF and
// WOFF2 input is converted to SFNT first; for collections the first font is used.
func Parse(data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, errors.New("empty font data")
	}
	sfntData, err := toSFNT(data)
	if err != nil {
		return nil, err
	}

	var ot *opentype.Font
	if isCollection(sfntData) {
		coll, err := opentype.ParseCollection(sfntData)
		if err != nil {
			return nil, fmt.Errorf("parse font collection: %w", err)
		}
		if coll.NumFonts() == 0 {
			return nil, errors.New("font collection is empty")
		}
		ot, err = coll.Font(0)
		if err != nil {
			return nil, fmt.Errorf("parse font collection: %w", err)
		}
	} else {
		ot, err = opentype.Parse(sfntData)
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
	}
	return &Font{data: sfntData, ot: ot}, nil
}

// SFNT returns the font's TTF/OTF bytes. The slice must not be modified.
func (f *Font) SFNT() []byte { return f.data }

// NumGlyphs returns the number of glyphs in the font.
func (f *Font) NumGlyphs() int { return f.ot.NumGlyphs() }

// UnitsPerEm returns the font's design units per em.
func (f *Font) UnitsPerEm() int { return int(f.ot.UnitsPerEm()) }

// NewFace returns a face at sizePt points, 72 DPI, with full hinting. The
// caller owns the face and should Close it.
func (f *Font) NewFace(sizePt float64) (xfont.Face, error) {
	if sizePt <= 0 {
		return nil, fmt.Errorf("font size must be > 0, got %g", sizePt)
	}
	face, err := opentype.NewFace(f.ot, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     DPI,
		Hinting: xfont.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// Missing returns the distinct runes of text that have no glyph in the font,
// in order of first appearance. Whitespace control runes are ignored.
func (f *Font) Missing(text string) []rune {
	var buf sfnt.Buffer
	var out []rune
	seen := map[rune]bool{}
	for _, r := range text {
		if seen[r] || r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		seen[r] = true
		idx, err := f.ot.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			out = append(out, r)
		}
	}
	return out
}

// ///////////////////////////////////////////////
// Container Formats
// ///////////////////////////////////////////////

// toSFNT converts WOFF/WOFF2 data to SFNT; other data is returned unchanged.
func toSFNT(data []byte) ([]byte, error) {
	if !isWOFF(data) {
		return data, nil
	}
	out, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert %s to sfnt: %w", Container(data), err)
	}
	return out, nil
}

// isWOFF reports whether data starts with the WOFF ("wOFF") or WOFF2 ("wOF2") magic.
func isWOFF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("wOFF")) || bytes.HasPrefix(data, []byte("wOF2"))
}

// isCollection reports whether data is a TrueType collection ("ttcf").
func isCollection(data []byte) bool {
	return bytes.HasPrefix(data, []byte("ttcf"))
}

// Container names the font container format of data: "woff", "woff2", "ttc",
// "otf", "ttf", or "unknown".
func Container(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("wOFF")):
		return "woff"
	case bytes.HasPrefix(data, []byte("wOF2")):
		return "woff2"
	case isCollection(data):
		return "ttc"
	case bytes.HasPrefix(data, []byte("OTTO")):
		return "otf"
	case bytes.HasPrefix(data, []byte{0, 1, 0, 0}), bytes.HasPrefix(data, []byte("true")):
		return "ttf"
	default:
		return "unknown"
	}
}

// IsFontFile reports whether name has a font file extension.
func IsFontFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".ttf", ".otf", ".ttc", ".woff", ".woff2"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
