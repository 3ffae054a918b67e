package typeface

import (
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Metrics is the bounding box of a single-line glyph run, in pixels.
type Metrics struct {
	Width  float64
	Height float64 // ascent + descent, the line height
	Ascent float64
}

// Measure computes the advance width of text on face, including pair
// kerning. Runes the font has no glyph for contribute the .notdef advance.
// An empty string has zero width but still reports the line height.
func Measure(face font.Face, text string) Metrics {
	fm := face.Metrics()
	return Metrics{
		Width:  toFloat(Advance(face, text)),
		Height: toFloat(fm.Ascent + fm.Descent),
		Ascent: toFloat(fm.Ascent),
	}
}

// Advance returns the pen advance for text in 26.6 fixed point.
func Advance(face font.Face, text string) fixed.Int26_6 {
	var width fixed.Int26_6
	prev := rune(-1)
	for _, r := range text {
		if prev >= 0 {
			width += face.Kern(prev, r)
		}
		// ok is false for unmapped runes, but the advance is still that of
		// the .notdef glyph.
		adv, _ := face.GlyphAdvance(r)
		width += adv
		prev = r
	}
	return width
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
