package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"tools.zach/dev/certmaker/internal/layout"
)

// Render returns a copy of tmpl with text drawn on it. The text box's
// top-left corner is origin; the baseline sits ascent pixels below it.
// tmpl is not modified. face must not be used concurrently by the caller.
func Render(tmpl *Template, text string, face font.Face, c color.Color, origin layout.Origin) (*image.RGBA, error) {
	if tmpl == nil || tmpl.Image == nil {
		return nil, fmt.Errorf("render: nil template")
	}
	dst := clone.AsRGBA(tmpl.Image)
	if err := DrawText(dst, text, face, c, origin); err != nil {
		return nil, err
	}
	return dst, nil
}

// DrawText composites text onto dst glyph by glyph using alpha-over
// blending. The pen advances by each glyph's advance plus pair kerning.
// Runes the font doesn't cover are drawn as its .notdef glyph. Parts of the
// run that fall outside dst are clipped. origin is relative to the top-left
// corner of dst's bounds.
func DrawText(dst draw.Image, text string, face font.Face, c color.Color, origin layout.Origin) error {
	src := image.NewUniform(c)
	base := dst.Bounds().Min
	dot := fixed.Point26_6{
		X: fixed.I(base.X + origin.X),
		Y: fixed.I(base.Y+origin.Y) + face.Metrics().Ascent,
	}

	prev := rune(-1)
	for _, r := range text {
		if prev >= 0 {
			dot.X += face.Kern(prev, r)
		}
		// ok is false for .notdef, which is still drawn; a nil mask means
		// the outline could not be loaded or rasterized at all.
		dr, mask, maskp, advance, _ := face.Glyph(dot, r)
		if mask == nil {
			return fmt.Errorf("rasterize glyph %q (U+%04X)", r, r)
		}
		if !dr.Empty() {
			draw.DrawMask(dst, dr, src, image.Point{}, mask, maskp, draw.Over)
		}
		dot.X += advance
		prev = r
	}
	return nil
}

// EncodeOptions tune [Encode].
type EncodeOptions struct {
	// JPEGQuality is 1..100; 0 uses the encoder default (95).
	JPEGQuality int
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format, opts EncodeOptions) error {
	var encOpts []imaging.EncodeOption
	if format == JPEG && opts.JPEGQuality > 0 {
		encOpts = append(encOpts, imaging.JPEGQuality(opts.JPEGQuality))
	}
	if err := imaging.Encode(w, img, format.imaging(), encOpts...); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}
