package analysis

import (
	"bytes"
	"fmt"
	"os"

	gotext "github.com/go-text/typesetting/font"

	"tools.zach/dev/certmaker/internal/typeface"
)

// FontProfile describes a font file and its vertical metrics at one size.
type FontProfile struct {
	Source    string
	Size      int64  // bytes on disk (or embedded)
	Container string // ttf, otf, ttc, woff, woff2

	Family    string
	Style     string // normal or italic
	Weight    float32
	Stretch   float32
	Monospace bool

	UnitsPerEm int
	Glyphs     int

	SizePt     float64
	Ascent     float64
	Descent    float64
	LineHeight float64 // ascent + descent, the height a single line is centered with
}

// AnalyzeFont profiles the font file at path at sizePt points.
func AnalyzeFont(path string, sizePt float64) (*FontProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	p, err := AnalyzeFontBytes(data, sizePt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Source = path
	return p, nil
}

// AnalyzeFontBytes profiles raw font data.
func AnalyzeFontBytes(data []byte, sizePt float64) (*FontProfile, error) {
	f, err := typeface.Parse(data)
	if err != nil {
		return nil, err
	}
	p := &FontProfile{
		Size:       int64(len(data)),
		Container:  typeface.Container(data),
		UnitsPerEm: f.UnitsPerEm(),
		Glyphs:     f.NumGlyphs(),
		SizePt:     sizePt,
	}

	desc, mono, err := describe(f.SFNT())
	if err != nil {
		return nil, err
	}
	p.Family = desc.Family
	p.Weight = float32(desc.Aspect.Weight)
	p.Stretch = float32(desc.Aspect.Stretch)
	p.Style = "normal"
	if desc.Aspect.Style == gotext.StyleItalic {
		p.Style = "italic"
	}
	p.Monospace = mono

	face, err := f.NewFace(sizePt)
	if err != nil {
		return nil, err
	}
	defer face.Close()
	m := typeface.Measure(face, "")
	p.Ascent = m.Ascent
	p.LineHeight = m.Height
	p.Descent = m.Height - m.Ascent
	return p, nil
}

// describe reads naming and aspect metadata with go-text, which understands
// more of the name and OS/2 tables than x/image/font/sfnt exposes.
func describe(sfnt []byte) (gotext.Description, bool, error) {
	var face *gotext.Face
	if typeface.Container(sfnt) == "ttc" {
		faces, err := gotext.ParseTTC(bytes.NewReader(sfnt))
		if err != nil {
			return gotext.Description{}, false, fmt.Errorf("describe font: %w", err)
		}
		if len(faces) == 0 {
			return gotext.Description{}, false, fmt.Errorf("describe font: empty collection")
		}
		face = faces[0]
	} else {
		var err error
		face, err = gotext.ParseTTF(bytes.NewReader(sfnt))
		if err != nil {
			return gotext.Description{}, false, fmt.Errorf("describe font: %w", err)
		}
	}
	return face.Describe(), face.IsMonospace(), nil
}
