// Package render loads template images and draws a single line of text onto
// private copies of them.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
)

// ///////////////////////////////////////////////
// Formats
// ///////////////////////////////////////////////

// Format is a raster image encoding.
type Format int

const (
	PNG Format = iota
	JPEG
	GIF
	TIFF
	BMP
)

var formatNames = map[Format]string{
	PNG:  "png",
	JPEG: "jpeg",
	GIF:  "gif",
	TIFF: "tiff",
	BMP:  "bmp",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return "jpg"
	case TIFF:
		return "tif"
	default:
		return f.String()
	}
}

// ParseFormat parses a format name or extension ("png", "jpg", ".jpeg", ...).
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return 0, fmt.Errorf("unsupported image format %q", s)
}

// formatFromMIME maps a sniffed MIME type to a Format.
func formatFromMIME(mime string) (Format, bool) {
	switch mime {
	case "image/png":
		return PNG, true
	case "image/jpeg":
		return JPEG, true
	case "image/gif":
		return GIF, true
	case "image/tiff":
		return TIFF, true
	case "image/bmp", "image/x-ms-bmp":
		return BMP, true
	}
	return 0, false
}

func (f Format) imaging() imaging.Format {
	switch f {
	case JPEG:
		return imaging.JPEG
	case GIF:
		return imaging.GIF
	case TIFF:
		return imaging.TIFF
	case BMP:
		return imaging.BMP
	default:
		return imaging.PNG
	}
}

// ///////////////////////////////////////////////
// Template
// ///////////////////////////////////////////////

// ErrNotImage is returned when template bytes are not a supported raster image.
var ErrNotImage = errors.New("not a supported image")

// Template is a decoded template image. It is never modified after loading
// and may be shared by any number of concurrent renders.
type Template struct {
	Image  image.Image
	Width  int
	Height int
	Format Format
	// Path is the file the template was loaded from, if any.
	Path string
}

// LoadTemplate reads and decodes the template image at path.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	t, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", filepath.Base(path), err)
	}
	t.Path = path
	return t, nil
}

// DecodeTemplate decodes a template image from r. The format is detected
// from the content.
func DecodeTemplate(r io.Reader) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return decode(data)
}

// NewTemplate wraps an in-memory image as a template with the given
// output format. Images whose bounds do not start at (0,0), such as
// sub-images, are copied so template pixel coordinates start at the
// top-left corner.
func NewTemplate(img image.Image, format Format) (*Template, error) {
	if img == nil {
		return nil, errors.New("nil template image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("template image is empty (%dx%d)", b.Dx(), b.Dy())
	}
	if b.Min != (image.Point{}) {
		img = imaging.Clone(img)
	}
	return &Template{Image: img, Width: b.Dx(), Height: b.Dy(), Format: format}, nil
}

func decode(data []byte) (*Template, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return nil, ErrNotImage
	}
	format, ok := formatFromMIME(kind.MIME.Value)
	if !ok {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, kind.MIME.Value)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return NewTemplate(img, format)
}
