// Package analysis reports diagnostic facts about template images and font
// files to help pick render settings. Nothing here is on the render path.
package analysis

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"os"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder

	"tools.zach/dev/certmaker/internal/layout"
	"tools.zach/dev/certmaker/internal/typeface"
)

// ImageProfile describes an image file.
type ImageProfile struct {
	Path   string
	Size   int64  // file size in bytes
	MIME   string // sniffed from content
	Format string // decoder name: png, jpeg, gif, bmp, tiff

	Width  int
	Height int

	ColorModel string // e.g. "RGBA", "Grayscale", "Indexed", "YCbCr"
	BitDepth   int    // bits per channel
	Channels   int    // samples per pixel
	HasAlpha   bool   // alpha channel or PNG tRNS chunk

	Pixels           int64
	RawBytes         int64   // uncompressed size: pixels * channels * bit depth
	CompressionRatio float64 // RawBytes / Size
	Category         string

	// SuggestedCenter is the geometric center, a starting point for
	// explicit positions.
	SuggestedCenter layout.Origin
}

// AspectRatio returns width / height.
func (p *ImageProfile) AspectRatio() float64 {
	if p.Height == 0 {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// SuggestOrigin returns the centered origin for text with metrics m, e.g.
// a representative name measured at the intended font size.
func (p *ImageProfile) SuggestOrigin(m typeface.Metrics) layout.Origin {
	return layout.Resolve(layout.Center, m, p.Width, p.Height)
}

// SizeCategory buckets image dimensions.
func SizeCategory(w, h int) string {
	switch {
	case w <= 128 && h <= 128:
		return "Thumbnail"
	case w <= 512 && h <= 512:
		return "Small"
	case w <= 1920 && h <= 1080:
		return "Medium (HD)"
	case w <= 3840 && h <= 2160:
		return "Large (4K)"
	default:
		return "Very Large"
	}
}

// Analyze profiles the image at path. Only the header is decoded.
func Analyze(path string) (*ImageProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	br := bufio.NewReader(f)
	head, _ := br.Peek(262) // filetype needs at most 262 bytes
	kind, _ := filetype.Match(head)
	if !filetype.IsImage(head) {
		return nil, fmt.Errorf("%s: not an image (detected %q)", path, kind.MIME.Value)
	}

	p := &ImageProfile{Path: path, Size: st.Size(), MIME: kind.MIME.Value}

	if kind.MIME.Value == "image/png" {
		if err := readPNGHeader(br, p); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p.Format = "png"
	} else {
		cfg, format, err := image.DecodeConfig(br)
		if err != nil {
			return nil, fmt.Errorf("%s: decode header: %w", path, err)
		}
		p.Format = format
		p.Width, p.Height = cfg.Width, cfg.Height
		describeModel(cfg.ColorModel, p)
	}

	p.Pixels = int64(p.Width) * int64(p.Height)
	p.RawBytes = (p.Pixels*int64(p.Channels*p.BitDepth) + 7) / 8
	if p.Size > 0 {
		p.CompressionRatio = float64(p.RawBytes) / float64(p.Size)
	}
	p.Category = SizeCategory(p.Width, p.Height)
	p.SuggestedCenter = layout.Resolve(layout.Center, typeface.Metrics{}, p.Width, p.Height)
	return p, nil
}

// ///////////////////////////////////////////////
// PNG
// ///////////////////////////////////////////////

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// pngColorTypes maps IHDR color type to (model name, channels).
var pngColorTypes = map[byte]struct {
	name     string
	channels int
}{
	0: {"Grayscale", 1},
	2: {"RGB", 3},
	3: {"Indexed", 1},
	4: {"GrayscaleAlpha", 2},
	6: {"RGBA", 4},
}

// readPNGHeader reads IHDR and scans ancillary chunks up to the first IDAT
// for tRNS, which marks transparency in non-alpha color types.
func readPNGHeader(r io.Reader, p *ImageProfile) error {
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil || !bytes.Equal(sig, pngSignature) {
		return errors.New("bad PNG signature")
	}

	var hdr [8]byte
	for first := true; ; first = false {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return fmt.Errorf("read chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		typ := string(hdr[4:8])

		if first {
			if typ != "IHDR" || length != 13 {
				return fmt.Errorf("first chunk is %q, want IHDR", typ)
			}
			var ihdr [13]byte
			if _, err := io.ReadFull(r, ihdr[:]); err != nil {
				return fmt.Errorf("read IHDR: %w", err)
			}
			p.Width = int(binary.BigEndian.Uint32(ihdr[0:4]))
			p.Height = int(binary.BigEndian.Uint32(ihdr[4:8]))
			p.BitDepth = int(ihdr[8])
			ct, ok := pngColorTypes[ihdr[9]]
			if !ok {
				return fmt.Errorf("invalid PNG color type %d", ihdr[9])
			}
			p.ColorModel, p.Channels = ct.name, ct.channels
			p.HasAlpha = ihdr[9] == 4 || ihdr[9] == 6
			if _, err := io.CopyN(io.Discard, r, 4); err != nil { // CRC
				return fmt.Errorf("read IHDR: %w", err)
			}
			continue
		}

		switch typ {
		case "tRNS":
			p.HasAlpha = true
			return nil
		case "IDAT", "IEND":
			return nil
		}
		if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
			return fmt.Errorf("skip %s chunk: %w", typ, err)
		}
	}
}

// describeModel fills color fields from a decoder's color model.
func describeModel(m color.Model, p *ImageProfile) {
	switch m {
	case color.RGBAModel, color.NRGBAModel:
		p.ColorModel, p.Channels, p.BitDepth, p.HasAlpha = "RGBA", 4, 8, true
	case color.RGBA64Model, color.NRGBA64Model:
		p.ColorModel, p.Channels, p.BitDepth, p.HasAlpha = "RGBA", 4, 16, true
	case color.GrayModel:
		p.ColorModel, p.Channels, p.BitDepth = "Grayscale", 1, 8
	case color.Gray16Model:
		p.ColorModel, p.Channels, p.BitDepth = "Grayscale", 1, 16
	case color.YCbCrModel:
		p.ColorModel, p.Channels, p.BitDepth = "YCbCr", 3, 8
	case color.CMYKModel:
		p.ColorModel, p.Channels, p.BitDepth = "CMYK", 4, 8
	default:
		if pal, ok := m.(color.Palette); ok {
			p.ColorModel, p.Channels, p.BitDepth = "Indexed", 1, 8
			for _, c := range pal {
				if _, _, _, a := c.RGBA(); a < 0xffff {
					p.HasAlpha = true
					break
				}
			}
			return
		}
		p.ColorModel, p.Channels, p.BitDepth = "Unknown", 4, 8
	}
}
