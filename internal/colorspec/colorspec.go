// Package colorspec resolves user-supplied color specifications into
// [color.NRGBA] values. A specification is either a hex string
// ("#RRGGBB" or "#RRGGBBAA") or one of a small fixed set of color names.
package colorspec

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

var (
	// ErrInvalidColorFormat is returned for hex specifications with the wrong
	// length or non-hex digits.
	ErrInvalidColorFormat = errors.New("invalid color format")
	// ErrUnknownColorName is returned when a specification is neither hex nor
	// a known color name.
	ErrUnknownColorName = errors.New("unknown color name")
)

// ///////////////////////////////////////////////
// Name Table
// ///////////////////////////////////////////////

// named holds the recognized color names. Keys are lowercase.
var named = map[string]color.NRGBA{
	"white":  {R: 255, G: 255, B: 255, A: 255},
	"black":  {R: 0, G: 0, B: 0, A: 255},
	"red":    {R: 255, G: 0, B: 0, A: 255},
	"green":  {R: 0, G: 255, B: 0, A: 255},
	"blue":   {R: 0, G: 0, B: 255, A: 255},
	"yellow": {R: 255, G: 255, B: 0, A: 255},
	"orange": {R: 255, G: 165, B: 0, A: 255},
	"purple": {R: 128, G: 0, B: 128, A: 255},
}

// Names returns the recognized color names in sorted order.
func Names() []string {
	out := make([]string, 0, len(named))
	for name := range named {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ///////////////////////////////////////////////
// Resolve
// ///////////////////////////////////////////////

// Resolve parses spec into a color. Hex specifications take precedence over
// names; a spec starting with "#" is always treated as hex. A bare 6 or 8 digit
// hex string without the "#" prefix is also accepted.
func Resolve(spec string) (color.NRGBA, error) {
	spec = strings.TrimSpace(spec)
	if strings.HasPrefix(spec, "#") {
		return ParseHex(spec)
	}
	if c, ok := named[strings.ToLower(spec)]; ok {
		return c, nil
	}
	if isHexDigits(spec) && (len(spec) == 6 || len(spec) == 8) {
		return ParseHex(spec)
	}
	return color.NRGBA{}, fmt.Errorf("%w %q: use #RRGGBB, #RRGGBBAA or one of %s",
		ErrUnknownColorName, spec, strings.Join(Names(), ", "))
}

// ParseHex parses a "#RRGGBB" or "#RRGGBBAA" hex color string. The "#" prefix
// is optional. Alpha defaults to 255 when omitted.
func ParseHex(hex string) (color.NRGBA, error) {
	digits := strings.TrimPrefix(hex, "#")
	if len(digits) != 6 && len(digits) != 8 {
		return color.NRGBA{}, fmt.Errorf("%w %q: must be 6 or 8 hex digits", ErrInvalidColorFormat, hex)
	}

	var ch [4]uint8
	ch[3] = 255
	for i := 0; i < len(digits)/2; i++ {
		v, err := strconv.ParseUint(digits[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w %q: %w", ErrInvalidColorFormat, hex, err)
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// Hex formats c as "#RRGGBB", or "#RRGGBBAA" when alpha is not 255.
func Hex(c color.NRGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// isHexDigits reports whether s is non-empty and consists only of hex digits.
func isHexDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
