// Package layout turns a placement mode and a measured text box into the
// top-left pixel at which the text is drawn.
package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tools.zach/dev/certmaker/internal/typeface"
)

// Mode selects how the draw origin is computed.
type Mode int

const (
	Centered Mode = iota
	Explicit
	// CenteredAt centers the text box on the point (X, Y).
	CenteredAt
)

// Position is a placement request: centered on the canvas, centered on a
// point, or an explicit top-left coordinate.
type Position struct {
	Mode Mode
	X, Y int
}

// Center is the centered placement.
var Center = Position{Mode: Centered}

// At returns an explicit placement at (x, y).
func At(x, y int) Position {
	return Position{Mode: Explicit, X: x, Y: y}
}

// CenterOn returns a placement that centers the text box on (x, y).
func CenterOn(x, y int) Position {
	return Position{Mode: CenteredAt, X: x, Y: y}
}

// String formats p the way ParsePosition accepts it.
func (p Position) String() string {
	switch p.Mode {
	case Centered:
		return "center"
	case CenteredAt:
		return fmt.Sprintf("center@%d,%d", p.X, p.Y)
	default:
		return fmt.Sprintf("%d,%d", p.X, p.Y)
	}
}

// ParsePosition parses "center" (also "centre", "c", or empty),
// "center@x,y" (or "@x,y"), or "x,y". Coordinates may be negative.
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "center", "centre", "c":
		return Center, nil
	}

	if mode, point, ok := strings.Cut(s, "@"); ok {
		switch strings.TrimSpace(mode) {
		case "", "center", "centre", "c":
		default:
			return Position{}, fmt.Errorf("invalid position %q: expected \"center@x,y\"", s)
		}
		x, y, err := parsePoint(point)
		if err != nil {
			return Position{}, err
		}
		return CenterOn(x, y), nil
	}

	x, y, err := parsePoint(s)
	if err != nil {
		return Position{}, err
	}
	return At(x, y), nil
}

func parsePoint(s string) (int, int, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid position %q: expected \"center\", \"center@x,y\" or \"x,y\"", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position x %q: %w", xs, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position y %q: %w", ys, err)
	}
	return x, y, nil
}

// Origin is the top-left pixel of the text box.
type Origin struct {
	X, Y int
}

// Resolve computes the draw origin for text with metrics m on a canvas of
// canvasW x canvasH pixels.
//
// Centered placement floors (W-w)/2 and (H-h)/2 and clamps negatives to 0,
// so oversized text overflows right and down. CenteredAt floors x-w/2 and
// y-h/2 without clamping. Explicit placement is returned unchanged, even
// when it lies outside the canvas.
func Resolve(p Position, m typeface.Metrics, canvasW, canvasH int) Origin {
	switch p.Mode {
	case Explicit:
		return Origin{X: p.X, Y: p.Y}
	case CenteredAt:
		return Origin{
			X: int(math.Floor(float64(p.X) - m.Width/2)),
			Y: int(math.Floor(float64(p.Y) - m.Height/2)),
		}
	}
	return Origin{
		X: centerAxis(canvasW, m.Width),
		Y: centerAxis(canvasH, m.Height),
	}
}

func centerAxis(canvas int, extent float64) int {
	v := int(math.Floor((float64(canvas) - extent) / 2))
	return max(v, 0)
}
