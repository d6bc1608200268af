// Package grid turns named sketches into frames of packed color words for a
// 5x5 addressable LED matrix.
package grid

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Grid geometry. Cells are numbered in the order the LEDs are chained.
const (
	Width  = 5
	Height = 5
	Cells  = Width * Height
)

// ErrMaskSize is returned when a textual mask does not describe exactly Cells cells.
var ErrMaskSize = errors.New("mask does not match grid size")

// Color holds the three channel intensities, each expected in [0, 1].
type Color struct {
	Red   float64
	Green float64
	Blue  float64
}

// Scale multiplies every channel by k.
func (c Color) Scale(k float64) Color {
	return Color{Red: c.Red * k, Green: c.Green * k, Blue: c.Blue * k}
}

// Clamp limits every channel to [0, 1]. NaN becomes 0.
func (c Color) Clamp() Color {
	return Color{Red: clamp01(c.Red), Green: clamp01(c.Green), Blue: clamp01(c.Blue)}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 1:
		return 1
	}
	return v
}

// Mask selects which cells are lit.
type Mask [Cells]bool

// ParseMask reads a mask from rows of '0'/'1' (or '.'/'#') characters.
// Rows may be separated by '/', newlines or spaces.
func ParseMask(s string) (Mask, error) {
	var m Mask
	i := 0
	for _, ch := range s {
		switch ch {
		case '/', '\n', '\r', ' ', '\t':
			continue
		case '1', '#':
			if i < Cells {
				m[i] = true
			}
		case '0', '.':
		default:
			return Mask{}, fmt.Errorf("invalid mask character %q", ch)
		}
		i++
	}
	if i != Cells {
		return Mask{}, fmt.Errorf("%w: got %d cells, want %d", ErrMaskSize, i, Cells)
	}
	return m, nil
}

func mustMask(s string) Mask {
	m, err := ParseMask(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the mask as rows joined by '/'.
func (m Mask) String() string {
	var sb strings.Builder
	for i, on := range m {
		if i > 0 && i%Width == 0 {
			sb.WriteByte('/')
		}
		if on {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Sketch is a mask painted with a single foreground color.
type Sketch struct {
	Name  string
	Mask  Mask
	Color Color
}

// Frame is one packed word per cell, in chain order.
type Frame [Cells]uint32

// Pack converts a color to the 32 bit word the LED sequencer shifts out.
// Byte lanes, high to low: green, red, blue, unused.
func Pack(c Color) uint32 {
	c = c.Clamp()
	r := uint32(uint8(c.Red * 255))
	g := uint32(uint8(c.Green * 255))
	b := uint32(uint8(c.Blue * 255))
	return g<<24 | r<<16 | b<<8
}

// Unpack is the inverse of Pack, at 8 bit resolution.
func Unpack(w uint32) (r, g, b uint8) {
	return uint8(w >> 16), uint8(w >> 24), uint8(w >> 8)
}

// Render packs a sketch into a frame. Unlit cells are always 0.
func Render(s Sketch) Frame {
	var f Frame
	word := Pack(s.Color)
	for i, on := range s.Mask {
		if on {
			f[i] = word
		}
	}
	return f
}
