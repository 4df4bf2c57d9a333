package result

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"math/cmplx"
	"strings"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/floats"

	"holorecon/pkg/field"
)

// Kind is a real-valued quantity derived from a complex field.
type Kind string

const (
	Amplitude Kind = "Amplitude"
	Phase     Kind = "Phase"
	Real      Kind = "Real"
	Imaginary Kind = "Imaginary"
)

// Kinds returns every Kind in output order.
func Kinds() []Kind { return []Kind{Amplitude, Phase, Real, Imaginary} }

// ParseKind accepts a Kind name in any letter case.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("result: unknown kind %q", s)
}

// Grid returns the quantity k of v as a [y][x] grid.
func (k Kind) Grid(v field.View) [][]float64 {
	switch k {
	case Amplitude:
		return v.AmplitudeGrid()
	case Phase:
		return v.PhaseGrid()
	case Real:
		return v.RealGrid()
	case Imaginary:
		return v.ImagGrid()
	}
	panic(fmt.Sprintf("result: unknown kind %q", string(k)))
}

// Value returns the quantity k of a single sample.
func (k Kind) Value(c complex128) float64 {
	switch k {
	case Amplitude:
		return cmplx.Abs(c)
	case Phase:
		return cmplx.Phase(c)
	case Real:
		return real(c)
	case Imaginary:
		return imag(c)
	}
	panic(fmt.Sprintf("result: unknown kind %q", string(k)))
}

// Type is the sample format of an exported frame.
type Type string

const (
	// TypeGray8 and TypeGray16 are min-max scaled grayscale PNGs.
	TypeGray8  Type = "8bit"
	TypeGray16 Type = "16bit"

	// TypeFloat32 is raw little-endian float32, row-major.
	TypeFloat32 Type = "32bit"

	// TypeFloat16 is raw little-endian IEEE half precision, row-major.
	TypeFloat16 Type = "float16"
)

// ParseType validates s as a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeGray8, TypeGray16, TypeFloat32, TypeFloat16:
		return t, nil
	}
	return "", fmt.Errorf("result: unknown type %q", s)
}

// Ext returns the file extension for frames of type t.
func (t Type) Ext() string {
	switch t {
	case TypeGray8, TypeGray16:
		return "png"
	case TypeFloat16:
		return "f16"
	}
	return "f32"
}

// Encode writes grid to w in format t.
func Encode(w io.Writer, grid [][]float64, t Type) error {
	switch t {
	case TypeGray8, TypeGray16:
		return png.Encode(w, ToImage(grid, t))
	case TypeFloat32:
		buf := make([]byte, 0, 4*len(grid)*rowLen(grid))
		for _, row := range grid {
			for _, v := range row {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
			}
		}
		_, err := w.Write(buf)
		return err
	case TypeFloat16:
		buf := make([]byte, 0, 2*len(grid)*rowLen(grid))
		for _, row := range grid {
			for _, v := range row {
				buf = binary.LittleEndian.AppendUint16(buf, float16.Fromfloat32(float32(v)).Bits())
			}
		}
		_, err := w.Write(buf)
		return err
	}
	return fmt.Errorf("result: unknown type %q", string(t))
}

// EncodeBytes is Encode into a new buffer.
func EncodeBytes(grid [][]float64, t Type) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, grid, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToImage min-max scales grid onto the full range of an 8- or 16-bit
// grayscale image. A constant grid maps to black.
func ToImage(grid [][]float64, t Type) image.Image {
	h, w := len(grid), rowLen(grid)
	lo, hi := bounds(grid)
	scale := 0.0
	if hi > lo {
		scale = 1 / (hi - lo)
	}

	if t == TypeGray8 {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y, row := range grid {
			for x, v := range row {
				img.SetGray(x, y, color.Gray{Y: uint8((v-lo)*scale*255 + 0.5)})
			}
		}
		return img
	}
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y, row := range grid {
		for x, v := range row {
			img.SetGray16(x, y, color.Gray16{Y: uint16((v-lo)*scale*65535 + 0.5)})
		}
	}
	return img
}

func bounds(grid [][]float64) (lo, hi float64) {
	if rowLen(grid) == 0 {
		return 0, 0
	}
	lo, hi = floats.Min(grid[0]), floats.Max(grid[0])
	for _, row := range grid[1:] {
		lo = min(lo, floats.Min(row))
		hi = max(hi, floats.Max(row))
	}
	return lo, hi
}

func rowLen(grid [][]float64) int {
	if len(grid) == 0 {
		return 0
	}
	return len(grid[0])
}
