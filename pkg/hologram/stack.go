// Package hologram holds the in-memory hologram stack a reconstruction
// reads its slices from.
package hologram

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameRange is returned for a time index outside [1, Len].
	ErrFrameRange = errors.New("hologram: frame index out of range")

	// ErrFrameSize is returned when a frame does not match the stack size.
	ErrFrameSize = errors.New("hologram: frame size mismatch")
)

// Frame is one time slice of a hologram stack
type Frame struct {
	// Data holds the intensity samples in row-major order
	Data []float64

	// Width and Height are the frame dimensions in pixels
	Width, Height int

	// Label is an optional display label for the slice
	Label string

	// Filename is the file the frame was read from, if any
	Filename string
}

// NewFrame builds a frame from a [y][x] grid.
func NewFrame(grid [][]float64, label string) (Frame, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return Frame{}, fmt.Errorf("%w: empty grid", ErrFrameSize)
	}
	height, width := len(grid), len(grid[0])
	data := make([]float64, 0, width*height)
	for y, row := range grid {
		if len(row) != width {
			return Frame{}, fmt.Errorf("%w: row %d has %d samples, want %d", ErrFrameSize, y, len(row), width)
		}
		data = append(data, row...)
	}
	return Frame{Data: data, Width: width, Height: height, Label: label}, nil
}

// Grid returns the frame as a freshly allocated [y][x] grid.
func (f Frame) Grid() [][]float64 {
	out := make([][]float64, f.Height)
	for y := range out {
		row := make([]float64, f.Width)
		copy(row, f.Data[y*f.Width:(y+1)*f.Width])
		out[y] = row
	}
	return out
}

// Stack is an in-memory sequence of equally sized frames. Frames are
// addressed with 1-based time indices.
type Stack struct {
	title  string
	width  int
	height int
	frames []Frame
}

// NewStack returns a stack holding frames. All frames must share the size
// of the first one.
func NewStack(title string, frames ...Frame) (*Stack, error) {
	s := &Stack{title: title}
	for _, f := range frames {
		if err := s.Append(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewStackFromGrids builds an unlabelled stack from [y][x] grids.
func NewStackFromGrids(title string, grids ...[][]float64) (*Stack, error) {
	s := &Stack{title: title}
	for i, g := range grids {
		f, err := NewFrame(g, "")
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
		if err := s.Append(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Append adds f at the end of the stack.
func (s *Stack) Append(f Frame) error {
	if len(f.Data) != f.Width*f.Height || f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrFrameSize, len(f.Data), f.Width, f.Height)
	}
	if len(s.frames) == 0 {
		s.width, s.height = f.Width, f.Height
	} else if f.Width != s.width || f.Height != s.height {
		return fmt.Errorf("%w: frame is %dx%d, stack is %dx%d", ErrFrameSize, f.Width, f.Height, s.width, s.height)
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *Stack) Title() string { return s.title }
func (s *Stack) Width() int    { return s.width }
func (s *Stack) Height() int   { return s.height }
func (s *Stack) Len() int      { return len(s.frames) }

// At returns frame t (1-based).
func (s *Stack) At(t int) (Frame, error) {
	if t < 1 || t > len(s.frames) {
		return Frame{}, fmt.Errorf("%w: %d not in [1, %d]", ErrFrameRange, t, len(s.frames))
	}
	return s.frames[t-1], nil
}

// Frame returns the samples of slice t as a [y][x] grid.
func (s *Stack) Frame(t int) ([][]float64, error) {
	f, err := s.At(t)
	if err != nil {
		return nil, err
	}
	return f.Grid(), nil
}

// Label returns the label of slice t, or "" when it has none or t is out of
// range.
func (s *Stack) Label(t int) string {
	f, err := s.At(t)
	if err != nil {
		return ""
	}
	return f.Label
}

// Frames returns the frames in order. The slice is shared with the stack.
func (s *Stack) Frames() []Frame { return s.frames }
