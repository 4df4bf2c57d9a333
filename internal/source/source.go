// Package source loads hologram stacks from image files on disk.
package source

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"holorecon/pkg/hologram"
)

// ErrNoImages is returned for a directory without any supported image.
var ErrNoImages = errors.New("source: no images found")

var extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// LoadDir reads every PNG, JPEG and GIF file in dir as one slice of a
// stack, ordered by the number embedded in the file name. Samples are gray
// levels scaled to [0, 1].
func LoadDir(dir string) (*hologram.Stack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	// Frame order follows the slice number in the name, then the name.
	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	stack, err := hologram.NewStack(filepath.Base(filepath.Clean(dir)))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		frame, err := LoadFrame(path)
		if err != nil {
			return nil, err
		}
		if err := stack.Append(frame); err != nil {
			return nil, fmt.Errorf("source: %s: %w", name, err)
		}
	}

	slog.Info("loaded hologram", "dir", dir, "slices", stack.Len(), "width", stack.Width(), "height", stack.Height())
	return stack, nil
}

// LoadFrame decodes one image file into a frame labelled with the file's
// base name.
func LoadFrame(path string) (hologram.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return hologram.Frame{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return hologram.Frame{}, fmt.Errorf("source: failed to decode %s: %w", path, err)
	}
	name := filepath.Base(path)
	frame := ImageToFrame(img, strings.TrimSuffix(name, filepath.Ext(name)))
	frame.Filename = path
	return frame, nil
}

// ImageToFrame converts img to 16-bit gray levels scaled to [0, 1].
func ImageToFrame(img image.Image, label string) hologram.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			data[y*w+x] = float64(g.Y) / 65535.0
		}
	}
	return hologram.Frame{Data: data, Width: w, Height: h, Label: label}
}

// extractNumber returns the digits of the file name read as one number, or
// -1 when it has none.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return -1
	}
	return n
}
