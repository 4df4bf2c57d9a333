// Package propagation moves a reconstructed wavefield along the optical axis
// with the angular spectrum method.
package propagation

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	lru "github.com/hashicorp/golang-lru/v2"

	"holorecon/pkg/field"
	"holorecon/pkg/units"
)

// ErrOptics is returned for a non-positive wavelength or sensor extent.
var ErrOptics = errors.New("propagation: invalid optical parameters")

// transferCacheSize bounds the number of transfer functions kept per
// AngularSpectrum. A run typically needs one per distance step.
const transferCacheSize = 64

type transferKey struct {
	width, height int
	dz            float64
}

// AngularSpectrum multiplies the centred spectrum of a field by
//
//	H(fx, fy) = exp(i 2π/λ Δz sqrt(1 - (λ fx)² - (λ fy)²))
//
// with fx = (m - W/2) / width and fy = (n - H/2) / height. Components with a
// negative radicand are evanescent and are left untouched.
//
// All lengths are converted to metres once, so the result does not depend on
// the units the parameters were given in.
type AngularSpectrum struct {
	wavelength float64
	width      float64
	height     float64
	cache      *lru.Cache[transferKey, []complex128]
}

// NewAngularSpectrum returns a propagator for the given wavelength and
// physical sensor extent.
func NewAngularSpectrum(wavelength, width, height units.Distance) (*AngularSpectrum, error) {
	a := &AngularSpectrum{
		wavelength: wavelength.Meters(),
		width:      width.Meters(),
		height:     height.Meters(),
	}
	for _, v := range []struct {
		name string
		m    float64
		d    units.Distance
	}{
		{"wavelength", a.wavelength, wavelength},
		{"width", a.width, width},
		{"height", a.height, height},
	} {
		if !(v.m > 0) || math.IsInf(v.m, 0) {
			return nil, fmt.Errorf("%w: %s is %v", ErrOptics, v.name, v.d)
		}
	}
	cache, err := lru.New[transferKey, []complex128](transferCacheSize)
	if err != nil {
		return nil, err
	}
	a.cache = cache
	return a, nil
}

// Transfer returns the row-major transfer function for a w x h centred
// spectrum and a propagation step of dz metres. The returned slice is shared
// and must not be modified.
func (a *AngularSpectrum) Transfer(w, h int, dz float64) []complex128 {
	key := transferKey{width: w, height: h, dz: dz}
	if tf, ok := a.cache.Get(key); ok {
		return tf
	}

	k := 2 * math.Pi / a.wavelength
	tf := make([]complex128, w*h)
	for n := 0; n < h; n++ {
		ly := a.wavelength * float64(n-h/2) / a.height
		for m := 0; m < w; m++ {
			lx := a.wavelength * float64(m-w/2) / a.width
			r := 1 - lx*lx - ly*ly
			if r < 0 {
				tf[n*w+m] = 1
				continue
			}
			tf[n*w+m] = cmplx.Rect(1, k*dz*math.Sqrt(r))
		}
	}
	a.cache.Add(key, tf)
	return tf
}

// Propagate moves f from zFrom to zTo. Only the frequency representation of
// f stays valid afterwards; the spatial one is recomputed on demand.
func (a *AngularSpectrum) Propagate(f *field.ReconstructionField, zFrom, zTo units.Distance) {
	dz := zTo.Meters() - zFrom.Meters()
	tf := a.Transfer(f.Width(), f.Height(), dz)
	f.EditFourier(func(c *field.ComplexField) {
		// tf is built for c's size, so Multiply cannot fail.
		_ = c.Multiply(tf)
	})
}
