package field

import "fmt"

// ReconstructionField holds a wavefield in the spatial domain, the frequency
// domain, or both. The frequency domain is centred: its zero-frequency
// sample sits at (width/2, height/2).
//
// At least one representation is present at any time. Reading a missing
// representation computes and caches it from the other one. The samples can
// only be changed through EditField and EditFourier, which drop the opposite
// representation so the two never disagree.
type ReconstructionField struct {
	width     int
	height    int
	transform Transform
	field     *ComplexField
	fourier   *ComplexField
}

type options struct {
	backend Backend
}

// Option configures a ReconstructionField.
type Option func(*options)

// WithBackend selects the FFT backend. The default is DefaultBackend.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

func buildOptions(opts []Option) options {
	o := options{backend: DefaultBackend}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewReconstructionField builds a spatial-domain field from same-shaped real
// and imaginary grids. A nil imag means a purely real field.
func NewReconstructionField(real, imag [][]float64, opts ...Option) (*ReconstructionField, error) {
	c, err := NewComplexField(real, imag)
	if err != nil {
		return nil, err
	}
	return newReconstructionField(c, nil, buildOptions(opts))
}

// FromField builds a ReconstructionField whose spatial representation is a
// copy of c.
func FromField(c *ComplexField, opts ...Option) (*ReconstructionField, error) {
	return newReconstructionField(c.Copy(), nil, buildOptions(opts))
}

// FromFourier builds a ReconstructionField whose centred frequency
// representation is a copy of c.
func FromFourier(c *ComplexField, opts ...Option) (*ReconstructionField, error) {
	return newReconstructionField(nil, c.Copy(), buildOptions(opts))
}

func newReconstructionField(f, ft *ComplexField, o options) (*ReconstructionField, error) {
	src := f
	if src == nil {
		src = ft
	}
	if src == nil {
		return nil, ErrEmpty
	}
	t, err := NewTransform(o.backend, src.width, src.height)
	if err != nil {
		return nil, err
	}
	return &ReconstructionField{
		width:     src.width,
		height:    src.height,
		transform: t,
		field:     f,
		fourier:   ft,
	}, nil
}

func (r *ReconstructionField) Width() int  { return r.width }
func (r *ReconstructionField) Height() int { return r.height }

// Backend reports which FFT backend the field converts with.
func (r *ReconstructionField) Backend() Backend { return r.transform.Backend() }

// HasField reports whether the spatial representation is cached.
func (r *ReconstructionField) HasField() bool { return r.field != nil }

// HasFourier reports whether the frequency representation is cached.
func (r *ReconstructionField) HasFourier() bool { return r.fourier != nil }

// Field returns the spatial-domain samples, running the inverse transform
// first if only the frequency domain is present.
func (r *ReconstructionField) Field() View {
	return View{r.spatial()}
}

// Fourier returns the centred frequency-domain samples, running the forward
// transform first if only the spatial domain is present.
func (r *ReconstructionField) Fourier() View {
	return View{r.spectral()}
}

func (r *ReconstructionField) spatial() *ComplexField {
	if r.field == nil {
		c := r.fourier.Copy()
		c.Unshift()
		r.transform.Inverse(c)
		r.field = c
	}
	return r.field
}

func (r *ReconstructionField) spectral() *ComplexField {
	if r.fourier == nil {
		c := r.field.Copy()
		r.transform.Forward(c)
		c.Shift()
		r.fourier = c
	}
	return r.fourier
}

// EditField hands the spatial samples to edit and invalidates the frequency
// representation afterwards. edit must not keep c after it returns.
func (r *ReconstructionField) EditField(edit func(c *ComplexField)) {
	c := r.spatial()
	edit(c)
	r.fourier = nil
	r.check(c)
}

// EditFourier hands the centred frequency samples to edit and invalidates
// the spatial representation afterwards. edit must not keep c after it
// returns.
func (r *ReconstructionField) EditFourier(edit func(c *ComplexField)) {
	c := r.spectral()
	edit(c)
	r.field = nil
	r.check(c)
}

func (r *ReconstructionField) check(c *ComplexField) {
	if c.width != r.width || c.height != r.height || len(c.data) != r.width*r.height {
		panic(fmt.Sprintf("field: edit resized a %dx%d field", r.width, r.height))
	}
}

// Copy returns an independent field with the same cached representations
// and backend.
func (r *ReconstructionField) Copy() *ReconstructionField {
	t, err := NewTransform(r.transform.Backend(), r.width, r.height)
	if err != nil {
		// r was built with the same backend and size.
		panic(err)
	}
	out := &ReconstructionField{width: r.width, height: r.height, transform: t}
	if r.field != nil {
		out.field = r.field.Copy()
	}
	if r.fourier != nil {
		out.fourier = r.fourier.Copy()
	}
	return out
}

// ReadOnly returns a handle that exposes r without its edit methods.
func (r *ReconstructionField) ReadOnly() ReadOnly {
	return ReadOnly{r: r}
}

// ReadOnly is a non-mutating handle on a ReconstructionField. Reading a
// domain may still fill the underlying cache, which never changes the
// samples.
type ReadOnly struct {
	r *ReconstructionField
}

func (o ReadOnly) Width() int       { return o.r.width }
func (o ReadOnly) Height() int      { return o.r.height }
func (o ReadOnly) Backend() Backend { return o.r.Backend() }
func (o ReadOnly) HasField() bool   { return o.r.HasField() }
func (o ReadOnly) HasFourier() bool { return o.r.HasFourier() }
func (o ReadOnly) Field() View      { return o.r.Field() }
func (o ReadOnly) Fourier() View    { return o.r.Fourier() }

// Copy returns an independent, editable copy of the field.
func (o ReadOnly) Copy() *ReconstructionField { return o.r.Copy() }

// Valid reports whether o refers to a field.
func (o ReadOnly) Valid() bool { return o.r != nil }
