// Package units provides a length value tagged with its unit.
//
// Optical parameters (wavelength, sensor extent, propagation distance) are
// entered in whatever unit is natural for them; all computation goes through
// the canonical metre value, so a quantity expressed as 500nm and as 0.5um is
// the same physical length.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Unit is a unit of length.
type Unit int

const (
	Nano Unit = iota
	Micro
	Milli
	Centi
	Meter
)

// ErrUnknownUnit is returned when a unit symbol cannot be recognised.
var ErrUnknownUnit = errors.New("units: unknown unit")

// Decimal exponent of each unit relative to the metre. Conversions go
// through exponent differences so that whole-number conversions between
// units stay exact.
var exponents = [...]int{
	Nano:  -9,
	Micro: -6,
	Milli: -3,
	Centi: -2,
	Meter: 0,
}

var symbols = [...]string{
	Nano:  "nm",
	Micro: "um",
	Milli: "mm",
	Centi: "cm",
	Meter: "m",
}

// Units lists every supported unit from smallest to largest.
func Units() []Unit {
	return []Unit{Nano, Micro, Milli, Centi, Meter}
}

// Factor returns how many metres one of u is.
func (u Unit) Factor() float64 {
	if !u.valid() {
		return math.NaN()
	}
	return math.Pow10(exponents[u])
}

// String returns the short symbol of the unit ("nm", "um", ...).
func (u Unit) String() string {
	if !u.valid() {
		return fmt.Sprintf("Unit(%d)", int(u))
	}
	return symbols[u]
}

func (u Unit) valid() bool {
	return u >= Nano && u <= Meter
}

// ParseUnit maps a unit symbol to a Unit. Both "um" and "µm" are accepted
// for micrometres, as are the long names.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nm", "nano", "nanometer", "nanometre", "nanometers", "nanometres":
		return Nano, nil
	case "um", "µm", "μm", "micro", "micron", "microns", "micrometer", "micrometre", "micrometers", "micrometres":
		return Micro, nil
	case "mm", "milli", "millimeter", "millimetre", "millimeters", "millimetres":
		return Milli, nil
	case "cm", "centi", "centimeter", "centimetre", "centimeters", "centimetres":
		return Centi, nil
	case "m", "meter", "metre", "meters", "metres":
		return Meter, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownUnit, s)
}

// Distance is a magnitude together with the unit it was expressed in.
// The zero value is zero nanometres.
type Distance struct {
	Value float64
	Unit  Unit
}

// New returns a Distance of value in unit u.
func New(value float64, u Unit) Distance {
	return Distance{Value: value, Unit: u}
}

// Meters returns d as a canonical metre value.
func (d Distance) Meters() float64 {
	return d.Value * d.Unit.Factor()
}

// In converts d to unit u.
func (d Distance) In(u Unit) Distance {
	if d.Unit == u {
		return d
	}
	return Distance{Value: d.Value * math.Pow10(exponents[d.Unit]-exponents[u]), Unit: u}
}

func (d Distance) AsNano() float64  { return d.In(Nano).Value }
func (d Distance) AsMicro() float64 { return d.In(Micro).Value }
func (d Distance) AsMilli() float64 { return d.In(Milli).Value }
func (d Distance) AsCenti() float64 { return d.In(Centi).Value }
func (d Distance) AsMeter() float64 { return d.Meters() }

// Sub returns d - o, expressed in d's unit.
func (d Distance) Sub(o Distance) Distance {
	return Distance{Value: d.Value - o.In(d.Unit).Value, Unit: d.Unit}
}

// Add returns d + o, expressed in d's unit.
func (d Distance) Add(o Distance) Distance {
	return Distance{Value: d.Value + o.In(d.Unit).Value, Unit: d.Unit}
}

// Equal reports whether d and o describe the same physical length. The
// comparison is done on canonical metres with a relative tolerance that
// absorbs the rounding of the factor table.
func (d Distance) Equal(o Distance) bool {
	a, b := d.Meters(), o.Meters()
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}

// Compare returns -1, 0 or +1 depending on whether d is shorter than, equal
// to, or longer than o.
func (d Distance) Compare(o Distance) int {
	switch {
	case d.Equal(o):
		return 0
	case d.Meters() < o.Meters():
		return -1
	default:
		return 1
	}
}

// IsZero reports whether d has zero length.
func (d Distance) IsZero() bool {
	return d.Value == 0
}

func (d Distance) String() string {
	return strconv.FormatFloat(d.Value, 'g', -1, 64) + d.Unit.String()
}

// Parse reads a distance written as a number followed by a unit symbol, with
// or without whitespace in between: "500nm", "0.3 mm", "1e-4m".
func Parse(s string) (Distance, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Distance{}, fmt.Errorf("units: empty distance")
	}
	split := strings.LastIndexFunc(s, func(r rune) bool {
		return unicode.IsDigit(r) || r == '.'
	})
	if split < 0 {
		return Distance{}, fmt.Errorf("units: no magnitude in %q", s)
	}
	num := strings.TrimSpace(s[:split+1])
	sym := strings.TrimSpace(s[split+1:])
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Distance{}, fmt.Errorf("units: invalid magnitude in %q: %w", s, err)
	}
	if sym == "" {
		return Distance{}, fmt.Errorf("%w: missing unit in %q", ErrUnknownUnit, s)
	}
	u, err := ParseUnit(sym)
	if err != nil {
		return Distance{}, err
	}
	return Distance{Value: value, Unit: u}, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Distance {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// UnmarshalYAML accepts "500nm" style scalars.
func (d *Distance) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("units: line %d: distance must be a scalar", node.Line)
	}
	parsed, err := Parse(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML writes the distance in its own unit.
func (d Distance) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
