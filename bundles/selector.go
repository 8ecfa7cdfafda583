package bundles

import (
	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/portconv"
)

// PortShape is the lowering-relevant classification of a port type.
// The set is closed: ScalarBundle, BundleArray and Opaque.
type PortShape interface {
	isPortShape()
}

// ScalarBundle is a port carrying one bundle.
type ScalarBundle struct {
	Bundle hw.BundleType
}

// BundleArray is a port carrying a fixed-length array of bundles.
type BundleArray struct {
	Bundle hw.BundleType
	Len    int
}

// Opaque is every other port type; the pass leaves it alone.
type Opaque struct{}

func (ScalarBundle) isPortShape() {}
func (BundleArray) isPortShape()  {}
func (Opaque) isPortShape()       {}

// Classify returns the shape of a port type. Arrays of arrays of bundles
// and any other nesting are Opaque.
func Classify(t hw.Type) PortShape {
	shape, ok := hw.ShapeOf(t)
	switch {
	case !ok:
		return Opaque{}
	case shape.Arrayed:
		return BundleArray{Bundle: shape.Bundle, Len: shape.Len}
	default:
		return ScalarBundle{Bundle: shape.Bundle}
	}
}

// Selector picks the conversion for each port of a module being lowered:
// BundleTransform for bundles, ArrayBundleTransform for arrays of
// bundles, and the framework default for everything else.
type Selector struct{}

// Build implements portconv.ConversionBuilder.
func (Selector) Build(c *portconv.Converter, port hw.PortInfo) (portconv.Conversion, error) {
	switch s := Classify(port.Type).(type) {
	case ScalarBundle:
		if err := checkBundle(c, port, s.Bundle); err != nil {
			return nil, err
		}
		return newBundleTransform(c, port, s.Bundle), nil
	case BundleArray:
		if err := checkBundle(c, port, s.Bundle); err != nil {
			return nil, err
		}
		return newArrayBundleTransform(c, port, s.Bundle, s.Len), nil
	default:
		return portconv.Default(c, port)
	}
}

func checkBundle(c *portconv.Converter, port hw.PortInfo, b hw.BundleType) error {
	if err := hw.CheckPartition(b); err != nil {
		return errors.New(errors.PhaseConvert, errors.KindUnsupported).
			Module(c.Module().Name).
			Location(port.Direction.String() + " " + port.Name).
			Cause(err).
			Build()
	}
	return nil
}
