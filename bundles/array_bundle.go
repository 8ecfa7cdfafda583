package bundles

import (
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/portconv"
)

// ArrayBundleTransform lowers a port carrying array<N x bundle> into one
// array<N x T> port per channel, named <port>_<channel>.
//
// Inside the body the channel arrays are transposed back into bundles
// element by element: array_get extracts index i of every channel array,
// one Pack or Unpack per index works on the i-th bundle, and
// array_create regathers the per-index channels into arrays. Instances
// are adapted with a single arrayed Pack or Unpack instead.
//
// With N = 0 the ports are zero-length arrays and no Pack or Unpack is
// created anywhere.
type ArrayBundleTransform struct {
	channelPorts
}

func newArrayBundleTransform(c *portconv.Converter, port hw.PortInfo, bundle hw.BundleType, n int) *ArrayBundleTransform {
	return &ArrayBundleTransform{channelPorts{
		c:     c,
		orig:  port,
		shape: hw.BundleShape{Bundle: bundle, Len: n, Arrayed: true},
	}}
}

// BuildPorts implements portconv.Conversion.
func (t *ArrayBundleTransform) BuildPorts() error {
	if t.orig.Direction == hw.Input {
		t.buildInputSignals()
	} else {
		t.buildOutputSignals()
	}
	return nil
}

func (t *ArrayBundleTransform) buildInputSignals() {
	c, d := t.c, t.c.Design()
	n := t.shape.Len
	bundle := t.shape.Bundle
	fromChans := bundle.Filter(hw.From)

	var toArrays []hw.ValueID
	for _, ch := range bundle.Filter(hw.To) {
		toArrays = append(toArrays, t.input(ch))
	}

	var fromArrays []hw.ValueID
	if c.HasBody() {
		b := c.Builder()
		b.SetInsertionPointToStart()

		bundles := make([]hw.ValueID, n)
		fromPerChannel := make([][]hw.ValueID, len(fromChans))
		for i := 0; i < n; i++ {
			to := make([]hw.ValueID, len(toArrays))
			for j, arr := range toArrays {
				to[j] = b.ArrayGet(arr, i)
			}
			pack := d.Op(b.Pack(bundle, to))
			bundles[i] = pack.PackBundle()
			for j, f := range pack.PackFromChannels() {
				fromPerChannel[j] = append(fromPerChannel[j], f)
			}
		}

		arr := b.ArrayCreate(bundle, bundles)
		d.SetName(arr, t.orig.Name)
		d.ReplaceAllUses(c.OrigArg(t.orig), arr)
		for j, ch := range fromChans {
			fromArrays = append(fromArrays, b.ArrayCreate(ch.Type, fromPerChannel[j]))
		}
	}

	for j, ch := range fromChans {
		wired := hw.None()
		if fromArrays != nil {
			wired = hw.Some(fromArrays[j])
		}
		t.output(ch, wired)
	}
}

func (t *ArrayBundleTransform) buildOutputSignals() {
	c, d := t.c, t.c.Design()
	n := t.shape.Len
	bundle := t.shape.Bundle
	toChans := bundle.Filter(hw.To)

	var fromArrays []hw.ValueID
	for _, ch := range bundle.Filter(hw.From) {
		fromArrays = append(fromArrays, t.input(ch))
	}

	var toArrays []hw.ValueID
	if c.HasBody() {
		b := c.Builder()
		b.SetInsertionPointBeforeTerminator()

		orig := c.OrigOutput(t.orig)
		toPerChannel := make([][]hw.ValueID, len(toChans))
		for i := 0; i < n; i++ {
			from := make([]hw.ValueID, len(fromArrays))
			for j, arr := range fromArrays {
				from[j] = b.ArrayGet(arr, i)
			}
			unpack := b.Unpack(b.ArrayGet(orig, i), from)
			for j, r := range d.Op(unpack).UnpackToChannels() {
				toPerChannel[j] = append(toPerChannel[j], r)
			}
		}
		for j, ch := range toChans {
			toArrays = append(toArrays, b.ArrayCreate(ch.Type, toPerChannel[j]))
		}
	}

	for j, ch := range toChans {
		wired := hw.None()
		if toArrays != nil {
			wired = hw.Some(toArrays[j])
		}
		t.output(ch, wired)
	}
}
