package bundles

import (
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/portconv"
)

// channelPorts holds the ports one bundle-carrying port was split into and
// adapts instantiation sites to them. Both transforms share it: at an
// instance the scalar and arrayed forms differ only in the adapter type.
type channelPorts struct {
	c     *portconv.Converter
	orig  hw.PortInfo
	shape hw.BundleShape

	// inputs and outputs are the created ports in bundle declaration
	// order, filtered by the direction they ended up with.
	inputs  []portconv.PortRef
	outputs []portconv.PortRef
}

func (p *channelPorts) suffix(ch hw.BundledChannel) string {
	return "_" + ch.Name
}

func (p *channelPorts) input(ch hw.BundledChannel) hw.ValueID {
	v, ref := p.c.CreateNewInput(p.orig, p.suffix(ch), p.shape.ChannelType(ch))
	p.inputs = append(p.inputs, ref)
	return v
}

func (p *channelPorts) output(ch hw.BundledChannel, wired hw.Optional) {
	p.outputs = append(p.outputs, p.c.CreateNewOutput(p.orig, p.suffix(ch), p.shape.ChannelType(ch), wired))
}

func (p *channelPorts) gather(refs []portconv.PortRef, vals []hw.ValueID) []hw.ValueID {
	out := make([]hw.ValueID, len(refs))
	for i, ref := range refs {
		out[i] = vals[p.c.Port(ref).ArgNum]
	}
	return out
}

func (p *channelPorts) scatter(refs []portconv.PortRef, dst, vals []hw.ValueID) {
	for i, ref := range refs {
		dst[p.c.Port(ref).ArgNum] = vals[i]
	}
}

// empty reports a zero-length array of bundles: there is nothing to pack,
// so sites get zero-length arrays instead of adapters.
func (p *channelPorts) empty() bool {
	return p.shape.Arrayed && p.shape.Len == 0
}

func (p *channelPorts) emptyArrays(b *hw.Builder, dir hw.ChannelDirection) []hw.ValueID {
	chans := p.shape.Bundle.Filter(dir)
	out := make([]hw.ValueID, len(chans))
	for i, ch := range chans {
		out[i] = b.ArrayCreate(ch.Type, nil)
	}
	return out
}

// MapInputSignals splits the bundle the instance was fed: an Unpack takes
// the old operand and the instance's new from-channel results, and its
// to-channel results feed the new inputs.
func (p *channelPorts) MapInputSignals(b *hw.Builder, inst hw.OpID, newOperands, newResults []hw.ValueID) error {
	d := p.c.Design()
	if p.empty() {
		p.scatter(p.inputs, newOperands, p.emptyArrays(b, hw.To))
		return nil
	}
	bundle := d.Op(inst).Operand(p.orig.ArgNum)
	unpack := b.Unpack(bundle, p.gather(p.outputs, newResults))
	p.scatter(p.inputs, newOperands, d.Op(unpack).UnpackToChannels())
	return nil
}

// MapOutputSignals rebuilds the bundle the instance used to produce: a Pack
// takes the instance's new to-channel results, its from-channel results
// feed the new inputs, and its bundle replaces the old result.
func (p *channelPorts) MapOutputSignals(b *hw.Builder, inst hw.OpID, newOperands, newResults []hw.ValueID) error {
	d := p.c.Design()
	old := d.Op(inst).Result(p.orig.ArgNum)
	if p.empty() {
		p.scatter(p.inputs, newOperands, p.emptyArrays(b, hw.From))
		d.ReplaceAllUses(old, b.ArrayCreate(p.shape.Bundle, nil))
		return nil
	}
	pack := d.Op(b.Pack(p.shape.Type(), p.gather(p.outputs, newResults)))
	p.scatter(p.inputs, newOperands, pack.PackFromChannels())
	d.SetName(pack.PackBundle(), d.NameOf(old))
	d.ReplaceAllUses(old, pack.PackBundle())
	return nil
}

// BundleTransform lowers a port carrying a single bundle into one port per
// channel, named <port>_<channel>.
//
// For an input port the to-channels become inputs and the from-channels
// become outputs; the body gets a Pack at its top rebuilding the bundle
// for its old users. For an output port the from-channels become inputs
// and the to-channels become outputs; the body gets an Unpack before the
// terminator taking the bundle it used to drive out. Modules without a
// body only change signature.
type BundleTransform struct {
	channelPorts
}

func newBundleTransform(c *portconv.Converter, port hw.PortInfo, bundle hw.BundleType) *BundleTransform {
	return &BundleTransform{channelPorts{c: c, orig: port, shape: hw.BundleShape{Bundle: bundle}}}
}

// BuildPorts implements portconv.Conversion.
func (t *BundleTransform) BuildPorts() error {
	if t.orig.Direction == hw.Input {
		t.buildInputSignals()
	} else {
		t.buildOutputSignals()
	}
	return nil
}

func (t *BundleTransform) buildInputSignals() {
	c, d := t.c, t.c.Design()
	var to []hw.ValueID
	for _, ch := range t.shape.Bundle.Filter(hw.To) {
		to = append(to, t.input(ch))
	}

	var from []hw.ValueID
	if c.HasBody() {
		b := c.Builder()
		b.SetInsertionPointToStart()
		pack := d.Op(b.Pack(t.shape.Bundle, to))
		old := c.OrigArg(t.orig)
		d.SetName(pack.PackBundle(), t.orig.Name)
		d.ReplaceAllUses(old, pack.PackBundle())
		from = pack.PackFromChannels()
	}

	for i, ch := range t.shape.Bundle.Filter(hw.From) {
		wired := hw.None()
		if from != nil {
			wired = hw.Some(from[i])
		}
		t.output(ch, wired)
	}
}

func (t *BundleTransform) buildOutputSignals() {
	c, d := t.c, t.c.Design()
	var from []hw.ValueID
	for _, ch := range t.shape.Bundle.Filter(hw.From) {
		from = append(from, t.input(ch))
	}

	var to []hw.ValueID
	if c.HasBody() {
		b := c.Builder()
		b.SetInsertionPointBeforeTerminator()
		unpack := b.Unpack(c.OrigOutput(t.orig), from)
		to = d.Op(unpack).UnpackToChannels()
	}

	for i, ch := range t.shape.Bundle.Filter(hw.To) {
		wired := hw.None()
		if to != nil {
			wired = hw.Some(to[i])
		}
		t.output(ch, wired)
	}
}
