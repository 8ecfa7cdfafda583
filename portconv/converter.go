package portconv

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
)

// PortRef names a port created during conversion. Its ArgNum is known
// only once the signature is final; look it up with Converter.Port.
type PortRef int

type newPort struct {
	port   hw.Port
	value  hw.ValueID
	wired  hw.Optional
	origin int
	argNum int
}

// Summary counts what one conversion run changed.
type Summary struct {
	PortsConverted     int
	InstancesRewritten int
}

// Converter rewrites the signature of one module and every instance of
// it. Conversions, picked per port by a ConversionBuilder, declare the
// replacement ports and insert whatever adapters keep the body and the
// instantiation sites equivalent.
//
// The final port order is:
//   - ports created from an original port with the same direction take
//     its place, in creation order
//   - inputs created from output ports follow, by original port order
//   - outputs created from input ports come last, by original port order
type Converter struct {
	d       *hw.Design
	graph   *hw.InstanceGraph
	mod     *hw.Module
	builder ConversionBuilder
	orig    []hw.PortInfo
	ports   []newPort
	summary Summary
}

// NewConverter prepares the conversion of mod. The instance graph is used
// to find instantiation sites and is updated as instances are rebuilt.
func NewConverter(d *hw.Design, graph *hw.InstanceGraph, mod hw.ModuleID, builder ConversionBuilder) *Converter {
	m := d.Module(mod)
	return &Converter{
		d:       d,
		graph:   graph,
		mod:     m,
		builder: builder,
		orig:    m.PortInfos(),
	}
}

// Design returns the design being rewritten.
func (c *Converter) Design() *hw.Design {
	return c.d
}

// Module returns the module being converted.
func (c *Converter) Module() *hw.Module {
	return c.mod
}

// HasBody reports whether the module has a body to rewire.
func (c *Converter) HasBody() bool {
	return c.mod.HasBody()
}

// Builder returns a builder appending to the module body.
func (c *Converter) Builder() *hw.Builder {
	return hw.NewBuilder(c.d, c.mod.ID())
}

// OrigArg returns the body argument of an original input port.
func (c *Converter) OrigArg(port hw.PortInfo) hw.ValueID {
	return c.mod.Arg(port.ArgNum)
}

// OrigOutput returns the value the body drives an original output port
// with.
func (c *Converter) OrigOutput(port hw.PortInfo) hw.ValueID {
	return c.d.Op(c.mod.Terminator()).Operand(port.ArgNum)
}

// Summary returns the counts of the last Run.
func (c *Converter) Summary() Summary {
	return c.summary
}

// CreateNewInput declares an input port named orig.Name+suffix. For a
// module with a body it returns the new block argument; otherwise
// hw.NoValue.
func (c *Converter) CreateNewInput(orig hw.PortInfo, suffix string, t hw.Type) (hw.ValueID, PortRef) {
	name := orig.Name + suffix
	v := hw.NoValue
	if c.HasBody() {
		v = c.d.NewValue(t, name)
	}
	c.ports = append(c.ports, newPort{
		port:   hw.Port{Name: name, Type: t, Direction: hw.Input},
		value:  v,
		origin: c.originOf(orig),
		argNum: -1,
	})
	return v, PortRef(len(c.ports) - 1)
}

// CreateNewOutput declares an output port named orig.Name+suffix, driven
// by wired. Modules with a body must wire every output; declaration-only
// modules pass hw.None.
func (c *Converter) CreateNewOutput(orig hw.PortInfo, suffix string, t hw.Type, wired hw.Optional) PortRef {
	c.ports = append(c.ports, newPort{
		port:   hw.Port{Name: orig.Name + suffix, Type: t, Direction: hw.Output},
		value:  hw.NoValue,
		wired:  wired,
		origin: c.originOf(orig),
		argNum: -1,
	})
	return PortRef(len(c.ports) - 1)
}

// Port returns a created port. ArgNum is -1 until the signature is final.
func (c *Converter) Port(ref PortRef) hw.PortInfo {
	np := c.ports[ref]
	return hw.PortInfo{Port: np.port, ArgNum: np.argNum}
}

func (c *Converter) originOf(orig hw.PortInfo) int {
	for i, p := range c.orig {
		if p.Direction == orig.Direction && p.ArgNum == orig.ArgNum {
			return i
		}
	}
	return -1
}

// Run converts the module: it builds a conversion per port, lets each
// declare its replacement ports (inputs first, then outputs), finalizes
// the signature and then rewrites every instantiation site. A module
// whose ports all convert as Untouched is left alone.
func (c *Converter) Run() error {
	m := c.mod
	log := Logger().With(zap.String("module", m.Name))
	if !m.Mutable() {
		return errors.Conversion(m.Name, errors.Unsupported(errors.PhaseConvert,
			fmt.Sprintf("%s module signature cannot be rewritten", m.Kind)))
	}
	if m.HasBody() {
		term := m.Terminator()
		if term == hw.NoOp || c.d.Op(term).Kind != hw.OpOutput {
			return errors.Conversion(m.Name, errors.InvalidInput(errors.PhaseConvert, "body does not end in an output terminator"))
		}
	}

	convs := make([]Conversion, len(c.orig))
	for i, p := range c.orig {
		conv, err := c.builder.Build(c, p)
		if err != nil {
			return errors.Conversion(m.Name, err)
		}
		if _, ok := conv.(*Untouched); !ok {
			c.summary.PortsConverted++
		}
		convs[i] = conv
	}
	if c.summary.PortsConverted == 0 {
		log.Debug("no ports to convert")
		return nil
	}

	for _, dir := range []hw.PortDirection{hw.Input, hw.Output} {
		for i, p := range c.orig {
			if p.Direction != dir {
				continue
			}
			if err := convs[i].BuildPorts(); err != nil {
				return errors.Conversion(m.Name, err)
			}
		}
	}

	if err := c.finalize(); err != nil {
		return errors.Conversion(m.Name, err)
	}

	for _, inst := range c.graph.InstancesOf(m.ID()) {
		if err := c.rewriteInstance(inst, convs); err != nil {
			return errors.Conversion(m.Name, err)
		}
		c.summary.InstancesRewritten++
	}

	log.Debug("converted module",
		zap.Int("ports_converted", c.summary.PortsConverted),
		zap.Int("inputs", m.NumInputs()),
		zap.Int("outputs", m.NumOutputs()),
		zap.Int("instances", c.summary.InstancesRewritten))
	return nil
}

// finalize orders the created ports, assigns their ArgNums and installs
// the new signature, block arguments and terminator operands.
func (c *Converter) finalize() error {
	var order []int
	collect := func(origin int, dir hw.PortDirection) {
		for j, np := range c.ports {
			if np.origin == origin && np.port.Direction == dir {
				order = append(order, j)
			}
		}
	}
	for i, p := range c.orig {
		collect(i, p.Direction)
	}
	for i, p := range c.orig {
		if p.Direction == hw.Output {
			collect(i, hw.Input)
		}
	}
	for i, p := range c.orig {
		if p.Direction == hw.Input {
			collect(i, hw.Output)
		}
	}
	if len(order) != len(c.ports) {
		return errors.InvalidInput(errors.PhaseConvert, "created port has no original port")
	}

	ports := make([]hw.Port, 0, len(order))
	var args, outs []hw.ValueID
	var inNum, outNum int
	for _, j := range order {
		np := &c.ports[j]
		ports = append(ports, np.port)
		if np.port.Direction == hw.Input {
			np.argNum = inNum
			inNum++
			args = append(args, np.value)
			continue
		}
		np.argNum = outNum
		outNum++
		if c.HasBody() {
			v, ok := np.wired.Get()
			if !ok || v == hw.NoValue {
				return errors.New(errors.PhaseConvert, errors.KindInvalidInput).
					Module(c.mod.Name).
					Location("output " + np.port.Name).
					Detail("output port is not wired").
					Build()
			}
			outs = append(outs, v)
		}
	}

	if c.HasBody() {
		for i, in := range c.mod.Inputs() {
			if n := c.d.NumUses(c.mod.Arg(i)); n > 0 {
				return errors.DanglingUse(errors.PhaseConvert, c.mod.Name, "input "+in.Name, n)
			}
		}
		if err := c.d.SetArgs(c.mod.ID(), args); err != nil {
			return err
		}
		c.d.SetOperands(c.mod.Terminator(), outs)
	}
	c.d.SetPorts(c.mod.ID(), ports)
	return nil
}

// rewriteInstance replaces one instance with an instance of the new
// signature. Adapters go before the old instance, followed by the new one.
func (c *Converter) rewriteInstance(id hw.OpID, convs []Conversion) error {
	d := c.d
	inst := d.Op(id)
	parent := d.Module(inst.Parent).Name
	loc := d.Describe(id)

	var numIn, numOut int
	for _, p := range c.orig {
		if p.Direction == hw.Input {
			numIn++
		} else {
			numOut++
		}
	}
	if inst.NumOperands() != numIn {
		return errors.ArityMismatch(errors.PhaseConvert, parent, loc, "operands", numIn, inst.NumOperands())
	}
	if inst.NumResults() != numOut {
		return errors.ArityMismatch(errors.PhaseConvert, parent, loc, "results", numOut, inst.NumResults())
	}

	newOperands := make([]hw.ValueID, c.mod.NumInputs())
	for i := range newOperands {
		newOperands[i] = hw.NoValue
	}
	outputs := c.mod.Outputs()
	newResults := make([]hw.ValueID, len(outputs))
	for i, p := range outputs {
		newResults[i] = d.NewValue(p.Type, "")
	}

	b := hw.NewBuilder(d, inst.Parent)
	b.SetInsertionPointBefore(id)
	for i, p := range c.orig {
		var err error
		if p.Direction == hw.Input {
			err = convs[i].MapInputSignals(b, id, newOperands, newResults)
		} else {
			err = convs[i].MapOutputSignals(b, id, newOperands, newResults)
		}
		if err != nil {
			return err
		}
	}

	inputs := c.mod.Inputs()
	for i, v := range newOperands {
		if v == hw.NoValue {
			return errors.New(errors.PhaseConvert, errors.KindInvalidInput).
				Module(parent).
				Location(loc).
				Detail("operand for port %s left unset", inputs[i].Name).
				Build()
		}
	}

	repl := b.Create(hw.OpInstance, hw.OpAttrs{Name: inst.Name, Callee: inst.Callee}, newOperands, newResults)
	if err := d.EraseOp(id); err != nil {
		return err
	}
	c.graph.Replace(id, repl)
	return nil
}
