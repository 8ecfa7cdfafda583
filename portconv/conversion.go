package portconv

import "github.com/wippyai/bundle-lower/hw"

// Conversion lowers one original port of a module.
//
// The converter calls BuildPorts once while the module's signature is
// being rebuilt, then one of the Map methods per instantiation site,
// after the new signature is final:
//   - MapInputSignals for ports that were inputs
//   - MapOutputSignals for ports that were outputs
//
// newOperands and newResults are indexed by the ArgNum of the new ports.
// newResults are the results of the replacement instance; they may be
// used as operands before the instance exists. A Map method must fill
// the newOperands slots of its input ports and move every use of its
// original instance result, if any, to new values.
type Conversion interface {
	BuildPorts() error
	MapInputSignals(b *hw.Builder, inst hw.OpID, newOperands, newResults []hw.ValueID) error
	MapOutputSignals(b *hw.Builder, inst hw.OpID, newOperands, newResults []hw.ValueID) error
}

// ConversionBuilder picks the conversion for each port of a module.
type ConversionBuilder interface {
	Build(c *Converter, port hw.PortInfo) (Conversion, error)
}

// BuilderFunc is an adapter to use ordinary functions as ConversionBuilders.
type BuilderFunc func(c *Converter, port hw.PortInfo) (Conversion, error)

// Build implements ConversionBuilder.
func (f BuilderFunc) Build(c *Converter, port hw.PortInfo) (Conversion, error) {
	return f(c, port)
}

// Default returns the conversion for ports nobody needs to change.
func Default(c *Converter, port hw.PortInfo) (Conversion, error) {
	return &Untouched{c: c, orig: port}, nil
}

// Untouched carries a port over unchanged: same name, same type, and
// instance operands and results passed straight through.
type Untouched struct {
	c    *Converter
	orig hw.PortInfo
	ref  PortRef
}

func (u *Untouched) BuildPorts() error {
	c := u.c
	if u.orig.Direction == hw.Input {
		var v hw.ValueID
		v, u.ref = c.CreateNewInput(u.orig, "", u.orig.Type)
		if c.HasBody() {
			c.Design().ReplaceAllUses(c.OrigArg(u.orig), v)
		}
		return nil
	}

	wired := hw.None()
	if c.HasBody() {
		wired = hw.Some(c.OrigOutput(u.orig))
	}
	u.ref = c.CreateNewOutput(u.orig, "", u.orig.Type, wired)
	return nil
}

func (u *Untouched) MapInputSignals(_ *hw.Builder, inst hw.OpID, newOperands, _ []hw.ValueID) error {
	d := u.c.Design()
	newOperands[u.c.Port(u.ref).ArgNum] = d.Op(inst).Operand(u.orig.ArgNum)
	return nil
}

func (u *Untouched) MapOutputSignals(_ *hw.Builder, inst hw.OpID, _, newResults []hw.ValueID) error {
	d := u.c.Design()
	old := d.Op(inst).Result(u.orig.ArgNum)
	repl := newResults[u.c.Port(u.ref).ArgNum]
	d.SetName(repl, d.NameOf(old))
	d.ReplaceAllUses(old, repl)
	return nil
}
