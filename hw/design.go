package hw

import (
	"fmt"

	"github.com/wippyai/bundle-lower/errors"
)

// ModuleID, OpID and ValueID are stable handles into a Design's arena.
// Handles stay valid for the lifetime of the design; erased ops keep
// their slot and are only marked dead.
type (
	ModuleID int
	OpID     int
	ValueID  int
)

const (
	NoModule ModuleID = -1
	NoOp     OpID     = -1
	NoValue  ValueID  = -1
)

// Use is one operand slot that reads a value.
type Use struct {
	Op      OpID
	Operand int
}

type valueInfo struct {
	typ    Type
	name   string
	uses   []Use
	def    OpID
	module ModuleID
	index  int
	arg    bool
}

// Design is an arena holding every module, op and value of a closed
// instance hierarchy. All mutation goes through Design methods so use
// lists stay consistent.
//
// A Design is not safe for concurrent use.
type Design struct {
	byName  map[string]ModuleID
	modules []*Module
	ops     []*Op
	values  []valueInfo
}

// NewDesign creates an empty design.
func NewDesign() *Design {
	return &Design{byName: make(map[string]ModuleID)}
}

// AddModule declares a module. Definition modules get one block argument
// per input port, named after the port; their op list starts empty and
// the caller adds the output terminator.
func (d *Design) AddModule(name string, kind ModuleKind, ports []Port) (ModuleID, error) {
	if _, exists := d.byName[name]; exists {
		return NoModule, errors.Duplicate(errors.PhaseVerify, "module", name)
	}
	id := ModuleID(len(d.modules))
	m := &Module{
		Name:  name,
		Kind:  kind,
		Ports: append([]Port(nil), ports...),
		id:    id,
	}
	d.modules = append(d.modules, m)
	d.byName[name] = id

	if kind == Definition {
		var args []ValueID
		for _, p := range m.Ports {
			if p.Direction == Input {
				args = append(args, d.NewValue(p.Type, p.Name))
			}
		}
		if err := d.SetArgs(id, args); err != nil {
			return NoModule, err
		}
	}
	return id, nil
}

// Module returns the module with the given handle.
func (d *Design) Module(id ModuleID) *Module {
	return d.modules[id]
}

// ModuleByName looks up a module by symbol name.
func (d *Design) ModuleByName(name string) (*Module, bool) {
	id, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.modules[id], true
}

// Modules returns all modules in declaration order.
func (d *Design) Modules() []*Module {
	out := make([]*Module, len(d.modules))
	copy(out, d.modules)
	return out
}

// NumModules returns the number of modules.
func (d *Design) NumModules() int {
	return len(d.modules)
}

// Op returns the op with the given handle.
func (d *Design) Op(id OpID) *Op {
	return d.ops[id]
}

// NewValue creates an unbound value. It becomes an op result when passed
// to Builder.Create, or a block argument when passed to SetArgs.
func (d *Design) NewValue(t Type, name string) ValueID {
	id := ValueID(len(d.values))
	d.values = append(d.values, valueInfo{
		typ:    t,
		name:   name,
		def:    NoOp,
		module: NoModule,
		index:  -1,
	})
	return id
}

// NumValues returns the number of value slots ever allocated.
func (d *Design) NumValues() int {
	return len(d.values)
}

// TypeOf returns the type of a value.
func (d *Design) TypeOf(v ValueID) Type {
	return d.values[v].typ
}

// SetType assigns a type to a value. Used by readers that learn result
// types after creating the value.
func (d *Design) SetType(v ValueID, t Type) {
	d.values[v].typ = t
}

// NameOf returns the name hint of a value, possibly empty.
func (d *Design) NameOf(v ValueID) string {
	return d.values[v].name
}

// SetName changes the name hint of a value.
func (d *Design) SetName(v ValueID, name string) {
	d.values[v].name = name
}

// DefiningOp returns the op producing v, or NoOp for block arguments and
// unbound values.
func (d *Design) DefiningOp(v ValueID) OpID {
	return d.values[v].def
}

// ResultIndex returns the result position of v in its defining op.
func (d *Design) ResultIndex(v ValueID) int {
	if d.values[v].def == NoOp {
		return -1
	}
	return d.values[v].index
}

// BlockArg reports whether v is a block argument and, if so, of which
// module and at which position.
func (d *Design) BlockArg(v ValueID) (ModuleID, int, bool) {
	info := d.values[v]
	if !info.arg {
		return NoModule, -1, false
	}
	return info.module, info.index, true
}

// ValueModule returns the module a value lives in, or NoModule if unbound.
func (d *Design) ValueModule(v ValueID) ModuleID {
	return d.values[v].module
}

// IsBound reports whether v is defined by a live op or is a block argument.
func (d *Design) IsBound(v ValueID) bool {
	info := d.values[v]
	if info.arg {
		return true
	}
	return info.def != NoOp && !d.ops[info.def].erased
}

// Uses returns the operand slots reading v.
func (d *Design) Uses(v ValueID) []Use {
	out := make([]Use, len(d.values[v].uses))
	copy(out, d.values[v].uses)
	return out
}

// NumUses returns the number of operand slots reading v.
func (d *Design) NumUses(v ValueID) int {
	return len(d.values[v].uses)
}

// HasOneUse reports whether v is read by exactly one operand slot.
func (d *Design) HasOneUse(v ValueID) bool {
	return len(d.values[v].uses) == 1
}

// Users returns the distinct ops reading v, in first-use order.
func (d *Design) Users(v ValueID) []OpID {
	var out []OpID
	seen := make(map[OpID]bool)
	for _, u := range d.values[v].uses {
		if !seen[u.Op] {
			seen[u.Op] = true
			out = append(out, u.Op)
		}
	}
	return out
}

func (d *Design) addUse(v ValueID, u Use) {
	if v == NoValue {
		return
	}
	d.values[v].uses = append(d.values[v].uses, u)
}

func (d *Design) removeUse(v ValueID, u Use) {
	if v == NoValue {
		return
	}
	uses := d.values[v].uses
	for i, x := range uses {
		if x == u {
			d.values[v].uses = append(uses[:i], uses[i+1:]...)
			return
		}
	}
}

// SetOperand rewires one operand slot.
func (d *Design) SetOperand(op OpID, i int, v ValueID) {
	o := d.ops[op]
	old := o.operands[i]
	if old == v {
		return
	}
	d.removeUse(old, Use{Op: op, Operand: i})
	o.operands[i] = v
	d.addUse(v, Use{Op: op, Operand: i})
}

// SetOperands replaces the whole operand list of an op.
func (d *Design) SetOperands(op OpID, vs []ValueID) {
	o := d.ops[op]
	for i, old := range o.operands {
		d.removeUse(old, Use{Op: op, Operand: i})
	}
	o.operands = append([]ValueID(nil), vs...)
	for i, v := range o.operands {
		d.addUse(v, Use{Op: op, Operand: i})
	}
}

// ReplaceAllUses redirects every reader of old to read repl instead.
func (d *Design) ReplaceAllUses(old, repl ValueID) {
	if old == repl {
		return
	}
	for _, u := range d.Uses(old) {
		d.SetOperand(u.Op, u.Operand, repl)
	}
}

// EraseOp removes an op from its block. Its results must be unused.
func (d *Design) EraseOp(id OpID) error {
	o := d.ops[id]
	if o.erased {
		return nil
	}
	for _, r := range o.results {
		if n := d.NumUses(r); n > 0 {
			return errors.DanglingUse(errors.PhaseVerify, d.modules[o.Parent].Name, d.Describe(id), n)
		}
	}
	for i, v := range o.operands {
		d.removeUse(v, Use{Op: id, Operand: i})
	}
	m := d.modules[o.Parent]
	for i, x := range m.ops {
		if x == id {
			m.ops = append(m.ops[:i], m.ops[i+1:]...)
			break
		}
	}
	o.erased = true
	return nil
}

// SetArgs replaces the block argument list of a definition. Values that
// were arguments and are not in args become unbound.
func (d *Design) SetArgs(mod ModuleID, args []ValueID) error {
	m := d.modules[mod]
	if m.Kind != Definition {
		return errors.Unsupported(errors.PhaseVerify, fmt.Sprintf("module %s has no body", m.Name))
	}
	keep := make(map[ValueID]bool, len(args))
	for _, v := range args {
		keep[v] = true
	}
	for _, v := range m.args {
		if !keep[v] {
			d.values[v].arg = false
			d.values[v].module = NoModule
			d.values[v].index = -1
		}
	}
	for i, v := range args {
		info := &d.values[v]
		if info.def != NoOp {
			return errors.InvalidInput(errors.PhaseVerify, fmt.Sprintf("value %d is an op result, not an argument", v))
		}
		if info.arg && info.module != mod {
			return errors.InvalidInput(errors.PhaseVerify, fmt.Sprintf("value %d is an argument of another module", v))
		}
		info.arg = true
		info.module = mod
		info.index = i
	}
	m.args = append([]ValueID(nil), args...)
	return nil
}

// SetPorts replaces the port list of a module.
func (d *Design) SetPorts(mod ModuleID, ports []Port) {
	d.modules[mod].Ports = append([]Port(nil), ports...)
}

// Walk visits every live op of every module in block order. Returning
// false from fn stops the walk.
func (d *Design) Walk(fn func(op *Op) bool) {
	for _, m := range d.modules {
		for _, id := range m.Ops() {
			if !fn(d.ops[id]) {
				return
			}
		}
	}
}

// CountOps returns the number of live ops of the given kind.
func (d *Design) CountOps(kind OpKind) int {
	n := 0
	d.Walk(func(op *Op) bool {
		if op.Kind == kind {
			n++
		}
		return true
	})
	return n
}

// Describe renders a short location string for diagnostics.
func (d *Design) Describe(id OpID) string {
	o := d.ops[id]
	switch o.Kind {
	case OpInstance:
		return fmt.Sprintf("instance %q of %s", o.Name, o.Callee)
	case OpGeneric:
		return fmt.Sprintf("generic %q", o.Name)
	}
	if len(o.results) > 0 {
		if name := d.values[o.results[0]].name; name != "" {
			return fmt.Sprintf("%%%s = %s", name, o.Kind)
		}
	}
	return o.Kind.String()
}
