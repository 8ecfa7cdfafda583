package hw

// Builder inserts ops into one module body at a movable insertion point.
type Builder struct {
	d      *Design
	mod    ModuleID
	anchor OpID
}

// NewBuilder creates a builder that appends to the end of mod's body.
func NewBuilder(d *Design, mod ModuleID) *Builder {
	return &Builder{d: d, mod: mod, anchor: NoOp}
}

// Design returns the design the builder writes into.
func (b *Builder) Design() *Design {
	return b.d
}

// Module returns the module the builder writes into.
func (b *Builder) Module() ModuleID {
	return b.mod
}

// SetInsertionPointToStart inserts subsequent ops at the start of the body.
func (b *Builder) SetInsertionPointToStart() {
	m := b.d.modules[b.mod]
	if len(m.ops) == 0 {
		b.anchor = NoOp
		return
	}
	b.anchor = m.ops[0]
}

// SetInsertionPointBefore inserts subsequent ops immediately before op.
func (b *Builder) SetInsertionPointBefore(op OpID) {
	b.anchor = op
}

// SetInsertionPointBeforeTerminator inserts subsequent ops before the
// output terminator, or at the end if the body has none yet.
func (b *Builder) SetInsertionPointBeforeTerminator() {
	m := b.d.modules[b.mod]
	t := m.Terminator()
	if t != NoOp && b.d.ops[t].Kind == OpOutput {
		b.anchor = t
		return
	}
	b.anchor = NoOp
}

// SetInsertionPointToEnd appends subsequent ops to the body.
func (b *Builder) SetInsertionPointToEnd() {
	b.anchor = NoOp
}

// Create inserts a new op. Results must be unbound values from NewValue;
// they become bound to the new op in order.
func (b *Builder) Create(kind OpKind, attrs OpAttrs, operands, results []ValueID) OpID {
	d := b.d
	id := OpID(len(d.ops))
	o := &Op{
		Kind:     kind,
		Type:     attrs.Type,
		Name:     attrs.Name,
		Callee:   attrs.Callee,
		Index:    attrs.Index,
		ID:       id,
		Parent:   b.mod,
		operands: append([]ValueID(nil), operands...),
		results:  append([]ValueID(nil), results...),
	}
	d.ops = append(d.ops, o)

	for i, v := range o.operands {
		d.addUse(v, Use{Op: id, Operand: i})
	}
	for i, r := range o.results {
		info := &d.values[r]
		info.def = id
		info.module = b.mod
		info.index = i
		info.arg = false
	}

	m := d.modules[b.mod]
	pos := len(m.ops)
	if b.anchor != NoOp {
		for i, x := range m.ops {
			if x == b.anchor {
				pos = i
				break
			}
		}
	}
	m.ops = append(m.ops, NoOp)
	copy(m.ops[pos+1:], m.ops[pos:])
	m.ops[pos] = id
	return id
}

func (b *Builder) newResults(types []Type) []ValueID {
	out := make([]ValueID, len(types))
	for i, t := range types {
		out[i] = b.d.NewValue(t, "")
	}
	return out
}

// Pack creates a pack of the given bundle (or array-of-bundle) type from
// its to-channels. The bundle is result 0; from-channels follow.
func (b *Builder) Pack(target Type, to []ValueID) OpID {
	shape, _ := ShapeOf(target)
	types := append([]Type{target}, shape.ChannelTypes(From)...)
	return b.Create(OpPack, OpAttrs{Type: target}, to, b.newResults(types))
}

// Unpack splits bundle, feeding it the from-channels. The results are the
// to-channels.
func (b *Builder) Unpack(bundle ValueID, from []ValueID) OpID {
	shape, _ := ShapeOf(b.d.TypeOf(bundle))
	operands := append([]ValueID{bundle}, from...)
	return b.Create(OpUnpack, OpAttrs{}, operands, b.newResults(shape.ChannelTypes(To)))
}

// ArrayGet reads element idx of arr.
func (b *Builder) ArrayGet(arr ValueID, idx int) ValueID {
	var elem Type
	if at, ok := b.d.TypeOf(arr).(ArrayType); ok {
		elem = at.Elem
	}
	r := b.d.NewValue(elem, "")
	b.Create(OpArrayGet, OpAttrs{Index: idx}, []ValueID{arr}, []ValueID{r})
	return r
}

// ArrayCreate builds an array of elemType from elems. An empty elems list
// yields a zero-length array.
func (b *Builder) ArrayCreate(elemType Type, elems []ValueID) ValueID {
	r := b.d.NewValue(ArrayType{Elem: elemType, Len: len(elems)}, "")
	b.Create(OpArrayCreate, OpAttrs{Type: elemType}, elems, []ValueID{r})
	return r
}

// Generic creates an opaque op with the given result types.
func (b *Builder) Generic(name string, operands []ValueID, types []Type) OpID {
	return b.Create(OpGeneric, OpAttrs{Name: name}, operands, b.newResults(types))
}

// Instance instantiates callee. Result types follow the callee's current
// output ports.
func (b *Builder) Instance(name, callee string, operands []ValueID) OpID {
	var types []Type
	if m, ok := b.d.ModuleByName(callee); ok {
		for _, p := range m.Outputs() {
			types = append(types, p.Type)
		}
	}
	return b.Create(OpInstance, OpAttrs{Name: name, Callee: callee}, operands, b.newResults(types))
}

// Output creates the body terminator.
func (b *Builder) Output(values []ValueID) OpID {
	return b.Create(OpOutput, OpAttrs{}, values, nil)
}
